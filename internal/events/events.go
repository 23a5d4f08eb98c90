// Package events defines the wire payloads pushed by the desktop watcher
// onto the observation feed.
package events

import "time"

// Event type names carried in the Kafka event_type header.
const (
	TypeWindowChanged    = "window.changed"
	TypeUsageRecorded    = "usage.recorded"
	TypeSamplingAnswered = "sampling.answered"
	TypeInputAggregated  = "input.aggregated"
)

// WindowChanged is emitted whenever the foreground window changes.
type WindowChanged struct {
	WindowTitle string    `json:"window_title,omitempty"`
	ProcessName string    `json:"process_name,omitempty"`
	ProcessPath string    `json:"process_path,omitempty"`
	ProcessID   string    `json:"process_id,omitempty"`
	URL         string    `json:"url,omitempty"`
	Activity    string    `json:"activity"`
	ObservedAt  time.Time `json:"observed_at"`
}

// UsageRecorded is emitted for discrete lifecycle events (app start/quit,
// suspend/resume, lock/unlock, sampling prompts).
type UsageRecorded struct {
	EventID    string    `json:"event_id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
}

// SamplingAnswered carries one experience-sampling survey response.
type SamplingAnswered struct {
	ResponseID string    `json:"response_id"`
	PromptedAt time.Time `json:"prompted_at"`
	Question   string    `json:"question"`
	Scale      int       `json:"scale"`
	Response   *int      `json:"response,omitempty"`
	Skipped    bool      `json:"skipped"`
}

// InputAggregated sums keyboard and mouse activity over a short window.
type InputAggregated struct {
	AggregateID   string    `json:"aggregate_id"`
	TsStart       time.Time `json:"ts_start"`
	TsEnd         time.Time `json:"ts_end"`
	KeysTotal     int       `json:"keys_total"`
	ClickTotal    int       `json:"click_total"`
	MovedDistance float64   `json:"moved_distance"`
	ScrollDelta   float64   `json:"scroll_delta"`
}
