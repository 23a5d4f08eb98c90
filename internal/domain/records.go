// Package domain defines the typed records and rules shared by the trackers,
// the reconstruction passes, and the read API.
package domain

import "errors"

const (
	// MaxDurationSeconds caps any single derived interval. A window left in
	// the foreground overnight never reports more than this.
	MaxDurationSeconds = 3600

	// MinSessionSeconds is the retention threshold for derived sessions.
	// Shorter sessions are treated as noise and deleted.
	MinSessionSeconds = 300
)

var (
	// ErrActivityNotFound is returned when a window activity cannot be located.
	ErrActivityNotFound = errors.New("window activity not found")
	// ErrNoOpenInterval indicates a close was requested with no interval open.
	ErrNoOpenInterval = errors.New("no open interval")
)

// WindowActivity is one foreground-window interval. TsEnd and DurationSeconds
// stay nil while the interval is open; at most one record per user is open at
// any time.
type WindowActivity struct {
	ID              string
	WindowTitle     string
	ProcessName     string
	ProcessPath     string
	ProcessID       string
	URL             string
	Activity        string
	TsStart         string
	TsEnd           *string
	DurationSeconds *int
	CreatedAt       string
	UpdatedAt       string
	DeletedAt       *string
}

// Session is one continuous usage period bounded by app-start and app-quit
// (or sampling-prompt) events, optionally annotated with the survey shown at
// its boundary.
type Session struct {
	ID              string
	TsStart         string
	TsEnd           *string
	DurationSeconds *int
	Question        *string
	Scale           *int
	Response        *int
	Skipped         *bool
}

// SamplingResponse is an experience-sampling survey answer, joined to the
// usage log by timestamp proximity during reconstruction.
type SamplingResponse struct {
	ID         string
	PromptedAt string
	Question   string
	Scale      int
	Response   *int
	Skipped    bool
}

// UserInput aggregates keyboard and mouse activity over a short window.
type UserInput struct {
	ID            string
	TsStart       string
	TsEnd         string
	KeysTotal     int
	ClickTotal    int
	MovedDistance float64
	ScrollDelta   float64
}

// CoverageScore summarises how much usage data one calendar day captured.
// Derived on demand, never persisted.
type CoverageScore struct {
	Day   string `json:"day"`
	Score int    `json:"score"`
}
