package consumer

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"example.com/insights/internal/domain"
	"example.com/insights/internal/events"
	"example.com/insights/internal/observability"
	"example.com/insights/internal/tracker"
)

// WindowTracker is the slice of the interval tracker the handlers drive.
type WindowTracker interface {
	HandleWindowChange(ctx context.Context, obs tracker.Observation) error
	Finalize(ctx context.Context) error
}

// EventStore persists the raw event series fed by the observation topics.
type EventStore interface {
	InsertUsageEvent(ctx context.Context, event domain.UsageEvent) error
	InsertSamplingResponse(ctx context.Context, resp domain.SamplingResponse) error
	InsertUserInput(ctx context.Context, input domain.UserInput) error
}

// WindowHandler feeds foreground-window observations to the interval tracker.
type WindowHandler struct {
	tracker WindowTracker
}

// NewWindowHandler constructs a WindowHandler.
func NewWindowHandler(t WindowTracker) *WindowHandler {
	return &WindowHandler{tracker: t}
}

// Handle decodes a window.changed payload and forwards it to the tracker.
func (h *WindowHandler) Handle(ctx context.Context, msg Message) error {
	var payload events.WindowChanged
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return err
	}
	return h.tracker.HandleWindowChange(ctx, tracker.Observation{
		WindowTitle: payload.WindowTitle,
		ProcessName: payload.ProcessName,
		ProcessPath: payload.ProcessPath,
		ProcessID:   payload.ProcessID,
		URL:         payload.URL,
		Activity:    payload.Activity,
		Timestamp:   payload.ObservedAt.Local(),
	})
}

// UsageHandler appends lifecycle events to the usage log. Events that end the
// foreground timeline (quit, suspend, shutdown) finalize the tracker's open
// interval before the event row is stored, so the close is never ordered
// after a following open.
type UsageHandler struct {
	store   EventStore
	tracker WindowTracker
}

// NewUsageHandler constructs a UsageHandler.
func NewUsageHandler(store EventStore, t WindowTracker) *UsageHandler {
	return &UsageHandler{store: store, tracker: t}
}

// Handle decodes a usage.recorded payload and stores it.
func (h *UsageHandler) Handle(ctx context.Context, msg Message) error {
	var payload events.UsageRecorded
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return err
	}

	eventType := domain.EventType(payload.Type)
	if eventType.ClosesInterval() && h.tracker != nil {
		if err := h.tracker.Finalize(ctx); err != nil {
			return err
		}
	}

	id := payload.EventID
	if id == "" {
		id = uuid.NewString()
	}
	event := domain.UsageEvent{
		ID:        id,
		CreatedAt: domain.FormatTimestamp(payload.OccurredAt.Local()),
		Type:      eventType,
	}
	if err := h.store.InsertUsageEvent(ctx, event); err != nil {
		return err
	}
	observability.RecordUsageEventStored(payload.OccurredAt)
	return nil
}

// SamplingHandler stores experience-sampling survey answers.
type SamplingHandler struct {
	store EventStore
}

// NewSamplingHandler constructs a SamplingHandler.
func NewSamplingHandler(store EventStore) *SamplingHandler {
	return &SamplingHandler{store: store}
}

// Handle decodes a sampling.answered payload and stores it.
func (h *SamplingHandler) Handle(ctx context.Context, msg Message) error {
	var payload events.SamplingAnswered
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return err
	}

	id := payload.ResponseID
	if id == "" {
		id = uuid.NewString()
	}
	return h.store.InsertSamplingResponse(ctx, domain.SamplingResponse{
		ID:         id,
		PromptedAt: domain.FormatTimestamp(payload.PromptedAt.Local()),
		Question:   payload.Question,
		Scale:      payload.Scale,
		Response:   payload.Response,
		Skipped:    payload.Skipped,
	})
}

// InputHandler stores keyboard/mouse aggregate windows.
type InputHandler struct {
	store EventStore
}

// NewInputHandler constructs an InputHandler.
func NewInputHandler(store EventStore) *InputHandler {
	return &InputHandler{store: store}
}

// Handle decodes an input.aggregated payload and stores it.
func (h *InputHandler) Handle(ctx context.Context, msg Message) error {
	var payload events.InputAggregated
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return err
	}

	id := payload.AggregateID
	if id == "" {
		id = uuid.NewString()
	}
	return h.store.InsertUserInput(ctx, domain.UserInput{
		ID:            id,
		TsStart:       domain.FormatTimestamp(payload.TsStart.Local()),
		TsEnd:         domain.FormatTimestamp(payload.TsEnd.Local()),
		KeysTotal:     payload.KeysTotal,
		ClickTotal:    payload.ClickTotal,
		MovedDistance: payload.MovedDistance,
		ScrollDelta:   payload.ScrollDelta,
	})
}
