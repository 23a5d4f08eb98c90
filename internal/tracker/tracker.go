// Package tracker maintains the live window-activity interval series. It
// receives foreground-window observations one at a time and opens/closes
// interval records against the store.
package tracker

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"example.com/insights/internal/domain"
)

// Observation is one foreground-window change pushed by the desktop watcher.
type Observation struct {
	WindowTitle string
	ProcessName string
	ProcessPath string
	ProcessID   string
	URL         string
	Activity    string
	Timestamp   time.Time
}

// Store is the narrow persistence surface the tracker needs. Writes only; the
// hot path never reads.
type Store interface {
	InsertWindowActivity(ctx context.Context, rec domain.WindowActivity) error
	CloseWindowActivity(ctx context.Context, id string, tsEnd string, durationSeconds int) error
}

// Option configures optional behaviour for the Tracker.
type Option func(*Tracker)

// WithLogger overrides the logger used for warnings.
func WithLogger(logger *log.Logger) Option {
	return func(t *Tracker) { t.logger = logger }
}

// WithClock overrides the time source used by Finalize.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithMaxDuration overrides the interval duration cap.
func WithMaxDuration(seconds int) Option {
	return func(t *Tracker) { t.maxDuration = seconds }
}

// Tracker owns the "last open interval" state. Callers must serialise
// HandleWindowChange and Finalize on a single dispatch queue; the tracker
// itself takes no locks.
type Tracker struct {
	store       Store
	logger      *log.Logger
	now         func() time.Time
	maxDuration int

	openID    string
	openStart time.Time
}

// New constructs a Tracker with no open interval.
func New(store Store, opts ...Option) *Tracker {
	t := &Tracker{
		store:       store,
		logger:      log.New(log.Writer(), "[tracker] ", log.LstdFlags),
		now:         time.Now,
		maxDuration: domain.MaxDurationSeconds,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// HandleWindowChange closes the previous interval, if any, and opens a new one
// at the observation's timestamp. Observations with neither a window title nor
// a URL carry no useful signal (lock screens, transient popups) and are
// dropped without touching the open interval.
//
// On a store failure the in-memory open-interval state is left unchanged so
// the next observation retries the close instead of losing the interval.
func (t *Tracker) HandleWindowChange(ctx context.Context, obs Observation) error {
	if obs.WindowTitle == "" && obs.URL == "" {
		return nil
	}

	if t.openID != "" {
		if err := t.closeOpen(ctx, obs.Timestamp); err != nil {
			return err
		}
	}

	rec := domain.WindowActivity{
		ID:          uuid.NewString(),
		WindowTitle: obs.WindowTitle,
		ProcessName: obs.ProcessName,
		ProcessPath: obs.ProcessPath,
		ProcessID:   obs.ProcessID,
		URL:         obs.URL,
		Activity:    obs.Activity,
		TsStart:     domain.FormatTimestamp(obs.Timestamp),
	}
	if err := t.store.InsertWindowActivity(ctx, rec); err != nil {
		return err
	}

	t.openID = rec.ID
	t.openStart = obs.Timestamp
	recordIntervalOpened(obs.Timestamp)
	return nil
}

// Finalize closes the currently open interval against the current time. It is
// called on shutdown and suspend; calling it again when nothing is open is a
// no-op, so a retried shutdown hook or a resume following a suspend cannot
// double-close.
func (t *Tracker) Finalize(ctx context.Context) error {
	if t.openID == "" {
		return nil
	}
	return t.closeOpen(ctx, t.now())
}

func (t *Tracker) closeOpen(ctx context.Context, end time.Time) error {
	duration := int(end.Sub(t.openStart).Seconds())
	if duration < 0 {
		t.logger.Printf("negative duration for interval %s (start=%s end=%s), closing with 0",
			t.openID, domain.FormatTimestamp(t.openStart), domain.FormatTimestamp(end))
		duration = 0
	}
	if duration > t.maxDuration {
		duration = t.maxDuration
	}

	if err := t.store.CloseWindowActivity(ctx, t.openID, domain.FormatTimestamp(end), duration); err != nil {
		return err
	}

	t.openID = ""
	t.openStart = time.Time{}
	recordIntervalClosed(duration)
	return nil
}
