// Package reconstruct derives the session series and back-fills
// window-activity durations from the historical usage-event log. Both passes
// are idempotent and safe to re-run over an unchanged log: Pass A guards
// inserts with existing-id checks, Pass B recomputes its derived columns from
// scratch every run.
package reconstruct

import (
	"context"
	"log"
	"time"

	"example.com/insights/internal/domain"
)

// DurationUpdate closes one window-activity record during the backfill.
type DurationUpdate struct {
	ID              string
	TsEnd           string
	DurationSeconds int
}

// Store is the persistence surface consumed by the reconstruction passes.
// SaveSessions and ApplyDurationBackfill must each run inside a single
// transaction so a crash mid-pass leaves either the pre- or post-state.
type Store interface {
	EnsureSessionSchema(ctx context.Context) error
	EnsureActivitySchema(ctx context.Context) error

	UsageEventsByType(ctx context.Context, types ...domain.EventType) ([]domain.UsageEvent, error)
	SamplingResponses(ctx context.Context) ([]domain.SamplingResponse, error)
	SessionIDs(ctx context.Context) (map[string]struct{}, error)
	SaveSessions(ctx context.Context, sessions []domain.Session, minDurationSeconds int) (deleted int, err error)

	WindowActivitiesAsc(ctx context.Context) ([]domain.WindowActivity, error)
	ApplyDurationBackfill(ctx context.Context, updates []DurationUpdate) (int, error)
}

// Option configures optional behaviour for the Reconstructor.
type Option func(*Reconstructor)

// WithLogger overrides the logger used for per-row warnings.
func WithLogger(logger *log.Logger) Option {
	return func(r *Reconstructor) { r.logger = logger }
}

// WithMaxDuration overrides the duration cap applied by the backfill.
func WithMaxDuration(seconds int) Option {
	return func(r *Reconstructor) { r.maxDuration = seconds }
}

// Reconstructor runs the two batch passes over the usage log.
type Reconstructor struct {
	store       Store
	logger      *log.Logger
	maxDuration int
}

// New constructs a Reconstructor.
func New(store Store, opts ...Option) *Reconstructor {
	r := &Reconstructor{
		store:       store,
		logger:      log.New(log.Writer(), "[reconstruct] ", log.LstdFlags),
		maxDuration: domain.MaxDurationSeconds,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Result reports what a full reconstruction run changed.
type Result struct {
	SessionsInserted     int
	SessionsDeleted      int
	ActivitiesBackfilled int
}

// Run executes the schema bootstrap and both passes in order.
func (r *Reconstructor) Run(ctx context.Context) (Result, error) {
	var res Result

	if err := r.store.EnsureSessionSchema(ctx); err != nil {
		return res, err
	}

	inserted, deleted, err := r.DeriveSessions(ctx)
	if err != nil {
		return res, err
	}
	res.SessionsInserted = inserted
	res.SessionsDeleted = deleted

	updated, err := r.BackfillDurations(ctx)
	if err != nil {
		return res, err
	}
	res.ActivitiesBackfilled = updated
	return res, nil
}

// legacy long-form survey questions canonicalised to short display forms.
// Exact-string substitution, not a pattern match.
var questionAliases = map[string]string{
	"Compared to your normal level of productivity, how productive do you consider the previous session?": "How productive was this session?",
	"How well did you spend your time in the previous session?":                                           "How well spent time?",
}

// DeriveSessions is Pass A: it scans the ordered usage log and rebuilds the
// session series. An APP_START (re)opens the running session at its own
// timestamp — latest start wins when starts arrive back to back. A sampling
// prompt both ends the running session and immediately starts the next one;
// an APP_QUIT ends it with no survey annotation. Sessions whose id already
// exists are skipped, and sessions shorter than the retention threshold are
// deleted on every run, including ones committed by earlier runs.
func (r *Reconstructor) DeriveSessions(ctx context.Context) (inserted, deleted int, err error) {
	events, err := r.store.UsageEventsByType(ctx,
		domain.EventAppStart, domain.EventSamplingAutoOpened, domain.EventAppQuit)
	if err != nil {
		return 0, 0, err
	}

	responses, err := r.store.SamplingResponses(ctx)
	if err != nil {
		return 0, 0, err
	}
	byPromptedAt := make(map[string]domain.SamplingResponse, len(responses))
	for _, resp := range responses {
		byPromptedAt[domain.TruncateSeconds(resp.PromptedAt)] = resp
	}

	var sessions []domain.Session
	currentStart := ""

	for _, event := range events {
		switch event.Type {
		case domain.EventAppStart:
			currentStart = event.CreatedAt

		case domain.EventSamplingAutoOpened:
			if currentStart == "" {
				continue
			}
			session, ok := r.buildSession(event.ID, currentStart, event.CreatedAt)
			if !ok {
				currentStart = event.CreatedAt
				continue
			}
			if resp, found := byPromptedAt[domain.TruncateSeconds(event.CreatedAt)]; found {
				question := resp.Question
				if alias, aliased := questionAliases[question]; aliased {
					question = alias
				}
				session.Question = &question
				scale := resp.Scale
				session.Scale = &scale
				session.Response = resp.Response
				skipped := resp.Skipped
				session.Skipped = &skipped
			}
			sessions = append(sessions, session)
			currentStart = event.CreatedAt

		case domain.EventAppQuit:
			if currentStart == "" {
				continue
			}
			if session, ok := r.buildSession(event.ID, currentStart, event.CreatedAt); ok {
				sessions = append(sessions, session)
			}
			currentStart = ""
		}
	}

	existing, err := r.store.SessionIDs(ctx)
	if err != nil {
		return 0, 0, err
	}
	fresh := sessions[:0]
	for _, session := range sessions {
		if _, present := existing[session.ID]; present {
			continue
		}
		fresh = append(fresh, session)
	}

	deleted, err = r.store.SaveSessions(ctx, fresh, domain.MinSessionSeconds)
	if err != nil {
		return 0, 0, err
	}
	recordSessions(len(fresh), deleted)
	return len(fresh), deleted, nil
}

// buildSession computes the closed session [start, end). Malformed timestamps
// and non-positive spans are skipped with a warning, never written.
func (r *Reconstructor) buildSession(id, start, end string) (domain.Session, bool) {
	startAt, err := domain.ParseTimestamp(start)
	if err != nil {
		r.logger.Printf("skipping session %s: unparsable start %q: %v", id, start, err)
		recordSkipped("bad_timestamp")
		return domain.Session{}, false
	}
	endAt, err := domain.ParseTimestamp(end)
	if err != nil {
		r.logger.Printf("skipping session %s: unparsable end %q: %v", id, end, err)
		recordSkipped("bad_timestamp")
		return domain.Session{}, false
	}

	duration := int(endAt.Sub(startAt).Seconds())
	if duration < 0 {
		r.logger.Printf("skipping session %s: negative duration (%s .. %s)", id, start, end)
		recordSkipped("negative_duration")
		return domain.Session{}, false
	}

	return domain.Session{
		ID:              id,
		TsStart:         start,
		TsEnd:           &end,
		DurationSeconds: &duration,
	}, true
}

// sessionRange is one APP_START..APP_QUIT span of the usage log. End is nil
// for an APP_START with no subsequent quit: still running, or crashed without
// a clean shutdown.
type sessionRange struct {
	start time.Time
	end   *time.Time
}

// BackfillDurations is Pass B: a full rebuild of every window-activity
// record's end timestamp and duration. All derived columns are reset to NULL
// first, then each record is closed at the earlier of "next window observed"
// and "app explicitly quit". A record with neither candidate is left open —
// explicitly not guessed. The reset and all updates commit in one
// transaction.
func (r *Reconstructor) BackfillDurations(ctx context.Context) (int, error) {
	if err := r.store.EnsureActivitySchema(ctx); err != nil {
		return 0, err
	}

	ranges, err := r.loadSessionRanges(ctx)
	if err != nil {
		return 0, err
	}

	records, err := r.store.WindowActivitiesAsc(ctx)
	if err != nil {
		return 0, err
	}

	updates := make([]DurationUpdate, 0, len(records))
	for i, rec := range records {
		start, err := domain.ParseTimestamp(rec.TsStart)
		if err != nil {
			r.logger.Printf("skipping activity %s: unparsable tsStart %q: %v", rec.ID, rec.TsStart, err)
			recordSkipped("bad_timestamp")
			continue
		}

		var end *time.Time
		if i+1 < len(records) {
			if next, err := domain.ParseTimestamp(records[i+1].TsStart); err == nil && next.After(start) {
				end = &next
			}
		}
		if rng := containingRange(ranges, start); rng != nil && rng.end != nil && rng.end.After(start) {
			if end == nil || rng.end.Before(*end) {
				end = rng.end
			}
		}
		if end == nil {
			continue
		}

		duration := int(end.Sub(start).Seconds())
		if duration <= 0 {
			r.logger.Printf("skipping activity %s: non-positive duration at %s", rec.ID, rec.TsStart)
			recordSkipped("negative_duration")
			continue
		}
		if duration > r.maxDuration {
			duration = r.maxDuration
		}

		updates = append(updates, DurationUpdate{
			ID:              rec.ID,
			TsEnd:           domain.FormatTimestamp(*end),
			DurationSeconds: duration,
		})
	}

	affected, err := r.store.ApplyDurationBackfill(ctx, updates)
	if err != nil {
		return 0, err
	}
	recordBackfill(affected)
	return affected, nil
}

// loadSessionRanges derives the APP_START/APP_QUIT spans. Sampling events are
// ignored here: a prompt splits sessions, not app lifetimes.
func (r *Reconstructor) loadSessionRanges(ctx context.Context) ([]sessionRange, error) {
	events, err := r.store.UsageEventsByType(ctx, domain.EventAppStart, domain.EventAppQuit)
	if err != nil {
		return nil, err
	}

	var ranges []sessionRange
	open := -1
	for _, event := range events {
		ts, err := domain.ParseTimestamp(event.CreatedAt)
		if err != nil {
			r.logger.Printf("skipping usage event %s: unparsable createdAt %q: %v", event.ID, event.CreatedAt, err)
			recordSkipped("bad_timestamp")
			continue
		}
		switch event.Type {
		case domain.EventAppStart:
			ranges = append(ranges, sessionRange{start: ts})
			open = len(ranges) - 1
		case domain.EventAppQuit:
			if open >= 0 {
				end := ts
				ranges[open].end = &end
				open = -1
			}
		}
	}
	return ranges, nil
}

// containingRange finds the latest range whose start is at or before ts.
func containingRange(ranges []sessionRange, ts time.Time) *sessionRange {
	for i := len(ranges) - 1; i >= 0; i-- {
		if !ranges[i].start.After(ts) {
			if ranges[i].end == nil || ranges[i].end.After(ts) {
				return &ranges[i]
			}
			return nil
		}
	}
	return nil
}
