// Package postgres adapts the record store to the narrow interfaces consumed
// by the tracker, the reconstruction passes, and the read API.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/insights/internal/coverage"
	"example.com/insights/internal/domain"
	"example.com/insights/internal/reconstruct"
)

// Repository provides Postgres-backed persistence for the usage log and the
// derived interval and session series.
type Repository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, now: time.Now}
}

const activityColumns = `id, window_title, process_name, process_path, process_id, url, activity,
        ts_start, ts_end, duration_seconds, created_at, updated_at, deleted_at`

// InsertWindowActivity opens a new interval record.
func (r *Repository) InsertWindowActivity(ctx context.Context, rec domain.WindowActivity) error {
	const stmt = `INSERT INTO window_activity
        (id, window_title, process_name, process_path, process_id, url, activity, ts_start, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$9)`

	audit := domain.FormatTimestamp(r.now())
	_, err := r.pool.Exec(ctx, stmt,
		rec.ID,
		rec.WindowTitle,
		rec.ProcessName,
		rec.ProcessPath,
		rec.ProcessID,
		rec.URL,
		rec.Activity,
		rec.TsStart,
		audit,
	)
	return err
}

// CloseWindowActivity sets the end timestamp and duration of an open interval.
func (r *Repository) CloseWindowActivity(ctx context.Context, id string, tsEnd string, durationSeconds int) error {
	const stmt = `UPDATE window_activity
        SET ts_end = $2, duration_seconds = $3, updated_at = $4
        WHERE id = $1 AND deleted_at IS NULL`

	tag, err := r.pool.Exec(ctx, stmt, id, tsEnd, durationSeconds, domain.FormatTimestamp(r.now()))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrActivityNotFound
	}
	return nil
}

// InsertUsageEvent appends one row to the usage log.
func (r *Repository) InsertUsageEvent(ctx context.Context, event domain.UsageEvent) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO usage_data (id, created_at, type) VALUES ($1,$2,$3)`,
		event.ID, event.CreatedAt, string(event.Type))
	return err
}

// InsertSamplingResponse stores one experience-sampling answer.
func (r *Repository) InsertSamplingResponse(ctx context.Context, resp domain.SamplingResponse) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO experience_sampling_responses (id, prompted_at, question, scale, response, skipped)
         VALUES ($1,$2,$3,$4,$5,$6)`,
		resp.ID, resp.PromptedAt, resp.Question, resp.Scale, resp.Response, resp.Skipped)
	return err
}

// InsertUserInput stores one keyboard/mouse aggregate window.
func (r *Repository) InsertUserInput(ctx context.Context, input domain.UserInput) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO user_input (id, ts_start, ts_end, keys_total, click_total, moved_distance, scroll_delta)
         VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		input.ID, input.TsStart, input.TsEnd, input.KeysTotal, input.ClickTotal, input.MovedDistance, input.ScrollDelta)
	return err
}

// UsageEventsByType returns the matching usage events ordered by created_at
// ascending.
func (r *Repository) UsageEventsByType(ctx context.Context, types ...domain.EventType) ([]domain.UsageEvent, error) {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, created_at, type FROM usage_data WHERE type = ANY($1) ORDER BY created_at ASC`,
		names)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.UsageEvent
	for rows.Next() {
		var event domain.UsageEvent
		var typ string
		if err := rows.Scan(&event.ID, &event.CreatedAt, &typ); err != nil {
			return nil, err
		}
		event.Type = domain.EventType(typ)
		events = append(events, event)
	}
	return events, rows.Err()
}

// SamplingResponses returns every stored survey answer.
func (r *Repository) SamplingResponses(ctx context.Context) ([]domain.SamplingResponse, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, prompted_at, question, scale, response, skipped FROM experience_sampling_responses`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var responses []domain.SamplingResponse
	for rows.Next() {
		var resp domain.SamplingResponse
		if err := rows.Scan(&resp.ID, &resp.PromptedAt, &resp.Question, &resp.Scale, &resp.Response, &resp.Skipped); err != nil {
			return nil, err
		}
		responses = append(responses, resp)
	}
	return responses, rows.Err()
}

// SessionIDs returns the ids already present in the session table.
func (r *Repository) SessionIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM session`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// SaveSessions inserts the derived sessions and sweeps short ones inside a
// single transaction. Returns the number of rows the retention sweep removed.
func (r *Repository) SaveSessions(ctx context.Context, sessions []domain.Session, minDurationSeconds int) (int, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	const stmt = `INSERT INTO session (id, ts_start, ts_end, duration_seconds, question, scale, response, skipped)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	for _, s := range sessions {
		if _, err := tx.Exec(ctx, stmt,
			s.ID, s.TsStart, s.TsEnd, s.DurationSeconds, s.Question, s.Scale, s.Response, s.Skipped); err != nil {
			return 0, err
		}
	}

	tag, err := tx.Exec(ctx,
		`DELETE FROM session WHERE duration_seconds IS NOT NULL AND duration_seconds < $1`,
		minDurationSeconds)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// WindowActivitiesAsc returns all live window activities ordered by ts_start.
func (r *Repository) WindowActivitiesAsc(ctx context.Context) ([]domain.WindowActivity, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+activityColumns+` FROM window_activity WHERE deleted_at IS NULL ORDER BY ts_start ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanActivities(rows)
}

// ApplyDurationBackfill resets every derived column and applies the computed
// closes in one transaction, so a crash mid-pass leaves either the pre- or
// post-state. Returns the number of rows closed.
func (r *Repository) ApplyDurationBackfill(ctx context.Context, updates []reconstruct.DurationUpdate) (int, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE window_activity SET duration_seconds = NULL, ts_end = NULL`); err != nil {
		return 0, err
	}

	audit := domain.FormatTimestamp(r.now())
	affected := 0
	for _, u := range updates {
		tag, err := tx.Exec(ctx,
			`UPDATE window_activity SET duration_seconds = $2, ts_end = $3, updated_at = $4 WHERE id = $1`,
			u.ID, u.DurationSeconds, u.TsEnd, audit)
		if err != nil {
			return 0, err
		}
		affected += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return affected, nil
}

// RecentWindowActivities returns the most recently created records.
func (r *Repository) RecentWindowActivities(ctx context.Context, limit int) ([]domain.WindowActivity, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+activityColumns+` FROM window_activity WHERE deleted_at IS NULL
         ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanActivities(rows)
}

// WindowActivitiesByIDs returns the requested records, newest first.
func (r *Repository) WindowActivitiesByIDs(ctx context.Context, ids []string) ([]domain.WindowActivity, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+activityColumns+` FROM window_activity WHERE id = ANY($1) AND deleted_at IS NULL
         ORDER BY created_at DESC`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanActivities(rows)
}

// SoftDeleteWindowActivities marks the records deleted without removing them.
func (r *Repository) SoftDeleteWindowActivities(ctx context.Context, ids []string) (int, error) {
	audit := domain.FormatTimestamp(r.now())
	tag, err := r.pool.Exec(ctx,
		`UPDATE window_activity SET deleted_at = $2, updated_at = $2 WHERE id = ANY($1) AND deleted_at IS NULL`,
		ids, audit)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// WindowActivityCountsByDay groups live window activities by calendar day.
func (r *Repository) WindowActivityCountsByDay(ctx context.Context) (map[string]int, error) {
	return r.countsByDay(ctx,
		`SELECT substr(ts_start, 1, 10) AS day, COUNT(*) FROM window_activity
         WHERE deleted_at IS NULL GROUP BY day`)
}

// UserInputCountsByDay groups input aggregates by calendar day.
func (r *Repository) UserInputCountsByDay(ctx context.Context) (map[string]int, error) {
	return r.countsByDay(ctx,
		`SELECT substr(ts_start, 1, 10) AS day, COUNT(*) FROM user_input GROUP BY day`)
}

// SessionCountsByDay groups derived sessions by calendar day.
func (r *Repository) SessionCountsByDay(ctx context.Context) (map[string]int, error) {
	return r.countsByDay(ctx,
		`SELECT substr(ts_start, 1, 10) AS day, COUNT(*) FROM session GROUP BY day`)
}

func (r *Repository) countsByDay(ctx context.Context, query string) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var day string
		var count int
		if err := rows.Scan(&day, &count); err != nil {
			return nil, err
		}
		counts[day] = count
	}
	return counts, rows.Err()
}

// FocusTimeByDay sums closed interval durations per day and activity class.
func (r *Repository) FocusTimeByDay(ctx context.Context, fromDay, toDay string) ([]coverage.FocusTime, error) {
	query := `SELECT substr(ts_start, 1, 10) AS day, activity, SUM(duration_seconds)::bigint
        FROM window_activity
        WHERE deleted_at IS NULL AND duration_seconds IS NOT NULL`
	args := []interface{}{}
	if fromDay != "" {
		args = append(args, fromDay)
		query += ` AND substr(ts_start, 1, 10) >= $1`
	}
	if toDay != "" {
		args = append(args, toDay)
		if len(args) == 1 {
			query += ` AND substr(ts_start, 1, 10) <= $1`
		} else {
			query += ` AND substr(ts_start, 1, 10) <= $2`
		}
	}
	query += ` GROUP BY day, activity ORDER BY day ASC, 3 DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []coverage.FocusTime
	for rows.Next() {
		var ft coverage.FocusTime
		var total int64
		if err := rows.Scan(&ft.Day, &ft.Activity, &total); err != nil {
			return nil, err
		}
		ft.TotalSeconds = int(total)
		out = append(out, ft)
	}
	return out, rows.Err()
}

func scanActivities(rows pgx.Rows) ([]domain.WindowActivity, error) {
	var records []domain.WindowActivity
	for rows.Next() {
		var rec domain.WindowActivity
		if err := rows.Scan(
			&rec.ID, &rec.WindowTitle, &rec.ProcessName, &rec.ProcessPath, &rec.ProcessID,
			&rec.URL, &rec.Activity, &rec.TsStart, &rec.TsEnd, &rec.DurationSeconds,
			&rec.CreatedAt, &rec.UpdatedAt, &rec.DeletedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// isAlreadyExists reports whether a DDL statement failed only because the
// column or table it adds is already there — an expected steady-state
// condition for the idempotent bootstrap, not a failure.
func isAlreadyExists(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	// 42701 duplicate_column, 42P07 duplicate_table
	return pgErr.Code == "42701" || pgErr.Code == "42P07"
}
