package postgres

import (
	"context"
	"log"
)

// EnsureSessionSchema creates the session table when it is missing. Safe to
// run on every pass.
func (r *Repository) EnsureSessionSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS session (
        id TEXT PRIMARY KEY,
        ts_start TEXT,
        ts_end TEXT,
        duration_seconds INTEGER,
        question TEXT,
        scale INTEGER,
        response INTEGER,
        skipped BOOLEAN
    )`)
	return err
}

// EnsureActivitySchema evolves a legacy window_activity table in place:
// databases imported from the old tracker name the start column ts and carry
// no derived columns. Re-running against an evolved table is a no-op —
// "already exists" DDL errors are expected steady state and swallowed.
func (r *Repository) EnsureActivitySchema(ctx context.Context) error {
	columns, err := r.tableColumns(ctx, "window_activity")
	if err != nil {
		return err
	}

	if !contains(columns, "ts_start") && contains(columns, "ts") {
		log.Printf("[schema] renaming window_activity.ts -> ts_start")
		if _, err := r.pool.Exec(ctx,
			`ALTER TABLE window_activity RENAME COLUMN ts TO ts_start`); err != nil {
			return err
		}
	}

	for _, stmt := range []string{
		`ALTER TABLE window_activity ADD COLUMN duration_seconds INTEGER`,
		`ALTER TABLE window_activity ADD COLUMN ts_end TEXT`,
	} {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			if isAlreadyExists(err) {
				continue
			}
			return err
		}
	}
	return nil
}

func (r *Repository) tableColumns(ctx context.Context, table string) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT column_name FROM information_schema.columns WHERE table_name = $1`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		columns = append(columns, name)
	}
	return columns, rows.Err()
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
