//go:build integration

package postgres

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/insights/internal/domain"
	"example.com/insights/internal/reconstruct"
)

func TestRepositoryWindowActivityLifecycle(t *testing.T) {
	ctx := context.Background()
	pool := startPostgres(t, ctx)
	repo := NewRepository(pool)

	rec := domain.WindowActivity{
		ID:          uuid.NewString(),
		WindowTitle: "editor - main.go",
		ProcessName: "editor",
		Activity:    "coding",
		TsStart:     "2025-03-03 10:00:00.000",
	}
	require.NoError(t, repo.InsertWindowActivity(ctx, rec))

	require.NoError(t, repo.CloseWindowActivity(ctx, rec.ID, "2025-03-03 10:01:30.000", 90))

	stored, err := repo.WindowActivitiesByIDs(ctx, []string{rec.ID})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.Equal(t, "2025-03-03 10:01:30.000", *stored[0].TsEnd)
	require.Equal(t, 90, *stored[0].DurationSeconds)

	// Closing a missing record reports not-found.
	err = repo.CloseWindowActivity(ctx, uuid.NewString(), "2025-03-03 10:02:00.000", 30)
	require.ErrorIs(t, err, domain.ErrActivityNotFound)

	// Soft-deleted records disappear from every read path.
	affected, err := repo.SoftDeleteWindowActivities(ctx, []string{rec.ID})
	require.NoError(t, err)
	require.Equal(t, 1, affected)

	stored, err = repo.WindowActivitiesByIDs(ctx, []string{rec.ID})
	require.NoError(t, err)
	require.Empty(t, stored)
}

func TestRepositoryReconstructionOverLegacyImport(t *testing.T) {
	ctx := context.Background()
	pool := startPostgres(t, ctx)
	repo := NewRepository(pool)

	// Legacy import: window_activity rows carry a `ts` column and no derived
	// columns; EnsureActivitySchema must adopt them in place.
	_, err := pool.Exec(ctx, `
        ALTER TABLE window_activity DROP COLUMN ts_end;
        ALTER TABLE window_activity DROP COLUMN duration_seconds;
        ALTER TABLE window_activity RENAME COLUMN ts_start TO ts;
    `)
	require.NoError(t, err)

	seed := []struct {
		id string
		ts string
	}{
		{uuid.NewString(), "2025-03-03 09:00:00.000"},
		{uuid.NewString(), "2025-03-03 09:05:00.000"},
		{uuid.NewString(), "2025-03-03 09:10:00.000"},
	}
	for _, row := range seed {
		_, err := pool.Exec(ctx, `
            INSERT INTO window_activity (id, window_title, ts, created_at, updated_at)
            VALUES ($1, 'legacy', $2, $2, $2)
        `, row.id, row.ts)
		require.NoError(t, err)
	}

	usage := []struct {
		ts  string
		typ domain.EventType
	}{
		{"2025-03-03 08:55:00.000", domain.EventAppStart},
		{"2025-03-03 09:07:00.000", domain.EventAppQuit},
		{"2025-03-03 09:30:00.000", domain.EventAppStart},
		{"2025-03-03 10:00:00.000", domain.EventSamplingAutoOpened},
		{"2025-03-03 10:45:00.000", domain.EventAppQuit},
	}
	for _, row := range usage {
		require.NoError(t, repo.InsertUsageEvent(ctx, domain.UsageEvent{
			ID:        uuid.NewString(),
			CreatedAt: row.ts,
			Type:      row.typ,
		}))
	}

	require.NoError(t, repo.InsertSamplingResponse(ctx, domain.SamplingResponse{
		ID:         uuid.NewString(),
		PromptedAt: "2025-03-03 10:00:00.731",
		Question:   "How well did you spend your time in the previous session?",
		Scale:      7,
	}))

	rec := reconstruct.New(repo)
	result, err := rec.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, result.SessionsInserted)
	require.Equal(t, 0, result.SessionsDeleted)
	require.Equal(t, 2, result.ActivitiesBackfilled)

	// ts was renamed back to ts_start and the derived columns recreated.
	activities, err := repo.WindowActivitiesAsc(ctx)
	require.NoError(t, err)
	require.Len(t, activities, 3)
	require.Equal(t, 300, *activities[0].DurationSeconds)
	require.Equal(t, 120, *activities[1].DurationSeconds) // closed by APP_QUIT
	require.Nil(t, activities[2].DurationSeconds)

	var question string
	err = pool.QueryRow(ctx,
		`SELECT question FROM session WHERE question IS NOT NULL`).Scan(&question)
	require.NoError(t, err)
	require.Equal(t, "How well spent time?", question)

	// Re-running over the unchanged log inserts nothing new.
	again, err := rec.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, again.SessionsInserted)
	require.Equal(t, 2, again.ActivitiesBackfilled)
}

func TestRepositoryCoverageCounts(t *testing.T) {
	ctx := context.Background()
	pool := startPostgres(t, ctx)
	repo := NewRepository(pool)

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.InsertWindowActivity(ctx, domain.WindowActivity{
			ID:          uuid.NewString(),
			Activity:    "coding",
			WindowTitle: "editor",
			TsStart:     "2025-03-03 10:00:00.000",
		}))
	}
	require.NoError(t, repo.InsertUserInput(ctx, domain.UserInput{
		ID:      uuid.NewString(),
		TsStart: "2025-03-04 08:00:00.000",
		TsEnd:   "2025-03-04 08:01:00.000",
	}))

	byDay, err := repo.WindowActivityCountsByDay(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, byDay["2025-03-03"])

	inputByDay, err := repo.UserInputCountsByDay(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, inputByDay["2025-03-04"])
}

func startPostgres(t *testing.T, ctx context.Context) *pgxpool.Pool {
	t.Helper()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("insights"),
		postgrescontainer.WithUsername("insights"),
		postgrescontainer.WithPassword("insights"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, waitForDatabase(ctx, connStr))

	runMigrations(t, ctx, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })
	return pool
}

func runMigrations(t *testing.T, ctx context.Context, connStr string) {
	files := []string{
		"../../../db/postgres/migrations/0001_base_tables.up.sql",
	}

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	defer pool.Close()

	for _, rel := range files {
		path := resolvePath(t, rel)
		contents, readErr := os.ReadFile(path)
		require.NoError(t, readErr)

		_, execErr := pool.Exec(ctx, string(contents))
		require.NoError(t, execErr)
	}
}

func resolvePath(t *testing.T, rel string) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), rel)
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
