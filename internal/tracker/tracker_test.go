package tracker

import (
	"context"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/insights/internal/domain"
)

func TestHandleWindowChangeOpensInterval(t *testing.T) {
	store := &stubStore{}
	tr := New(store, WithLogger(testLogger(t)))

	ts := time.Date(2025, time.March, 3, 10, 0, 0, 0, time.Local)
	err := tr.HandleWindowChange(context.Background(), Observation{
		WindowTitle: "editor - main.go",
		ProcessName: "editor",
		Activity:    "coding",
		Timestamp:   ts,
	})
	require.NoError(t, err)

	require.Len(t, store.inserted, 1)
	require.Empty(t, store.closed)
	rec := store.inserted[0]
	require.NotEmpty(t, rec.ID)
	require.Equal(t, "editor - main.go", rec.WindowTitle)
	require.Equal(t, "2025-03-03 10:00:00.000", rec.TsStart)
	require.Nil(t, rec.TsEnd)
	require.Nil(t, rec.DurationSeconds)
}

func TestHandleWindowChangeClosesPreviousInterval(t *testing.T) {
	store := &stubStore{}
	tr := New(store, WithLogger(testLogger(t)))

	start := time.Date(2025, time.March, 3, 10, 0, 0, 0, time.Local)
	require.NoError(t, tr.HandleWindowChange(context.Background(), Observation{
		WindowTitle: "editor",
		Timestamp:   start,
	}))
	require.NoError(t, tr.HandleWindowChange(context.Background(), Observation{
		WindowTitle: "browser",
		Timestamp:   start.Add(90 * time.Second),
	}))

	require.Len(t, store.inserted, 2)
	require.Len(t, store.closed, 1)
	closed := store.closed[0]
	require.Equal(t, store.inserted[0].ID, closed.id)
	require.Equal(t, "2025-03-03 10:01:30.000", closed.tsEnd)
	require.Equal(t, 90, closed.duration)
}

func TestHandleWindowChangeSkipsEmptyObservation(t *testing.T) {
	store := &stubStore{}
	tr := New(store, WithLogger(testLogger(t)))

	start := time.Date(2025, time.March, 3, 10, 0, 0, 0, time.Local)
	require.NoError(t, tr.HandleWindowChange(context.Background(), Observation{
		WindowTitle: "editor",
		Timestamp:   start,
	}))

	// Lock screens report neither title nor URL; the open interval must
	// survive them untouched.
	require.NoError(t, tr.HandleWindowChange(context.Background(), Observation{
		Timestamp: start.Add(time.Minute),
	}))

	require.Len(t, store.inserted, 1)
	require.Empty(t, store.closed)
}

func TestCloseCapsDuration(t *testing.T) {
	store := &stubStore{}
	tr := New(store, WithLogger(testLogger(t)), WithMaxDuration(3600))

	start := time.Date(2025, time.March, 3, 22, 0, 0, 0, time.Local)
	require.NoError(t, tr.HandleWindowChange(context.Background(), Observation{
		WindowTitle: "editor",
		Timestamp:   start,
	}))
	require.NoError(t, tr.HandleWindowChange(context.Background(), Observation{
		WindowTitle: "browser",
		Timestamp:   start.Add(9 * time.Hour),
	}))

	require.Len(t, store.closed, 1)
	require.Equal(t, 3600, store.closed[0].duration)
}

func TestCloseClampsNegativeDuration(t *testing.T) {
	store := &stubStore{}
	tr := New(store, WithLogger(testLogger(t)))

	start := time.Date(2025, time.March, 3, 10, 0, 0, 0, time.Local)
	require.NoError(t, tr.HandleWindowChange(context.Background(), Observation{
		WindowTitle: "editor",
		Timestamp:   start,
	}))
	require.NoError(t, tr.HandleWindowChange(context.Background(), Observation{
		WindowTitle: "browser",
		Timestamp:   start.Add(-30 * time.Second),
	}))

	require.Len(t, store.closed, 1)
	require.Equal(t, 0, store.closed[0].duration)
}

func TestFinalizeClosesOpenIntervalOnce(t *testing.T) {
	store := &stubStore{}
	now := time.Date(2025, time.March, 3, 11, 0, 0, 0, time.Local)
	tr := New(store,
		WithLogger(testLogger(t)),
		WithClock(func() time.Time { return now }),
	)

	require.NoError(t, tr.HandleWindowChange(context.Background(), Observation{
		WindowTitle: "editor",
		Timestamp:   now.Add(-10 * time.Minute),
	}))

	require.NoError(t, tr.Finalize(context.Background()))
	require.Len(t, store.closed, 1)
	require.Equal(t, 600, store.closed[0].duration)

	// Second finalize has nothing open and must not close again.
	require.NoError(t, tr.Finalize(context.Background()))
	require.Len(t, store.closed, 1)
}

func TestStoreFailureKeepsOpenState(t *testing.T) {
	store := &stubStore{closeErr: errors.New("connection reset")}
	tr := New(store, WithLogger(testLogger(t)))

	start := time.Date(2025, time.March, 3, 10, 0, 0, 0, time.Local)
	require.NoError(t, tr.HandleWindowChange(context.Background(), Observation{
		WindowTitle: "editor",
		Timestamp:   start,
	}))

	err := tr.HandleWindowChange(context.Background(), Observation{
		WindowTitle: "browser",
		Timestamp:   start.Add(time.Minute),
	})
	require.Error(t, err)
	require.Len(t, store.inserted, 1)

	// After the store recovers, the next observation closes the original
	// interval rather than dropping it.
	store.closeErr = nil
	require.NoError(t, tr.HandleWindowChange(context.Background(), Observation{
		WindowTitle: "browser",
		Timestamp:   start.Add(2 * time.Minute),
	}))
	require.Len(t, store.closed, 1)
	require.Equal(t, store.inserted[0].ID, store.closed[0].id)
	require.Equal(t, 120, store.closed[0].duration)
}

type closeCall struct {
	id       string
	tsEnd    string
	duration int
}

type stubStore struct {
	inserted  []domain.WindowActivity
	closed    []closeCall
	insertErr error
	closeErr  error
}

func (s *stubStore) InsertWindowActivity(_ context.Context, rec domain.WindowActivity) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserted = append(s.inserted, rec)
	return nil
}

func (s *stubStore) CloseWindowActivity(_ context.Context, id, tsEnd string, durationSeconds int) error {
	if s.closeErr != nil {
		return s.closeErr
	}
	s.closed = append(s.closed, closeCall{id: id, tsEnd: tsEnd, duration: durationSeconds})
	return nil
}

func testLogger(t *testing.T) *log.Logger {
	return log.New(testWriter{t}, "", 0)
}

type testWriter struct {
	t *testing.T
}

func (tw testWriter) Write(p []byte) (int, error) {
	tw.t.Log(string(p))
	return len(p), nil
}
