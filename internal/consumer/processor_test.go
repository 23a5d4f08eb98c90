package consumer

import (
	"context"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

func TestProcessorCommitsOnSuccess(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msg := kafka.Message{
		Topic:     "window_events",
		Partition: 0,
		Offset:    10,
		Time:      time.Now().UTC(),
		Value:     []byte(`{"window_title":"editor","activity":"coding"}`),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("window.changed")},
		},
	}

	reader := &stubReader{
		messages: []kafka.Message{msg},
		after:    contextCanceled,
	}
	handler := &stubHandler{}
	registry := NewRegistry(testLogger(t))
	registry.Register("window.changed", handler)

	processor := NewProcessor(reader, registry, WithLogger(testLogger(t)))

	err := processor.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 1, reader.commitCalls)
	require.Equal(t, "window.changed", handler.last.EventType)
	require.JSONEq(t, string(msg.Value), string(handler.last.Payload))
}

func TestProcessorSkipsCommitOnHandlerError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msg := kafka.Message{
		Topic:  "window_events",
		Offset: 20,
		Time:   time.Now().UTC(),
		Value:  []byte(`{"window_title":"editor"}`),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("window.changed")},
		},
	}

	reader := &stubReader{
		messages: []kafka.Message{msg},
		after:    contextCanceled,
	}
	handler := &stubHandler{err: errors.New("boom")}
	registry := NewRegistry(testLogger(t))
	registry.Register("window.changed", handler)

	processor := NewProcessor(reader, registry, WithLogger(testLogger(t)))

	err := processor.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 0, reader.commitCalls)
}

func TestProcessorCommitsMalformedMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	missingHeader := kafka.Message{
		Topic:  "window_events",
		Offset: 30,
		Value:  []byte(`{"window_title":"editor"}`),
	}
	invalidJSON := kafka.Message{
		Topic:  "window_events",
		Offset: 31,
		Value:  []byte(`{not json`),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("window.changed")},
		},
	}

	reader := &stubReader{
		messages: []kafka.Message{missingHeader, invalidJSON},
		after:    contextCanceled,
	}
	handler := &stubHandler{}
	registry := NewRegistry(testLogger(t))
	registry.Register("window.changed", handler)

	processor := NewProcessor(reader, registry, WithLogger(testLogger(t)))

	err := processor.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	// Poison pills are committed past, never handled.
	require.Equal(t, 0, handler.calls)
	require.Equal(t, 2, reader.commitCalls)
}

func TestProcessorCommitsUnknownEventTypes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msg := kafka.Message{
		Topic:  "window_events",
		Offset: 40,
		Value:  []byte(`{"anything":true}`),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("window.resized")},
		},
	}

	reader := &stubReader{
		messages: []kafka.Message{msg},
		after:    contextCanceled,
	}
	registry := NewRegistry(testLogger(t))

	processor := NewProcessor(reader, registry, WithLogger(testLogger(t)))

	err := processor.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, reader.commitCalls)
}

func TestRegistryDispatchesByEventType(t *testing.T) {
	registry := NewRegistry(testLogger(t))
	window := &stubHandler{}
	usage := &stubHandler{}
	registry.Register("window.changed", window)
	registry.Register("usage.recorded", usage)

	err := registry.Dispatch(context.Background(), Message{EventType: "usage.recorded"})
	require.NoError(t, err)
	require.Equal(t, 0, window.calls)
	require.Equal(t, 1, usage.calls)
}

type stubReader struct {
	messages    []kafka.Message
	index       int
	commitCalls int
	after       func() error
}

func (r *stubReader) FetchMessage(context.Context) (kafka.Message, error) {
	if r.index >= len(r.messages) {
		if r.after != nil {
			return kafka.Message{}, r.after()
		}
		return kafka.Message{}, context.Canceled
	}
	msg := r.messages[r.index]
	r.index++
	return msg, nil
}

func (r *stubReader) CommitMessages(_ context.Context, _ ...kafka.Message) error {
	r.commitCalls++
	return nil
}

func (r *stubReader) Close() error { return nil }

func contextCanceled() error { return context.Canceled }

type stubHandler struct {
	calls int
	err   error
	last  Message
}

func (h *stubHandler) Handle(_ context.Context, msg Message) error {
	h.calls++
	h.last = msg
	return h.err
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
