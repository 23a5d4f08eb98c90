package consumer

import (
	"context"
	"log"
)

// Registry routes decoded messages to the handler registered for their event
// type. Dispatch is sequential; there is no fan-out.
type Registry struct {
	handlers map[string]Handler
	logger   *log.Logger
}

// NewRegistry constructs an empty Registry.
func NewRegistry(logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.New(log.Writer(), "[consumer] ", log.LstdFlags)
	}
	return &Registry{handlers: make(map[string]Handler), logger: logger}
}

// Register binds a handler to an event type, replacing any previous binding.
func (r *Registry) Register(eventType string, handler Handler) {
	r.handlers[eventType] = handler
}

// Dispatch invokes the handler for the message's event type. Messages with no
// registered handler are counted and dropped so the processor commits them.
func (r *Registry) Dispatch(ctx context.Context, msg Message) error {
	handler, ok := r.handlers[msg.EventType]
	if !ok {
		r.logger.Printf("no handler for event_type=%s (topic=%s, offset=%d)", msg.EventType, msg.Topic, msg.Offset)
		recordUnknownType(msg.EventType)
		return nil
	}
	return handler.Handle(ctx, msg)
}
