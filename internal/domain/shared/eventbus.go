package shared

import "context"

// EventHandler handles client events
type EventHandler interface {
	// Handle processes an event
	Handle(ctx context.Context, event Event) error
	// EventTypes returns the event types this handler is interested in.
	// An empty slice means the handler receives all events.
	EventTypes() []string
}

// EventPublisher publishes client events
type EventPublisher interface {
	// Publish publishes one or more events
	Publish(ctx context.Context, events ...Event) error
}

// EventSubscriber subscribes to client events
type EventSubscriber interface {
	// Subscribe registers a handler for specific event types.
	// If no event types are provided, the handler receives all events.
	Subscribe(handler EventHandler, eventTypes ...string)
	// Unsubscribe removes a handler from the subscription list
	Unsubscribe(handler EventHandler)
}

// EventBus combines publisher and subscriber capabilities
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// funcHandler adapts a function to the EventHandler interface. It is a
// pointer type so handlers stay comparable for Unsubscribe.
type funcHandler struct {
	fn    func(ctx context.Context, event Event) error
	types []string
}

// Handle processes an event
func (h *funcHandler) Handle(ctx context.Context, event Event) error {
	return h.fn(ctx, event)
}

// EventTypes returns the event types the handler was built for
func (h *funcHandler) EventTypes() []string { return h.types }

// NewHandler wraps a function as an EventHandler subscribed to the given
// event types. With no types it acts as a wildcard handler.
func NewHandler(fn func(ctx context.Context, event Event) error, eventTypes ...string) EventHandler {
	return &funcHandler{fn: fn, types: eventTypes}
}
