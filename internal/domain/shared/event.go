package shared

import (
	"time"

	"github.com/google/uuid"
)

// Well-known event types published on the client event bus.
const (
	EventWorkflowTransition        = "workflow.transition"
	EventAuthLoggedIn              = "auth.logged_in"
	EventAuthLoggedOut             = "auth.logged_out"
	EventNotificationError         = "notification.error"
	EventNotificationSuccess       = "notification.success"
	EventRequisitionStatusChanged  = "requisition.status_changed"
	EventRealtimeConnectionLost    = "realtime.connection_lost"
	EventRealtimeConnected         = "realtime.connected"
)

// Event represents something that happened inside the client that
// external observers (UI layers, loggers, other stores) may react to.
type Event interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	Payload() map[string]any
}

// BaseEvent provides common fields for all client events
type BaseEvent struct {
	ID        uuid.UUID      `json:"id"`
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// EventID returns the unique event identifier
func (e *BaseEvent) EventID() uuid.UUID { return e.ID }

// EventType returns the type of the event
func (e *BaseEvent) EventType() string { return e.Type }

// OccurredAt returns when the event occurred
func (e *BaseEvent) OccurredAt() time.Time { return e.Timestamp }

// Payload returns the event payload
func (e *BaseEvent) Payload() map[string]any { return e.Data }

// NewEvent creates a new event of the given type
func NewEvent(eventType string, payload map[string]any) *BaseEvent {
	return &BaseEvent{
		ID:        uuid.New(),
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      payload,
	}
}

// NewErrorNotification creates a notification event carrying a user-facing
// error message. Notifications are non-blocking; nothing in the client
// waits on them being handled.
func NewErrorNotification(message string) *BaseEvent {
	return NewEvent(EventNotificationError, map[string]any{"message": message})
}

// NewSuccessNotification creates a notification event carrying a
// user-facing success message.
func NewSuccessNotification(message string) *BaseEvent {
	return NewEvent(EventNotificationSuccess, map[string]any{"message": message})
}
