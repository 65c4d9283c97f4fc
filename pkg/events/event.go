// Package events defines the envelope published on the audit bus. The only
// producer today is the answer pipeline (ANSWER_COMPLETED after each
// persisted turn); the contract stays generic so listeners subscribe by type
// without importing the producer.
package events

import "time"

// Event is what publishers emit and subscribers receive. The type code
// doubles as the NATS subject suffix.
type Event interface {
	// EventType returns the event's type code, e.g. "ANSWER_COMPLETED".
	EventType() string

	// Payload returns the event data. Values must be JSON-encodable.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent is the plain implementation used on both sides of the wire.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

// New builds a BaseEvent stamped with the current time.
func New(eventType string, data map[string]interface{}) BaseEvent {
	return BaseEvent{
		Type:       eventType,
		Data:       data,
		OccurredAt: time.Now(),
	}
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}
