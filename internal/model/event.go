// internal/model/event.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event
type EventType string

const (
	EventStateChanged       EventType = "STATE_CHANGED"
	EventDeviceConnected    EventType = "DEVICE_CONNECTED"
	EventDeviceDisconnected EventType = "DEVICE_DISCONNECTED"
	EventEpochOpened        EventType = "EPOCH_OPENED"
	EventEpochClosed        EventType = "EPOCH_CLOSED"
	EventFault              EventType = "FAULT"
	EventReconnectExhausted EventType = "RECONNECT_EXHAUSTED"
)

// EventAll subscribes to every event type
const EventAll EventType = "*"

// Event severities
const (
	SeverityInfo    = "INFO"
	SeverityWarning = "WARNING"
	SeverityError   = "ERROR"
)

// Event represents a lifecycle event of the acquisition engine
type Event struct {
	ID        uuid.UUID   `json:"id"`
	Type      EventType   `json:"event_type"`
	Source    string      `json:"source"`
	Severity  string      `json:"severity"` // INFO, WARNING, ERROR
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewEvent creates an event stamped with a fresh ID and the current time
func NewEvent(eventType EventType, source, severity string, data interface{}) Event {
	return Event{
		ID:        uuid.New(),
		Type:      eventType,
		Source:    source,
		Severity:  severity,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// StateChangedEventData describes a loop state transition
type StateChangedEventData struct {
	From AcquisitionState `json:"from"`
	To   AcquisitionState `json:"to"`
}

// EpochEventData describes an opened or closed recording epoch
type EpochEventData struct {
	EpochID uuid.UUID `json:"epoch_id"`
	Path    string    `json:"path"`
	Rows    int64     `json:"rows"`
	Error   string    `json:"error,omitempty"`
}

// ReconnectExhaustedEventData describes a failed bounded reconnect
type ReconnectExhaustedEventData struct {
	Attempts     int    `json:"attempts"`
	ErrorMessage string `json:"error_message"`
	OuterRetries int    `json:"outer_retries"`
}

// FaultEventData describes what ended a streaming epoch
type FaultEventData struct {
	Reason       FaultReason `json:"reason"`
	ErrorMessage string      `json:"error_message"`
	Streak       int         `json:"streak"`
	Cooldown     string      `json:"cooldown"`
}
