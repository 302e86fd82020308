package session

import (
	"time"

	"github.com/hydroloop/reclaim/pkg/models"
)

// EventType identifies a controller state transition.
type EventType string

const (
	EventSessionStarted EventType = "session_started"
	EventSessionReset   EventType = "session_reset"
	EventReadingStored  EventType = "reading_stored"
	EventBatchAnalyzed  EventType = "batch_analyzed"
	EventCommandQueued  EventType = "command_queued"
	EventCommandFetched EventType = "command_fetched"
	EventCommandAcked   EventType = "command_acked"
)

// Event describes a completed state transition, published to observers
// (SSE stream, metrics) after the mutation has been applied.
type Event struct {
	Type       EventType                `json:"type"`
	SessionID  string                   `json:"session_id,omitempty"`
	Phase      models.Phase             `json:"phase"`
	Collected  int                      `json:"collected"`
	Command    models.PumpCommand       `json:"command,omitempty"`
	Prediction *models.PredictionResult `json:"prediction,omitempty"`
	At         time.Time                `json:"at"`
}

// Observer receives controller events. Implementations must not call
// back into the controller and should return quickly; events are
// delivered synchronously after the controller releases its lock, so
// delivery order is not guaranteed under contention.
type Observer func(Event)
