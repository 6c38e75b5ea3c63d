package saga

import (
	"context"
	"time"
)

// EventType identifies a saga lifecycle transition.
type EventType string

// Lifecycle event types. Skipped steps produce no event.
const (
	EventStepStarted        EventType = "step_started"
	EventStepRetrying       EventType = "step_retrying"
	EventStepSucceeded      EventType = "step_succeeded"
	EventStepFailed         EventType = "step_failed"
	EventStepCompensated    EventType = "step_compensated"
	EventCompensationFailed EventType = "compensation_failed"
	EventSagaSucceeded      EventType = "saga_succeeded"
	EventSagaFailed         EventType = "saga_failed"
)

// Event describes one lifecycle transition of a saga run.
type Event struct {
	Type      EventType     `json:"type"`
	SagaID    string        `json:"saga_id"`
	Saga      string        `json:"saga"`
	Step      string        `json:"step,omitempty"`
	Attempt   int           `json:"attempt,omitempty"`
	Mandatory bool          `json:"mandatory"`
	Message   string        `json:"message,omitempty"`
	Duration  time.Duration `json:"duration_ns,omitempty"`
	Time      time.Time     `json:"time"`
}

// EventSink observes saga lifecycle events. Sinks are used for observability
// only; they cannot influence the run and must not block for long.
type EventSink interface {
	Notify(ctx context.Context, ev Event)
}

// NopSink discards every event.
type NopSink struct{}

// Notify implements EventSink.
func (NopSink) Notify(context.Context, Event) {}

// MultiSink fans events out to several sinks in order.
type MultiSink []EventSink

// Notify implements EventSink.
func (m MultiSink) Notify(ctx context.Context, ev Event) {
	for _, s := range m {
		if s != nil {
			s.Notify(ctx, ev)
		}
	}
}
