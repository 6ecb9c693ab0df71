package pipeline

import (
	"context"

	"github.com/Swind/go-workqueue/core"
)

// Event is the item flowing through a pipeline.
type Event struct {
	ID      core.TaskID
	Payload any

	// Err holds the first failure raised by a Map stage.
	Err error
}

// NewEvent wraps payload in an Event with a fresh ID.
func NewEvent(payload any) *Event {
	return &Event{ID: core.GenerateTaskID(), Payload: payload}
}

// Failed reports whether a stage recorded an error on the event.
func (e *Event) Failed() bool {
	return e.Err != nil
}

// Handler processes one event. It must not retain ctx beyond the call unless
// it hands the event to another pool.
type Handler func(ctx context.Context, ev *Event)

// Discard is a terminal Handler that drops every event.
func Discard(context.Context, *Event) {}

type transactionKeyType struct{}

var transactionKey transactionKeyType

// WithTransaction marks ctx as carrying an active transaction.
func WithTransaction(ctx context.Context) context.Context {
	return context.WithValue(ctx, transactionKey, true)
}

// InTransaction reports whether WithTransaction marked ctx.
func InTransaction(ctx context.Context) bool {
	active, _ := ctx.Value(transactionKey).(bool)
	return active
}
