package core

import (
	"context"

	"github.com/google/uuid"
)

// Task is the unit of work (Closure)
type Task func(ctx context.Context)

// =============================================================================
// TaskID: Identity attached to tasks and pipeline events
// =============================================================================

// TaskID identifies a single unit of work as it moves between pools.
type TaskID uuid.UUID

// GenerateTaskID returns a new random TaskID.
func GenerateTaskID() TaskID {
	return TaskID(uuid.New())
}

// IsZero reports whether the ID was never assigned.
func (id TaskID) IsZero() bool {
	return id == TaskID(uuid.Nil)
}

func (id TaskID) String() string {
	return uuid.UUID(id).String()
}

// =============================================================================
// TaskTraits: Define task attributes (priority, blocking behavior, etc.)
// =============================================================================

type TaskPriority int

const (
	// TaskPriorityBestEffort: Lowest priority
	TaskPriorityBestEffort TaskPriority = iota

	// TaskPriorityUserVisible: Default priority
	TaskPriorityUserVisible

	// TaskPriorityUserBlocking: Highest priority
	TaskPriorityUserBlocking
)

type TaskTraits struct {
	Priority TaskPriority
	MayBlock bool
	Category string
}

func DefaultTaskTraits() TaskTraits {
	return TaskTraits{Priority: TaskPriorityUserVisible}
}

// TraitsMayBlock marks a task as allowed to perform blocking IO.
func TraitsMayBlock() TaskTraits {
	return TaskTraits{Priority: TaskPriorityUserVisible, MayBlock: true}
}

// =============================================================================
// Context Helper
// =============================================================================
type workerIDKeyType struct{}

var workerIDKey workerIDKeyType

// WithWorkerID records the index of the worker goroutine running a task.
func WithWorkerID(ctx context.Context, id int) context.Context {
	return context.WithValue(ctx, workerIDKey, id)
}

// WorkerIDFrom returns the worker index stored by WithWorkerID, or -1.
func WorkerIDFrom(ctx context.Context) int {
	if v, ok := ctx.Value(workerIDKey).(int); ok {
		return v
	}
	return -1
}
