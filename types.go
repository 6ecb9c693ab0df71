package workqueue

import "github.com/Swind/go-workqueue/core"

// Re-export commonly used types from core so that callers building pools only
// need the root package.

// Task is the unit of work run by a pool worker.
type Task = core.Task

// TaskTraits describes a task (priority, blocking behavior).
type TaskTraits = core.TaskTraits

// ExecutionKind classifies pools and the contexts their workers hand out.
type ExecutionKind = core.ExecutionKind

// ThreadPool is re-exported for type compatibility.
type ThreadPool = core.ThreadPool

// PoolConfig is the request accepted by PoolProvider.Acquire.
type PoolConfig = core.PoolConfig

// QueueConfig bounds the queue of a pool.
type QueueConfig = core.QueueConfig

const (
	KindCPULight     = core.KindCPULight
	KindIO           = core.KindIO
	KindCPUIntensive = core.KindCPUIntensive
	KindCustom       = core.KindCustom
)

var (
	DefaultTaskTraits = core.DefaultTaskTraits
	TraitsMayBlock    = core.TraitsMayBlock
	WithExecutionKind = core.WithExecutionKind
	ExecutionKindFrom = core.ExecutionKindFrom
)
