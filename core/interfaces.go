package core

import (
	"context"
	"time"
)

// =============================================================================
// PanicHandler: Interface for handling task panics
// =============================================================================

// PanicHandler is called when a task panics on a pool worker.
//
// Implementations should be thread-safe as they may be called concurrently.
type PanicHandler interface {
	// HandlePanic is called when a task panics.
	//
	// Parameters:
	// - ctx: The context the task ran with (carries the execution kind)
	// - poolName: The ID of the pool whose worker recovered the panic
	// - workerID: The index of the worker goroutine
	// - panicInfo: The panic value recovered from the task
	// - stackTrace: The stack trace at the time of panic
	HandlePanic(ctx context.Context, poolName string, workerID int, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler reports panics through a Logger.
type DefaultPanicHandler struct {
	Logger Logger
}

// HandlePanic logs the panic at error level.
func (h *DefaultPanicHandler) HandlePanic(ctx context.Context, poolName string, workerID int, panicInfo any, stackTrace []byte) {
	logger := h.Logger
	if logger == nil {
		logger = NewDefaultLogger()
	}
	logger.Error("task panicked",
		F("pool", poolName),
		F("worker", workerID),
		F("kind", ExecutionKindFrom(ctx)),
		F("panic", panicInfo),
		F("stack", string(stackTrace)),
	)
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting pool execution metrics.
// Implementations can send metrics to monitoring systems (Prometheus, StatsD, etc.).
//
// Methods should be non-blocking and fast to avoid impacting task execution performance.
type Metrics interface {
	// RecordTaskDuration records how long a task took to execute on a worker.
	RecordTaskDuration(poolName string, kind ExecutionKind, duration time.Duration)

	// RecordTaskPanic records that a task panicked during execution.
	RecordTaskPanic(poolName string, panicInfo any)

	// RecordQueueDepth records the current queue depth of a pool.
	RecordQueueDepth(poolName string, depth int)

	// RecordTaskRejected records that a task was refused by a pool.
	RecordTaskRejected(poolName string, reason string)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

func (m *NilMetrics) RecordTaskDuration(poolName string, kind ExecutionKind, duration time.Duration) {
}
func (m *NilMetrics) RecordTaskPanic(poolName string, panicInfo any)    {}
func (m *NilMetrics) RecordQueueDepth(poolName string, depth int)       {}
func (m *NilMetrics) RecordTaskRejected(poolName string, reason string) {}

// =============================================================================
// RejectedTaskHandler: Interface for handling rejected tasks
// =============================================================================

// Rejection reasons reported to RejectedTaskHandler and Metrics.
const (
	RejectReasonShutdown  = "shutting down"
	RejectReasonQueueFull = "queue full"
)

// RejectedTaskHandler is called when a task is rejected by the scheduler.
// This can happen when:
// - The scheduler is shutting down
// - The queue reached its configured capacity
//
// Implementations should be thread-safe as they may be called concurrently.
type RejectedTaskHandler interface {
	HandleRejectedTask(poolName string, reason string)
}

// DefaultRejectedTaskHandler logs rejected tasks at warn level.
type DefaultRejectedTaskHandler struct {
	Logger Logger
}

// HandleRejectedTask logs the rejected task.
func (h *DefaultRejectedTaskHandler) HandleRejectedTask(poolName string, reason string) {
	logger := h.Logger
	if logger == nil {
		logger = NewDefaultLogger()
	}
	logger.Warn("task rejected", F("pool", poolName), F("reason", reason))
}

// =============================================================================
// TaskSchedulerConfig: Configuration for TaskScheduler
// =============================================================================

// TaskSchedulerConfig holds configuration options for TaskScheduler.
// All handlers are optional; if not provided, default implementations will be used.
type TaskSchedulerConfig struct {
	// Name labels rejections and metrics. Defaults to "TaskScheduler".
	Name string

	// QueueCapacity bounds the ready queue. Zero means unbounded.
	QueueCapacity int

	// PanicHandler is called when a task panics. Defaults to DefaultPanicHandler.
	PanicHandler PanicHandler

	// Metrics is called to record task execution metrics. Defaults to NilMetrics.
	Metrics Metrics

	// RejectedTaskHandler is called when a task is rejected. Defaults to DefaultRejectedTaskHandler.
	RejectedTaskHandler RejectedTaskHandler
}

// DefaultTaskSchedulerConfig returns a config with default handlers.
func DefaultTaskSchedulerConfig() *TaskSchedulerConfig {
	return &TaskSchedulerConfig{
		PanicHandler:        &DefaultPanicHandler{},
		Metrics:             &NilMetrics{},
		RejectedTaskHandler: &DefaultRejectedTaskHandler{},
	}
}

// =============================================================================
// ThreadPool / PoolProvider: Worker pools handed to dispatch strategies
// =============================================================================

// Executor accepts tasks for asynchronous execution on a pool of a known kind.
type Executor interface {
	PostInternal(task Task, traits TaskTraits)
	Kind() ExecutionKind
}

// ThreadPool is a managed set of workers. Tasks posted to it receive a context
// tagged with the pool's ExecutionKind.
type ThreadPool interface {
	Executor

	Start(ctx context.Context)
	Stop()

	ID() string
	IsRunning() bool

	WorkerCount() int
	QueuedTaskCount() int // In queue
	ActiveTaskCount() int // Executing

	Stats() PoolStats
}

// QueueConfig describes the queue in front of a pool's workers.
// Store is an opaque backing store label; this module keeps queues in memory.
// The zero value lets the provider apply its own default for the pool's kind;
// Unbounded asks for no bound regardless of that default.
type QueueConfig struct {
	Capacity  int    // 0 means unbounded
	Store     string // backing store name
	Unbounded bool
}

// PoolConfig is what a dispatch strategy asks a PoolProvider for.
type PoolConfig struct {
	Name     string
	Kind     ExecutionKind
	MayBlock bool

	// Workers overrides the provider's worker count for Kind when positive.
	Workers int

	Queue QueueConfig
}

// PoolProvider hands out started pools. Retry policy, if any, belongs to the provider.
type PoolProvider interface {
	Acquire(cfg PoolConfig) (ThreadPool, error)
}

// PoolProviderFunc adapts a function to PoolProvider.
type PoolProviderFunc func(cfg PoolConfig) (ThreadPool, error)

func (f PoolProviderFunc) Acquire(cfg PoolConfig) (ThreadPool, error) {
	return f(cfg)
}
