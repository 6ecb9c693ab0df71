package core

import (
	"fmt"
	"sync/atomic"
	"time"
)

const defaultSchedulerName = "TaskScheduler"

// TaskScheduler is the work source behind a pool: producers post into its
// ready queue and workers pull from it with GetWork.
type TaskScheduler struct {
	name        string
	queue       TaskQueue
	signal      chan struct{}
	workerCount int

	metricQueued   int32 // Waiting in ready queue
	metricActive   int32 // Executing in Worker
	metricRejected int64

	// Handlers and Metrics
	panicHandler        PanicHandler
	metrics             Metrics
	rejectedTaskHandler RejectedTaskHandler

	// Lifecycle
	shuttingDown int32 // atomic flag
}

// NewFIFOTaskScheduler creates an unbounded FIFO scheduler with default handlers.
func NewFIFOTaskScheduler(workerCount int) *TaskScheduler {
	return NewTaskSchedulerWithConfig(workerCount, DefaultTaskSchedulerConfig())
}

// NewTaskSchedulerWithConfig creates a FIFO scheduler; config.QueueCapacity bounds the queue.
func NewTaskSchedulerWithConfig(workerCount int, config *TaskSchedulerConfig) *TaskScheduler {
	if workerCount < 1 {
		workerCount = 1
	}
	if config == nil {
		config = DefaultTaskSchedulerConfig()
	}

	s := &TaskScheduler{
		name:                config.Name,
		queue:               NewBoundedFIFOTaskQueue(config.QueueCapacity),
		signal:              make(chan struct{}, workerCount*2),
		workerCount:         workerCount,
		panicHandler:        config.PanicHandler,
		metrics:             config.Metrics,
		rejectedTaskHandler: config.RejectedTaskHandler,
	}

	// Use defaults if not provided
	if s.name == "" {
		s.name = defaultSchedulerName
	}
	if s.panicHandler == nil {
		s.panicHandler = &DefaultPanicHandler{}
	}
	if s.metrics == nil {
		s.metrics = &NilMetrics{}
	}
	if s.rejectedTaskHandler == nil {
		s.rejectedTaskHandler = &DefaultRejectedTaskHandler{}
	}

	return s
}

// PostInternal enqueues task. It never blocks; refused tasks are reported to
// the RejectedTaskHandler and Metrics.
func (s *TaskScheduler) PostInternal(task Task, traits TaskTraits) {
	if atomic.LoadInt32(&s.shuttingDown) == 1 {
		s.reject(RejectReasonShutdown)
		return
	}

	if !s.queue.Push(task, traits) {
		s.reject(RejectReasonQueueFull)
		return
	}
	depth := atomic.AddInt32(&s.metricQueued, 1)
	s.metrics.RecordQueueDepth(s.name, int(depth))

	select {
	case s.signal <- struct{}{}:
	default:
		// Signal channel full; the task is already queued and a worker will find it
	}
}

func (s *TaskScheduler) reject(reason string) {
	atomic.AddInt64(&s.metricRejected, 1)
	s.rejectedTaskHandler.HandleRejectedTask(s.name, reason)
	s.metrics.RecordTaskRejected(s.name, reason)
}

// GetWork (Called by Worker)
func (s *TaskScheduler) GetWork(stopCh <-chan struct{}) (Task, bool) {
	for {
		if item, ok := s.queue.Pop(); ok {
			atomic.AddInt32(&s.metricQueued, -1)
			return item.Task, true
		}

		select {
		case <-s.signal:
			continue
		case <-stopCh:
			return nil, false
		}
	}
}

// Shutdown stops accepting tasks and drops everything still queued.
func (s *TaskScheduler) Shutdown() {
	atomic.StoreInt32(&s.shuttingDown, 1)
	s.queue.Clear()
	atomic.StoreInt32(&s.metricQueued, 0)
}

// ShutdownGraceful waits for all queued and active tasks to complete
// Returns error if timeout is exceeded before tasks complete
func (s *TaskScheduler) ShutdownGraceful(timeout time.Duration) error {
	atomic.StoreInt32(&s.shuttingDown, 1)

	deadline := time.After(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if s.QueuedTaskCount() == 0 && s.ActiveTaskCount() == 0 {
			return nil
		}
		select {
		case <-deadline:
			s.queue.Clear()
			atomic.StoreInt32(&s.metricQueued, 0)
			return fmt.Errorf("shutdown graceful timeout after %v, forced clearing", timeout)
		case <-ticker.C:
		}
	}
}

// IsShuttingDown reports whether Shutdown or ShutdownGraceful was called.
func (s *TaskScheduler) IsShuttingDown() bool {
	return atomic.LoadInt32(&s.shuttingDown) == 1
}

// Metrics
func (s *TaskScheduler) Name() string         { return s.name }
func (s *TaskScheduler) WorkerCount() int     { return s.workerCount }
func (s *TaskScheduler) QueueCapacity() int   { return s.queue.Cap() }
func (s *TaskScheduler) QueuedTaskCount() int { return int(atomic.LoadInt32(&s.metricQueued)) }
func (s *TaskScheduler) ActiveTaskCount() int { return int(atomic.LoadInt32(&s.metricActive)) }
func (s *TaskScheduler) RejectedCount() int64 { return atomic.LoadInt64(&s.metricRejected) }
func (s *TaskScheduler) OnTaskStart()         { atomic.AddInt32(&s.metricActive, 1) }
func (s *TaskScheduler) OnTaskEnd()           { atomic.AddInt32(&s.metricActive, -1) }
func (s *TaskScheduler) GetMetrics() Metrics  { return s.metrics }
func (s *TaskScheduler) GetPanicHandler() PanicHandler {
	return s.panicHandler
}
