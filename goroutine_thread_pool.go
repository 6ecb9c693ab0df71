package workqueue

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/Swind/go-workqueue/core"
)

// GoroutineThreadPool manages a set of worker goroutines of one ExecutionKind.
// Workers pull tasks from a FIFO TaskScheduler and run them with a context
// tagged with the pool's kind and the worker index.
type GoroutineThreadPool struct {
	id        string
	kind      core.ExecutionKind
	workers   int
	scheduler *core.TaskScheduler
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	running   bool
	runningMu sync.RWMutex
}

var _ core.ThreadPool = (*GoroutineThreadPool)(nil)

// NewGoroutineThreadPool creates a pool with an unbounded queue and default handlers.
func NewGoroutineThreadPool(id string, kind core.ExecutionKind, workers int) *GoroutineThreadPool {
	return NewGoroutineThreadPoolWithConfig(id, kind, workers, core.DefaultTaskSchedulerConfig())
}

// NewGoroutineThreadPoolWithConfig creates a pool whose scheduler uses config.
// config.Name defaults to the pool id.
func NewGoroutineThreadPoolWithConfig(id string, kind core.ExecutionKind, workers int, config *core.TaskSchedulerConfig) *GoroutineThreadPool {
	if kind == "" {
		kind = core.KindCustom
	}
	if config == nil {
		config = core.DefaultTaskSchedulerConfig()
	}
	cfg := *config
	if cfg.Name == "" {
		cfg.Name = id
	}
	scheduler := core.NewTaskSchedulerWithConfig(workers, &cfg)
	return &GoroutineThreadPool{
		id:        id,
		kind:      kind,
		workers:   scheduler.WorkerCount(),
		scheduler: scheduler,
	}
}

// Start starts all worker goroutines
func (tg *GoroutineThreadPool) Start(ctx context.Context) {
	tg.runningMu.Lock()
	defer tg.runningMu.Unlock()

	if tg.running {
		return // Already running
	}

	tg.ctx, tg.cancel = context.WithCancel(ctx)
	tg.running = true

	for i := 0; i < tg.workers; i++ {
		tg.wg.Add(1)
		go tg.workerLoop(i, tg.ctx)
	}
}

// Stop stops the pool. Queued tasks are dropped; running tasks finish first.
func (tg *GoroutineThreadPool) Stop() {
	// Always shutdown scheduler to release queued tasks, even if pool was never started
	tg.scheduler.Shutdown()

	tg.runningMu.Lock()
	if !tg.running {
		tg.runningMu.Unlock()
		return
	}
	cancel := tg.cancel
	tg.runningMu.Unlock()

	if cancel != nil {
		cancel()
	}
	tg.Join()

	tg.runningMu.Lock()
	tg.running = false
	tg.runningMu.Unlock()
}

// StopGraceful waits up to timeout for queued and running tasks before stopping the workers.
func (tg *GoroutineThreadPool) StopGraceful(timeout time.Duration) error {
	tg.runningMu.RLock()
	running := tg.running
	tg.runningMu.RUnlock()
	if !running {
		tg.scheduler.Shutdown()
		return nil
	}

	err := tg.scheduler.ShutdownGraceful(timeout)
	tg.Stop()
	return err
}

// ID returns the ID of the thread pool
func (tg *GoroutineThreadPool) ID() string {
	return tg.id
}

// Kind returns the execution kind every worker of this pool reports.
func (tg *GoroutineThreadPool) Kind() core.ExecutionKind {
	return tg.kind
}

// IsRunning returns whether the thread pool is running
func (tg *GoroutineThreadPool) IsRunning() bool {
	tg.runningMu.RLock()
	defer tg.runningMu.RUnlock()
	return tg.running
}

func (tg *GoroutineThreadPool) workerLoop(id int, ctx context.Context) {
	defer tg.wg.Done()
	stopCh := ctx.Done()
	taskCtx := core.WithWorkerID(core.WithExecutionKind(ctx, tg.kind), id)

	for {
		task, ok := tg.scheduler.GetWork(stopCh)
		if !ok {
			return
		}
		tg.runTask(id, taskCtx, task)
	}
}

func (tg *GoroutineThreadPool) runTask(workerID int, ctx context.Context, task core.Task) {
	metrics := tg.scheduler.GetMetrics()
	tg.scheduler.OnTaskStart()
	started := time.Now()

	defer func() {
		tg.scheduler.OnTaskEnd()
		if r := recover(); r != nil {
			metrics.RecordTaskPanic(tg.id, r)
			tg.scheduler.GetPanicHandler().HandlePanic(ctx, tg.id, workerID, r, debug.Stack())
			return
		}
		metrics.RecordTaskDuration(tg.id, tg.kind, time.Since(started))
	}()

	task(ctx)
}

// Join waits for all worker goroutines to finish
func (tg *GoroutineThreadPool) Join() {
	tg.wg.Wait()
}

func (tg *GoroutineThreadPool) WorkerCount() int     { return tg.workers }
func (tg *GoroutineThreadPool) QueuedTaskCount() int { return tg.scheduler.QueuedTaskCount() }
func (tg *GoroutineThreadPool) ActiveTaskCount() int { return tg.scheduler.ActiveTaskCount() }

// PostInternal enqueues task without blocking.
func (tg *GoroutineThreadPool) PostInternal(task core.Task, traits core.TaskTraits) {
	tg.scheduler.PostInternal(task, traits)
}

// Stats returns a point-in-time snapshot of the pool.
func (tg *GoroutineThreadPool) Stats() core.PoolStats {
	return core.PoolStats{
		ID:            tg.id,
		Kind:          tg.kind,
		Workers:       tg.workers,
		Queued:        tg.scheduler.QueuedTaskCount(),
		Active:        tg.scheduler.ActiveTaskCount(),
		Rejected:      tg.scheduler.RejectedCount(),
		QueueCapacity: tg.scheduler.QueueCapacity(),
		Running:       tg.IsRunning(),
	}
}
