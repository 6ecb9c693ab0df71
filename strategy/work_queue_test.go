package strategy

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	workqueue "github.com/Swind/go-workqueue"
	"github.com/Swind/go-workqueue/core"
	"github.com/Swind/go-workqueue/pipeline"
	"github.com/Swind/go-workqueue/transition"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	kindProducer core.ExecutionKind = "producer"
	kindWorker   core.ExecutionKind = "worker"
	kindAsync    core.ExecutionKind = "async-pool"
)

func startedPool(t *testing.T, id string, kind core.ExecutionKind, workers int) *workqueue.GoroutineThreadPool {
	t.Helper()
	pool := workqueue.NewGoroutineThreadPool(id, kind, workers)
	pool.Start(context.Background())
	t.Cleanup(pool.Stop)
	return pool
}

func supplierOf(pool core.ThreadPool) PoolSupplier {
	return func() (core.ThreadPool, error) { return pool, nil }
}

func instrumented(stats *transition.Statistics) Option {
	return WithInstrumenter(transition.NewInstrumenter(transition.NewService(transition.InstrumentationEnabled, stats)))
}

func producerCtx() context.Context {
	return core.WithExecutionKind(context.Background(), kindProducer)
}

func waitGroupTimeout(t *testing.T, wg *sync.WaitGroup, timeout time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatalf("events not delivered within %v", timeout)
	}
}

// TestWorkQueue_DispatchesEveryEventOnce verifies the main flow
// Given: a started strategy over a 4 worker pool with instrumentation enabled
// When: 100 events are accepted from a producer context
// Then: each event reaches the terminal once, on the worker pool, and 100 hops are recorded
func TestWorkQueue_DispatchesEveryEventOnce(t *testing.T) {
	// Arrange
	stats := transition.NewStatistics()
	pool := startedPool(t, "flow.worker", kindWorker, 4)
	s := NewWorkQueueStrategy(supplierOf(pool), instrumented(stats))
	require.NoError(t, s.Start())
	defer s.Stop()

	var wg sync.WaitGroup
	var seen sync.Map
	var wrongKind, noScheduler atomic.Int32
	wg.Add(100)
	sink := s.CreateSink(BuildPipeline(s, pipeline.Map(func(ctx context.Context, ev *pipeline.Event) error {
		ev.Payload = ev.Payload.(int) * 2
		return nil
	})), func(ctx context.Context, ev *pipeline.Event) {
		defer wg.Done()
		if core.ExecutionKindFrom(ctx) != kindWorker {
			wrongKind.Add(1)
		}
		if p, ok := SchedulerFrom(ctx); !ok || p.ID() != "flow.worker" {
			noScheduler.Add(1)
		}
		_, dup := seen.LoadOrStore(ev.Payload, struct{}{})
		assert.False(t, dup, "payload %v delivered twice", ev.Payload)
	})

	// Act
	for i := range 100 {
		require.NoError(t, sink.Accept(producerCtx(), pipeline.NewEvent(i)))
	}
	waitGroupTimeout(t, &wg, 5*time.Second)

	// Assert
	assert.Zero(t, wrongKind.Load())
	assert.Zero(t, noScheduler.Load())
	n, err := stats.Count(transition.NewKey(kindProducer, kindWorker))
	require.NoError(t, err)
	assert.Equal(t, 100, n)
	mean, err := stats.Mean(transition.NewKey(kindProducer, kindWorker))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, mean, 0.0)
}

// TestWorkQueue_AcceptDoesNotWaitForPipeline verifies the producer returns after the enqueue
func TestWorkQueue_AcceptDoesNotWaitForPipeline(t *testing.T) {
	pool := startedPool(t, "flow.worker", kindWorker, 1)
	s := NewWorkQueueStrategy(supplierOf(pool))
	require.NoError(t, s.Start())
	defer s.Stop()

	release := make(chan struct{})
	done := make(chan struct{})
	sink := s.CreateSink(BuildPipeline(s), func(ctx context.Context, ev *pipeline.Event) {
		<-release
		close(done)
	})

	require.NoError(t, sink.Accept(producerCtx(), pipeline.NewEvent(nil)))
	close(release)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("event never reached the terminal")
	}
}

// TestWorkQueue_TwoHops verifies distinct keys per ordered pair
// Given: 10 events, half of which take a second hop onto an async pool
// Then: 10 producer->worker and 5 worker->async-pool samples exist
func TestWorkQueue_TwoHops(t *testing.T) {
	stats := transition.NewStatistics()
	instr := transition.NewInstrumenter(transition.NewService(transition.InstrumentationEnabled, stats))
	worker := startedPool(t, "flow.worker", kindWorker, 2)
	async := startedPool(t, "flow.async", kindAsync, 2)

	s := NewWorkQueueStrategy(supplierOf(worker), WithInstrumenter(instr))
	require.NoError(t, s.Start())
	defer s.Stop()

	var wg sync.WaitGroup
	wg.Add(10)
	terminal := func(ctx context.Context, ev *pipeline.Event) { wg.Done() }
	asyncHop := pipeline.Apply(instr.Around(pipeline.RunOn(async)), terminal)
	route := pipeline.StageFunc(func(next pipeline.Handler) pipeline.Handler {
		return func(ctx context.Context, ev *pipeline.Event) {
			if ev.Payload.(int)%2 == 0 {
				asyncHop(ctx, ev)
				return
			}
			next(ctx, ev)
		}
	})
	sink := s.CreateSink(BuildPipeline(s, route), terminal)

	for i := range 10 {
		require.NoError(t, sink.Accept(producerCtx(), pipeline.NewEvent(i)))
	}
	waitGroupTimeout(t, &wg, 5*time.Second)

	assert.ElementsMatch(t,
		[]transition.Key{transition.NewKey(kindProducer, kindWorker), transition.NewKey(kindWorker, kindAsync)},
		stats.Transitions())
	n, _ := stats.Count(transition.NewKey(kindProducer, kindWorker))
	assert.Equal(t, 10, n)
	n, _ = stats.Count(transition.NewKey(kindWorker, kindAsync))
	assert.Equal(t, 5, n)
}

// TestWorkQueue_AsyncSegmentHopsBack verifies what follows a CPULiteAsync segment runs on the pool
func TestWorkQueue_AsyncSegmentHopsBack(t *testing.T) {
	stats := transition.NewStatistics()
	worker := startedPool(t, "flow.worker", kindWorker, 2)
	async := startedPool(t, "flow.async", kindAsync, 2)
	s := NewWorkQueueStrategy(supplierOf(worker), instrumented(stats))
	require.NoError(t, s.Start())
	defer s.Stop()

	// completes on the async pool, like a non-blocking client callback would
	callout := pipeline.WithProcessingType(pipeline.CPULiteAsync, pipeline.RunOn(async))

	var wg sync.WaitGroup
	var offPool atomic.Int32
	wg.Add(20)
	sink := s.CreateSink(BuildPipeline(s, callout), func(ctx context.Context, ev *pipeline.Event) {
		defer wg.Done()
		if core.ExecutionKindFrom(ctx) != kindWorker {
			offPool.Add(1)
		}
	})
	for i := range 20 {
		require.NoError(t, sink.Accept(producerCtx(), pipeline.NewEvent(i)))
	}
	waitGroupTimeout(t, &wg, 5*time.Second)

	assert.Zero(t, offPool.Load())
	n, err := stats.Count(transition.NewKey(kindAsync, kindWorker))
	require.NoError(t, err)
	assert.Equal(t, 20, n)
}

func TestWorkQueue_OnProcessorLeavesSyncSegments(t *testing.T) {
	s := NewWorkQueueStrategy(supplierOf(nil))
	p := pipeline.Map(func(context.Context, *pipeline.Event) error { return nil })
	assert.Equal(t, pipeline.CPULite, s.OnProcessor(p).ProcessingType())

	blocking := pipeline.WithProcessingType(pipeline.Blocking, p)
	assert.Equal(t, pipeline.Blocking, s.OnProcessor(blocking).ProcessingType())
}

func TestWorkQueue_Lifecycle(t *testing.T) {
	pool := workqueue.NewGoroutineThreadPool("flow.worker", kindWorker, 1)
	pool.Start(context.Background())
	var supplied atomic.Int32
	s := NewWorkQueueStrategy(func() (core.ThreadPool, error) {
		supplied.Add(1)
		return pool, nil
	})

	assert.Equal(t, StateCreated, s.State())
	require.NoError(t, s.Stop(), "stop before start")
	assert.Equal(t, StateCreated, s.State())
	assert.Zero(t, supplied.Load())

	require.NoError(t, s.Start())
	require.NoError(t, s.Start(), "second start")
	assert.Equal(t, int32(1), supplied.Load())
	assert.Equal(t, StateStarted, s.State())

	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop(), "second stop")
	assert.Equal(t, StateStopped, s.State())
	assert.Nil(t, s.Pool())
	assert.False(t, pool.IsRunning())

	sink := s.CreateSink(BuildPipeline(s), nil)
	assert.ErrorIs(t, sink.Accept(producerCtx(), pipeline.NewEvent(nil)), ErrNotStarted)
}

func TestWorkQueue_SupplierFailure(t *testing.T) {
	boom := errors.New("no pool for you")
	s := NewWorkQueueStrategy(func() (core.ThreadPool, error) { return nil, boom })

	err := s.Start()
	require.ErrorIs(t, err, boom)
	assert.Equal(t, StateCreated, s.State())
	assert.Nil(t, s.Pool())
	assert.NoError(t, s.Stop())

	sink := s.CreateSink(BuildPipeline(s), nil)
	assert.ErrorIs(t, sink.Accept(context.Background(), pipeline.NewEvent(nil)), ErrNotStarted)
}

func TestWorkQueue_NilPoolFromSupplier(t *testing.T) {
	s := NewWorkQueueStrategy(supplierOf(nil))
	assert.Error(t, s.Start())
	assert.Nil(t, s.Pool())
}

func TestWorkQueue_NilSupplierPanics(t *testing.T) {
	assert.Panics(t, func() { NewWorkQueueStrategy(nil) })
}

func TestWorkQueue_RejectsTransactions(t *testing.T) {
	pool := startedPool(t, "flow.worker", kindWorker, 1)
	s := NewWorkQueueStrategy(supplierOf(pool))
	require.NoError(t, s.Start())
	defer s.Stop()

	delivered := make(chan struct{}, 1)
	sink := s.CreateSink(BuildPipeline(s), func(context.Context, *pipeline.Event) { delivered <- struct{}{} })

	err := sink.Accept(pipeline.WithTransaction(producerCtx()), pipeline.NewEvent(nil))
	assert.ErrorIs(t, err, ErrTransactionalFlow)
	assert.ErrorIs(t, sink.Accept(producerCtx(), nil), ErrNilEvent)

	select {
	case <-delivered:
		t.Fatal("rejected event reached the terminal")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWorkQueue_DisabledInstrumentationRecordsNothing(t *testing.T) {
	stats := transition.NewStatistics()
	pool := startedPool(t, "flow.worker", kindWorker, 2)
	svc := transition.NewService(transition.InstrumentationDisabled, stats)
	s := NewWorkQueueStrategy(supplierOf(pool), WithInstrumenter(transition.NewInstrumenter(svc)))
	require.NoError(t, s.Start())
	defer s.Stop()

	var wg sync.WaitGroup
	wg.Add(50)
	sink := s.CreateSink(BuildPipeline(s), func(context.Context, *pipeline.Event) { wg.Done() })
	for i := range 50 {
		require.NoError(t, sink.Accept(producerCtx(), pipeline.NewEvent(i)))
	}
	waitGroupTimeout(t, &wg, 5*time.Second)

	assert.Empty(t, stats.Transitions())
}

func TestWorkQueue_ProducerCancellationDoesNotReachWorkers(t *testing.T) {
	pool := startedPool(t, "flow.worker", kindWorker, 1)
	s := NewWorkQueueStrategy(supplierOf(pool))
	require.NoError(t, s.Start())
	defer s.Stop()

	got := make(chan error, 1)
	sink := s.CreateSink(BuildPipeline(s), func(ctx context.Context, ev *pipeline.Event) { got <- ctx.Err() })

	ctx, cancel := context.WithCancel(producerCtx())
	require.NoError(t, sink.Accept(ctx, pipeline.NewEvent(nil)))
	cancel()

	select {
	case err := <-got:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("event never reached the terminal")
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "created", StateCreated.String())
	assert.Equal(t, "started", StateStarted.String())
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "State(7)", State(7).String())
}
