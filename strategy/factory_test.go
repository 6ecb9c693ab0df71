package strategy

import (
	"context"
	"sync"
	"testing"
	"time"

	workqueue "github.com/Swind/go-workqueue"
	"github.com/Swind/go-workqueue/core"
	"github.com/Swind/go-workqueue/pipeline"
	"github.com/Swind/go-workqueue/transition"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFactory_AcquiresLazily verifies nothing is requested from the provider before Start
// Given: a factory over a provider counting Acquire calls
// When: a strategy is created, then started
// Then: Acquire is called once, on Start, with an IO pool named after the prefix
func TestFactory_AcquiresLazily(t *testing.T) {
	// Arrange
	provider := workqueue.NewPoolProvider(workqueue.WithDefaultWorkers(2))
	defer provider.Shutdown()

	var mu sync.Mutex
	var requests []core.PoolConfig
	counting := core.PoolProviderFunc(func(cfg core.PoolConfig) (core.ThreadPool, error) {
		mu.Lock()
		requests = append(requests, cfg)
		mu.Unlock()
		return provider.Acquire(cfg)
	})
	f := NewWorkQueueFactory(counting, nil)

	// Act
	s := f.Create("orders")

	// Assert
	mu.Lock()
	assert.Empty(t, requests)
	mu.Unlock()

	require.NoError(t, s.Start())
	defer s.Stop()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, requests, 1)
	assert.Equal(t, "orders.io", requests[0].Name)
	assert.Equal(t, core.KindIO, requests[0].Kind)
	assert.True(t, requests[0].MayBlock)
	assert.Equal(t, core.KindIO, s.Pool().Kind())
}

func TestFactory_StrategyType(t *testing.T) {
	f := NewWorkQueueFactory(workqueue.NewPoolProvider(), nil)
	assert.Equal(t, "work-queue", f.StrategyType())
	assert.Equal(t, WorkQueueStrategyType, f.StrategyType())
}

func TestFactory_EmptyPrefix(t *testing.T) {
	f := NewWorkQueueFactory(workqueue.NewPoolProvider(), nil)
	assert.Equal(t, "workqueue.io", f.PoolConfig("").Name)
	assert.Equal(t, "flow.io", f.PoolConfig("flow").Name)
}

func TestFactory_PoolOverrides(t *testing.T) {
	f := NewWorkQueueFactory(workqueue.NewPoolProvider(), nil,
		WithWorkers(3),
		WithQueueStore("memory"),
	)
	cfg := f.PoolConfig("flow")
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, core.QueueConfig{Store: "memory", Unbounded: true}, cfg.Queue)
}

// TestFactory_QueueStaysUnbounded verifies accepted events are never lost to a provider queue bound
// Given: a provider whose io pools default to a queue of 1 and a single blocked worker
// When: 5 events are accepted
// Then: nothing is rejected and all 5 reach the terminal once the worker is released
func TestFactory_QueueStaysUnbounded(t *testing.T) {
	// Arrange
	provider := workqueue.NewPoolProvider(
		workqueue.WithKindWorkers(core.KindIO, 1),
		workqueue.WithKindQueue(core.KindIO, core.QueueConfig{Capacity: 1, Store: "memory"}),
	)
	defer provider.Shutdown()

	s := NewWorkQueueFactory(provider, nil).Create("flow")
	require.NoError(t, s.Start())
	defer s.Stop()

	release := make(chan struct{})
	var once sync.Once
	unblock := func() { once.Do(func() { close(release) }) }
	defer unblock()
	var wg sync.WaitGroup
	wg.Add(5)
	sink := s.CreateSink(BuildPipeline(s), func(context.Context, *pipeline.Event) {
		<-release
		wg.Done()
	})

	// Act
	for i := range 5 {
		require.NoError(t, sink.Accept(producerCtx(), pipeline.NewEvent(i)))
	}
	stats := s.Pool().Stats()
	unblock()

	// Assert
	waitGroupTimeout(t, &wg, 5*time.Second)
	assert.Zero(t, stats.Rejected)
	assert.Zero(t, stats.QueueCapacity)
	assert.Zero(t, s.Pool().Stats().Rejected)
}

func TestFactory_NilProviderPanics(t *testing.T) {
	assert.Panics(t, func() { NewWorkQueueFactory(nil, nil) })
}

func TestFactory_ClosedProviderFailsStart(t *testing.T) {
	provider := workqueue.NewPoolProvider()
	provider.Shutdown()

	s := NewWorkQueueFactory(provider, nil).Create("flow")
	err := s.Start()
	assert.ErrorIs(t, err, workqueue.ErrProviderClosed)
	assert.Equal(t, StateCreated, s.State())
}

// TestFactory_RecordsIntoRegistry verifies strategies created by one factory share its registry
func TestFactory_RecordsIntoRegistry(t *testing.T) {
	provider := workqueue.NewPoolProvider(workqueue.WithDefaultWorkers(2))
	defer provider.Shutdown()
	stats := transition.NewStatistics()
	f := NewWorkQueueFactory(provider, transition.NewService(transition.InstrumentationEnabled, stats))

	var wg sync.WaitGroup
	for _, prefix := range []string{"a", "b"} {
		s := f.Create(prefix)
		require.NoError(t, s.Start())
		defer s.Stop()

		wg.Add(5)
		sink := s.CreateSink(BuildPipeline(s), func(context.Context, *pipeline.Event) { wg.Done() })
		for i := range 5 {
			require.NoError(t, sink.Accept(producerCtx(), pipeline.NewEvent(i)))
		}
	}
	waitGroupTimeout(t, &wg, 5*time.Second)

	n, err := stats.Count(transition.NewKey(kindProducer, core.KindIO))
	require.NoError(t, err)
	assert.Equal(t, 10, n)
}
