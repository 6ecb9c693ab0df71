package strategy

import (
	"github.com/Swind/go-workqueue/core"
	"github.com/Swind/go-workqueue/transition"
)

// WorkQueueStrategyType names the strategies built by WorkQueueFactory.
const WorkQueueStrategyType = "work-queue"

const defaultNamePrefix = "workqueue"

// WorkQueueFactory builds WorkQueueStrategy instances backed by IO pools from
// a core.PoolProvider. Nothing is acquired until a strategy is started.
type WorkQueueFactory struct {
	provider core.PoolProvider
	registry *transition.Service
	logger   core.Logger
	workers  int

	queueStore string
}

// FactoryOption configures a WorkQueueFactory.
type FactoryOption func(*WorkQueueFactory)

// WithFactoryLogger sets the logger handed to every strategy and instrumenter.
func WithFactoryLogger(l core.Logger) FactoryOption {
	return func(f *WorkQueueFactory) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithWorkers overrides the provider's worker count for the pools requested.
func WithWorkers(n int) FactoryOption {
	return func(f *WorkQueueFactory) { f.workers = n }
}

// WithQueueStore names the backing store of the requested queues. The queue
// itself is always unbounded: Accept never waits and never loses an item to a
// full buffer.
func WithQueueStore(store string) FactoryOption {
	return func(f *WorkQueueFactory) { f.queueStore = store }
}

// NewWorkQueueFactory panics if provider is nil. A nil registry disables
// instrumentation for every strategy created.
func NewWorkQueueFactory(provider core.PoolProvider, registry *transition.Service, opts ...FactoryOption) *WorkQueueFactory {
	if provider == nil {
		panic("WorkQueueFactory: pool provider must not be nil")
	}
	f := &WorkQueueFactory{
		provider: provider,
		registry: registry,
		logger:   core.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create returns a strategy in StateCreated whose pool is named
// namePrefix + ".io".
func (f *WorkQueueFactory) Create(namePrefix string) *WorkQueueStrategy {
	if namePrefix == "" {
		namePrefix = defaultNamePrefix
	}
	cfg := f.PoolConfig(namePrefix)
	supplier := func() (core.ThreadPool, error) {
		return f.provider.Acquire(cfg)
	}
	return NewWorkQueueStrategy(supplier,
		WithName(namePrefix),
		WithLogger(f.logger),
		WithInstrumenter(transition.NewInstrumenter(f.registry, transition.WithLogger(f.logger))),
	)
}

// PoolConfig is the request a strategy created with namePrefix sends to the
// provider. An empty namePrefix means "workqueue".
func (f *WorkQueueFactory) PoolConfig(namePrefix string) core.PoolConfig {
	if namePrefix == "" {
		namePrefix = defaultNamePrefix
	}
	return core.PoolConfig{
		Name:     namePrefix + "." + string(core.KindIO),
		Kind:     core.KindIO,
		MayBlock: true,
		Workers:  f.workers,
		Queue:    core.QueueConfig{Store: f.queueStore, Unbounded: true},
	}
}

// StrategyType returns WorkQueueStrategyType.
func (f *WorkQueueFactory) StrategyType() string {
	return WorkQueueStrategyType
}
