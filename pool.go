package workqueue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Swind/go-workqueue/core"
)

var (
	// ErrProviderClosed is returned by Acquire after Shutdown.
	ErrProviderClosed = errors.New("pool provider is shut down")
	// ErrInvalidPoolConfig is returned by Acquire for an unusable PoolConfig.
	ErrInvalidPoolConfig = errors.New("invalid pool config")
)

const defaultWorkersPerPool = 4

// PoolProvider builds and starts a GoroutineThreadPool for every Acquire call.
// Worker counts are looked up per ExecutionKind; handlers and metrics are shared
// by every pool it creates.
type PoolProvider struct {
	mu             sync.Mutex
	ctx            context.Context
	defaultWorkers int
	workers        map[core.ExecutionKind]int
	queues         map[core.ExecutionKind]core.QueueConfig
	metrics        core.Metrics
	panicHandler   core.PanicHandler
	rejected       core.RejectedTaskHandler
	logger         core.Logger
	pools          []*GoroutineThreadPool
	closed         bool
}

var _ core.PoolProvider = (*PoolProvider)(nil)

// ProviderOption configures a PoolProvider.
type ProviderOption func(*PoolProvider)

// WithDefaultWorkers sets the worker count for kinds without an explicit entry.
func WithDefaultWorkers(n int) ProviderOption {
	return func(p *PoolProvider) {
		if n > 0 {
			p.defaultWorkers = n
		}
	}
}

// WithKindWorkers sets the worker count for pools of kind.
func WithKindWorkers(kind core.ExecutionKind, n int) ProviderOption {
	return func(p *PoolProvider) {
		if n > 0 {
			p.workers[kind] = n
		}
	}
}

// WithKindQueue sets the queue used for pools of kind when the request carries
// none. Requests marked Unbounded keep only its Store.
func WithKindQueue(kind core.ExecutionKind, q core.QueueConfig) ProviderOption {
	return func(p *PoolProvider) {
		p.queues[kind] = q
	}
}

// WithMetrics shares m with every pool the provider builds.
func WithMetrics(m core.Metrics) ProviderOption {
	return func(p *PoolProvider) { p.metrics = m }
}

// WithPanicHandler shares h with every pool the provider builds.
func WithPanicHandler(h core.PanicHandler) ProviderOption {
	return func(p *PoolProvider) { p.panicHandler = h }
}

// WithRejectedTaskHandler shares h with every pool the provider builds.
func WithRejectedTaskHandler(h core.RejectedTaskHandler) ProviderOption {
	return func(p *PoolProvider) { p.rejected = h }
}

// WithLogger sets the logger used by the provider and its default handlers.
func WithLogger(l core.Logger) ProviderOption {
	return func(p *PoolProvider) { p.logger = l }
}

// WithContext sets the parent context handed to pool workers.
func WithContext(ctx context.Context) ProviderOption {
	return func(p *PoolProvider) { p.ctx = ctx }
}

// NewPoolProvider creates a provider. Without options every pool gets
// defaultWorkersPerPool workers and an unbounded queue.
func NewPoolProvider(opts ...ProviderOption) *PoolProvider {
	p := &PoolProvider{
		ctx:            context.Background(),
		defaultWorkers: defaultWorkersPerPool,
		workers:        make(map[core.ExecutionKind]int),
		queues:         make(map[core.ExecutionKind]core.QueueConfig),
		logger:         core.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.metrics == nil {
		p.metrics = &core.NilMetrics{}
	}
	if p.panicHandler == nil {
		p.panicHandler = &core.DefaultPanicHandler{Logger: p.logger}
	}
	if p.rejected == nil {
		p.rejected = &core.DefaultRejectedTaskHandler{Logger: p.logger}
	}
	return p
}

// Acquire builds, starts and returns a new pool for cfg.
func (p *PoolProvider) Acquire(cfg core.PoolConfig) (core.ThreadPool, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("%w: empty pool name", ErrInvalidPoolConfig)
	}
	if cfg.Workers < 0 || cfg.Queue.Capacity < 0 {
		return nil, fmt.Errorf("%w: negative size for pool %q", ErrInvalidPoolConfig, cfg.Name)
	}
	if cfg.Queue.Unbounded && cfg.Queue.Capacity > 0 {
		return nil, fmt.Errorf("%w: unbounded queue with capacity %d for pool %q", ErrInvalidPoolConfig, cfg.Queue.Capacity, cfg.Name)
	}
	if cfg.Kind == "" {
		cfg.Kind = core.KindCustom
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrProviderClosed
	}

	workers := cfg.Workers
	if workers == 0 {
		workers = p.workersFor(cfg.Kind)
	}
	queue := cfg.Queue
	switch {
	case queue.Unbounded:
		if queue.Store == "" {
			queue.Store = p.queues[cfg.Kind].Store
		}
	case queue == (core.QueueConfig{}):
		queue = p.queues[cfg.Kind]
	}

	pool := NewGoroutineThreadPoolWithConfig(cfg.Name, cfg.Kind, workers, &core.TaskSchedulerConfig{
		Name:                cfg.Name,
		QueueCapacity:       queue.Capacity,
		PanicHandler:        p.panicHandler,
		Metrics:             p.metrics,
		RejectedTaskHandler: p.rejected,
	})
	pool.Start(p.ctx)
	p.pools = append(p.pools, pool)

	p.logger.Debug("pool acquired",
		core.F("pool", cfg.Name),
		core.F("kind", cfg.Kind),
		core.F("workers", workers),
		core.F("queue_capacity", queue.Capacity),
		core.F("queue_store", queue.Store),
	)
	return pool, nil
}

func (p *PoolProvider) workersFor(kind core.ExecutionKind) int {
	if n, ok := p.workers[kind]; ok {
		return n
	}
	return p.defaultWorkers
}

// PoolStats returns snapshots of every pool still running, ordered by ID.
func (p *PoolProvider) PoolStats() []core.PoolStats {
	p.mu.Lock()
	live := p.pools[:0]
	for _, pool := range p.pools {
		if pool.IsRunning() {
			live = append(live, pool)
		}
	}
	p.pools = live
	pools := append([]*GoroutineThreadPool(nil), live...)
	p.mu.Unlock()

	stats := make([]core.PoolStats, 0, len(pools))
	for _, pool := range pools {
		stats = append(stats, pool.Stats())
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].ID < stats[j].ID })
	return stats
}

// Shutdown stops every pool handed out and refuses further Acquire calls.
func (p *PoolProvider) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	pools := p.pools
	p.pools = nil
	p.mu.Unlock()

	for _, pool := range pools {
		pool.Stop()
	}
}
