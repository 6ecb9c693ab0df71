package strategy

import (
	"context"
	"fmt"
	"sync"

	"github.com/Swind/go-workqueue/core"
	"github.com/Swind/go-workqueue/pipeline"
	"github.com/Swind/go-workqueue/transition"
)

// PoolSupplier produces the pool a strategy dispatches onto. It is called on Start.
type PoolSupplier func() (core.ThreadPool, error)

// WorkQueueStrategy dispatches every event onto a pool of workers through the
// pool's queue. The producer only pays for the enqueue.
//
// Segments declaring pipeline.CPULiteAsync hop back onto the pool once they
// hand control back, so nothing after them runs on the goroutine that
// completed them. Every hop is measured by the Instrumenter.
type WorkQueueStrategy struct {
	name         string
	supplier     PoolSupplier
	instrumenter *transition.Instrumenter
	logger       core.Logger
	traits       core.TaskTraits

	// lifecycleMu serializes Start and Stop; poolMu guards reads from the hot path.
	lifecycleMu sync.Mutex
	poolMu      sync.RWMutex
	pool        core.ThreadPool
	state       State
}

var _ ProcessingStrategy = (*WorkQueueStrategy)(nil)

// Option configures a WorkQueueStrategy.
type Option func(*WorkQueueStrategy)

// WithInstrumenter measures every hop with instr.
func WithInstrumenter(instr *transition.Instrumenter) Option {
	return func(s *WorkQueueStrategy) {
		if instr != nil {
			s.instrumenter = instr
		}
	}
}

// WithLogger sets the lifecycle logger.
func WithLogger(l core.Logger) Option {
	return func(s *WorkQueueStrategy) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithName labels log lines of this strategy.
func WithName(name string) Option {
	return func(s *WorkQueueStrategy) { s.name = name }
}

// NewWorkQueueStrategy creates a strategy in StateCreated. The supplier is not
// called until Start. Panics if supplier is nil.
func NewWorkQueueStrategy(supplier PoolSupplier, opts ...Option) *WorkQueueStrategy {
	if supplier == nil {
		panic("WorkQueueStrategy: pool supplier must not be nil")
	}
	s := &WorkQueueStrategy{
		name:         WorkQueueStrategyType,
		supplier:     supplier,
		instrumenter: transition.DisabledInstrumenter(),
		logger:       core.NewNoOpLogger(),
		traits:       core.TraitsMayBlock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start acquires the pool. A supplier failure is returned as is, wrapped, and
// leaves the strategy without a pool.
func (s *WorkQueueStrategy) Start() error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if s.State() == StateStarted {
		return nil
	}

	pool, err := s.supplier()
	if err == nil && pool == nil {
		err = fmt.Errorf("supplier returned no pool")
	}
	if err != nil {
		s.logger.Error("work queue strategy failed to start", core.F("strategy", s.name), core.F("error", err))
		return fmt.Errorf("start %s: %w", s.name, err)
	}

	s.poolMu.Lock()
	s.pool = pool
	s.state = StateStarted
	s.poolMu.Unlock()

	s.logger.Info("work queue strategy started",
		core.F("strategy", s.name),
		core.F("pool", pool.ID()),
		core.F("kind", pool.Kind()),
		core.F("instrumentation", s.instrumenter.Enabled()),
	)
	return nil
}

// Stop stops the pool if one was acquired. Calling it again, or before Start,
// does nothing. What happens to events still queued is up to the pool.
func (s *WorkQueueStrategy) Stop() error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	s.poolMu.Lock()
	pool := s.pool
	s.pool = nil
	if s.state == StateStarted {
		s.state = StateStopped
	}
	s.poolMu.Unlock()

	if pool == nil {
		return nil
	}
	// Outside poolMu: workers finishing their tasks may still read the pool
	pool.Stop()
	s.logger.Info("work queue strategy stopped", core.F("strategy", s.name), core.F("pool", pool.ID()))
	return nil
}

// State returns the lifecycle state.
func (s *WorkQueueStrategy) State() State {
	s.poolMu.RLock()
	defer s.poolMu.RUnlock()
	return s.state
}

// Pool returns the pool currently held, nil when not started.
func (s *WorkQueueStrategy) Pool() core.ThreadPool {
	s.poolMu.RLock()
	defer s.poolMu.RUnlock()
	return s.pool
}

// CreateSink returns a sink running p's head on the producer goroutine for
// each event. With p built by BuildPipeline the head is the pool hop.
func (s *WorkQueueStrategy) CreateSink(p pipeline.Processor, terminal pipeline.Handler) Sink {
	return &perEventSink{strategy: s, handler: pipeline.Apply(p, terminal)}
}

// OnPipeline returns: start mark, hop onto the pool, finish mark, p.
// Downstream segments find the pool with SchedulerFrom.
func (s *WorkQueueStrategy) OnPipeline(p pipeline.Processor) pipeline.Processor {
	return pipeline.Chain(s.instrumentedHop(), p)
}

// OnProcessor re-dispatches after CPULiteAsync segments and leaves every
// other segment as is.
func (s *WorkQueueStrategy) OnProcessor(p pipeline.Processor) pipeline.Processor {
	if p.ProcessingType() != pipeline.CPULiteAsync {
		return p
	}
	return pipeline.Chain(p, s.instrumentedHop())
}

func (s *WorkQueueStrategy) instrumentedHop() pipeline.Processor {
	return s.instrumenter.Around(s.dispatch())
}

// dispatch posts the rest of the chain to the current pool. Without a pool the
// event continues inline carrying ErrNotStarted.
func (s *WorkQueueStrategy) dispatch() pipeline.Processor {
	return pipeline.StageFunc(func(next pipeline.Handler) pipeline.Handler {
		return func(ctx context.Context, ev *pipeline.Event) {
			pool := s.Pool()
			if pool == nil {
				s.logger.Warn("event reached a stopped work queue strategy",
					core.F("strategy", s.name),
					core.F("event", ev.ID),
				)
				if ev.Err == nil {
					ev.Err = ErrNotStarted
				}
				next(ctx, ev)
				return
			}
			hop := pipeline.RunOnTraits(pool, s.traits)
			pipeline.Apply(hop, next)(withScheduler(ctx, pool), ev)
		}
	})
}

type perEventSink struct {
	strategy *WorkQueueStrategy
	handler  pipeline.Handler
}

func (k *perEventSink) Accept(ctx context.Context, ev *pipeline.Event) error {
	if ev == nil {
		return ErrNilEvent
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if pipeline.InTransaction(ctx) {
		return ErrTransactionalFlow
	}
	if k.strategy.Pool() == nil {
		return ErrNotStarted
	}
	if ev.ID.IsZero() {
		ev.ID = core.GenerateTaskID()
	}
	k.handler(ctx, ev)
	return nil
}
