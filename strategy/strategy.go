package strategy

import (
	"context"
	"errors"
	"fmt"

	"github.com/Swind/go-workqueue/core"
	"github.com/Swind/go-workqueue/pipeline"
)

var (
	// ErrNotStarted is returned for events arriving while the strategy holds no pool.
	ErrNotStarted = errors.New("processing strategy not started")
	// ErrTransactionalFlow is returned when an event arrives inside an active transaction.
	ErrTransactionalFlow = errors.New("processing strategy does not support transactional flows")
	// ErrNilEvent is returned by Accept for a nil event.
	ErrNilEvent = errors.New("nil event")
)

// Sink is where producers hand events to a pipeline.
type Sink interface {
	// Accept starts processing ev. It returns once ev is queued, never after
	// the pipeline ran.
	Accept(ctx context.Context, ev *pipeline.Event) error
}

// ProcessingStrategy decides on which pools a pipeline and its segments run.
type ProcessingStrategy interface {
	// CreateSink binds a pipeline built with BuildPipeline to terminal.
	CreateSink(p pipeline.Processor, terminal pipeline.Handler) Sink
	// OnPipeline wraps the whole pipeline.
	OnPipeline(p pipeline.Processor) pipeline.Processor
	// OnProcessor wraps one segment of the pipeline.
	OnProcessor(p pipeline.Processor) pipeline.Processor

	Start() error
	Stop() error
}

// BuildPipeline wraps every segment with s.OnProcessor, chains them in order
// and wraps the chain with s.OnPipeline.
func BuildPipeline(s ProcessingStrategy, processors ...pipeline.Processor) pipeline.Processor {
	wrapped := make([]pipeline.Processor, 0, len(processors))
	for _, p := range processors {
		if p == nil {
			continue
		}
		wrapped = append(wrapped, s.OnProcessor(p))
	}
	return s.OnPipeline(pipeline.Chain(wrapped...))
}

// State is the lifecycle position of a strategy.
type State int

const (
	StateCreated State = iota
	StateStarted
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarted:
		return "started"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type schedulerKeyType struct{}

var schedulerKey schedulerKeyType

func withScheduler(ctx context.Context, pool core.ThreadPool) context.Context {
	return context.WithValue(ctx, schedulerKey, pool)
}

// SchedulerFrom returns the pool a strategy dispatched the current event onto.
func SchedulerFrom(ctx context.Context) (core.ThreadPool, bool) {
	pool, ok := ctx.Value(schedulerKey).(core.ThreadPool)
	return pool, ok && pool != nil
}
