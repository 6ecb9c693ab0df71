package pipeline

import (
	"context"
	"fmt"

	"github.com/Swind/go-workqueue/core"
)

// ProcessingType declares what a segment needs from the goroutine running it.
type ProcessingType int

const (
	// CPULite segments are short and non-blocking; they run wherever the event is.
	CPULite ProcessingType = iota
	// CPULiteAsync segments complete off the calling goroutine and hand control
	// back asynchronously, so whatever follows them needs a pool hop.
	CPULiteAsync
	// Blocking segments may block on IO.
	Blocking
	// IORW segments read or write files and sockets.
	IORW
	// CPUIntensive segments do heavy computation.
	CPUIntensive
)

func (t ProcessingType) String() string {
	switch t {
	case CPULite:
		return "CPU_LITE"
	case CPULiteAsync:
		return "CPU_LITE_ASYNC"
	case Blocking:
		return "BLOCKING"
	case IORW:
		return "IO_RW"
	case CPUIntensive:
		return "CPU_INTENSIVE"
	default:
		return fmt.Sprintf("ProcessingType(%d)", int(t))
	}
}

// Processor is one pipeline segment.
type Processor interface {
	// Apply returns a Handler that performs this segment and then calls next.
	Apply(next Handler) Handler
	ProcessingType() ProcessingType
}

// StageFunc adapts a function to a CPULite Processor.
type StageFunc func(next Handler) Handler

func (f StageFunc) Apply(next Handler) Handler     { return f(next) }
func (f StageFunc) ProcessingType() ProcessingType { return CPULite }

type typedProcessor struct {
	Processor
	typ ProcessingType
}

func (p typedProcessor) ProcessingType() ProcessingType { return p.typ }

// WithProcessingType returns p declaring typ instead of its own processing type.
func WithProcessingType(typ ProcessingType, p Processor) Processor {
	return typedProcessor{Processor: p, typ: typ}
}

type identity struct{}

func (identity) Apply(next Handler) Handler     { return next }
func (identity) ProcessingType() ProcessingType { return CPULite }

// Identity returns a Processor that adds nothing between the previous and next Handler.
func Identity() Processor {
	return identity{}
}

// IsIdentity reports whether p is the Processor returned by Identity.
func IsIdentity(p Processor) bool {
	_, ok := p.(identity)
	return ok
}

// Apply binds p to terminal. A nil terminal discards events.
func Apply(p Processor, terminal Handler) Handler {
	if terminal == nil {
		terminal = Discard
	}
	if p == nil {
		return terminal
	}
	return p.Apply(terminal)
}

// Chain composes processors so events visit them in argument order.
// Identity processors are dropped.
func Chain(processors ...Processor) Processor {
	kept := make([]Processor, 0, len(processors))
	for _, p := range processors {
		if p == nil || IsIdentity(p) {
			continue
		}
		kept = append(kept, p)
	}
	switch len(kept) {
	case 0:
		return Identity()
	case 1:
		return kept[0]
	}
	return StageFunc(func(next Handler) Handler {
		for i := len(kept) - 1; i >= 0; i-- {
			next = kept[i].Apply(next)
		}
		return next
	})
}

// Map runs fn on every event that has not failed yet. A returned error is
// stored on the event and the event keeps flowing.
func Map(fn func(ctx context.Context, ev *Event) error) Processor {
	return StageFunc(func(next Handler) Handler {
		return func(ctx context.Context, ev *Event) {
			if !ev.Failed() {
				if err := fn(ctx, ev); err != nil {
					ev.Err = err
				}
			}
			next(ctx, ev)
		}
	})
}

// OnEach runs fn as a side effect for every event, failed or not.
func OnEach(fn func(ctx context.Context, ev *Event)) Processor {
	return StageFunc(func(next Handler) Handler {
		return func(ctx context.Context, ev *Event) {
			fn(ctx, ev)
			next(ctx, ev)
		}
	})
}

// WithValue makes val visible under key to every downstream segment.
func WithValue(key, val any) Processor {
	return StageFunc(func(next Handler) Handler {
		return func(ctx context.Context, ev *Event) {
			next(context.WithValue(ctx, key, val), ev)
		}
	})
}

// RunOn posts the rest of the chain to exec, one task per event. The caller
// returns as soon as the task is queued.
func RunOn(exec core.Executor) Processor {
	return RunOnTraits(exec, core.DefaultTaskTraits())
}

// RunOnTraits is RunOn with explicit task traits.
func RunOnTraits(exec core.Executor, traits core.TaskTraits) Processor {
	return StageFunc(func(next Handler) Handler {
		return func(ctx context.Context, ev *Event) {
			exec.PostInternal(func(workerCtx context.Context) {
				next(Resume(ctx, workerCtx), ev)
			}, traits)
		}
	})
}

// Resume returns the context an event continues with after hopping onto a
// worker: the event's own values, the worker's execution kind and worker ID,
// and no cancellation inherited from the producer.
func Resume(itemCtx, workerCtx context.Context) context.Context {
	ctx := context.WithoutCancel(itemCtx)
	ctx = core.WithExecutionKind(ctx, core.ExecutionKindFrom(workerCtx))
	if id := core.WorkerIDFrom(workerCtx); id >= 0 {
		ctx = core.WithWorkerID(ctx, id)
	}
	return ctx
}
