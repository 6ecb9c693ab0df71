package transition

import (
	"context"
	"time"

	"github.com/Swind/go-workqueue/core"
	"github.com/Swind/go-workqueue/pipeline"
)

type pendingKeyType struct{}

var pendingKey pendingKeyType

// Instrumenter measures pool hops. StartTransition goes right before a hop,
// FinishTransition right after it; the Builder in between travels in the
// event's context, so concurrent events on the same hop never share state.
type Instrumenter struct {
	registry Registry
	logger   core.Logger
	now      func() time.Time
}

// InstrumenterOption configures an Instrumenter.
type InstrumenterOption func(*Instrumenter)

// WithLogger sets where unmatched finish marks and dropped records are reported (debug level).
func WithLogger(l core.Logger) InstrumenterOption {
	return func(i *Instrumenter) {
		if l != nil {
			i.logger = l
		}
	}
}

// WithClock replaces time.Now for the instants recorded by the builders.
func WithClock(now func() time.Time) InstrumenterOption {
	return func(i *Instrumenter) {
		if now != nil {
			i.now = now
		}
	}
}

// NewInstrumenter records into reg. A nil or disabled reg yields a disabled Instrumenter.
func NewInstrumenter(reg Registry, opts ...InstrumenterOption) *Instrumenter {
	i := &Instrumenter{logger: core.NewNoOpLogger(), now: time.Now}
	if reg != nil && reg.Enabled() {
		i.registry = reg
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// DisabledInstrumenter returns an Instrumenter whose marks are pass-throughs.
func DisabledInstrumenter() *Instrumenter {
	return NewInstrumenter(nil)
}

// Enabled reports whether marks record anything.
func (i *Instrumenter) Enabled() bool {
	return i != nil && i.registry != nil
}

// StartTransition tags each event's context with a Builder holding the
// current kind and instant. Disabled: Identity.
func (i *Instrumenter) StartTransition() pipeline.Processor {
	if !i.Enabled() {
		return pipeline.Identity()
	}
	return pipeline.StageFunc(func(next pipeline.Handler) pipeline.Handler {
		return func(ctx context.Context, ev *pipeline.Event) {
			b := &Builder{now: i.now}
			b.From(core.ExecutionKindFrom(ctx))
			next(context.WithValue(ctx, pendingKey, b), ev)
		}
	})
}

// FinishTransition completes the Builder left by StartTransition with the
// current kind and instant and submits the record. Disabled: Identity.
func (i *Instrumenter) FinishTransition() pipeline.Processor {
	if !i.Enabled() {
		return pipeline.Identity()
	}
	return pipeline.StageFunc(func(next pipeline.Handler) pipeline.Handler {
		return func(ctx context.Context, ev *pipeline.Event) {
			b, _ := ctx.Value(pendingKey).(*Builder)
			if b == nil {
				i.logger.Debug("transition finish without start",
					core.F("event", ev.ID),
					core.F("kind", core.ExecutionKindFrom(ctx)),
				)
				next(ctx, ev)
				return
			}
			record, err := b.To(core.ExecutionKindFrom(ctx)).Build()
			if err != nil {
				i.logger.Debug("transition record dropped",
					core.F("event", ev.ID),
					core.F("error", err),
				)
			} else {
				i.registry.Add(record)
			}
			next(context.WithValue(ctx, pendingKey, (*Builder)(nil)), ev)
		}
	})
}

// Around wraps hop with a start mark before and a finish mark after it.
func (i *Instrumenter) Around(hop pipeline.Processor) pipeline.Processor {
	return pipeline.Chain(i.StartTransition(), hop, i.FinishTransition())
}
