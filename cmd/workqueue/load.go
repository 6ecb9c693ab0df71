package main

import (
	"context"
	"fmt"
	"time"

	"github.com/Swind/go-workqueue/core"
	"github.com/Swind/go-workqueue/pipeline"
)

const kindProducer core.ExecutionKind = "producer"

type loadOptions struct {
	work  time.Duration
	async bool
}

// loadProcessors builds the segments every generated event goes through: an
// optional callout completing on a cpu-light pool, then simulated blocking work.
func loadProcessors(rt *runtime, prefix string, opts loadOptions) ([]pipeline.Processor, error) {
	var processors []pipeline.Processor
	if opts.async {
		callout, err := rt.provider.Acquire(core.PoolConfig{
			Name: prefix + ".callout",
			Kind: core.KindCPULight,
		})
		if err != nil {
			return nil, fmt.Errorf("acquire callout pool: %w", err)
		}
		processors = append(processors, pipeline.WithProcessingType(pipeline.CPULiteAsync, pipeline.RunOn(callout)))
	}
	work := opts.work
	processors = append(processors, pipeline.WithProcessingType(pipeline.Blocking,
		pipeline.Map(func(ctx context.Context, ev *pipeline.Event) error {
			if work > 0 {
				time.Sleep(work)
			}
			return nil
		})))
	return processors, nil
}

func producerContext(ctx context.Context) context.Context {
	return core.WithExecutionKind(ctx, kindProducer)
}

func totalRejected(rt *runtime) int64 {
	var n int64
	for _, s := range rt.provider.PoolStats() {
		n += s.Rejected
	}
	return n
}
