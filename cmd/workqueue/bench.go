package main

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/Swind/go-workqueue/internal/config"
	"github.com/Swind/go-workqueue/pipeline"
	"github.com/Swind/go-workqueue/strategy"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type benchOptions struct {
	load       loadOptions
	items      int
	producers  int
	instrument bool
	format     string
}

func newBenchCommand(ctx *commandContext) *cobra.Command {
	opts := benchOptions{items: 10000, producers: 4, format: "table"}

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Push events through an instrumented pipeline and report hop latencies",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("instrument") {
				override := *cfg
				override.Instrumentation.Enabled = opts.instrument
				cfg = &override
			}
			return runBench(cmd.Context(), cfg, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVarP(&opts.items, "items", "n", opts.items, "Number of events to generate")
	cmd.Flags().IntVarP(&opts.producers, "producers", "p", opts.producers, "Concurrent producer goroutines")
	cmd.Flags().DurationVar(&opts.load.work, "work", 0, "Simulated blocking work per event")
	cmd.Flags().BoolVar(&opts.load.async, "async", false, "Add a callout completing on a cpu-light pool")
	cmd.Flags().BoolVar(&opts.instrument, "instrument", true, "Override instrumentation.enabled")
	cmd.Flags().StringVar(&opts.format, "format", opts.format, "Report format: table, csv, markdown")
	return cmd
}

func runBench(ctx context.Context, cfg *config.Config, opts benchOptions, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.items <= 0 || opts.producers <= 0 {
		return fmt.Errorf("items and producers must be positive")
	}

	rt, err := newRuntime(cfg, prom.NewRegistry(), stderrLogger(cfg))
	if err != nil {
		return err
	}
	defer rt.close()

	s := rt.factory.Create("bench")
	if err := s.Start(); err != nil {
		return err
	}
	defer s.Stop()

	processors, err := loadProcessors(rt, "bench", opts.load)
	if err != nil {
		return err
	}

	var delivered, failed atomic.Int64
	sink := s.CreateSink(strategy.BuildPipeline(s, processors...), func(ctx context.Context, ev *pipeline.Event) {
		if ev.Failed() {
			failed.Add(1)
		}
		delivered.Add(1)
	})

	started := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for _, n := range split(opts.items, opts.producers) {
		g.Go(func() error {
			pctx := producerContext(gctx)
			for i := range n {
				if err := gctx.Err(); err != nil {
					return err
				}
				if err := sink.Accept(pctx, pipeline.NewEvent(i)); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("produce: %w", err)
	}

	// Rejected posts never reach the terminal
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for delivered.Load()+totalRejected(rt) < int64(opts.items) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	elapsed := time.Since(started)

	fmt.Fprintf(out, "%d events in %s (%.0f/s), %d failed, %d rejected\n",
		delivered.Load(), elapsed.Round(time.Millisecond),
		float64(delivered.Load())/elapsed.Seconds(), failed.Load(), totalRejected(rt))

	if !rt.registry.Enabled() {
		fmt.Fprintln(out, "instrumentation disabled; no transition report")
		return nil
	}
	return writeReport(out, rt.stats.Summaries(), opts.format)
}

// split spreads items over n producers as evenly as possible.
func split(items, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = items / n
		if i < items%n {
			out[i]++
		}
	}
	return out
}
