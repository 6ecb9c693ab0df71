package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Swind/go-workqueue/core"
	"github.com/Swind/go-workqueue/internal/config"
	obs "github.com/Swind/go-workqueue/observability/prometheus"
	"github.com/Swind/go-workqueue/pipeline"
	"github.com/Swind/go-workqueue/strategy"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type serveOptions struct {
	load   loadOptions
	listen string
	rate   int
}

func newServeCommand(ctx *commandContext) *cobra.Command {
	opts := serveOptions{rate: 100}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a steady event load and expose metrics for Prometheus",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(runCtx, cfg, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.listen, "listen", "", "Metrics listen address (default metrics.listen)")
	cmd.Flags().IntVar(&opts.rate, "rate", opts.rate, "Events generated per second")
	cmd.Flags().DurationVar(&opts.load.work, "work", time.Millisecond, "Simulated blocking work per event")
	cmd.Flags().BoolVar(&opts.load.async, "async", false, "Add a callout completing on a cpu-light pool")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, opts serveOptions, out io.Writer) error {
	if opts.rate <= 0 {
		return fmt.Errorf("rate must be positive")
	}
	listen := opts.listen
	if listen == "" {
		listen = cfg.Metrics.Listen
	}

	logger := stderrLogger(cfg)
	reg := prom.NewRegistry()
	rt, err := newRuntime(cfg, reg, logger)
	if err != nil {
		return err
	}
	defer rt.close()

	poller, err := obs.NewSnapshotPoller(cfg.Metrics.Namespace, reg, cfg.PollInterval())
	if err != nil {
		return fmt.Errorf("register pool snapshots: %w", err)
	}
	poller.AddSource(rt.provider)
	if _, err := obs.NewTransitionCollector(cfg.Metrics.Namespace, reg, rt.stats); err != nil {
		return fmt.Errorf("register transition collector: %w", err)
	}

	s := rt.factory.Create("serve")
	if err := s.Start(); err != nil {
		return err
	}
	defer s.Stop()

	processors, err := loadProcessors(rt, "serve", opts.load)
	if err != nil {
		return err
	}
	sink := s.CreateSink(strategy.BuildPipeline(s, processors...), nil)

	poller.Start(ctx)
	defer poller.Stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return fmt.Errorf("metrics listen %s: %w", listen, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return generateLoad(gctx, sink, opts.rate, logger)
	})

	fmt.Fprintf(out, "Prometheus endpoint is up at http://%s/metrics (instrumentation %s)\n",
		ln.Addr(), cfg.InstrumentationMode())
	return g.Wait()
}

// generateLoad accepts rate events per second until ctx is done.
func generateLoad(ctx context.Context, sink strategy.Sink, rate int, logger core.Logger) error {
	interval := time.Second / time.Duration(rate)
	if interval <= 0 {
		interval = time.Nanosecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	pctx := producerContext(ctx)
	var seq int
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := sink.Accept(pctx, pipeline.NewEvent(seq)); err != nil {
				logger.Warn("event not accepted", core.F("seq", seq), core.F("error", err))
			}
			seq++
		}
	}
}
