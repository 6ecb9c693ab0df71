package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	workqueue "github.com/Swind/go-workqueue"
	"github.com/Swind/go-workqueue/core"
	"github.com/Swind/go-workqueue/internal/config"
	obs "github.com/Swind/go-workqueue/observability/prometheus"
	"github.com/Swind/go-workqueue/strategy"
	"github.com/Swind/go-workqueue/transition"
	prom "github.com/prometheus/client_golang/prometheus"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.Load(path)
		if err != nil {
			c.configErr = fmt.Errorf("load config: %w", err)
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func newLogger(cfg config.Logging, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// runtime is the object graph shared by bench and serve.
type runtime struct {
	logger   core.Logger
	provider *workqueue.PoolProvider
	stats    *transition.Statistics
	registry *transition.Service
	factory  *strategy.WorkQueueFactory
}

func newRuntime(cfg *config.Config, reg prom.Registerer, logger core.Logger) (*runtime, error) {
	exporter, err := obs.NewMetricsExporter(cfg.Metrics.Namespace, reg, obs.ExporterOptions{})
	if err != nil {
		return nil, fmt.Errorf("register pool metrics: %w", err)
	}

	opts := append(cfg.ProviderOptions(),
		workqueue.WithMetrics(exporter),
		workqueue.WithLogger(logger),
	)
	provider := workqueue.NewPoolProvider(opts...)

	stats := transition.NewStatistics()
	registry := transition.NewService(cfg.InstrumentationMode(), stats)

	return &runtime{
		logger:   logger,
		provider: provider,
		stats:    stats,
		registry: registry,
		factory:  strategy.NewWorkQueueFactory(provider, registry, strategy.WithFactoryLogger(logger)),
	}, nil
}

func (r *runtime) close() {
	r.provider.Shutdown()
}

func stderrLogger(cfg *config.Config) core.Logger {
	return core.NewSlogLogger(newLogger(cfg.Logging, os.Stderr))
}
