package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	workqueue "github.com/Swind/go-workqueue"
	"github.com/Swind/go-workqueue/core"
	"github.com/Swind/go-workqueue/transition"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// EnvInstrumentation overrides instrumentation.enabled when set.
const EnvInstrumentation = "WORKQUEUE_INSTRUMENTATION"

// Instrumentation toggles hop latency recording.
type Instrumentation struct {
	Enabled bool `toml:"enabled" yaml:"enabled"`
}

// Pool sizes the pools built for one execution kind.
type Pool struct {
	Kind          string `toml:"kind" yaml:"kind"`
	Workers       int    `toml:"workers" yaml:"workers"`
	QueueCapacity int    `toml:"queue_capacity" yaml:"queue_capacity"`
}

// Queue is the queue requested for pools whose [[pools]] entry sets no capacity.
type Queue struct {
	Capacity int    `toml:"capacity" yaml:"capacity"`
	Store    string `toml:"store" yaml:"store"`
}

// Logging contains configuration for log output.
type Logging struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
}

// Metrics contains configuration for the Prometheus endpoint.
type Metrics struct {
	Namespace      string `toml:"namespace" yaml:"namespace"`
	Listen         string `toml:"listen" yaml:"listen"`
	PollIntervalMS int    `toml:"poll_interval_ms" yaml:"poll_interval_ms"`
}

// Config encapsulates all configuration values for the workqueue runtime.
type Config struct {
	Instrumentation Instrumentation `toml:"instrumentation" yaml:"instrumentation"`
	Pools           []Pool          `toml:"pools" yaml:"pools"`
	Queue           Queue           `toml:"queue" yaml:"queue"`
	Logging         Logging         `toml:"logging" yaml:"logging"`
	Metrics         Metrics         `toml:"metrics" yaml:"metrics"`
}

// Format is a configuration file syntax.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// FormatFor picks the syntax from the file extension. Unknown extensions are TOML.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatTOML
	}
}

// Load reads path over Default, applies the environment override, normalizes
// and validates. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path = strings.TrimSpace(path); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// A file listing pools replaces the default pool list
		cfg.Pools = nil
		if err := Decode(data, FormatFor(path), &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Decode parses data in the given format into cfg, keeping fields the data omits.
func Decode(data []byte, format Format, cfg *Config) error {
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		return nil
	case FormatTOML, "":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		return dec.Decode(cfg)
	default:
		return fmt.Errorf("unsupported config format %q", format)
	}
}

// Encode writes c to w in the given format.
func (c *Config) Encode(w io.Writer, format Format) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(c); err != nil {
			return err
		}
		return enc.Close()
	case FormatTOML, "":
		return toml.NewEncoder(w).Encode(c)
	default:
		return fmt.Errorf("unsupported config format %q", format)
	}
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	raw, ok := lookup(EnvInstrumentation)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	enabled, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%s: %w", EnvInstrumentation, err)
	}
	c.Instrumentation.Enabled = enabled
	return nil
}

func (c *Config) normalize() {
	for i := range c.Pools {
		c.Pools[i].Kind = strings.ToLower(strings.TrimSpace(c.Pools[i].Kind))
	}
	if strings.TrimSpace(c.Queue.Store) == "" {
		c.Queue.Store = defaultQueueStore
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	if strings.TrimSpace(c.Metrics.Namespace) == "" {
		c.Metrics.Namespace = defaultNamespace
	}
	if c.Metrics.PollIntervalMS == 0 {
		c.Metrics.PollIntervalMS = defaultPollIntervalMS
	}
}

// InstrumentationMode is the flag handed to transition.NewService.
func (c *Config) InstrumentationMode() transition.Instrumentation {
	if c.Instrumentation.Enabled {
		return transition.InstrumentationEnabled
	}
	return transition.InstrumentationDisabled
}

// PollInterval is the snapshot poller period.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Metrics.PollIntervalMS) * time.Millisecond
}

// SlogLevel maps logging.level to a slog level.
func (l Logging) SlogLevel() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ProviderOptions turns the pool sections into options for workqueue.NewPoolProvider.
func (c *Config) ProviderOptions() []workqueue.ProviderOption {
	opts := make([]workqueue.ProviderOption, 0, 2*len(c.Pools))
	for _, p := range c.Pools {
		kind := core.ExecutionKind(p.Kind)
		if p.Workers > 0 {
			opts = append(opts, workqueue.WithKindWorkers(kind, p.Workers))
		}
		capacity := p.QueueCapacity
		if capacity == 0 {
			capacity = c.Queue.Capacity
		}
		opts = append(opts, workqueue.WithKindQueue(kind, core.QueueConfig{Capacity: capacity, Store: c.Queue.Store}))
	}
	return opts
}
