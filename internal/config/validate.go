package config

import (
	"errors"
	"fmt"
	"net"
)

var knownStores = map[string]bool{"memory": true}

// Validate ensures the configuration is usable. Every problem found is reported.
func (c *Config) Validate() error {
	return errors.Join(
		c.validatePools(),
		c.validateQueue(),
		c.validateLogging(),
		c.validateMetrics(),
	)
}

func (c *Config) validatePools() error {
	var errs []error
	seen := make(map[string]bool, len(c.Pools))
	for i, p := range c.Pools {
		if p.Kind == "" {
			errs = append(errs, fmt.Errorf("pools[%d].kind must be set", i))
			continue
		}
		if seen[p.Kind] {
			errs = append(errs, fmt.Errorf("pools[%d].kind %q is listed twice", i, p.Kind))
		}
		seen[p.Kind] = true
		if p.Workers < 0 {
			errs = append(errs, fmt.Errorf("pools[%d].workers must be >= 0", i))
		}
		if p.QueueCapacity < 0 {
			errs = append(errs, fmt.Errorf("pools[%d].queue_capacity must be >= 0", i))
		}
	}
	return errors.Join(errs...)
}

func (c *Config) validateQueue() error {
	var errs []error
	if c.Queue.Capacity < 0 {
		errs = append(errs, errors.New("queue.capacity must be >= 0"))
	}
	if !knownStores[c.Queue.Store] {
		errs = append(errs, fmt.Errorf("queue.store: unsupported value %q", c.Queue.Store))
	}
	return errors.Join(errs...)
}

func (c *Config) validateLogging() error {
	var errs []error
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format))
	}
	return errors.Join(errs...)
}

func (c *Config) validateMetrics() error {
	var errs []error
	if c.Metrics.PollIntervalMS < 0 {
		errs = append(errs, errors.New("metrics.poll_interval_ms must be > 0"))
	}
	if c.Metrics.Listen != "" {
		if _, _, err := net.SplitHostPort(c.Metrics.Listen); err != nil {
			errs = append(errs, fmt.Errorf("metrics.listen: %w", err))
		}
	}
	return errors.Join(errs...)
}
