package config

const (
	defaultWorkers        = 4
	defaultQueueStore     = "memory"
	defaultLogLevel       = "info"
	defaultLogFormat      = "console"
	defaultNamespace      = "workqueue"
	defaultMetricsListen  = "127.0.0.1:9464"
	defaultPollIntervalMS = 1000
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Instrumentation: Instrumentation{Enabled: false},
		Pools: []Pool{
			{Kind: "cpu-light", Workers: defaultWorkers},
			{Kind: "io", Workers: defaultWorkers * 2},
			{Kind: "cpu-intensive", Workers: defaultWorkers},
		},
		Queue: Queue{
			Capacity: 0,
			Store:    defaultQueueStore,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
		Metrics: Metrics{
			Namespace:      defaultNamespace,
			Listen:         defaultMetricsListen,
			PollIntervalMS: defaultPollIntervalMS,
		},
	}
}
