package prometheus

import (
	"time"

	"github.com/Swind/go-workqueue/transition"
	prom "github.com/prometheus/client_golang/prometheus"
)

// SummarySource yields one Summary per transition key. *transition.Statistics is one.
type SummarySource interface {
	Summaries() []transition.Summary
}

// TransitionCollector exports hop latencies as Prometheus summaries labelled
// by the origin and destination kind. Values are computed at scrape time.
type TransitionCollector struct {
	source    SummarySource
	latency   *prom.Desc
	deviation *prom.Desc
}

var _ prom.Collector = (*TransitionCollector)(nil)

// NewTransitionCollector creates and registers a collector over source.
func NewTransitionCollector(namespace string, reg prom.Registerer, source SummarySource) (*TransitionCollector, error) {
	namespace = normalizeLabel(namespace, DefaultNamespace)
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	labels := []string{"from", "to"}
	c := &TransitionCollector{
		source: source,
		latency: prom.NewDesc(
			prom.BuildFQName(namespace, "transition", "latency_seconds"),
			"Time between an event leaving one execution kind and resuming on the next.",
			labels, nil,
		),
		deviation: prom.NewDesc(
			prom.BuildFQName(namespace, "transition", "latency_stddev_seconds"),
			"Sample standard deviation of the transition latency.",
			labels, nil,
		),
	}
	return registerCollector(reg, c)
}

// Describe implements prom.Collector.
func (c *TransitionCollector) Describe(ch chan<- *prom.Desc) {
	ch <- c.latency
	ch <- c.deviation
}

// Collect implements prom.Collector.
func (c *TransitionCollector) Collect(ch chan<- prom.Metric) {
	if c.source == nil {
		return
	}
	for _, sum := range c.source.Summaries() {
		from, to := sum.Key.From.String(), sum.Key.To.String()
		ch <- prom.MustNewConstSummary(c.latency,
			uint64(sum.Count),
			seconds(sum.Mean)*float64(sum.Count),
			map[float64]float64{
				0.5:  seconds(sum.P50),
				0.9:  seconds(sum.P90),
				0.99: seconds(sum.P99),
			},
			from, to,
		)
		ch <- prom.MustNewConstMetric(c.deviation, prom.GaugeValue, seconds(sum.StdDeviation), from, to)
	}
}

func seconds(nanos float64) float64 {
	return nanos / float64(time.Second)
}
