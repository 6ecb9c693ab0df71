package prometheus

import (
	"strings"
	"testing"
	"time"

	"github.com/Swind/go-workqueue/transition"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestTransitionCollector_ExportsSummaries(t *testing.T) {
	stats := transition.NewStatistics()
	for i := 1; i <= 4; i++ {
		stats.Add(transition.Record{From: "producer", To: "worker", Duration: time.Duration(i) * time.Millisecond})
	}
	stats.Add(transition.Record{From: "worker", To: "async-pool", Duration: time.Millisecond})

	reg := prom.NewRegistry()
	if _, err := NewTransitionCollector("workqueue", reg, stats); err != nil {
		t.Fatalf("NewTransitionCollector failed: %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	var latency *dto.MetricFamily
	for _, mf := range families {
		if mf.GetName() == "workqueue_transition_latency_seconds" {
			latency = mf
		}
	}
	if latency == nil {
		t.Fatal("latency family not exported")
	}
	if n := len(latency.GetMetric()); n != 2 {
		t.Fatalf("latency series = %d, want 2", n)
	}

	for _, m := range latency.GetMetric() {
		labels := map[string]string{}
		for _, lp := range m.GetLabel() {
			labels[lp.GetName()] = lp.GetValue()
		}
		if labels["from"] != "producer" || labels["to"] != "worker" {
			continue
		}
		sum := m.GetSummary()
		if sum.GetSampleCount() != 4 {
			t.Fatalf("sample count = %d, want 4", sum.GetSampleCount())
		}
		// 1+2+3+4 ms
		if got := sum.GetSampleSum(); got < 0.0099 || got > 0.0101 {
			t.Fatalf("sample sum = %v, want 0.010", got)
		}
		return
	}
	t.Fatal("producer->worker series missing")
}

func TestTransitionCollector_StdDeviationGauge(t *testing.T) {
	stats := transition.NewStatistics()
	stats.Add(transition.Record{From: "producer", To: "worker", Duration: time.Second})

	reg := prom.NewRegistry()
	if _, err := NewTransitionCollector("workqueue", reg, stats); err != nil {
		t.Fatalf("NewTransitionCollector failed: %v", err)
	}

	expected := `
# HELP workqueue_transition_latency_stddev_seconds Sample standard deviation of the transition latency.
# TYPE workqueue_transition_latency_stddev_seconds gauge
workqueue_transition_latency_stddev_seconds{from="producer",to="worker"} 0
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "workqueue_transition_latency_stddev_seconds"); err != nil {
		t.Fatalf("unexpected stddev output: %v", err)
	}
}

func TestTransitionCollector_EmptyStatistics(t *testing.T) {
	reg := prom.NewRegistry()
	if _, err := NewTransitionCollector("", reg, transition.NewStatistics()); err != nil {
		t.Fatalf("NewTransitionCollector failed: %v", err)
	}
	n, err := testutil.GatherAndCount(reg)
	if err != nil || n != 0 {
		t.Fatalf("series = %d (%v), want 0", n, err)
	}
}
