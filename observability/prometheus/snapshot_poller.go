package prometheus

import (
	"context"
	"sync"
	"time"

	"github.com/Swind/go-workqueue/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// PoolStatsSource reports every pool it manages. workqueue.PoolProvider is one.
type PoolStatsSource interface {
	PoolStats() []core.PoolStats
}

// PoolSnapshotProvider provides the stats of a single pool.
type PoolSnapshotProvider interface {
	Stats() core.PoolStats
}

// SnapshotPoller periodically exports pool Stats() snapshots into Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	sourcesMu sync.RWMutex
	sources   []PoolStatsSource
	pools     map[string]PoolSnapshotProvider

	poolQueued        *prom.GaugeVec
	poolActive        *prom.GaugeVec
	poolWorkers       *prom.GaugeVec
	poolRunning       *prom.GaugeVec
	poolRejected      *prom.GaugeVec
	poolQueueCapacity *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(namespace string, reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	namespace = normalizeLabel(namespace, DefaultNamespace)
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	labels := []string{"pool", "kind"}
	gauge := func(name, help string) *prom.GaugeVec {
		return prom.NewGaugeVec(prom.GaugeOpts{Namespace: namespace, Name: name, Help: help}, labels)
	}
	p := &SnapshotPoller{
		interval:          interval,
		pools:             make(map[string]PoolSnapshotProvider),
		poolQueued:        gauge("pool_queued", "Queued tasks per pool."),
		poolActive:        gauge("pool_active", "Active tasks per pool."),
		poolWorkers:       gauge("pool_workers", "Worker count per pool."),
		poolRunning:       gauge("pool_running", "Pool running state (1=running, 0=stopped)."),
		poolRejected:      gauge("pool_rejected_total", "Pool rejected task count snapshot."),
		poolQueueCapacity: gauge("pool_queue_capacity", "Queue capacity per pool (0=unbounded)."),
	}

	for _, vec := range []**prom.GaugeVec{
		&p.poolQueued, &p.poolActive, &p.poolWorkers,
		&p.poolRunning, &p.poolRejected, &p.poolQueueCapacity,
	} {
		registered, err := registerCollector(reg, *vec)
		if err != nil {
			return nil, err
		}
		*vec = registered
	}
	return p, nil
}

// AddSource adds a source whose pools are all exported on every poll.
func (p *SnapshotPoller) AddSource(source PoolStatsSource) {
	if p == nil || source == nil {
		return
	}
	p.sourcesMu.Lock()
	p.sources = append(p.sources, source)
	p.sourcesMu.Unlock()
}

// AddPool adds or replaces a pool snapshot provider by name.
func (p *SnapshotPoller) AddPool(name string, provider PoolSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "pool")
	p.sourcesMu.Lock()
	p.pools[name] = provider
	p.sourcesMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	done := p.done
	p.stateMu.Unlock()

	go p.loop(pollCtx, done)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.CollectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.CollectOnce()
		}
	}
}

// CollectOnce exports the current snapshot of every pool without waiting for a tick.
func (p *SnapshotPoller) CollectOnce() {
	p.sourcesMu.RLock()
	var snapshot []core.PoolStats
	for _, source := range p.sources {
		snapshot = append(snapshot, source.PoolStats()...)
	}
	for name, provider := range p.pools {
		stats := provider.Stats()
		stats.ID = name
		snapshot = append(snapshot, stats)
	}
	p.sourcesMu.RUnlock()

	for _, stats := range snapshot {
		labels := []string{normalizeLabel(stats.ID, "pool"), stats.Kind.String()}
		p.poolQueued.WithLabelValues(labels...).Set(float64(stats.Queued))
		p.poolActive.WithLabelValues(labels...).Set(float64(stats.Active))
		p.poolWorkers.WithLabelValues(labels...).Set(float64(stats.Workers))
		p.poolRejected.WithLabelValues(labels...).Set(float64(stats.Rejected))
		p.poolQueueCapacity.WithLabelValues(labels...).Set(float64(stats.QueueCapacity))
		if stats.Running {
			p.poolRunning.WithLabelValues(labels...).Set(1)
		} else {
			p.poolRunning.WithLabelValues(labels...).Set(0)
		}
	}
}
