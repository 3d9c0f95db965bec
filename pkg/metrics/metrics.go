// Package metrics is a thin Prometheus abstraction so corert components can
// report counters and gauges with or without a registry wired in. When no
// registry is configured, a no-op Sink is used and the hot paths do not pay
// for label lookups.
//
// Grounded on the teacher's (Voskan/arena-cache) pkg/metrics.go
// metricsSink/noopMetrics/promMetrics trio, generalized from per-shard
// cache counters to the surface spec.md names across queues, the data
// cache, subsystems, and the resource manager.
//
// © 2025 corert authors. MIT License.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Sink is the abstraction every corert component reports through. It is
// satisfied by both Noop and a Prometheus-backed implementation.
type Sink interface {
	IncQueueEnqueue(queue string)
	IncQueueDequeue(queue string)
	IncQueueAborted(queue string)
	SetQueueDepth(queue string, depth int64)

	IncCacheHit(cache string)
	IncCacheMiss(cache string)
	IncCacheEviction(cache string)

	IncSubsystemTick(subsystem string)
	ObserveSubsystemTickSeconds(subsystem string, seconds float64)

	IncResourceLoad(loader string)
	IncResourceLoadError(loader string)
	IncResourceLoadShared(loader string)
	SetResourcePending(n int64)
	SetResourceCacheSize(n int64)
}

// noopSink discards every observation.
type noopSink struct{}

func (noopSink) IncQueueEnqueue(string)                       {}
func (noopSink) IncQueueDequeue(string)                       {}
func (noopSink) IncQueueAborted(string)                       {}
func (noopSink) SetQueueDepth(string, int64)                  {}
func (noopSink) IncCacheHit(string)                           {}
func (noopSink) IncCacheMiss(string)                          {}
func (noopSink) IncCacheEviction(string)                      {}
func (noopSink) IncSubsystemTick(string)                      {}
func (noopSink) ObserveSubsystemTickSeconds(string, float64)  {}
func (noopSink) IncResourceLoad(string)                       {}
func (noopSink) IncResourceLoadError(string)                  {}
func (noopSink) IncResourceLoadShared(string)                 {}
func (noopSink) SetResourcePending(int64)                     {}
func (noopSink) SetResourceCacheSize(int64)                   {}

// Nop returns the shared no-op Sink.
func Nop() Sink { return noopSink{} }

// promSink implements Sink on top of client_golang vectors, registered
// under the "corert" namespace.
type promSink struct {
	queueEnqueue *prometheus.CounterVec
	queueDequeue *prometheus.CounterVec
	queueAborted *prometheus.CounterVec
	queueDepth   *prometheus.GaugeVec

	cacheHits      *prometheus.CounterVec
	cacheMisses    *prometheus.CounterVec
	cacheEvictions *prometheus.CounterVec

	subsystemTicks    *prometheus.CounterVec
	subsystemTickSecs *prometheus.HistogramVec

	resourceLoads       *prometheus.CounterVec
	resourceLoadErrors  *prometheus.CounterVec
	resourceLoadsShared *prometheus.CounterVec
	resourcePending     prometheus.Gauge
	resourceCacheSize   prometheus.Gauge
}

// NewProm constructs a Prometheus-backed Sink and registers its collectors
// against reg.
func NewProm(reg prometheus.Registerer) Sink {
	label := []string{"name"}
	loaderLabel := []string{"loader"}

	p := &promSink{
		queueEnqueue: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "corert", Subsystem: "queue", Name: "enqueue_total",
			Help: "Number of values enqueued.",
		}, label),
		queueDequeue: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "corert", Subsystem: "queue", Name: "dequeue_total",
			Help: "Number of values dequeued.",
		}, label),
		queueAborted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "corert", Subsystem: "queue", Name: "aborted_total",
			Help: "Number of times a queue was aborted.",
		}, label),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "corert", Subsystem: "queue", Name: "depth",
			Help: "Current queue size.",
		}, label),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "corert", Subsystem: "cache", Name: "hits_total",
			Help: "Number of cache hits.",
		}, label),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "corert", Subsystem: "cache", Name: "misses_total",
			Help: "Number of cache misses.",
		}, label),
		cacheEvictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "corert", Subsystem: "cache", Name: "evictions_total",
			Help: "Number of explicit cache evictions.",
		}, label),
		subsystemTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "corert", Subsystem: "subsystem", Name: "ticks_total",
			Help: "Number of on_tick invocations.",
		}, label),
		subsystemTickSecs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "corert", Subsystem: "subsystem", Name: "tick_seconds",
			Help:    "Wall time spent inside on_tick.",
			Buckets: prometheus.DefBuckets,
		}, label),
		resourceLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "corert", Subsystem: "resource", Name: "loads_total",
			Help: "Number of loader invocations, by loader name.",
		}, loaderLabel),
		resourceLoadErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "corert", Subsystem: "resource", Name: "load_errors_total",
			Help: "Number of failed loader invocations, by loader name.",
		}, loaderLabel),
		resourceLoadsShared: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "corert", Subsystem: "resource", Name: "loads_shared_total",
			Help: "Number of async loads that observed a shared in-flight result.",
		}, loaderLabel),
		resourcePending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "corert", Subsystem: "resource", Name: "pending_tasks",
			Help: "Number of scheduled-but-unfinished resource manager tasks.",
		}),
		resourceCacheSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "corert", Subsystem: "resource", Name: "cache_size",
			Help: "Number of cached resource handles.",
		}),
	}

	reg.MustRegister(
		p.queueEnqueue, p.queueDequeue, p.queueAborted, p.queueDepth,
		p.cacheHits, p.cacheMisses, p.cacheEvictions,
		p.subsystemTicks, p.subsystemTickSecs,
		p.resourceLoads, p.resourceLoadErrors, p.resourceLoadsShared,
		p.resourcePending, p.resourceCacheSize,
	)
	return p
}

func (p *promSink) IncQueueEnqueue(queue string) { p.queueEnqueue.WithLabelValues(queue).Inc() }
func (p *promSink) IncQueueDequeue(queue string) { p.queueDequeue.WithLabelValues(queue).Inc() }
func (p *promSink) IncQueueAborted(queue string) { p.queueAborted.WithLabelValues(queue).Inc() }
func (p *promSink) SetQueueDepth(queue string, depth int64) {
	p.queueDepth.WithLabelValues(queue).Set(float64(depth))
}

func (p *promSink) IncCacheHit(cache string)      { p.cacheHits.WithLabelValues(cache).Inc() }
func (p *promSink) IncCacheMiss(cache string)     { p.cacheMisses.WithLabelValues(cache).Inc() }
func (p *promSink) IncCacheEviction(cache string) { p.cacheEvictions.WithLabelValues(cache).Inc() }

func (p *promSink) IncSubsystemTick(subsystem string) {
	p.subsystemTicks.WithLabelValues(subsystem).Inc()
}
func (p *promSink) ObserveSubsystemTickSeconds(subsystem string, seconds float64) {
	p.subsystemTickSecs.WithLabelValues(subsystem).Observe(seconds)
}

func (p *promSink) IncResourceLoad(loader string)      { p.resourceLoads.WithLabelValues(loader).Inc() }
func (p *promSink) IncResourceLoadError(loader string) { p.resourceLoadErrors.WithLabelValues(loader).Inc() }
func (p *promSink) IncResourceLoadShared(loader string) {
	p.resourceLoadsShared.WithLabelValues(loader).Inc()
}
func (p *promSink) SetResourcePending(n int64)   { p.resourcePending.Set(float64(n)) }
func (p *promSink) SetResourceCacheSize(n int64) { p.resourceCacheSize.Set(float64(n)) }
