// Package metrics holds the Prometheus collectors reported by the cache
// decorator and the repositories. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "content"

// Metrics groups the collectors registered against one registerer.
type Metrics struct {
	CacheHits          *prometheus.CounterVec
	CacheMisses        *prometheus.CounterVec
	CacheErrors        *prometheus.CounterVec
	CacheInvalidations *prometheus.CounterVec
	TxTotal            *prometheus.CounterVec
	TxDuration         *prometheus.HistogramVec
}

// New registers the collectors with reg. Passing nil uses a private registry,
// which keeps tests and multiple containers from colliding.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		CacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Cacheable repository reads served from the store",
		}, []string{"namespace", "op"}),
		CacheMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Cacheable repository reads that reached the repository",
		}, []string{"namespace", "op"}),
		CacheErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_errors_total",
			Help:      "Store failures degraded to pass-through",
		}, []string{"namespace", "stage"}),
		CacheInvalidations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_invalidations_total",
			Help:      "Tag flushes issued after committed writes",
		}, []string{"table", "outcome"}),
		TxTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "repository_tx_total",
			Help:      "Repository transactions by outcome",
		}, []string{"table", "outcome"}),
		TxDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "repository_tx_duration_seconds",
			Help:      "Repository transaction duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"table"}),
	}
}

func (m *Metrics) CacheHit(ns, op string) {
	if m == nil {
		return
	}
	m.CacheHits.WithLabelValues(ns, op).Inc()
}

func (m *Metrics) CacheMiss(ns, op string) {
	if m == nil {
		return
	}
	m.CacheMisses.WithLabelValues(ns, op).Inc()
}

// CacheError counts a store failure; stage is "get", "decode" or "put".
func (m *Metrics) CacheError(ns, stage string) {
	if m == nil {
		return
	}
	m.CacheErrors.WithLabelValues(ns, stage).Inc()
}

func (m *Metrics) Invalidation(table string, err error) {
	if m == nil {
		return
	}
	m.CacheInvalidations.WithLabelValues(table, outcome(err)).Inc()
}

// Tx records one finished transaction; outcome is "commit", "rollback" or
// "retry".
func (m *Metrics) Tx(table, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.TxTotal.WithLabelValues(table, result).Inc()
	m.TxDuration.WithLabelValues(table).Observe(elapsed.Seconds())
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
