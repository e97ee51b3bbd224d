// Package metrics provides application-level metrics collection backed by
// Prometheus collectors on a private registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

const namespace = "anchor"

const (
	outcomeSuccess = "success"
	outcomeError   = "error"
)

// Metrics holds the application's collectors.
type Metrics struct {
	registry *prometheus.Registry

	walletOps       *prometheus.CounterVec
	notifications   *prometheus.CounterVec
	providerCalls   *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
	storeOps        *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
}

// New creates a Metrics instance with its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		walletOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wallet",
			Name:      "operations_total",
			Help:      "Wallet session operations segmented by operation, wallet kind and outcome.",
		}, []string{"op", "kind", "outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "published_total",
			Help:      "Notifications published on the bus segmented by severity.",
		}, []string{"severity"}),
		providerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "calls_total",
			Help:      "Lending estimate provider calls segmented by method and outcome.",
		}, []string{"method", "outcome"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "call_duration_seconds",
			Help:      "Latency distribution for lending estimate provider calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		storeOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Persistence store operations segmented by operation and outcome.",
		}, []string{"op", "outcome"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Estimate cache lookups segmented by result.",
		}, []string{"result"}),
	}
	m.registry.MustRegister(
		m.walletOps,
		m.notifications,
		m.providerCalls,
		m.providerLatency,
		m.storeOps,
		m.cacheLookups,
	)
	return m
}

// RecordWalletOp records a wallet session operation such as "connect".
func (m *Metrics) RecordWalletOp(op, kind string, err error) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "none"
	}
	m.walletOps.WithLabelValues(op, kind, outcome(err)).Inc()
}

// RecordNotification records a notification published with severity.
func (m *Metrics) RecordNotification(severity string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(severity).Inc()
}

// RecordProviderCall records a provider call with its duration and outcome.
func (m *Metrics) RecordProviderCall(method string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	m.providerCalls.WithLabelValues(method, outcome(err)).Inc()
	m.providerLatency.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordStoreOp records a persistence store operation.
func (m *Metrics) RecordStoreOp(op string, err error) {
	if m == nil {
		return
	}
	m.storeOps.WithLabelValues(op, outcome(err)).Inc()
}

// RecordCacheHit records an estimate cache hit.
func (m *Metrics) RecordCacheHit() {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues("hit").Inc()
}

// RecordCacheMiss records an estimate cache miss.
func (m *Metrics) RecordCacheMiss() {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}

func outcome(err error) string {
	if err != nil {
		return outcomeError
	}
	return outcomeSuccess
}

// Snapshot is a point-in-time summary of the collectors.
type Snapshot struct {
	WalletOpsTotal         int64
	WalletOpsErrors        int64
	NotificationsTotal     int64
	ProviderCallsTotal     int64
	ProviderErrorsTotal    int64
	ProviderLatencySeconds float64
	StoreOpsTotal          int64
	StoreOpsErrors         int64
	CacheHits              int64
	CacheMisses            int64
}

// Snapshot gathers the registry and folds every series into totals.
func (m *Metrics) Snapshot() Snapshot {
	var snap Snapshot
	families, err := m.registry.Gather()
	if err != nil {
		return snap
	}

	for _, fam := range families {
		for _, metric := range fam.GetMetric() {
			labels := labelMap(metric)
			switch fam.GetName() {
			case "anchor_wallet_operations_total":
				v := int64(metric.GetCounter().GetValue())
				snap.WalletOpsTotal += v
				if labels["outcome"] == outcomeError {
					snap.WalletOpsErrors += v
				}
			case "anchor_notify_published_total":
				snap.NotificationsTotal += int64(metric.GetCounter().GetValue())
			case "anchor_provider_calls_total":
				v := int64(metric.GetCounter().GetValue())
				snap.ProviderCallsTotal += v
				if labels["outcome"] == outcomeError {
					snap.ProviderErrorsTotal += v
				}
			case "anchor_provider_call_duration_seconds":
				snap.ProviderLatencySeconds += metric.GetHistogram().GetSampleSum()
			case "anchor_store_operations_total":
				v := int64(metric.GetCounter().GetValue())
				snap.StoreOpsTotal += v
				if labels["outcome"] == outcomeError {
					snap.StoreOpsErrors += v
				}
			case "anchor_cache_lookups_total":
				v := int64(metric.GetCounter().GetValue())
				if labels["result"] == "hit" {
					snap.CacheHits += v
				} else {
					snap.CacheMisses += v
				}
			}
		}
	}
	return snap
}

func labelMap(metric *dto.Metric) map[string]string {
	labels := make(map[string]string, len(metric.GetLabel()))
	for _, lp := range metric.GetLabel() {
		labels[lp.GetName()] = lp.GetValue()
	}
	return labels
}

// ProviderLatencyAvgMs returns the average provider latency in milliseconds.
// Returns 0 if no calls have been made.
func (s Snapshot) ProviderLatencyAvgMs() float64 {
	if s.ProviderCallsTotal == 0 {
		return 0
	}
	return s.ProviderLatencySeconds / float64(s.ProviderCallsTotal) * 1e3
}

// CacheHitRate returns the cache hit rate as a percentage (0-100).
// Returns 0 if no cache lookups have occurred.
func (s Snapshot) CacheHitRate() float64 {
	total := s.CacheHits + s.CacheMisses
	if total == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(total) * 100
}
