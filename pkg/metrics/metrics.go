// Package metrics provides the Prometheus implementation of the cache's
// metrics interfaces, plus pool gauges.
//
// All metrics use the "clipcache_" prefix. Construction is idempotent:
// repeated calls return the registered singleton, so restarting the
// daemon's serving loop never double-registers.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/joshuaramkissoon/clipcache/pkg/cache"
)

// CacheMetrics tracks Prometheus metrics for video resolution and
// transfer activity. Implements cache.CacheMetrics.
type CacheMetrics struct {
	// Resolves counts successful resolutions by serving tier.
	// Labels: tier=[memory, disk, coalesced, transfer]
	Resolves *prometheus.CounterVec

	// ResolveErrors counts failed resolutions by error code.
	// Labels: code=[network, io, preparation, cancelled]
	ResolveErrors *prometheus.CounterVec

	// ResolveDuration tracks end-to-end resolution time by tier.
	ResolveDuration *prometheus.HistogramVec

	// TransfersActive tracks currently running physical transfers.
	TransfersActive prometheus.Gauge

	// TransferDuration tracks physical transfer time by result.
	// Labels: result=[success, failure]
	TransferDuration *prometheus.HistogramVec

	// InFlight tracks the size of the coalescing registry.
	InFlight prometheus.Gauge
}

var (
	cacheMetricsOnce     sync.Once
	cacheMetricsInstance *CacheMetrics
)

// NewCacheMetrics creates and registers cache Prometheus metrics.
// If registerer is nil, prometheus.DefaultRegisterer is used. Idempotent.
func NewCacheMetrics(registerer prometheus.Registerer) *CacheMetrics {
	cacheMetricsOnce.Do(func() {
		if registerer == nil {
			registerer = prometheus.DefaultRegisterer
		}

		m := &CacheMetrics{
			Resolves: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "clipcache_resolves_total",
					Help: "Total successful resolutions by serving tier",
				},
				[]string{"tier"},
			),
			ResolveErrors: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "clipcache_resolve_errors_total",
					Help: "Total failed resolutions by error code",
				},
				[]string{"code"},
			),
			ResolveDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "clipcache_resolve_duration_seconds",
					Help:    "End-to-end resolution duration by serving tier",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"tier"},
			),
			TransfersActive: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "clipcache_transfers_active",
					Help: "Currently running physical transfers",
				},
			),
			TransferDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "clipcache_transfer_duration_seconds",
					Help:    "Physical transfer duration by result",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"result"},
			),
			InFlight: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "clipcache_inflight_transfers",
					Help: "Size of the single-flight coalescing registry",
				},
			),
		}

		registerer.MustRegister(
			m.Resolves,
			m.ResolveErrors,
			m.ResolveDuration,
			m.TransfersActive,
			m.TransferDuration,
			m.InFlight,
		)

		cacheMetricsInstance = m
	})

	return cacheMetricsInstance
}

// ObserveResolve records a successful resolution.
func (m *CacheMetrics) ObserveResolve(tier string, duration time.Duration) {
	if m == nil {
		return
	}
	m.Resolves.WithLabelValues(tier).Inc()
	m.ResolveDuration.WithLabelValues(tier).Observe(duration.Seconds())
}

// ObserveResolveError records a failed resolution.
func (m *CacheMetrics) ObserveResolveError(code cache.ErrorCode) {
	if m == nil {
		return
	}
	m.ResolveErrors.WithLabelValues(code.String()).Inc()
}

// TransferStarted marks one physical transfer as running.
func (m *CacheMetrics) TransferStarted() {
	if m == nil {
		return
	}
	m.TransfersActive.Inc()
}

// TransferFinished marks one physical transfer as done.
func (m *CacheMetrics) TransferFinished(duration time.Duration, success bool) {
	if m == nil {
		return
	}
	m.TransfersActive.Dec()
	result := "success"
	if !success {
		result = "failure"
	}
	m.TransferDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// ObserveInFlight records the coalescing registry size.
func (m *CacheMetrics) ObserveInFlight(count int) {
	if m == nil {
		return
	}
	m.InFlight.Set(float64(count))
}

// RegisterPoolGauges exposes asset and player pool occupancy through
// GaugeFuncs reading the given snapshot functions. If registerer is nil,
// prometheus.DefaultRegisterer is used.
func RegisterPoolGauges(registerer prometheus.Registerer, assetLen func() int, playerFree func() int) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	registerer.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "clipcache_asset_pool_size",
			Help: "Prepared assets currently cached",
		}, func() float64 { return float64(assetLen()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "clipcache_player_pool_free",
			Help: "Idle players in the free list",
		}, func() float64 { return float64(playerFree()) }),
	)
}
