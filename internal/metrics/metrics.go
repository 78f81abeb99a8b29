// Package metrics exposes Prometheus instruments for the investment core.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "vidvest"

// Metrics groups the collectors recorded by the services. All methods are
// safe to call on a nil *Metrics.
type Metrics struct {
	statsFetches       *prometheus.CounterVec
	statsFetchDuration *prometheus.HistogramVec
	snapshotLookups    *prometheus.CounterVec
	investments        *prometheus.CounterVec
	refreshedVideos    *prometheus.CounterVec
	refreshTasks       *prometheus.CounterVec
	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// Default returns the process-wide metrics registered on the default registerer.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = New(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// New creates and registers a fresh set of collectors.
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		statsFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stats_fetches_total",
			Help:      "External engagement fetches by platform and result.",
		}, []string{"platform", "result"}),
		statsFetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stats_fetch_duration_seconds",
			Help:      "Latency of external engagement fetches.",
			Buckets:   []float64{1, 2, 5, 10, 15, 20, 30, 45, 60},
		}, []string{"platform"}),
		snapshotLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_lookups_total",
			Help:      "Snapshot cache lookups by outcome (hit or miss).",
		}, []string{"outcome"}),
		investments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "investments_total",
			Help:      "Investment attempts by result code.",
		}, []string{"result"}),
		refreshedVideos: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_sweep_videos_total",
			Help:      "Videos processed by scheduled refresh sweeps.",
		}, []string{"result"}),
		refreshTasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_tasks_total",
			Help:      "Queued post-investment refresh tasks by result.",
		}, []string{"result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	registerer.MustRegister(
		m.statsFetches,
		m.statsFetchDuration,
		m.snapshotLookups,
		m.investments,
		m.refreshedVideos,
		m.refreshTasks,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// ObserveStatsFetch records one provider call.
func (m *Metrics) ObserveStatsFetch(platform, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.statsFetches.WithLabelValues(platform, result).Inc()
	m.statsFetchDuration.WithLabelValues(platform).Observe(elapsed.Seconds())
}

// SnapshotLookup records a cache hit or miss.
func (m *Metrics) SnapshotLookup(hit bool) {
	if m == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.snapshotLookups.WithLabelValues(outcome).Inc()
}

// Investment records an invest attempt; result is "success" or an error code.
func (m *Metrics) Investment(result string) {
	if m == nil {
		return
	}
	m.investments.WithLabelValues(result).Inc()
}

// SweptVideo records one video processed by a refresh sweep.
func (m *Metrics) SweptVideo(ok bool) {
	if m == nil {
		return
	}
	m.refreshedVideos.WithLabelValues(resultLabel(ok)).Inc()
}

// RefreshTask records the outcome of one queued refresh task.
func (m *Metrics) RefreshTask(result string) {
	if m == nil {
		return
	}
	m.refreshTasks.WithLabelValues(result).Inc()
}

// HTTPRequest records one served request.
func (m *Metrics) HTTPRequest(method, route, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func resultLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
