// Package metrics provides custom Prometheus metrics for the Haven components.
package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WallpaperMetrics covers photo acquisition: cache probes, favorite picks,
// search API requests and the size of the shown-photos history.
//
// All methods are safe on a nil receiver so components can run without metrics.
type WallpaperMetrics struct {
	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
	FavoritePicks  prometheus.Counter
	FetchRequests  *prometheus.CounterVec
	FetchRetries   prometheus.Counter
	FetchDuration  prometheus.Histogram
	HistoryRecords prometheus.Gauge
	registry       *prometheus.Registry
}

// NewWallpaperMetrics creates and registers the wallpaper metrics on registry.
func NewWallpaperMetrics(registry *prometheus.Registry) (*WallpaperMetrics, error) {
	m := &WallpaperMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register wallpaper metrics: %w", err)
	}
	return m, nil
}

func (m *WallpaperMetrics) initMetrics() {
	m.CacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "haven_cache_hits_total",
		Help: "Total number of photos served from the rotation cache.",
	})

	m.CacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "haven_cache_misses_total",
		Help: "Total number of cache probes that required a fetch.",
	})

	m.FavoritePicks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "haven_favorite_picks_total",
		Help: "Total number of photos resurfaced from favorites.",
	})

	m.FetchRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "haven_fetch_requests_total",
		Help: "Total number of photo search requests by outcome.",
	}, []string{"status"}) // status: 2xx, 4xx, 5xx, error

	m.FetchRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "haven_fetch_retries_total",
		Help: "Total number of retried photo search requests.",
	})

	m.FetchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "haven_fetch_duration_seconds",
		Help:    "Duration of single photo search round trips in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	})

	m.HistoryRecords = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "haven_history_records",
		Help: "Current number of records in the shown-photos history.",
	})
}

// RecordCacheHit counts a photo served from the cache.
func (m *WallpaperMetrics) RecordCacheHit() {
	if m == nil {
		return
	}
	m.CacheHits.Inc()
}

// RecordCacheMiss counts a cache probe that fell through to the fetch pipeline.
func (m *WallpaperMetrics) RecordCacheMiss() {
	if m == nil {
		return
	}
	m.CacheMisses.Inc()
}

// RecordFavoritePick counts a favorite served by the favorite gate.
func (m *WallpaperMetrics) RecordFavoritePick() {
	if m == nil {
		return
	}
	m.FavoritePicks.Inc()
}

// RecordFetchRequest records one search round trip. statusCode 0 means the
// request failed before a response arrived.
func (m *WallpaperMetrics) RecordFetchRequest(statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	m.FetchRequests.WithLabelValues(StatusClass(statusCode)).Inc()
	m.FetchDuration.Observe(duration.Seconds())
}

// RecordFetchRetry counts a scheduled retry.
func (m *WallpaperMetrics) RecordFetchRetry() {
	if m == nil {
		return
	}
	m.FetchRetries.Inc()
}

// SetHistoryRecords updates the history size gauge.
func (m *WallpaperMetrics) SetHistoryRecords(n int64) {
	if m == nil {
		return
	}
	m.HistoryRecords.Set(float64(n))
}

// StatusClass maps an HTTP status to its class label, "error" for 0.
func StatusClass(statusCode int) string {
	if statusCode <= 0 {
		return "error"
	}
	return strconv.Itoa(statusCode/100) + "xx"
}

// Collect implements the prometheus.Collector interface.
func (m *WallpaperMetrics) Collect(ch chan<- prometheus.Metric) {
	m.CacheHits.Collect(ch)
	m.CacheMisses.Collect(ch)
	m.FavoritePicks.Collect(ch)
	m.FetchRequests.Collect(ch)
	m.FetchRetries.Collect(ch)
	m.FetchDuration.Collect(ch)
	m.HistoryRecords.Collect(ch)
}

// Describe implements the prometheus.Collector interface.
func (m *WallpaperMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.CacheHits.Describe(ch)
	m.CacheMisses.Describe(ch)
	m.FavoritePicks.Describe(ch)
	m.FetchRequests.Describe(ch)
	m.FetchRetries.Describe(ch)
	m.FetchDuration.Describe(ch)
	m.HistoryRecords.Describe(ch)
}
