package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DatastoreMetrics contains Prometheus metrics for cache and history store operations
type DatastoreMetrics struct {
	registry *prometheus.Registry

	dbOperationsTotal   *prometheus.CounterVec
	dbOperationDuration *prometheus.HistogramVec
	dbTransactionsTotal *prometheus.CounterVec
	cacheEntriesExpired prometheus.Counter
	cacheRotationResets prometheus.Counter
	historyEvictions    prometheus.Counter
}

// NewDatastoreMetrics creates and registers new datastore metrics
func NewDatastoreMetrics(registry *prometheus.Registry) (*DatastoreMetrics, error) {
	m := &DatastoreMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *DatastoreMetrics) initMetrics() {
	m.dbOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "haven_db_operations_total",
			Help: "Total number of store operations",
		},
		[]string{"operation", "table", "status"}, // status: success, error
	)

	m.dbOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "haven_db_operation_duration_seconds",
			Help:    "Time taken for store operations",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15), // 1ms to ~16s
		},
		[]string{"operation", "table"},
	)

	m.dbTransactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "haven_db_transactions_total",
			Help: "Total number of store transactions",
		},
		[]string{"status"}, // committed, rollback
	)

	m.cacheEntriesExpired = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "haven_cache_entries_expired_total",
		Help: "Total number of cache entries removed because they expired",
	})

	m.cacheRotationResets = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "haven_cache_rotation_resets_total",
		Help: "Total number of rotations restarted after every cached photo was shown",
	})

	m.historyEvictions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "haven_history_evictions_total",
		Help: "Total number of history records evicted by the size cap",
	})
}

func (m *DatastoreMetrics) getCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.dbOperationsTotal,
		m.dbOperationDuration,
		m.dbTransactionsTotal,
		m.cacheEntriesExpired,
		m.cacheRotationResets,
		m.historyEvictions,
	}
}

// Describe implements the Collector interface
func (m *DatastoreMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.getCollectors() {
		c.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *DatastoreMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.getCollectors() {
		c.Collect(ch)
	}
}

// RecordDbOperation records a store operation with its outcome and duration.
// All methods are safe on a nil receiver.
func (m *DatastoreMetrics) RecordDbOperation(operation, table string, err error, durationSeconds float64) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.dbOperationsTotal.WithLabelValues(operation, table, status).Inc()
	m.dbOperationDuration.WithLabelValues(operation, table).Observe(durationSeconds)
}

// RecordTransaction records a committed or rolled back transaction
func (m *DatastoreMetrics) RecordTransaction(err error) {
	if m == nil {
		return
	}
	status := "committed"
	if err != nil {
		status = "rollback"
	}
	m.dbTransactionsTotal.WithLabelValues(status).Inc()
}

// RecordCacheExpired counts an expired cache entry removal
func (m *DatastoreMetrics) RecordCacheExpired() {
	if m == nil {
		return
	}
	m.cacheEntriesExpired.Inc()
}

// RecordRotationReset counts a rotation restart
func (m *DatastoreMetrics) RecordRotationReset() {
	if m == nil {
		return
	}
	m.cacheRotationResets.Inc()
}

// RecordHistoryEvictions adds n evicted history records
func (m *DatastoreMetrics) RecordHistoryEvictions(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.historyEvictions.Add(float64(n))
}
