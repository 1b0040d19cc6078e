package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// HTTPMetrics contains Prometheus metrics for the HTTP API, including the
// Server-Sent Events history stream.
type HTTPMetrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	sseActiveConnections prometheus.Gauge
	sseTotalConnections  *prometheus.CounterVec
	sseMessagesSent      *prometheus.CounterVec
}

// NewHTTPMetrics creates and registers new HTTP API metrics
func NewHTTPMetrics(registry *prometheus.Registry) (*HTTPMetrics, error) {
	m := &HTTPMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *HTTPMetrics) initMetrics() {
	m.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "haven_http_requests_total",
			Help: "Total number of HTTP API requests",
		},
		[]string{"method", "path", "status_code"}, // path is the route pattern, not the raw URL
	)

	m.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "haven_http_request_duration_seconds",
			Help:    "Time taken for HTTP API requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	m.sseActiveConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "haven_sse_active_connections",
		Help: "Number of open history stream connections",
	})

	m.sseTotalConnections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "haven_sse_connections_total",
			Help: "Total number of history stream connection events",
		},
		[]string{"event"}, // established, closed, error
	)

	m.sseMessagesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "haven_sse_messages_sent_total",
			Help: "Total number of history stream messages sent",
		},
		[]string{"type"},
	)
}

func (m *HTTPMetrics) getCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.sseActiveConnections,
		m.sseTotalConnections,
		m.sseMessagesSent,
	}
}

// Describe implements the Collector interface
func (m *HTTPMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.getCollectors() {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *HTTPMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.getCollectors() {
		collector.Collect(ch)
	}
}

// RecordHTTPRequest records a served request. Safe on a nil receiver.
func (m *HTTPMetrics) RecordHTTPRequest(method, path string, statusCode int, durationSeconds float64) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(durationSeconds)
}

// SSE connection event labels
const (
	SSEEventEstablished = "established"
	SSEEventClosed      = "closed"
	SSEEventError       = "error"
)

// SSEConnectionStarted increments the active and total connection counters.
func (m *HTTPMetrics) SSEConnectionStarted() {
	if m == nil {
		return
	}
	m.sseActiveConnections.Inc()
	m.sseTotalConnections.WithLabelValues(SSEEventEstablished).Inc()
}

// SSEConnectionClosed decrements active connections. Unknown events are
// recorded as errors to keep label cardinality bounded.
func (m *HTTPMetrics) SSEConnectionClosed(event string) {
	if m == nil {
		return
	}
	if event != SSEEventClosed {
		event = SSEEventError
	}
	m.sseActiveConnections.Dec()
	m.sseTotalConnections.WithLabelValues(event).Inc()
}

// RecordSSEMessageSent records a stream message
func (m *HTTPMetrics) RecordSSEMessageSent(messageType string) {
	if m == nil {
		return
	}
	m.sseMessagesSent.WithLabelValues(messageType).Inc()
}

// ActiveSSEConnections returns the current number of open stream connections.
func (m *HTTPMetrics) ActiveSSEConnections() float64 {
	if m == nil {
		return 0
	}
	metric := &dto.Metric{}
	if err := m.sseActiveConnections.Write(metric); err != nil {
		return 0
	}
	if metric.Gauge != nil && metric.Gauge.Value != nil {
		return *metric.Gauge.Value
	}
	return 0
}
