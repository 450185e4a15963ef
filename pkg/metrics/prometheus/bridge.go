package prometheus

import (
	"time"

	"github.com/marmos91/fsbridge/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type bridgeMetrics struct {
	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	requestsInFlight  *prometheus.GaugeVec
	bytesTransferred  *prometheus.CounterVec
	entriesRegistered prometheus.Counter
	driverDuration    *prometheus.HistogramVec
	driverErrors      *prometheus.CounterVec

	connectionsAccepted *prometheus.CounterVec
	connectionsClosed   *prometheus.CounterVec
	activeConnections   *prometheus.GaugeVec
	rateLimited         *prometheus.CounterVec
}

// NewMetrics returns Prometheus-backed metrics registered on the global
// registry, or a no-op implementation when metrics are disabled.
func NewMetrics() metrics.Metrics {
	reg := metrics.GetRegistry()
	if reg == nil {
		return metrics.NewNoop()
	}
	return NewMetricsWithRegistry(reg)
}

// NewMetricsWithRegistry registers the collectors on reg.
func NewMetricsWithRegistry(reg prometheus.Registerer) metrics.Metrics {
	factory := promauto.With(reg)

	return &bridgeMetrics{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fsbridge_requests_total",
				Help: "Total number of bridge requests by action and status",
			},
			[]string{"action", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "fsbridge_request_duration_seconds",
				Help: "Duration of bridge requests in seconds",
				Buckets: []float64{
					0.0001, 0.0005, 0.001, 0.005, 0.01,
					0.05, 0.1, 0.5, 1, 5, 30,
				},
			},
			[]string{"action"},
		),
		requestsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fsbridge_requests_in_flight",
				Help: "Number of bridge requests currently being handled",
			},
			[]string{"action"},
		),
		bytesTransferred: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fsbridge_bytes_transferred_total",
				Help: "File bytes moved through the bridge",
			},
			[]string{"action", "direction"},
		),
		entriesRegistered: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "fsbridge_registry_entries_registered_total",
				Help: "Resources added to the handle registry",
			},
		),
		driverDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fsbridge_driver_operation_duration_seconds",
				Help:    "Duration of file-system driver operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		driverErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fsbridge_driver_errors_total",
				Help: "Failed file-system driver operations",
			},
			[]string{"operation"},
		),
		connectionsAccepted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fsbridge_connections_accepted_total",
				Help: "Connections accepted by transport",
			},
			[]string{"transport"},
		),
		connectionsClosed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fsbridge_connections_closed_total",
				Help: "Connections closed by transport",
			},
			[]string{"transport"},
		),
		activeConnections: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fsbridge_active_connections",
				Help: "Currently open connections by transport",
			},
			[]string{"transport"},
		),
		rateLimited: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fsbridge_rate_limited_total",
				Help: "Requests delayed or rejected by rate limiting",
			},
			[]string{"transport"},
		),
	}
}

func (m *bridgeMetrics) RecordRequest(action string, duration time.Duration, status string) {
	m.requestsTotal.WithLabelValues(action, status).Inc()
	m.requestDuration.WithLabelValues(action).Observe(duration.Seconds())
}

func (m *bridgeMetrics) RecordRequestStart(action string) {
	m.requestsInFlight.WithLabelValues(action).Inc()
}

func (m *bridgeMetrics) RecordRequestEnd(action string) {
	m.requestsInFlight.WithLabelValues(action).Dec()
}

func (m *bridgeMetrics) RecordBytesTransferred(action, direction string, bytes int) {
	if bytes <= 0 {
		return
	}
	m.bytesTransferred.WithLabelValues(action, direction).Add(float64(bytes))
}

func (m *bridgeMetrics) RecordEntryRegistered() {
	m.entriesRegistered.Inc()
}

func (m *bridgeMetrics) RecordDriverOperation(operation string, duration time.Duration, err error) {
	m.driverDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		m.driverErrors.WithLabelValues(operation).Inc()
	}
}

func (m *bridgeMetrics) RecordConnectionAccepted(transport string) {
	m.connectionsAccepted.WithLabelValues(transport).Inc()
}

func (m *bridgeMetrics) RecordConnectionClosed(transport string) {
	m.connectionsClosed.WithLabelValues(transport).Inc()
}

func (m *bridgeMetrics) SetActiveConnections(transport string, count int32) {
	m.activeConnections.WithLabelValues(transport).Set(float64(count))
}

func (m *bridgeMetrics) RecordRateLimited(transport string) {
	m.rateLimited.WithLabelValues(transport).Inc()
}
