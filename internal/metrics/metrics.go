package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors shared by the relay and the API server.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPActiveConnections *prometheus.GaugeVec

	// Relay metrics
	RelayConnections     prometheus.Gauge
	RelayRegisteredUsers prometheus.Gauge
	RelayJoinsTotal      prometheus.Counter
	RelayEventsTotal     *prometheus.CounterVec
	RelayDroppedTotal    *prometheus.CounterVec

	// Broker metrics
	BrokerPublishedTotal *prometheus.CounterVec
	BrokerReceivedTotal  prometheus.Counter

	// Persistence metrics
	DatabaseQueryDuration *prometheus.HistogramVec
}

var (
	instance *Metrics
	once     sync.Once
)

// Initialize creates and registers all collectors once per process.
func Initialize() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			HTTPRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_request_duration_seconds",
					Help:    "HTTP request latency in seconds",
					Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
				},
				[]string{"method", "path", "status"},
			),
			HTTPActiveConnections: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "http_active_connections",
					Help: "Number of currently active HTTP connections",
				},
				[]string{"method", "path"},
			),

			RelayConnections: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "relay_connections",
				Help: "Open relay WebSocket connections",
			}),
			RelayRegisteredUsers: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "relay_registered_users",
				Help: "Users currently present in the registry",
			}),
			RelayJoinsTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "relay_joins_total",
				Help: "Accepted join events",
			}),
			RelayEventsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "relay_events_total",
					Help: "Outbound relay events by type",
				},
				[]string{"type"},
			),
			RelayDroppedTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "relay_dropped_total",
					Help: "Relay deliveries dropped, by reason",
				},
				[]string{"reason"},
			),

			BrokerPublishedTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "broker_published_total",
					Help: "Persisted-message notifications published",
				},
				[]string{"status"},
			),
			BrokerReceivedTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "broker_received_total",
				Help: "Persisted-message notifications received by the relay",
			}),

			DatabaseQueryDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "database_query_duration_seconds",
					Help:    "Database query latency in seconds",
					Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5},
				},
				[]string{"query_type", "table"},
			),
		}
	})
	return instance
}

// Get returns the process collectors, initializing them on first use.
func Get() *Metrics {
	return Initialize()
}
