// monitor/monitor.go
package monitor

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	OnlinePlayers    prometheus.Gauge
	ActiveRooms      prometheus.Gauge
	MessagesReceived *prometheus.CounterVec
	RequestErrors    *prometheus.CounterVec
	GamesFinished    *prometheus.CounterVec
	MessageLatency   prometheus.Histogram
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		OnlinePlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_players",
			Help:      "Number of connected players",
		}),
		ActiveRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_rooms",
			Help:      "Number of live rooms",
		}),
		MessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Requests received, by request name",
		}, []string{"request"}),
		RequestErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_errors_total",
			Help:      "Rejected requests, by error code",
		}, []string{"code"}),
		GamesFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_finished_total",
			Help:      "Finished games, by outcome",
		}, []string{"outcome"}),
		MessageLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "message_latency_seconds",
			Help:      "Request processing latency",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
		}),
	}
}

type Monitor struct {
	metrics   *Metrics
	registry  *prometheus.Registry
	startTime time.Time
}

// NewMonitor registers its metrics on a private registry so several servers
// can live in one process.
func NewMonitor(namespace string) *Monitor {
	m := &Monitor{
		metrics:   NewMetrics(namespace),
		registry:  prometheus.NewRegistry(),
		startTime: time.Now(),
	}
	m.registry.MustRegister(
		m.metrics.OnlinePlayers,
		m.metrics.ActiveRooms,
		m.metrics.MessagesReceived,
		m.metrics.RequestErrors,
		m.metrics.GamesFinished,
		m.metrics.MessageLatency,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Seconds since the server started",
		}, func() float64 { return time.Since(m.startTime).Seconds() }),
	)
	return m
}

// Handler serves the metrics in the Prometheus text format.
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Monitor) IncOnlinePlayers() {
	m.metrics.OnlinePlayers.Inc()
}

func (m *Monitor) DecOnlinePlayers() {
	m.metrics.OnlinePlayers.Dec()
}

func (m *Monitor) SetActiveRooms(count int) {
	m.metrics.ActiveRooms.Set(float64(count))
}

func (m *Monitor) IncMessagesReceived(request string) {
	m.metrics.MessagesReceived.WithLabelValues(request).Inc()
}

func (m *Monitor) IncRequestErrors(code string) {
	m.metrics.RequestErrors.WithLabelValues(code).Inc()
}

func (m *Monitor) IncGamesFinished(outcome string) {
	m.metrics.GamesFinished.WithLabelValues(outcome).Inc()
}

func (m *Monitor) ObserveMessageLatency(duration time.Duration) {
	m.metrics.MessageLatency.Observe(duration.Seconds())
}
