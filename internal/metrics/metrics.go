package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes the engine's operational counters on a dedicated
// registry so tests can create instances without collisions.
type Metrics struct {
	registry *prometheus.Registry

	TurnsTotal           *prometheus.CounterVec
	OracleFallbacksTotal prometheus.Counter
	ClarificationsTotal  prometheus.Counter
	SessionsExpiredTotal prometheus.Counter
	QueueGapsTotal       prometheus.Counter
	QueueReplaysTotal    prometheus.Counter
}

// New creates and registers all engine metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	m := &Metrics{
		registry: registry,
		TurnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sahayak_turns_total",
			Help: "Conversation turns processed, by input kind.",
		}, []string{"kind"}),
		OracleFallbacksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sahayak_oracle_fallbacks_total",
			Help: "Turns that completed via the rule-based fallback.",
		}),
		ClarificationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sahayak_clarifications_total",
			Help: "Clarification questions emitted.",
		}),
		SessionsExpiredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sahayak_sessions_expired_total",
			Help: "Requests that hit an expired or unknown session.",
		}),
		QueueGapsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sahayak_queue_gaps_total",
			Help: "Sequence gaps detected while draining offline queues.",
		}),
		QueueReplaysTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sahayak_queue_replays_total",
			Help: "Offline actions replayed through the controller.",
		}),
	}

	registry.MustRegister(
		m.TurnsTotal,
		m.OracleFallbacksTotal,
		m.ClarificationsTotal,
		m.SessionsExpiredTotal,
		m.QueueGapsTotal,
		m.QueueReplaysTotal,
	)
	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
