package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the agent's self-observability surface: sampler duration,
// queue depth, active alert count, and circuit-breaker state, published as
// Prometheus gauges/counters and served by Handler, which the Supervisor
// mounts on /metrics beside the stream server. Trimmed to the handful of instruments the Supervisor needs
// rather than a generic multi-backend Provider abstraction — memguard has
// exactly one metrics backend, so that indirection isn't earning its
// keep here.
type Metrics struct {
	registry *prometheus.Registry

	SampleDuration   prometheus.Histogram
	QueueDepth       prometheus.Gauge
	ActiveAlerts     prometheus.Gauge
	CircuitState     *prometheus.GaugeVec
	AlertsAdmitted   prometheus.Counter
	AlertsSuppressed prometheus.Counter
	AlertsEscalated  prometheus.Counter
	SamplerErrors    prometheus.Counter
}

// NewMetrics registers the agent's instruments against a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		SampleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "memguard_sample_duration_seconds",
			Help:    "Time spent in one Probe.collect() call.",
			Buckets: prometheus.DefBuckets,
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "memguard_operation_queue_depth",
			Help: "Pending operations in the optimizer's admission queue.",
		}),
		ActiveAlerts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "memguard_active_alerts",
			Help: "Alerts currently in the active map.",
		}),
		CircuitState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "memguard_circuit_breaker_state",
			Help: "0=closed 1=half_open 2=open, per named breaker.",
		}, []string{"breaker"}),
		AlertsAdmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "memguard_alerts_admitted_total",
			Help: "Alerts that passed the admission pipeline.",
		}),
		AlertsSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "memguard_alerts_suppressed_total",
			Help: "Alerts dropped by suppression, dedup, or throttle.",
		}),
		AlertsEscalated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "memguard_alerts_escalated_total",
			Help: "Escalation transitions fired.",
		}),
		SamplerErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "memguard_sampler_errors_total",
			Help: "Recoverable errors surfaced by the Probe.",
		}),
	}
	reg.MustRegister(
		m.SampleDuration, m.QueueDepth, m.ActiveAlerts, m.CircuitState,
		m.AlertsAdmitted, m.AlertsSuppressed, m.AlertsEscalated, m.SamplerErrors,
	)
	return m
}

// Handler exposes the registry on /metrics for a host that wants to scrape
// memguard alongside its own instrumentation.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
