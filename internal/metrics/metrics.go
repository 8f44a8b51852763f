// Package metrics holds the Prometheus collectors for the adoption service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "adoption"

// Metrics groups every collector the service records.
type Metrics struct {
	registry *prometheus.Registry

	Transitions          *prometheus.CounterVec
	GuardRetries         *prometheus.CounterVec
	GuardConflicts       *prometheus.CounterVec
	GuardTakeovers       *prometheus.CounterVec
	NotificationsSent    *prometheus.CounterVec
	NotificationFailures *prometheus.CounterVec
	ReconcileRepairs     prometheus.Counter
}

// New registers all collectors on a fresh registry. Pass withRuntime to also
// export Go runtime and process collectors.
func New(withRuntime bool) *Metrics {
	reg := prometheus.NewRegistry()
	if withRuntime {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	m := &Metrics{
		registry: reg,
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Completed lifecycle transitions by operation.",
		}, []string{"operation"}),
		GuardRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guard_retries_total",
			Help:      "Lease acquisition attempts that found the pet busy.",
		}, []string{"purpose"}),
		GuardConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guard_conflicts_total",
			Help:      "Operations that gave up after exhausting lease attempts.",
		}, []string{"purpose"}),
		GuardTakeovers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guard_takeovers_total",
			Help:      "Expired leases taken over from an abandoned holder.",
		}, []string{"purpose"}),
		NotificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_sent_total",
			Help:      "Notifications handed to the sink.",
		}, []string{"type"}),
		NotificationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_failures_total",
			Help:      "Notifications the sink failed to deliver.",
		}, []string{"type"}),
		ReconcileRepairs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_repairs_total",
			Help:      "Pets whose stored state was corrected by reconciliation.",
		}),
	}

	reg.MustRegister(
		m.Transitions,
		m.GuardRetries,
		m.GuardConflicts,
		m.GuardTakeovers,
		m.NotificationsSent,
		m.NotificationFailures,
		m.ReconcileRepairs,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
