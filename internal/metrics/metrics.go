// Package metrics collects Prometheus metrics for the session manager.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sumire/authsession/internal/domain"
)

// Collector records auth operation outcomes, provider events and state changes.
type Collector struct {
	operations    *prometheus.CounterVec
	events        *prometheus.CounterVec
	initialFetch  *prometheus.CounterVec
	stateChanges  prometheus.Counter
	authenticated prometheus.Gauge
}

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authsession_operations_total",
			Help: "Credential operations by operation and outcome.",
		}, []string{"op", "outcome"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authsession_provider_events_total",
			Help: "Session change events applied from the provider.",
		}, []string{"event"}),
		initialFetch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authsession_initial_fetch_total",
			Help: "Initial session fetches by result.",
		}, []string{"result"}),
		stateChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authsession_state_changes_total",
			Help: "Writes to the auth state store.",
		}),
		authenticated: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "authsession_authenticated",
			Help: "1 when a user is signed in, 0 otherwise.",
		}),
	}

	reg.MustRegister(
		c.operations,
		c.events,
		c.initialFetch,
		c.stateChanges,
		c.authenticated,
	)

	return c
}

// RecordOperation counts one credential operation outcome.
func (c *Collector) RecordOperation(op, outcome string) {
	c.operations.WithLabelValues(op, outcome).Inc()
}

// RecordAuthEvent counts one applied provider event.
func (c *Collector) RecordAuthEvent(event domain.AuthEvent) {
	c.events.WithLabelValues(string(event)).Inc()
}

// RecordInitialFetch counts the result of the initial session fetch.
func (c *Collector) RecordInitialFetch(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	c.initialFetch.WithLabelValues(result).Inc()
}

// ObserveState is an authstate observer tracking state writes.
func (c *Collector) ObserveState(st domain.AuthState) {
	c.stateChanges.Inc()
	if st.Authenticated() {
		c.authenticated.Set(1)
	} else {
		c.authenticated.Set(0)
	}
}

// Handler returns the Prometheus scrape handler.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
