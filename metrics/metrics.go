/*
Package metrics exposes Prometheus counters for the quoting service.

COUNTERS:
  quoter_sessions_created_total{class}         Sessions opened, by debt class
  quoter_actions_total{action,result}          Reducer actions, ok / rejected
  quoter_submissions_total{outcome}            Webhook deliveries
  quoter_config_fetches_total{outcome}         Startup config endpoint fetches

All methods are safe on a nil *Metrics so packages can run without metrics in
tests.

SEE ALSO:
  - api/server.go: Mounts Handler at /metrics
*/
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "quoter"

// Outcome labels.
const (
	OutcomeSuccess      = "success"
	OutcomeFailure      = "failure"
	OutcomeUnconfigured = "unconfigured"
	OutcomeFallback     = "fallback"
)

type Metrics struct {
	registry *prometheus.Registry

	sessions      *prometheus.CounterVec
	actions       *prometheus.CounterVec
	submissions   *prometheus.CounterVec
	configFetches *prometheus.CounterVec
}

// New registers the counters on a fresh registry, together with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Quote sessions created, by debt class.",
		}, []string{"class"}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Quote actions applied, by action and result.",
		}, []string{"action", "result"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Agreement webhook submissions, by outcome.",
		}, []string{"outcome"}),
		configFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_fetches_total",
			Help:      "Webhook config endpoint fetches, by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.sessions, m.actions, m.submissions, m.configFetches)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) SessionCreated(class string) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(class).Inc()
}

func (m *Metrics) ActionApplied(action string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "rejected"
	}
	m.actions.WithLabelValues(action, result).Inc()
}

func (m *Metrics) Submission(outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ConfigFetch(outcome string) {
	if m == nil {
		return
	}
	m.configFetches.WithLabelValues(outcome).Inc()
}
