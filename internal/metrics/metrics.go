// Package metrics exposes Prometheus instrumentation for baseline sessions.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the counters and histograms updated by the requirement
// loop. A nil *Metrics is valid and records nothing, so tests and callers
// that do not care about instrumentation can pass nil.
type Metrics struct {
	Provisions       prometheus.Counter
	Reclamations     prometheus.Counter
	ReclamationFails prometheus.Counter
	Refinements      prometheus.Counter
	Validations      *prometheus.CounterVec
	AttemptDuration  prometheus.Histogram
}

// New creates the metric set and registers it with the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Provisions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "secbase_provisions_total",
			Help: "Number of test infrastructure provisioning calls.",
		}),
		Reclamations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "secbase_reclamations_total",
			Help: "Number of resource set reclamation passes.",
		}),
		ReclamationFails: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "secbase_reclamation_errors_total",
			Help: "Number of reclamation passes that recorded errors.",
		}),
		Refinements: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "secbase_refinements_total",
			Help: "Number of configuration refinement calls.",
		}),
		Validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "secbase_validations_total",
			Help: "Number of validation runs by result.",
		}, []string{"result"}),
		AttemptDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "secbase_attempt_duration_seconds",
			Help:    "Duration of one provision-validate-reclaim attempt.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}
	reg.MustRegister(m.Provisions, m.Reclamations, m.ReclamationFails,
		m.Refinements, m.Validations, m.AttemptDuration)
	return m
}

// ObserveProvision records one provisioning call.
func (m *Metrics) ObserveProvision() {
	if m == nil {
		return
	}
	m.Provisions.Inc()
}

// ObserveReclamation records one reclamation pass and whether it recorded
// errors.
func (m *Metrics) ObserveReclamation(errored bool) {
	if m == nil {
		return
	}
	m.Reclamations.Inc()
	if errored {
		m.ReclamationFails.Inc()
	}
}

// ObserveRefinement records one refinement call.
func (m *Metrics) ObserveRefinement() {
	if m == nil {
		return
	}
	m.Refinements.Inc()
}

// ObserveValidation records one validation run with its result label
// ("pass" or "fail").
func (m *Metrics) ObserveValidation(passed bool) {
	if m == nil {
		return
	}
	result := "fail"
	if passed {
		result = "pass"
	}
	m.Validations.WithLabelValues(result).Inc()
}

// ObserveAttempt records the duration of a completed attempt in seconds.
func (m *Metrics) ObserveAttempt(seconds float64) {
	if m == nil {
		return
	}
	m.AttemptDuration.Observe(seconds)
}
