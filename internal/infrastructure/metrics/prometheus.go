// Package metrics exports engine outcomes as Prometheus series.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/garyjia/discharge-planner/internal/application/port"
)

const namespace = "discharge_planner"

// Recorder implements port.Metrics on its own registry
type Recorder struct {
	registry     *prometheus.Registry
	transitions  *prometheus.CounterVec
	rejections   *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	subjectMoves *prometheus.CounterVec
}

// NewRecorder creates a recorder with every collector registered
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "case_transitions_total",
				Help:      "Accepted case actions by source and target state.",
			},
			[]string{"tenant", "action", "from", "to"},
		),
		rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "case_rejections_total",
				Help:      "Rejected case actions by error kind.",
			},
			[]string{"tenant", "action", "state", "kind"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "case_transition_duration_seconds",
				Help:      "Time spent applying an accepted case action.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"action"},
		),
		subjectMoves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "subject_moves_total",
				Help:      "Subject advances per process definition.",
			},
			[]string{"tenant", "definition"},
		),
	}

	r.registry.MustRegister(r.transitions, r.rejections, r.latency, r.subjectMoves)
	return r
}

// ObserveTransition counts an accepted action
func (r *Recorder) ObserveTransition(tenantID, action, from, to string, d time.Duration) {
	r.transitions.WithLabelValues(tenantID, action, from, to).Inc()
	r.latency.WithLabelValues(action).Observe(d.Seconds())
}

// ObserveRejection counts a rejected action
func (r *Recorder) ObserveRejection(tenantID, action, state, kind string) {
	r.rejections.WithLabelValues(tenantID, action, state, kind).Inc()
}

// ObserveSubjectMove counts a subject advance
func (r *Recorder) ObserveSubjectMove(tenantID, definitionID string) {
	r.subjectMoves.WithLabelValues(tenantID, definitionID).Inc()
}

// Registry exposes the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus text format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

var _ port.Metrics = (*Recorder)(nil)
