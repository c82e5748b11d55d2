// Package metrics exposes prometheus collectors for the mapping pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "depletion_mapper"

// Metrics groups the pipeline collectors. A nil *Metrics is a no-op.
type Metrics struct {
	detections        *prometheus.CounterVec
	detectionFailures prometheus.Counter
	detectorFailures  *prometheus.CounterVec
	detectionDuration prometheus.Histogram
	rows              *prometheus.CounterVec
	feedback          *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detections_total",
			Help:      "Successful column detections by winning method.",
		}, []string{"method"}),
		detectionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detection_failures_total",
			Help:      "Detections that could not resolve a required field.",
		}),
		detectorFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifier_failures_total",
			Help:      "Classifier calls that yielded no result, by reason.",
		}, []string{"reason"}),
		detectionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "detection_duration_seconds",
			Help:      "Wall time of a detection including the classifier call.",
			Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transformed_rows_total",
			Help:      "Transformed rows by terminal status.",
		}, []string{"status"}),
		feedback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feedback_outcomes_total",
			Help:      "Feedback outcomes by result (accepted, rejected, error).",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(m.detections, m.detectionFailures, m.detectorFailures, m.detectionDuration, m.rows, m.feedback)
	}
	return m
}

func (m *Metrics) ObserveDetection(method string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.detections.WithLabelValues(method).Inc()
	m.detectionDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) DetectionFailed() {
	if m == nil {
		return
	}
	m.detectionFailures.Inc()
}

// ClassifierFailure matches the classifier guard's failure hook.
func (m *Metrics) ClassifierFailure(reason string) {
	if m == nil {
		return
	}
	m.detectorFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveRows(valid, partial, invalid int) {
	if m == nil {
		return
	}
	m.rows.WithLabelValues("valid").Add(float64(valid))
	m.rows.WithLabelValues("partially_valid").Add(float64(partial))
	m.rows.WithLabelValues("invalid").Add(float64(invalid))
}

func (m *Metrics) ObserveFeedback(result string) {
	if m == nil {
		return
	}
	m.feedback.WithLabelValues(result).Inc()
}

// Handler serves the registry in the prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
