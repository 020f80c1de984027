// Package metrics provides Prometheus metrics collection for the risk service.
// It defines the prediction, model loading, inference and HTTP metrics that are
// exposed via the /metrics endpoint.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Prediction metrics
	Predictions        *prometheus.CounterVec   // Successful per-condition predictions
	ConditionFailures  *prometheus.CounterVec   // Per-condition errors (missing features, bad values, classifier errors)
	RiskScores         *prometheus.HistogramVec // Distribution of risk scores per condition
	PredictionLatency  prometheus.Histogram     // End-to-end latency of one request's evaluation
	ValidationFailures prometheus.Counter       // Requests rejected by input validation

	// Model metrics
	ModelsLoaded      prometheus.Gauge       // Conditions with a loaded classifier
	ModelLoadFailures *prometheus.CounterVec // Artifacts that were missing or failed to load
	InferenceLatency  prometheus.Histogram   // ONNX subprocess latency
	InferenceTimeouts prometheus.Counter     // ONNX subprocess timeouts

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec // Requests by path and status code

	gatherer prometheus.Gatherer
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	m := &Metrics{
		Predictions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "predictions_total",
			Help: "Total number of successful condition predictions",
		}, []string{"condition"}),
		ConditionFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "condition_failures_total",
			Help: "Total number of condition evaluations that ended in an error",
		}, []string{"condition"}),
		RiskScores: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "risk_score",
			Help:    "Distribution of risk scores",
			Buckets: prometheus.LinearBuckets(10, 10, 10),
		}, []string{"condition"}),
		PredictionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "prediction_latency_seconds",
			Help:    "Time to evaluate every condition for one request",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		ValidationFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "validation_failures_total",
			Help: "Total number of requests rejected by input validation",
		}),
		ModelsLoaded: factory.NewGauge(prometheus.GaugeOpts{
			Name: "models_loaded",
			Help: "Number of conditions with a loaded model",
		}),
		ModelLoadFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "model_load_failures_total",
			Help: "Total number of model artifacts that could not be loaded",
		}, []string{"condition"}),
		InferenceLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "inference_latency_seconds",
			Help:    "ONNX model inference latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		InferenceTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "inference_timeouts_total",
			Help: "Total number of ONNX inference timeouts",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests by path and status code",
		}, []string{"path", "code"}),
	}
	if g, ok := registerer.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	return m
}

func (m *Metrics) PredictionsInc(condition string) {
	m.Predictions.WithLabelValues(condition).Inc()
}

func (m *Metrics) ConditionFailuresInc(condition string) {
	m.ConditionFailures.WithLabelValues(condition).Inc()
}

func (m *Metrics) RiskScoreObserve(condition string, score float64) {
	m.RiskScores.WithLabelValues(condition).Observe(score)
}

func (m *Metrics) PredictionLatencyObserve(seconds float64) {
	m.PredictionLatency.Observe(seconds)
}

func (m *Metrics) ValidationFailuresInc() {
	m.ValidationFailures.Inc()
}

func (m *Metrics) ModelsLoadedSet(v float64) {
	m.ModelsLoaded.Set(v)
}

func (m *Metrics) ModelLoadFailuresInc(condition string) {
	m.ModelLoadFailures.WithLabelValues(condition).Inc()
}

func (m *Metrics) InferenceLatencyObserve(seconds float64) {
	m.InferenceLatency.Observe(seconds)
}

func (m *Metrics) InferenceTimeoutsInc() {
	m.InferenceTimeouts.Inc()
}

func (m *Metrics) HTTPRequestsInc(path, code string) {
	m.HTTPRequests.WithLabelValues(path, code).Inc()
}

// Handler serves the exposition for the registry the metrics were created on.
func (m *Metrics) Handler() http.Handler {
	if m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
