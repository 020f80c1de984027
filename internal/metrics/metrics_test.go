package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewWithRegistry(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewWithRegistry(registry)
	if m == nil {
		t.Fatal("NewWithRegistry returned nil")
	}

	// Vector metrics only appear once a label set is used.
	m.PredictionsInc("diabetes")
	m.ModelsLoadedSet(3)

	count, err := testutil.GatherAndCount(registry, "predictions_total", "models_loaded")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 series, got %d", count)
	}
}

func TestMetrics_ConditionCounters(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.PredictionsInc("diabetes")
	m.PredictionsInc("diabetes")
	m.PredictionsInc("respiratory")
	m.ConditionFailuresInc("heart_disease")
	m.ModelLoadFailuresInc("blood_pressure")

	if v := testutil.ToFloat64(m.Predictions.WithLabelValues("diabetes")); v != 2 {
		t.Errorf("Expected 2 diabetes predictions, got %f", v)
	}
	if v := testutil.ToFloat64(m.Predictions.WithLabelValues("respiratory")); v != 1 {
		t.Errorf("Expected 1 respiratory prediction, got %f", v)
	}
	if v := testutil.ToFloat64(m.ConditionFailures.WithLabelValues("heart_disease")); v != 1 {
		t.Errorf("Expected 1 heart_disease failure, got %f", v)
	}
	if v := testutil.ToFloat64(m.ModelLoadFailures.WithLabelValues("blood_pressure")); v != 1 {
		t.Errorf("Expected 1 load failure, got %f", v)
	}
}

func TestMetrics_GaugeAndCounters(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.ModelsLoadedSet(4)
	m.ModelsLoadedSet(2)
	if v := testutil.ToFloat64(m.ModelsLoaded); v != 2 {
		t.Errorf("Expected models_loaded 2, got %f", v)
	}

	m.ValidationFailuresInc()
	m.InferenceTimeoutsInc()
	m.InferenceTimeoutsInc()
	if v := testutil.ToFloat64(m.ValidationFailures); v != 1 {
		t.Errorf("Expected 1 validation failure, got %f", v)
	}
	if v := testutil.ToFloat64(m.InferenceTimeouts); v != 2 {
		t.Errorf("Expected 2 timeouts, got %f", v)
	}

	m.HTTPRequestsInc("/predict", "200")
	m.HTTPRequestsInc("/predict", "400")
	m.HTTPRequestsInc("/predict", "200")
	if v := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/predict", "200")); v != 2 {
		t.Errorf("Expected 2 ok requests, got %f", v)
	}
}

func TestMetrics_Histograms(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewWithRegistry(registry)

	m.RiskScoreObserve("diabetes", 79)
	m.RiskScoreObserve("diabetes", 35)
	m.PredictionLatencyObserve(0.002)
	m.InferenceLatencyObserve(0.1)

	expected := `
# HELP prediction_latency_seconds Time to evaluate every condition for one request
# TYPE prediction_latency_seconds histogram
prediction_latency_seconds_bucket{le="0.001"} 0
prediction_latency_seconds_bucket{le="0.005"} 1
prediction_latency_seconds_bucket{le="0.01"} 1
prediction_latency_seconds_bucket{le="0.025"} 1
prediction_latency_seconds_bucket{le="0.05"} 1
prediction_latency_seconds_bucket{le="0.1"} 1
prediction_latency_seconds_bucket{le="0.25"} 1
prediction_latency_seconds_bucket{le="0.5"} 1
prediction_latency_seconds_bucket{le="1"} 1
prediction_latency_seconds_bucket{le="2.5"} 1
prediction_latency_seconds_bucket{le="5"} 1
prediction_latency_seconds_bucket{le="+Inf"} 1
prediction_latency_seconds_sum 0.002
prediction_latency_seconds_count 1
`
	if err := testutil.GatherAndCompare(registry, strings.NewReader(expected), "prediction_latency_seconds"); err != nil {
		t.Errorf("unexpected latency histogram: %v", err)
	}

	if n := testutil.CollectAndCount(m.RiskScores); n != 1 {
		t.Errorf("Expected 1 risk score series, got %d", n)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())
	m.PredictionsInc("diabetes")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if rec.Code != 200 {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(string(body), `predictions_total{condition="diabetes"} 1`) {
		t.Errorf("exposition missing predictions_total:\n%s", body)
	}
}
