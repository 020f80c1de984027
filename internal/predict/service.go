// Package predict evaluates a feature set against every loaded condition model.
//
// A request is validated once. Each available condition is then transformed,
// classified and scored independently; an error or panic in one condition is
// reported in that condition's Result and never affects the others.
package predict

import (
	"errors"
	"fmt"
	"time"

	"healthrisk/internal/condition"
	"healthrisk/internal/features"
	"healthrisk/internal/ml"
	"healthrisk/internal/risk"

	"github.com/rs/zerolog/log"
)

// MetricsInterface defines the metrics the orchestrator reports.
type MetricsInterface interface {
	PredictionsInc(condition string)
	ConditionFailuresInc(condition string)
	RiskScoreObserve(condition string, score float64)
	PredictionLatencyObserve(seconds float64)
	ValidationFailuresInc()
}

// Service runs predictions against a registry. It holds no per-request state
// and is safe for concurrent use.
type Service struct {
	registry *ml.Registry
	metrics  MetricsInterface
}

// NewService creates a service. metrics may be nil.
func NewService(registry *ml.Registry, metrics MetricsInterface) (*Service, error) {
	if registry == nil || registry.Len() == 0 {
		return nil, ml.ErrNoModelsAvailable
	}
	return &Service{registry: registry, metrics: metrics}, nil
}

// Registry returns the registry the service evaluates against.
func (s *Service) Registry() *ml.Registry { return s.registry }

// Predict validates fs and evaluates it. Invalid input yields a
// *features.ValidationError and no per-condition work is done.
func (s *Service) Predict(fs features.FeatureSet) (Response, error) {
	if details := features.Validate(fs); len(details) > 0 {
		if s.metrics != nil {
			s.metrics.ValidationFailuresInc()
		}
		log.Warn().Strs("details", details).Msg("input validation failed")
		return Response{}, &features.ValidationError{Details: details}
	}
	return s.Evaluate(fs), nil
}

// Evaluate runs every available condition on an already validated fs.
func (s *Service) Evaluate(fs features.FeatureSet) Response {
	start := time.Now()
	resp := Response{
		Predictions:      make(map[condition.Name]Result, s.registry.Len()),
		FeaturesReceived: fs,
	}
	for _, entry := range s.registry.Entries() {
		resp.Predictions[entry.Spec.Name] = s.evaluate(entry, fs)
	}
	if s.metrics != nil {
		s.metrics.PredictionLatencyObserve(time.Since(start).Seconds())
	}
	return resp
}

func (s *Service) evaluate(entry ml.Entry, fs features.FeatureSet) (res Result) {
	name := entry.Spec.Name
	defer func() {
		if r := recover(); r != nil {
			res = s.failure(entry.Spec, fmt.Errorf("internal error: %v", r))
		}
	}()

	t, err := features.Transform(fs, entry.Spec)
	if err != nil {
		return s.failure(entry.Spec, err)
	}

	out, err := ml.Classify(entry.Classifier, t.Vector)
	if err != nil {
		return s.failure(entry.Spec, err)
	}

	score := risk.Score(out.Probability, t.Values, name)
	if s.metrics != nil {
		s.metrics.PredictionsInc(string(name))
		s.metrics.RiskScoreObserve(string(name), float64(score))
	}
	log.Debug().
		Str("condition", string(name)).
		Int("prediction", out.Label).
		Int("risk_score", score).
		Msg("condition evaluated")

	return Result{
		RiskScore:    score,
		Probability:  out.Probability,
		Prediction:   out.Label,
		FeaturesUsed: entry.Spec.Required,
	}
}

// featureError is implemented by errors tied to one input feature.
type featureError interface {
	error
	FeatureName() string
}

func (s *Service) failure(spec condition.Spec, err error) Result {
	if s.metrics != nil {
		s.metrics.ConditionFailuresInc(string(spec.Name))
	}
	ev := log.Error().Err(err).Str("condition", string(spec.Name))
	var fe featureError
	if errors.As(err, &fe) {
		ev = ev.Str("feature", fe.FeatureName())
	}
	var me *features.MissingFeatureError
	if errors.As(err, &me) {
		ev = ev.Strs("missing", me.Keys)
	}
	ev.Msg("error predicting condition")

	return Result{Error: err.Error(), FeaturesRequired: spec.Required}
}
