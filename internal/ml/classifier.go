// Package ml provides the classifier artifacts behind each condition.
// It defines the Classifier capability interfaces, loads artifacts from the
// model directory (native JSON linear models and ONNX models evaluated through
// an onnxruntime subprocess), and holds them in a Registry that is built once
// at startup and only read afterwards.
package ml

import (
	"fmt"
	"math"
)

// Classifier is a loaded binary classifier.
type Classifier interface {
	// Predict returns the predicted class label for one feature vector.
	Predict(features []float64) (int, error)
}

// ProbabilityEstimator is implemented by classifiers that can report class
// probabilities. The result is the [negative, positive] pair, or nil when the
// underlying model only produces labels.
type ProbabilityEstimator interface {
	PredictProba(features []float64) ([]float64, error)
}

// jointClassifier is implemented by classifiers that produce label and
// probabilities from a single evaluation.
type jointClassifier interface {
	classify(features []float64) (Outcome, error)
}

// Outcome is a classifier's answer for one vector.
type Outcome struct {
	Label       int
	Probability []float64 // nil when the classifier has no probability output
}

// Classify runs c on features, asking for probabilities when c supports them.
func Classify(c Classifier, features []float64) (Outcome, error) {
	var (
		out Outcome
		err error
	)
	if jc, ok := c.(jointClassifier); ok {
		out, err = jc.classify(features)
		if err != nil {
			return Outcome{}, err
		}
	} else {
		out.Label, err = c.Predict(features)
		if err != nil {
			return Outcome{}, fmt.Errorf("predict: %w", err)
		}
		if pe, ok := c.(ProbabilityEstimator); ok {
			out.Probability, err = pe.PredictProba(features)
			if err != nil {
				return Outcome{}, fmt.Errorf("predict_proba: %w", err)
			}
		}
	}
	if err := checkProbability(out.Probability); err != nil {
		return Outcome{}, err
	}
	return out, nil
}

func checkProbability(p []float64) error {
	if p == nil {
		return nil
	}
	if len(p) != 2 {
		return fmt.Errorf("expected 2 probabilities, got %d", len(p))
	}
	for i, v := range p {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return fmt.Errorf("invalid probability %d: %f", i, v)
		}
	}
	return nil
}

func checkVector(features []float64, want int) error {
	if len(features) != want {
		return fmt.Errorf("expected %d features, got %d", want, len(features))
	}
	for i, f := range features {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("feature %d is not finite", i)
		}
	}
	return nil
}
