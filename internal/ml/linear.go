package ml

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const (
	KindLogistic  = "logistic_regression"
	KindLinearSVM = "linear_svm"

	defaultDecisionThreshold = 0.5
)

//go:embed artifact.schema.json
var artifactSchemaJSON []byte

var (
	artifactSchemaOnce sync.Once
	artifactSchema     *jsonschema.Schema
	artifactSchemaErr  error
)

// LinearArtifact is the on-disk form of a native linear model.
type LinearArtifact struct {
	Kind         string    `json:"kind"`
	Version      string    `json:"version,omitempty"`
	Features     []string  `json:"features"`
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
	Threshold    *float64  `json:"threshold,omitempty"`
}

type linear struct {
	version      string
	coefficients []float64
	intercept    float64
}

// ModelVersion returns the version string recorded in the artifact.
func (l linear) ModelVersion() string { return l.version }

func (l linear) margin(x []float64) (float64, error) {
	if err := checkVector(x, len(l.coefficients)); err != nil {
		return 0, err
	}
	z := l.intercept
	for i, w := range l.coefficients {
		z += w * x[i]
	}
	return z, nil
}

// LogisticModel is a logistic regression; it reports class probabilities.
type LogisticModel struct {
	linear
	threshold float64
}

func (m *LogisticModel) PredictProba(x []float64) ([]float64, error) {
	z, err := m.margin(x)
	if err != nil {
		return nil, err
	}
	p := sigmoid(z)
	return []float64{1 - p, p}, nil
}

func (m *LogisticModel) Predict(x []float64) (int, error) {
	proba, err := m.PredictProba(x)
	if err != nil {
		return 0, err
	}
	if proba[1] >= m.threshold {
		return 1, nil
	}
	return 0, nil
}

// LinearSVM is a linear max-margin classifier. It only produces labels.
type LinearSVM struct {
	linear
}

func (m *LinearSVM) Predict(x []float64) (int, error) {
	z, err := m.margin(x)
	if err != nil {
		return 0, err
	}
	if z >= 0 {
		return 1, nil
	}
	return 0, nil
}

// ParseLinear decodes and schema-checks a linear artifact.
func ParseLinear(data []byte) (Classifier, *LinearArtifact, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("invalid JSON: %w", err)
	}
	schema, err := compiledArtifactSchema()
	if err != nil {
		return nil, nil, fmt.Errorf("compile artifact schema: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, nil, fmt.Errorf("schema validation failed: %w", err)
	}

	var a LinearArtifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, nil, fmt.Errorf("decode artifact: %w", err)
	}
	if len(a.Coefficients) != len(a.Features) {
		return nil, nil, fmt.Errorf("artifact has %d coefficients for %d features", len(a.Coefficients), len(a.Features))
	}
	for i, w := range a.Coefficients {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, nil, fmt.Errorf("coefficient %d is not finite", i)
		}
	}

	base := linear{
		version:      a.Version,
		coefficients: a.Coefficients,
		intercept:    a.Intercept,
	}
	switch a.Kind {
	case KindLogistic:
		threshold := defaultDecisionThreshold
		if a.Threshold != nil {
			threshold = *a.Threshold
		}
		return &LogisticModel{linear: base, threshold: threshold}, &a, nil
	case KindLinearSVM:
		return &LinearSVM{linear: base}, &a, nil
	default:
		return nil, nil, fmt.Errorf("unsupported model kind %q", a.Kind)
	}
}

func compiledArtifactSchema() (*jsonschema.Schema, error) {
	artifactSchemaOnce.Do(func() {
		var def any
		if err := json.Unmarshal(artifactSchemaJSON, &def); err != nil {
			artifactSchemaErr = fmt.Errorf("parse schema definition: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		const url = "schema://linear-artifact.json"
		if err := c.AddResource(url, def); err != nil {
			artifactSchemaErr = fmt.Errorf("add resource: %w", err)
			return
		}
		artifactSchema, artifactSchemaErr = c.Compile(url)
	})
	return artifactSchema, artifactSchemaErr
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}
