package features

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"healthrisk/internal/condition"
)

// MissingFeatureError lists every request field a condition needs but did not receive.
type MissingFeatureError struct {
	Condition condition.Name
	Keys      []string
}

func (e *MissingFeatureError) Error() string {
	return fmt.Sprintf("missing required features for %s: [%s]", e.Condition, strings.Join(e.Keys, ", "))
}

// InvalidCategoricalValueError reports a categorical field outside its allowed codes or labels.
type InvalidCategoricalValueError struct {
	Feature string
	Value   Value
	Allowed []string
}

func (e *InvalidCategoricalValueError) Error() string {
	return fmt.Sprintf("invalid %s value %s: want one of %s or 0-%d",
		e.Feature, e.Value, strings.Join(e.Allowed, ", "), len(e.Allowed)-1)
}

func (e *InvalidCategoricalValueError) FeatureName() string { return e.Feature }

// FeatureTypeError reports a value that cannot be read as a number.
type FeatureTypeError struct {
	Feature string
	Value   Value
}

func (e *FeatureTypeError) Error() string {
	return fmt.Sprintf("feature %s: cannot convert %s to a number", e.Feature, e.Value)
}

func (e *FeatureTypeError) FeatureName() string { return e.Feature }

// Transformed is one condition's classifier input.
type Transformed struct {
	Vector []float64          // ordered as the condition's required features
	Values map[string]float64 // logical name -> coerced value, reused by the risk scorer
}

type coerceFunc func(feature string, v Value) (float64, error)

var (
	exposureLevels = []string{"low", "medium", "high"}
	coughLevels    = []string{"rare", "occasional", "frequent"}
	smokingTruthy  = map[string]bool{"true": true, "1": true, "yes": true}
)

var coercers = map[string]coerceFunc{
	"environmentalExposure": categorical(exposureLevels),
	"coughingFrequency":     categorical(coughLevels),
	"smoking":               coerceFlag,
}

// Transform builds the classifier vector for spec from a validated feature set.
func Transform(fs FeatureSet, spec condition.Spec) (Transformed, error) {
	var missing []string
	for _, name := range spec.Required {
		key := spec.Mapping[name]
		if _, ok := fs[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return Transformed{}, &MissingFeatureError{Condition: spec.Name, Keys: missing}
	}

	out := Transformed{
		Vector: make([]float64, 0, len(spec.Required)),
		Values: make(map[string]float64, len(spec.Required)),
	}
	for _, name := range spec.Required {
		coerce, ok := coercers[name]
		if !ok {
			coerce = coerceNumber
		}
		x, err := coerce(name, fs[spec.Mapping[name]])
		if err != nil {
			return Transformed{}, err
		}
		out.Vector = append(out.Vector, x)
		out.Values[name] = x
	}
	return out, nil
}

// categorical accepts an integral code in [0, len(levels)) or a case-insensitive label.
// Booleans count as codes 0 and 1.
func categorical(levels []string) coerceFunc {
	return func(feature string, v Value) (float64, error) {
		switch v.Kind() {
		case KindBool:
			b, _ := v.Bool()
			return boolFloat(b), nil
		case KindNumber:
			n, _ := v.Number()
			if n == math.Trunc(n) && n >= 0 && int(n) < len(levels) {
				return n, nil
			}
		case KindText:
			s, _ := v.Text()
			s = strings.ToLower(s)
			for i, l := range levels {
				if s == l {
					return float64(i), nil
				}
			}
		}
		return 0, &InvalidCategoricalValueError{Feature: feature, Value: v, Allowed: levels}
	}
}

// coerceFlag maps any value to 0 or 1. It never fails.
func coerceFlag(_ string, v Value) (float64, error) {
	switch v.Kind() {
	case KindBool:
		b, _ := v.Bool()
		return boolFloat(b), nil
	case KindText:
		s, _ := v.Text()
		return boolFloat(smokingTruthy[strings.ToLower(s)]), nil
	case KindNumber:
		n, _ := v.Number()
		return boolFloat(n != 0), nil
	case KindRaw:
		raw, _ := v.Raw()
		switch string(raw) {
		case "null", "[]", "{}":
			return 0, nil
		}
		return 1, nil
	}
	return 0, nil
}

func coerceNumber(feature string, v Value) (float64, error) {
	switch v.Kind() {
	case KindNumber:
		n, _ := v.Number()
		return n, nil
	case KindBool:
		b, _ := v.Bool()
		return boolFloat(b), nil
	case KindText:
		s, _ := v.Text()
		n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err == nil && !math.IsNaN(n) && !math.IsInf(n, 0) {
			return n, nil
		}
	}
	return 0, &FeatureTypeError{Feature: feature, Value: v}
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
