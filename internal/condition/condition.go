// Package condition defines the clinical conditions served by the risk engine.
// Each condition carries the ordered feature schema its classifier was trained on,
// the mapping from those logical names to request fields, and the weights the
// risk scorer applies on top of the classifier probability.
//
// The catalog is static. Specs returned from this package share backing storage
// and must be treated as read-only.
package condition

import (
	"fmt"
	"sort"
)

// Name identifies a condition.
type Name string

const (
	Diabetes      Name = "diabetes"
	HeartDisease  Name = "heart_disease"
	Respiratory   Name = "respiratory"
	BloodPressure Name = "blood_pressure"
)

// WeightKind selects how a weighted feature contributes to the risk score.
type WeightKind int

const (
	// Flag contributes the full weight when the coerced value is non-zero.
	Flag WeightKind = iota + 1
	// Tiered contributes by low/medium/high category code (0/1/2).
	Tiered
	// Threshold compares the value against the feature's clinical thresholds.
	Threshold
)

func (k WeightKind) String() string {
	switch k {
	case Flag:
		return "flag"
	case Tiered:
		return "tiered"
	case Threshold:
		return "threshold"
	default:
		return fmt.Sprintf("WeightKind(%d)", int(k))
	}
}

// Weight is one entry of a condition's risk-weight table.
type Weight struct {
	Feature string
	Points  float64
	Kind    WeightKind
}

// Spec describes one condition's model contract.
type Spec struct {
	Name     Name
	Artifact string            // artifact base name inside the model directory
	Required []string          // logical feature names, in classifier input order
	Mapping  map[string]string // logical name -> request field
	Weights  []Weight
}

// Validate checks that Required and Mapping cover exactly the same names and
// that every weighted feature is part of the schema.
func (s Spec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("condition name is empty")
	}
	if len(s.Required) == 0 {
		return fmt.Errorf("%s: no required features", s.Name)
	}
	seen := make(map[string]bool, len(s.Required))
	for _, f := range s.Required {
		if seen[f] {
			return fmt.Errorf("%s: duplicate required feature %q", s.Name, f)
		}
		seen[f] = true
		if _, ok := s.Mapping[f]; !ok {
			return fmt.Errorf("%s: required feature %q has no mapping", s.Name, f)
		}
	}
	if len(s.Mapping) != len(s.Required) {
		extra := make([]string, 0)
		for k := range s.Mapping {
			if !seen[k] {
				extra = append(extra, k)
			}
		}
		sort.Strings(extra)
		return fmt.Errorf("%s: mapping has keys not in required list: %v", s.Name, extra)
	}
	for _, w := range s.Weights {
		if !seen[w.Feature] {
			return fmt.Errorf("%s: weighted feature %q is not a required feature", s.Name, w.Feature)
		}
	}
	return nil
}

func identity(names ...string) map[string]string {
	m := make(map[string]string, len(names))
	for _, n := range names {
		m[n] = n
	}
	return m
}

var catalog = []Spec{
	{
		Name:     Diabetes,
		Artifact: "diabetes_model",
		Required: []string{"age", "bmi", "diabetesFamilyHistory", "bloodSugar"},
		Mapping:  identity("age", "bmi", "diabetesFamilyHistory", "bloodSugar"),
		Weights: []Weight{
			{Feature: "bloodSugar", Points: 15, Kind: Threshold},
			{Feature: "bmi", Points: 10, Kind: Threshold},
			{Feature: "age", Points: 5, Kind: Threshold},
		},
	},
	{
		Name:     HeartDisease,
		Artifact: "heart_disease_model",
		Required: []string{"age", "sex", "cholesterol", "smoking", "bloodPressureSystolic"},
		Mapping:  identity("age", "sex", "cholesterol", "smoking", "bloodPressureSystolic"),
		Weights: []Weight{
			{Feature: "bloodPressureSystolic", Points: 15, Kind: Threshold},
			{Feature: "cholesterol", Points: 10, Kind: Threshold},
			{Feature: "age", Points: 5, Kind: Threshold},
		},
	},
	{
		Name:     Respiratory,
		Artifact: "respiratory_disease_model",
		Required: []string{"age", "bmi", "smoking", "environmentalExposure", "coughingFrequency"},
		Mapping:  identity("age", "bmi", "smoking", "environmentalExposure", "coughingFrequency"),
		Weights: []Weight{
			{Feature: "smoking", Points: 15, Kind: Flag},
			{Feature: "environmentalExposure", Points: 10, Kind: Tiered},
			{Feature: "age", Points: 5, Kind: Threshold},
		},
	},
	{
		Name:     BloodPressure,
		Artifact: "blood_pressure_model",
		Required: []string{"age", "bmi", "cholesterol", "bloodPressureSystolic"},
		Mapping:  identity("age", "bmi", "cholesterol", "bloodPressureSystolic"),
		Weights: []Weight{
			{Feature: "bloodPressureSystolic", Points: 20, Kind: Threshold},
			{Feature: "age", Points: 5, Kind: Threshold},
			{Feature: "bmi", Points: 5, Kind: Threshold},
		},
	},
}

// All returns every known condition in catalog order.
func All() []Spec {
	out := make([]Spec, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup returns the spec for name.
func Lookup(name Name) (Spec, bool) {
	for _, s := range catalog {
		if s.Name == name {
			return s, true
		}
	}
	return Spec{}, false
}

// Names returns the catalog's condition names in order.
func Names() []Name {
	names := make([]Name, len(catalog))
	for i, s := range catalog {
		names[i] = s.Name
	}
	return names
}

// Rank orders names by catalog position; unknown names sort last.
func Rank(name Name) int {
	for i, s := range catalog {
		if s.Name == name {
			return i
		}
	}
	return len(catalog)
}
