// Package risk turns a classifier probability and a condition's coerced
// features into a bounded 1-100 risk score.
package risk

import (
	"math"
	"sort"

	"healthrisk/internal/condition"
)

const (
	// DefaultScore is returned when the classifier cannot report a probability.
	DefaultScore = 50
	MinScore     = 1
	MaxScore     = 100

	// probabilityScale maps the positive-class probability onto 0-70 points.
	probabilityScale = 70.0
)

// Threshold holds the clinical cutoffs for a measured quantity.
type Threshold struct {
	High     float64 `json:"high"`
	Moderate float64 `json:"moderate"`
}

var thresholds = map[string]Threshold{
	"age":                    {High: 60, Moderate: 45},
	"bmi":                    {High: 30, Moderate: 25},
	"bloodSugar":             {High: 140, Moderate: 100},
	"cholesterol":            {High: 240, Moderate: 200},
	"bloodPressureSystolic":  {High: 140, Moderate: 120},
	"bloodPressureDiastolic": {High: 90, Moderate: 80},
}

// tierShare is the fraction of a tiered weight earned by category code
// (0 low, 1 medium, 2 high).
var tierShare = map[float64]float64{0: 0, 1: 0.5, 2: 1}

// Thresholds returns a copy of the clinical threshold table.
func Thresholds() map[string]Threshold {
	out := make(map[string]Threshold, len(thresholds))
	for k, v := range thresholds {
		out[k] = v
	}
	return out
}

// ThresholdFeatures returns the names of the features with thresholds, sorted.
func ThresholdFeatures() []string {
	out := make([]string, 0, len(thresholds))
	for k := range thresholds {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ThresholdFor returns the cutoffs for feature, if it has any.
func ThresholdFor(feature string) (Threshold, bool) {
	t, ok := thresholds[feature]
	return t, ok
}

// Score computes the risk score for one condition. proba is the classifier's
// [negative, positive] probability pair, or nil when the classifier has none.
// values are the coerced features produced by the transformer for the same condition.
func Score(proba []float64, values map[string]float64, name condition.Name) int {
	if len(proba) < 2 {
		return DefaultScore
	}

	total := proba[1] * probabilityScale
	if spec, ok := condition.Lookup(name); ok {
		for _, w := range spec.Weights {
			v, ok := values[w.Feature]
			if !ok {
				continue
			}
			total += Contribution(w, v)
		}
	}
	return clamp(int(math.Round(total)))
}

// Contribution returns the points one weighted feature adds to the score.
func Contribution(w condition.Weight, value float64) float64 {
	switch w.Kind {
	case condition.Flag:
		if value != 0 {
			return w.Points
		}
	case condition.Tiered:
		return w.Points * tierShare[value]
	case condition.Threshold:
		t, ok := thresholds[w.Feature]
		if !ok {
			return 0
		}
		switch {
		case value >= t.High:
			return w.Points
		case value >= t.Moderate:
			return w.Points / 2
		}
	}
	return 0
}

func clamp(score int) int {
	return min(MaxScore, max(MinScore, score))
}
