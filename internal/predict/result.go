package predict

import (
	"encoding/json"

	"healthrisk/internal/condition"
	"healthrisk/internal/features"
)

// Result is one condition's outcome. Exactly one of the success fields or
// Error is meaningful; Failed reports which.
type Result struct {
	RiskScore    int
	Probability  []float64 // [negative, positive], nil when the classifier has no probabilities
	Prediction   int
	FeaturesUsed []string

	Error            string
	FeaturesRequired []string
}

// Failed reports whether the condition could not be evaluated.
func (r Result) Failed() bool { return r.Error != "" }

type successJSON struct {
	RiskScore    int       `json:"risk_score"`
	Probability  []float64 `json:"probability"`
	FeaturesUsed []string  `json:"features_used"`
	Prediction   int       `json:"prediction"`
}

type failureJSON struct {
	Error            string   `json:"error"`
	FeaturesRequired []string `json:"features_required"`
}

func (r Result) MarshalJSON() ([]byte, error) {
	if r.Failed() {
		return json.Marshal(failureJSON{Error: r.Error, FeaturesRequired: r.FeaturesRequired})
	}
	return json.Marshal(successJSON{
		RiskScore:    r.RiskScore,
		Probability:  r.Probability,
		FeaturesUsed: r.FeaturesUsed,
		Prediction:   r.Prediction,
	})
}

func (r *Result) UnmarshalJSON(data []byte) error {
	var raw struct {
		successJSON
		failureJSON
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Error != "" {
		*r = Result{Error: raw.Error, FeaturesRequired: raw.FeaturesRequired}
		return nil
	}
	*r = Result{
		RiskScore:    raw.RiskScore,
		Probability:  raw.Probability,
		Prediction:   raw.Prediction,
		FeaturesUsed: raw.FeaturesUsed,
	}
	return nil
}

// Response is the aggregate answer for one request.
type Response struct {
	Predictions      map[condition.Name]Result `json:"predictions"`
	FeaturesReceived features.FeatureSet       `json:"features_received"`
}
