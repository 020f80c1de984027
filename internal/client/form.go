package client

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"healthrisk/internal/condition"
	"healthrisk/internal/features"
	"healthrisk/internal/predict"

	"github.com/rs/zerolog/log"
)

// Form is a patient intake form as submitted by a front end. Pointer fields
// distinguish an omitted answer from a zero value.
type Form struct {
	Age                    *float64 `json:"age,omitempty"`
	Sex                    string   `json:"sex,omitempty"`
	BMI                    *float64 `json:"bmi,omitempty"`
	Smoking                *bool    `json:"smoking,omitempty"`
	DiabetesFamilyHistory  *bool    `json:"diabetesFamilyHistory,omitempty"`
	BloodPressureSystolic  *float64 `json:"bloodPressureSystolic,omitempty"`
	BloodPressureDiastolic *float64 `json:"bloodPressureDiastolic,omitempty"`
	BloodSugar             *float64 `json:"bloodSugar,omitempty"`
	Cholesterol            *float64 `json:"cholesterol,omitempty"`
	EnvironmentalExposure  string   `json:"environmentalExposure,omitempty"`
	CoughingFrequency      string   `json:"coughingFrequency,omitempty"`
}

// MissingFieldsError lists every form field that was left empty.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

var (
	exposureLabels = []string{"low", "medium", "high"}
	coughLabels    = []string{"rare", "occasional", "frequent"}
)

// Features converts the form into the service's feature encoding. Sex is
// Male=1, Female=0, anything else 2; flags become 0/1; categorical answers
// become their level index.
func (f Form) Features() (features.FeatureSet, error) {
	var missing []string
	numbers := []struct {
		name string
		v    *float64
	}{
		{"age", f.Age},
		{"bmi", f.BMI},
		{"bloodPressureSystolic", f.BloodPressureSystolic},
		{"bloodPressureDiastolic", f.BloodPressureDiastolic},
		{"bloodSugar", f.BloodSugar},
		{"cholesterol", f.Cholesterol},
	}
	checks := []struct {
		name    string
		present bool
	}{
		{"age", f.Age != nil},
		{"sex", f.Sex != ""},
		{"bmi", f.BMI != nil},
		{"smoking", f.Smoking != nil},
		{"diabetesFamilyHistory", f.DiabetesFamilyHistory != nil},
		{"bloodPressureSystolic", f.BloodPressureSystolic != nil},
		{"bloodPressureDiastolic", f.BloodPressureDiastolic != nil},
		{"bloodSugar", f.BloodSugar != nil},
		{"cholesterol", f.Cholesterol != nil},
		{"environmentalExposure", f.EnvironmentalExposure != ""},
		{"coughingFrequency", f.CoughingFrequency != ""},
	}
	for _, c := range checks {
		if !c.present {
			missing = append(missing, c.name)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingFieldsError{Fields: missing}
	}

	fs := make(features.FeatureSet, len(checks))
	for _, n := range numbers {
		if math.IsNaN(*n.v) || math.IsInf(*n.v, 0) {
			return nil, fmt.Errorf("invalid numeric value for %s", n.name)
		}
		fs[n.name] = features.Number(*n.v)
	}

	exposure, err := levelIndex("environmentalExposure", f.EnvironmentalExposure, exposureLabels)
	if err != nil {
		return nil, err
	}
	cough, err := levelIndex("coughingFrequency", f.CoughingFrequency, coughLabels)
	if err != nil {
		return nil, err
	}

	fs["sex"] = features.Number(sexCode(f.Sex))
	fs["smoking"] = features.Number(flag(*f.Smoking))
	fs["diabetesFamilyHistory"] = features.Number(flag(*f.DiabetesFamilyHistory))
	fs["environmentalExposure"] = features.Number(exposure)
	fs["coughingFrequency"] = features.Number(cough)
	return fs, nil
}

func sexCode(s string) float64 {
	switch s {
	case "Male":
		return 1
	case "Female":
		return 0
	default:
		return 2
	}
}

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func levelIndex(field, label string, levels []string) (float64, error) {
	i := slices.Index(levels, label)
	if i < 0 {
		return 0, fmt.Errorf("invalid %s %q: want one of %s", field, label, strings.Join(levels, ", "))
	}
	return float64(i), nil
}

// Summary is the front-end view of one successful condition.
type Summary struct {
	RiskScore    int      `json:"riskScore"`
	Probability  string   `json:"probability"` // positive class as "NN.NN%", or "N/A"
	FeaturesUsed []string `json:"featuresUsed"`
}

// Summarize keeps the successful conditions of resp. Failed ones are logged
// and left out.
func Summarize(resp *predict.Response) map[condition.Name]Summary {
	out := make(map[condition.Name]Summary, len(resp.Predictions))
	for name, r := range resp.Predictions {
		if r.Failed() {
			log.Warn().Str("condition", string(name)).Str("error", r.Error).Msg("skipping condition in summary")
			continue
		}
		probability := "N/A"
		if len(r.Probability) == 2 {
			probability = fmt.Sprintf("%.2f%%", r.Probability[1]*100)
		}
		out[name] = Summary{
			RiskScore:    r.RiskScore,
			Probability:  probability,
			FeaturesUsed: r.FeaturesUsed,
		}
	}
	return out
}
