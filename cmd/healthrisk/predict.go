package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"healthrisk/internal/client"
	"healthrisk/internal/common"

	"github.com/spf13/cobra"
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Score a patient form against a running service",
	Long: `Score a patient form against a running service.

The form is read from --file (JSON with the same field names as the flags'
camelCase equivalents) or built from flags. Flags override values from the file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPredict(cmd)
	},
}

func init() {
	addPredictFlags(predictCmd)
}

func addPredictFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("url", "", "Service base URL (overrides HEALTHRISK_URL env var)")
	f.Duration("timeout", common.DefaultClientTimeout, "Request timeout")
	f.String("file", "", "Read the form from a JSON file")
	f.Bool("raw", false, "Print the full service response instead of the summary")

	f.Float64("age", 0, "Age in years")
	f.String("sex", "", "Male, Female or other")
	f.Float64("bmi", 0, "Body mass index")
	f.Bool("smoking", false, "Current smoker")
	f.Bool("diabetes-family-history", false, "Family history of diabetes")
	f.Float64("bp-systolic", 0, "Systolic blood pressure")
	f.Float64("bp-diastolic", 0, "Diastolic blood pressure")
	f.Float64("blood-sugar", 0, "Blood sugar")
	f.Float64("cholesterol", 0, "Total cholesterol")
	f.String("exposure", "", "Environmental exposure: low, medium or high")
	f.String("cough", "", "Coughing frequency: rare, occasional or frequent")
}

func runPredict(cmd *cobra.Command) error {
	form, err := formFromFlags(cmd)
	if err != nil {
		return err
	}
	fs, err := form.Features()
	if err != nil {
		return err
	}

	timeout, _ := cmd.Flags().GetDuration("timeout")
	c := client.New(serviceURL(cmd), timeout)

	ctx, cancel := contextWithTimeout(cmd, timeout)
	defer cancel()

	resp, err := c.Predict(ctx, fs)
	if err != nil {
		return err
	}

	if raw, _ := cmd.Flags().GetBool("raw"); raw {
		return printJSON(cmd, resp)
	}
	return printJSON(cmd, map[string]any{"summary": client.Summarize(resp)})
}

func formFromFlags(cmd *cobra.Command) (client.Form, error) {
	var form client.Form
	flags := cmd.Flags()

	if path, _ := flags.GetString("file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return form, fmt.Errorf("read form: %w", err)
		}
		if err := json.Unmarshal(data, &form); err != nil {
			return form, fmt.Errorf("parse form %s: %w", path, err)
		}
	}

	numbers := map[string]**float64{
		"age":          &form.Age,
		"bmi":          &form.BMI,
		"bp-systolic":  &form.BloodPressureSystolic,
		"bp-diastolic": &form.BloodPressureDiastolic,
		"blood-sugar":  &form.BloodSugar,
		"cholesterol":  &form.Cholesterol,
	}
	for name, dst := range numbers {
		if flags.Changed(name) {
			v, _ := flags.GetFloat64(name)
			*dst = &v
		}
	}

	bools := map[string]**bool{
		"smoking":                 &form.Smoking,
		"diabetes-family-history": &form.DiabetesFamilyHistory,
	}
	for name, dst := range bools {
		if flags.Changed(name) {
			v, _ := flags.GetBool(name)
			*dst = &v
		}
	}

	strs := map[string]*string{
		"sex":      &form.Sex,
		"exposure": &form.EnvironmentalExposure,
		"cough":    &form.CoughingFrequency,
	}
	for name, dst := range strs {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	return form, nil
}

func serviceURL(cmd *cobra.Command) string {
	if u, _ := cmd.Flags().GetString("url"); u != "" {
		return u
	}
	if u := os.Getenv(common.EnvServerURL); u != "" {
		return u
	}
	return common.DefaultServerURL
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// guard against a zero --timeout disabling the deadline entirely
func effectiveTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return common.DefaultClientTimeout
	}
	return d
}
