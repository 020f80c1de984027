package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"healthrisk/internal/common"
	"healthrisk/internal/condition"
	"healthrisk/internal/ml"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Manage model artifacts",
}

var modelsSampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Write sample logistic regression artifacts for every condition",
	Long: `Write sample logistic regression artifacts for every condition.

The coefficients are hand-picked so that typical adult values land near the
decision boundary. They are meant for local runs and smoke tests, not for
clinical use.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		force, _ := cmd.Flags().GetBool("force")
		written, err := writeSampleModels(dir, force)
		for _, p := range written {
			fmt.Fprintln(cmd.OutOrStdout(), "wrote", p)
		}
		return err
	},
}

func init() {
	modelsSampleCmd.Flags().String("dir", common.DefaultModelDir, "Directory to write artifacts into")
	modelsSampleCmd.Flags().Bool("force", false, "Overwrite existing artifacts")
	modelsCmd.AddCommand(modelsSampleCmd)
}

type sampleModel struct {
	coefficients map[string]float64
	intercept    float64
}

var sampleModels = map[condition.Name]sampleModel{
	condition.Diabetes: {
		coefficients: map[string]float64{"age": 0.04, "bmi": 0.1, "diabetesFamilyHistory": 0.8, "bloodSugar": 0.05},
		intercept:    -14,
	},
	condition.HeartDisease: {
		coefficients: map[string]float64{"age": 0.06, "sex": 0.5, "cholesterol": 0.015, "smoking": 0.7, "bloodPressureSystolic": 0.03},
		intercept:    -11.5,
	},
	condition.Respiratory: {
		coefficients: map[string]float64{"age": 0.03, "bmi": 0.02, "smoking": 1.2, "environmentalExposure": 0.6, "coughingFrequency": 0.8},
		intercept:    -5,
	},
	condition.BloodPressure: {
		coefficients: map[string]float64{"age": 0.04, "bmi": 0.08, "cholesterol": 0.006, "bloodPressureSystolic": 0.06},
		intercept:    -13.5,
	},
}

// writeSampleModels writes one artifact per catalog condition and returns the
// paths written. Existing files are kept unless force is set.
func writeSampleModels(dir string, force bool) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create model dir: %w", err)
	}

	var written []string
	for _, spec := range condition.All() {
		sample, ok := sampleModels[spec.Name]
		if !ok {
			return written, fmt.Errorf("no sample coefficients for %s", spec.Name)
		}

		artifact := ml.LinearArtifact{
			Kind:         ml.KindLogistic,
			Version:      "sample-" + version,
			Features:     spec.Required,
			Coefficients: make([]float64, len(spec.Required)),
			Intercept:    sample.intercept,
		}
		for i, f := range spec.Required {
			w, ok := sample.coefficients[f]
			if !ok {
				return written, fmt.Errorf("%s: no sample coefficient for %s", spec.Name, f)
			}
			artifact.Coefficients[i] = w
		}

		data, err := json.MarshalIndent(artifact, "", "  ")
		if err != nil {
			return written, err
		}
		if _, _, err := ml.ParseLinear(data); err != nil {
			return written, fmt.Errorf("%s: sample artifact rejected: %w", spec.Name, err)
		}

		path := filepath.Join(dir, spec.Artifact+"."+ml.FormatLinear)
		flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
		if !force {
			flags |= os.O_EXCL
		}
		f, err := os.OpenFile(path, flags, 0o644)
		if errors.Is(err, fs.ErrExist) {
			log.Warn().Str("path", path).Msg("artifact exists, skipping (use --force to overwrite)")
			continue
		}
		if err != nil {
			return written, err
		}
		_, err = f.Write(append(data, '\n'))
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return written, fmt.Errorf("write %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}
