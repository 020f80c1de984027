package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"healthrisk/internal/common"
	"healthrisk/internal/condition"
	"healthrisk/internal/ml"
	"healthrisk/internal/predict"
	"healthrisk/internal/server"
	"healthrisk/internal/storage"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClassifier struct{}

func (stubClassifier) Predict([]float64) (int, error) { return 1, nil }

func (stubClassifier) PredictProba([]float64) ([]float64, error) { return []float64{0.2, 0.8}, nil }

func newPredictCommand(t *testing.T, args ...string) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	cmd := &cobra.Command{Use: "predict"}
	addPredictFlags(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetContext(context.Background())
	return cmd, out
}

func TestFormFromFlags(t *testing.T) {
	cmd, _ := newPredictCommand(t,
		"--age", "50", "--sex", "Female", "--smoking",
		"--blood-sugar", "150", "--exposure", "high",
	)
	form, err := formFromFlags(cmd)
	require.NoError(t, err)

	require.NotNil(t, form.Age)
	assert.Equal(t, 50.0, *form.Age)
	require.NotNil(t, form.Smoking)
	assert.True(t, *form.Smoking)
	require.NotNil(t, form.BloodSugar)
	assert.Equal(t, 150.0, *form.BloodSugar)
	assert.Equal(t, "Female", form.Sex)
	assert.Equal(t, "high", form.EnvironmentalExposure)

	assert.Nil(t, form.BMI, "unset flags stay missing")
	assert.Nil(t, form.DiabetesFamilyHistory)
	assert.Empty(t, form.CoughingFrequency)
}

func TestFormFromFlags_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "form.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"age": 40, "bmi": 22, "sex": "Male"}`), 0o600))

	cmd, _ := newPredictCommand(t, "--file", path, "--age", "65")
	form, err := formFromFlags(cmd)
	require.NoError(t, err)

	assert.Equal(t, 65.0, *form.Age)
	assert.Equal(t, 22.0, *form.BMI)
	assert.Equal(t, "Male", form.Sex)
}

func TestFormFromFlags_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "form.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"age": `), 0o600))

	cmd, _ := newPredictCommand(t, "--file", path)
	_, err := formFromFlags(cmd)
	assert.Error(t, err)

	cmd, _ = newPredictCommand(t, "--file", filepath.Join(t.TempDir(), "missing.json"))
	_, err = formFromFlags(cmd)
	assert.Error(t, err)
}

func TestServiceURL(t *testing.T) {
	t.Setenv(common.EnvServerURL, "")
	cmd, _ := newPredictCommand(t)
	assert.Equal(t, common.DefaultServerURL, serviceURL(cmd))

	t.Setenv(common.EnvServerURL, "http://risk.internal:8080")
	assert.Equal(t, "http://risk.internal:8080", serviceURL(cmd))

	cmd, _ = newPredictCommand(t, "--url", "http://127.0.0.1:9000")
	assert.Equal(t, "http://127.0.0.1:9000", serviceURL(cmd))
}

func TestRunPredict(t *testing.T) {
	spec, ok := condition.Lookup(condition.Diabetes)
	require.True(t, ok)
	reg, err := ml.NewRegistry(ml.Entry{Spec: spec, Classifier: stubClassifier{}})
	require.NoError(t, err)
	svc, err := predict.NewService(reg, nil)
	require.NoError(t, err)
	ts := httptest.NewServer(server.New(svc, server.Config{}).Handler())
	defer ts.Close()

	args := []string{
		"--url", ts.URL,
		"--age", "50", "--sex", "Male", "--bmi", "28", "--smoking",
		"--diabetes-family-history", "--bp-systolic", "130", "--bp-diastolic", "85",
		"--blood-sugar", "150", "--cholesterol", "210",
		"--exposure", "low", "--cough", "rare",
	}

	t.Run("summary", func(t *testing.T) {
		cmd, out := newPredictCommand(t, args...)
		require.NoError(t, runPredict(cmd))

		var got struct {
			Summary map[string]struct {
				RiskScore   int    `json:"riskScore"`
				Probability string `json:"probability"`
			} `json:"summary"`
		}
		require.NoError(t, json.Unmarshal(out.Bytes(), &got))
		require.Contains(t, got.Summary, "diabetes")
		assert.Equal(t, 79, got.Summary["diabetes"].RiskScore)
		assert.Equal(t, "80.00%", got.Summary["diabetes"].Probability)
	})

	t.Run("raw", func(t *testing.T) {
		cmd, out := newPredictCommand(t, append(args, "--raw")...)
		require.NoError(t, runPredict(cmd))

		var resp predict.Response
		require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
		require.Contains(t, resp.Predictions, condition.Diabetes)
		assert.Equal(t, 79, resp.Predictions[condition.Diabetes].RiskScore)
	})

	t.Run("incomplete form never reaches the server", func(t *testing.T) {
		cmd, out := newPredictCommand(t, "--url", ts.URL, "--age", "50")
		assert.Error(t, runPredict(cmd))
		assert.Empty(t, out.String())
	})
}

func TestRunLocalConditions(t *testing.T) {
	cmd := &cobra.Command{}
	out := &bytes.Buffer{}
	cmd.SetOut(out)

	require.NoError(t, runLocalConditions(cmd))
	text := out.String()
	for _, spec := range condition.All() {
		assert.Contains(t, text, string(spec.Name))
		assert.Contains(t, text, spec.Artifact)
	}
	assert.Contains(t, text, "bloodSugar=15(threshold)")
	assert.Contains(t, text, "smoking=15(flag)")
	assert.Contains(t, text, "FEATURE")
}

func TestVersionCommand(t *testing.T) {
	out := &bytes.Buffer{}
	versionCmd.SetOut(out)
	versionCmd.Run(versionCmd, nil)
	assert.Equal(t, "healthrisk (devel)\n", out.String())
}

func TestWriteSampleModels(t *testing.T) {
	dir := t.TempDir()

	written, err := writeSampleModels(dir, false)
	require.NoError(t, err)
	assert.Len(t, written, len(condition.All()))

	reg, results, err := ml.LoadRegistry(dir, condition.All(), ml.NewLoader(ml.LoaderConfig{}, nil), nil)
	require.NoError(t, err)
	assert.Equal(t, len(condition.All()), reg.Len())
	for _, r := range results {
		assert.Equal(t, ml.StatusLoaded, r.Status, r.Condition)
		assert.Equal(t, "sample-"+version, r.Version)
	}

	again, err := writeSampleModels(dir, false)
	require.NoError(t, err)
	assert.Empty(t, again, "existing artifacts are kept")

	forced, err := writeSampleModels(dir, true)
	require.NoError(t, err)
	assert.Len(t, forced, len(condition.All()))
}

func TestHistoryOutput(t *testing.T) {
	dir := t.TempDir()
	catalog, err := storage.New(dir)
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, catalog.RecordLoads([]ml.ArtifactInfo{
		{Condition: condition.Diabetes, Path: "m/diabetes_model.json", Format: "json", SHA256: strings.Repeat("a", 64), LoadedAt: now.Add(-time.Hour), Status: ml.StatusLoaded},
		{Condition: condition.Diabetes, Path: "m/diabetes_model.json", Format: "json", LoadedAt: now, Status: ml.StatusFailed, Error: "broken"},
		{Condition: condition.HeartDisease, Path: "m/heart_disease_model.*", LoadedAt: now, Status: ml.StatusMissing, Error: "model artifact not found"},
	}))

	records, err := latestRecords(catalog)
	require.NoError(t, err)
	require.NoError(t, catalog.Close())
	require.Len(t, records, 2)
	assert.Equal(t, condition.Diabetes, records[0].Condition)
	assert.Equal(t, ml.StatusFailed, records[0].Status)
	assert.Equal(t, condition.HeartDisease, records[1].Condition)

	cmd := &cobra.Command{}
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	require.NoError(t, printHistory(cmd, records))
	text := out.String()
	assert.Contains(t, text, "CONDITION")
	assert.Contains(t, text, "broken")
	assert.Contains(t, text, "model artifact not found")

	out.Reset()
	require.NoError(t, printHistory(cmd, nil))
	assert.Equal(t, "no model loads recorded\n", out.String())
}
