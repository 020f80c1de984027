package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ONNXClassifier evaluates an ONNX model by running onnxruntime in a Python
// subprocess. Each call is independent, so a single instance is safe for
// concurrent use.
type ONNXClassifier struct {
	modelPath  string
	pythonPath string
	scriptPath string
	width      int
	timeout    time.Duration
	metrics    MetricsInterface
}

type inferenceRequest struct {
	Features []float64 `json:"features"`
}

type inferenceResponse struct {
	Probabilities []float64 `json:"probabilities"`
	Prediction    int       `json:"prediction"`
	Error         string    `json:"error,omitempty"`
}

func (c *ONNXClassifier) Predict(features []float64) (int, error) {
	out, err := c.classify(features)
	if err != nil {
		return 0, err
	}
	return out.Label, nil
}

func (c *ONNXClassifier) PredictProba(features []float64) ([]float64, error) {
	out, err := c.classify(features)
	if err != nil {
		return nil, err
	}
	return out.Probability, nil
}

func (c *ONNXClassifier) classify(features []float64) (Outcome, error) {
	start := time.Now()
	defer func() {
		if c.metrics != nil {
			c.metrics.InferenceLatencyObserve(time.Since(start).Seconds())
		}
	}()

	if err := checkVector(features, c.width); err != nil {
		return Outcome{}, err
	}

	reqJSON, err := json.Marshal(inferenceRequest{Features: features})
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.pythonPath, c.scriptPath, c.modelPath)
	cmd.Stdin = bytes.NewReader(reqJSON)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			if c.metrics != nil {
				c.metrics.InferenceTimeoutsInc()
			}
			return Outcome{}, fmt.Errorf("inference timeout after %v", c.timeout)
		}
		log.Error().
			Err(err).
			Str("python_path", c.pythonPath).
			Str("model_path", c.modelPath).
			Str("stderr", stderr.String()).
			Msg("onnx inference execution failed")
		if msg := parseScriptError(stdout.Bytes()); msg != "" {
			return Outcome{}, fmt.Errorf("onnx inference error: %s", msg)
		}
		return Outcome{}, fmt.Errorf("onnx inference failed: %w, stderr: %s", err, strings.TrimSpace(stderr.String()))
	}

	var resp inferenceResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return Outcome{}, fmt.Errorf("failed to parse response: %w, stdout: %s", err, stdout.String())
	}
	if resp.Error != "" {
		return Outcome{}, fmt.Errorf("onnx inference error: %s", resp.Error)
	}

	log.Debug().
		Str("model_path", c.modelPath).
		Floats64("features", features).
		Floats64("probabilities", resp.Probabilities).
		Int("prediction", resp.Prediction).
		Msg("onnx prediction")

	return Outcome{Label: resp.Prediction, Probability: resp.Probabilities}, nil
}

func parseScriptError(stdout []byte) string {
	var resp inferenceResponse
	if json.Unmarshal(stdout, &resp) == nil {
		return resp.Error
	}
	return ""
}

// findPython returns explicit when set, otherwise the first interpreter on
// PATH that can import onnxruntime.
func findPython(explicit string) (string, error) {
	if explicit != "" {
		path, err := exec.LookPath(explicit)
		if err != nil {
			return "", fmt.Errorf("python interpreter %q: %w", explicit, err)
		}
		return path, nil
	}

	candidates := []string{"python3", "python"}
	if venv := os.Getenv("VIRTUAL_ENV"); venv != "" {
		candidates = append([]string{
			filepath.Join(venv, "bin", "python3"),
			filepath.Join(venv, "Scripts", "python.exe"),
		}, candidates...)
	}

	for _, candidate := range candidates {
		path, err := exec.LookPath(candidate)
		if err != nil {
			continue
		}
		cmd := exec.Command(path, "-c", "import sys, onnxruntime; print('Python', sys.version)")
		if output, err := cmd.Output(); err == nil && strings.Contains(string(output), "Python 3") {
			log.Info().Str("python_path", path).Msg("using python with onnxruntime")
			return path, nil
		}
	}
	return "", fmt.Errorf("no Python 3 interpreter with onnxruntime found")
}

func writeInferenceScript(dir string) (string, error) {
	path := filepath.Join(dir, "onnx_inference.py")
	if err := os.WriteFile(path, []byte(inferenceScript), 0o755); err != nil {
		return "", err
	}
	return path, nil
}

const inferenceScript = `#!/usr/bin/env python3
import sys
import json

try:
    import numpy as np
    import onnxruntime as ort
except ImportError as e:
    print(json.dumps({"error": "onnxruntime not installed: %s" % e}))
    sys.exit(1)


def positive_pair(row):
    if isinstance(row, dict):
        return [float(row.get(0, row.get("0", 0.0))), float(row.get(1, row.get("1", 0.0)))]
    row = list(row)
    if len(row) != 2:
        raise ValueError("expected 2 class probabilities, got %d" % len(row))
    return [float(row[0]), float(row[1])]


def main():
    if len(sys.argv) != 2:
        print(json.dumps({"error": "usage: onnx_inference.py <model_path>"}))
        sys.exit(1)

    try:
        request = json.load(sys.stdin)
        features = np.array([request["features"]], dtype=np.float32)

        session = ort.InferenceSession(sys.argv[1])
        input_name = session.get_inputs()[0].name
        outputs = session.run(None, {input_name: features})

        prediction = int(np.asarray(outputs[0]).ravel()[0])
        probabilities = None
        if len(outputs) > 1:
            probabilities = positive_pair(outputs[1][0])

        print(json.dumps({"prediction": prediction, "probabilities": probabilities}))
    except Exception as e:
        print(json.dumps({"error": str(e)}))
        sys.exit(1)


if __name__ == "__main__":
    main()
`
