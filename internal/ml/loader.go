package ml

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"healthrisk/internal/condition"
)

// MetricsInterface defines the metrics the model layer reports.
type MetricsInterface interface {
	ModelsLoadedSet(float64)
	ModelLoadFailuresInc(condition string)
	InferenceLatencyObserve(float64)
	InferenceTimeoutsInc()
}

const (
	FormatONNX   = "onnx"
	FormatLinear = "json"
)

// artifactFormats lists accepted encodings in lookup order.
var artifactFormats = []string{FormatONNX, FormatLinear}

// LoaderConfig configures artifact loading.
type LoaderConfig struct {
	PythonPath       string        // explicit interpreter for ONNX models; auto-detected when empty
	InferenceTimeout time.Duration // per-call limit for the ONNX subprocess
}

// Loader turns artifact files into classifiers.
type Loader struct {
	cfg     LoaderConfig
	metrics MetricsInterface

	onnxOnce   sync.Once
	pythonPath string
	scriptDir  string
	scriptPath string
	onnxErr    error
}

// NewLoader creates a loader. metrics may be nil.
func NewLoader(cfg LoaderConfig, metrics MetricsInterface) *Loader {
	if cfg.InferenceTimeout <= 0 {
		cfg.InferenceTimeout = 5 * time.Second
	}
	return &Loader{cfg: cfg, metrics: metrics}
}

// Load reads the artifact at path for spec. The format is chosen by extension.
func (l *Loader) Load(path string, spec condition.Spec) (Classifier, error) {
	switch ext := filepath.Ext(path); ext {
	case "." + FormatLinear:
		return l.loadLinear(path, spec)
	case "." + FormatONNX:
		return l.loadONNX(path, spec)
	default:
		return nil, fmt.Errorf("unsupported artifact format %q", ext)
	}
}

func (l *Loader) loadLinear(path string, spec condition.Spec) (Classifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, artifact, err := ParseLinear(data)
	if err != nil {
		return nil, err
	}
	if !slices.Equal(artifact.Features, spec.Required) {
		return nil, fmt.Errorf("artifact features %v do not match %s schema %v", artifact.Features, spec.Name, spec.Required)
	}
	return c, nil
}

func (l *Loader) loadONNX(path string, spec condition.Spec) (Classifier, error) {
	l.onnxOnce.Do(func() {
		l.pythonPath, l.onnxErr = findPython(l.cfg.PythonPath)
		if l.onnxErr != nil {
			return
		}
		dir, err := os.MkdirTemp("", "healthrisk-onnx")
		if err != nil {
			l.onnxErr = fmt.Errorf("create script dir: %w", err)
			return
		}
		l.scriptDir = dir
		l.scriptPath, l.onnxErr = writeInferenceScript(dir)
	})
	if l.onnxErr != nil {
		return nil, l.onnxErr
	}

	c := &ONNXClassifier{
		modelPath:  path,
		pythonPath: l.pythonPath,
		scriptPath: l.scriptPath,
		width:      len(spec.Required),
		timeout:    l.cfg.InferenceTimeout,
		metrics:    l.metrics,
	}
	if _, err := c.classify(make([]float64, c.width)); err != nil {
		return nil, fmt.Errorf("health check failed: %w", err)
	}
	return c, nil
}

// Close removes the inference script written for ONNX models. Classifiers
// built by this loader cannot run afterwards.
func (l *Loader) Close() error {
	if l == nil || l.scriptDir == "" {
		return nil
	}
	err := os.RemoveAll(l.scriptDir)
	l.scriptDir = ""
	return err
}

// findArtifact returns the first existing artifact file for spec in dir.
func findArtifact(dir string, spec condition.Spec) (path, format string, info os.FileInfo, err error) {
	for _, format := range artifactFormats {
		path := filepath.Join(dir, spec.Artifact+"."+format)
		info, err := os.Stat(path)
		if err == nil && !info.IsDir() {
			return path, format, info, nil
		}
		if err != nil && !os.IsNotExist(err) {
			return path, format, nil, err
		}
	}
	return filepath.Join(dir, spec.Artifact) + ".*", "", nil, ErrArtifactNotFound
}
