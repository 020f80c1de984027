package ml

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"healthrisk/internal/condition"

	"github.com/rs/zerolog/log"
)

var (
	// ErrNoModelsAvailable means no condition has a usable artifact; the service must not start.
	ErrNoModelsAvailable = errors.New("no models were successfully loaded")
	// ErrArtifactNotFound means no artifact file exists for a condition.
	ErrArtifactNotFound = errors.New("model artifact not found")
)

// ModelLoadError describes one artifact that could not be loaded.
type ModelLoadError struct {
	Condition condition.Name
	Path      string
	Err       error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("load model %s from %s: %v", e.Condition, e.Path, e.Err)
}

func (e *ModelLoadError) Unwrap() error { return e.Err }

// Load statuses recorded in ArtifactInfo.
const (
	StatusLoaded  = "loaded"
	StatusMissing = "missing"
	StatusFailed  = "failed"
)

// ArtifactInfo records the outcome of loading one condition's artifact.
type ArtifactInfo struct {
	Condition condition.Name `json:"condition"`
	Path      string         `json:"path"`
	Format    string         `json:"format,omitempty"`
	Version   string         `json:"version,omitempty"`
	SHA256    string         `json:"sha256,omitempty"`
	Size      int64          `json:"size,omitempty"`
	ModTime   time.Time      `json:"mod_time,omitzero"`
	LoadedAt  time.Time      `json:"loaded_at"`
	Status    string         `json:"status"`
	Error     string         `json:"error,omitempty"`
}

// Entry is one available condition.
type Entry struct {
	Spec       condition.Spec
	Classifier Classifier
	Artifact   ArtifactInfo
}

// ArtifactLoader builds a classifier from an artifact file.
type ArtifactLoader interface {
	Load(path string, spec condition.Spec) (Classifier, error)
}

// Registry holds the loaded classifiers by condition. It is immutable once
// constructed and safe for concurrent reads.
type Registry struct {
	entries map[condition.Name]Entry
	order   []condition.Name
	results []ArtifactInfo
}

// NewRegistry builds a registry from already constructed entries.
func NewRegistry(entries ...Entry) (*Registry, error) {
	r := &Registry{entries: make(map[condition.Name]Entry, len(entries))}
	for _, e := range entries {
		if err := e.Spec.Validate(); err != nil {
			return nil, fmt.Errorf("invalid condition spec: %w", err)
		}
		if e.Classifier == nil {
			return nil, fmt.Errorf("condition %s has no classifier", e.Spec.Name)
		}
		if _, dup := r.entries[e.Spec.Name]; dup {
			return nil, fmt.Errorf("duplicate condition %s", e.Spec.Name)
		}
		if e.Artifact.Condition == "" {
			e.Artifact = ArtifactInfo{Condition: e.Spec.Name, Status: StatusLoaded}
		}
		r.entries[e.Spec.Name] = e
		r.order = append(r.order, e.Spec.Name)
		r.results = append(r.results, e.Artifact)
	}
	if len(r.entries) == 0 {
		return nil, ErrNoModelsAvailable
	}
	sort.SliceStable(r.order, func(i, j int) bool {
		return condition.Rank(r.order[i]) < condition.Rank(r.order[j])
	})
	return r, nil
}

// LoadRegistry loads one artifact per spec from dir. Missing or broken
// artifacts are logged and skipped. It fails with ErrNoModelsAvailable when
// nothing could be loaded. The per-artifact outcomes are returned in both cases.
func LoadRegistry(dir string, specs []condition.Spec, loader ArtifactLoader, metrics MetricsInterface) (*Registry, []ArtifactInfo, error) {
	log.Info().Str("model_dir", dir).Int("conditions", len(specs)).Msg("loading models")

	var (
		entries []Entry
		results []ArtifactInfo
	)
	for _, spec := range specs {
		if err := spec.Validate(); err != nil {
			return nil, results, fmt.Errorf("invalid condition spec: %w", err)
		}

		info, c, err := loadOne(dir, spec, loader)
		results = append(results, info)
		if err != nil {
			if metrics != nil {
				metrics.ModelLoadFailuresInc(string(spec.Name))
			}
			if errors.Is(err, ErrArtifactNotFound) {
				log.Error().Str("condition", string(spec.Name)).Str("path", info.Path).Msg("model file not found")
			} else {
				log.Error().Err(err).Str("condition", string(spec.Name)).Str("path", info.Path).Msg("error loading model")
			}
			continue
		}

		entries = append(entries, Entry{Spec: spec, Classifier: c, Artifact: info})
		log.Info().
			Str("condition", string(spec.Name)).
			Str("path", info.Path).
			Str("format", info.Format).
			Str("sha256", info.SHA256).
			Msg("successfully loaded model")
	}

	if metrics != nil {
		metrics.ModelsLoadedSet(float64(len(entries)))
	}
	if len(entries) == 0 {
		return nil, results, fmt.Errorf("%w from %s", ErrNoModelsAvailable, dir)
	}

	r, err := NewRegistry(entries...)
	if err != nil {
		return nil, results, err
	}
	r.results = results
	log.Info().Strs("available", namesToStrings(r.Available())).Msg("models ready")
	return r, results, nil
}

func loadOne(dir string, spec condition.Spec, loader ArtifactLoader) (ArtifactInfo, Classifier, error) {
	info := ArtifactInfo{Condition: spec.Name, LoadedAt: time.Now().UTC()}

	path, format, stat, err := findArtifact(dir, spec)
	info.Path = path
	if err != nil {
		info.Status = StatusMissing
		if !errors.Is(err, ErrArtifactNotFound) {
			info.Status = StatusFailed
		}
		info.Error = err.Error()
		return info, nil, &ModelLoadError{Condition: spec.Name, Path: path, Err: err}
	}
	info.Format = format
	info.Size = stat.Size()
	info.ModTime = stat.ModTime().UTC()

	sum, err := fileSHA256(path)
	if err == nil {
		info.SHA256 = sum
	}

	c, err := loader.Load(path, spec)
	if err != nil {
		info.Status = StatusFailed
		info.Error = err.Error()
		return info, nil, &ModelLoadError{Condition: spec.Name, Path: path, Err: err}
	}
	if v, ok := c.(interface{ ModelVersion() string }); ok {
		info.Version = v.ModelVersion()
	}
	info.Status = StatusLoaded
	return info, c, nil
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Lookup returns the entry for name.
func (r *Registry) Lookup(name condition.Name) (Entry, bool) {
	e, ok := r.entries[name]
	return e, ok
}

// Available returns the loaded condition names in catalog order.
func (r *Registry) Available() []condition.Name {
	out := make([]condition.Name, len(r.order))
	copy(out, r.order)
	return out
}

// Entries returns the loaded entries in catalog order.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name])
	}
	return out
}

// LoadResults returns the startup outcome of every artifact, including the
// ones that were skipped.
func (r *Registry) LoadResults() []ArtifactInfo {
	out := make([]ArtifactInfo, len(r.results))
	copy(out, r.results)
	return out
}

// Len returns the number of available conditions.
func (r *Registry) Len() int { return len(r.order) }

func namesToStrings(names []condition.Name) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = string(n)
	}
	return out
}
