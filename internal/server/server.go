// Package server exposes the prediction service over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"healthrisk/internal/common"
	"healthrisk/internal/condition"
	"healthrisk/internal/features"
	"healthrisk/internal/ml"
	"healthrisk/internal/predict"

	"github.com/rs/zerolog/log"
)

// MetricsInterface defines the HTTP metrics the server reports.
type MetricsInterface interface {
	HTTPRequestsInc(path, code string)
}

// HistoryStore returns persisted model load records for a condition.
type HistoryStore interface {
	History(condition string, limit int) ([]ml.ArtifactInfo, error)
}

// Config holds the listener settings.
type Config struct {
	Addr           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string
	HistoryLimit   int // records per condition on /models
}

// Option customizes a Server.
type Option func(*Server)

// WithMetrics counts requests on m and serves h on /metrics.
func WithMetrics(m MetricsInterface, h http.Handler) Option {
	return func(s *Server) {
		s.metrics = m
		s.metricsHandler = h
	}
}

// WithHistory adds persisted load history to /models.
func WithHistory(h HistoryStore) Option {
	return func(s *Server) { s.history = h }
}

// Server serves the prediction API.
type Server struct {
	svc            *predict.Service
	metrics        MetricsInterface
	metricsHandler http.Handler
	history        HistoryStore
	historyLimit   int
	origins        []string
	server         *http.Server
}

// PredictRequest is the body of POST /predict.
type PredictRequest struct {
	Features *features.FeatureSet `json:"features"`
}

type errorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

type conditionFeatures struct {
	Required []string          `json:"required"`
	Mapping  map[string]string `json:"mapping"`
}

// DiscoveryResponse is the body of GET /.
type DiscoveryResponse struct {
	Status          string                               `json:"status"`
	AvailableModels []condition.Name                     `json:"available_models"`
	ModelFeatures   map[condition.Name]conditionFeatures `json:"model_features"`
}

type healthResponse struct {
	Status       string `json:"status"`
	ModelsLoaded int    `json:"models_loaded"`
}

type modelsResponse struct {
	Models  []ml.ArtifactInfo                    `json:"models"`
	History map[condition.Name][]ml.ArtifactInfo `json:"history,omitempty"`
}

// New creates a server for svc.
func New(svc *predict.Service, cfg Config, opts ...Option) *Server {
	s := &Server{
		svc:          svc,
		historyLimit: cfg.HistoryLimit,
		origins:      cfg.AllowedOrigins,
	}
	if len(s.origins) == 0 {
		s.origins = []string{"*"}
	}
	if s.historyLimit <= 0 {
		s.historyLimit = 10
	}
	for _, opt := range opts {
		opt(s)
	}

	readTimeout, writeTimeout := cfg.ReadTimeout, cfg.WriteTimeout
	if readTimeout <= 0 {
		readTimeout = common.DefaultHTTPTimeout
	}
	if writeTimeout <= 0 {
		writeTimeout = common.DefaultHTTPTimeout
	}

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/{$}", s.handleDiscovery)
	mux.HandleFunc("/predict", s.handlePredict)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/models", s.handleModels)
	if s.metricsHandler != nil {
		mux.Handle("/metrics", s.metricsHandler)
	}
	mux.HandleFunc("/", s.handleNotFound)

	return requestID(s.accessLog(s.cors(mux)))
}

// Start begins serving HTTP requests
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("starting risk server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}

	fs, err := decodePredictRequest(w, r)
	if err != nil {
		loggerFrom(r).Warn().Err(err).Msg("invalid request format")
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request format"})
		return
	}

	resp, err := s.svc.Predict(fs)
	if err != nil {
		var verr *features.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Validation errors", Details: verr.Details})
			return
		}
		loggerFrom(r).Error().Err(err).Msg("prediction failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func decodePredictRequest(w http.ResponseWriter, r *http.Request) (features.FeatureSet, error) {
	r.Body = http.MaxBytesReader(w, r.Body, common.MaxRequestBytes)
	dec := json.NewDecoder(r.Body)

	var req PredictRequest
	if err := dec.Decode(&req); err != nil {
		return nil, err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after request body")
	}
	if req.Features == nil || *req.Features == nil {
		return nil, errors.New("features must be an object")
	}
	return *req.Features, nil
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}

	// model_features covers the whole catalog so clients can see what an
	// unavailable condition would need.
	specs := condition.All()
	resp := DiscoveryResponse{
		Status:          "running",
		AvailableModels: s.svc.Registry().Available(),
		ModelFeatures:   make(map[condition.Name]conditionFeatures, len(specs)),
	}
	for _, spec := range specs {
		resp.ModelFeatures[spec.Name] = conditionFeatures{Required: spec.Required, Mapping: spec.Mapping}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", ModelsLoaded: s.svc.Registry().Len()})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}

	resp := modelsResponse{Models: s.svc.Registry().LoadResults()}
	if s.history != nil {
		resp.History = make(map[condition.Name][]ml.ArtifactInfo)
		for _, name := range condition.Names() {
			records, err := s.history.History(string(name), s.historyLimit)
			if err != nil {
				loggerFrom(r).Error().Err(err).Str("condition", string(name)).Msg("failed to read load history")
				continue
			}
			if len(records) > 0 {
				resp.History[name] = records
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, errorResponse{Error: "Not found"})
}

func writeMethodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}
