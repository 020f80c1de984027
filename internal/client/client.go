// Package client is a Go client for the risk service HTTP API, plus the
// patient form mapping and summary used by front-end backends.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"healthrisk/internal/common"
	"healthrisk/internal/features"
	"healthrisk/internal/predict"

	"github.com/go-resty/resty/v2"
)

// APIError is a non-2xx answer from the service.
type APIError struct {
	Status  int      `json:"-"`
	Message string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if len(e.Details) > 0 {
		return fmt.Sprintf("server error %d: %s: %s", e.Status, e.Message, strings.Join(e.Details, "; "))
	}
	return fmt.Sprintf("server error %d: %s", e.Status, e.Message)
}

// ModelFeatures is one condition's schema as reported by discovery.
type ModelFeatures struct {
	Required []string          `json:"required"`
	Mapping  map[string]string `json:"mapping"`
}

// Discovery is the body of GET /.
type Discovery struct {
	Status          string                   `json:"status"`
	AvailableModels []string                 `json:"available_models"`
	ModelFeatures   map[string]ModelFeatures `json:"model_features"`
}

// Health is the body of GET /health.
type Health struct {
	Status       string `json:"status"`
	ModelsLoaded int    `json:"models_loaded"`
}

type Client struct {
	base string
	rest *resty.Client
}

// New creates a client for the service at base, e.g. http://localhost:5000.
func New(base string, timeout time.Duration) *Client {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(common.DefaultClientTimeout)
	}
	r.SetHeader("Accept", "application/json")
	return &Client{base: strings.TrimRight(base, "/"), rest: r}
}

// Predict sends fs to POST /predict.
func (c *Client) Predict(ctx context.Context, fs features.FeatureSet) (*predict.Response, error) {
	var out predict.Response
	apiErr := &APIError{}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]features.FeatureSet{"features": fs}).
		SetResult(&out).
		SetError(apiErr).
		Post(c.base + "/predict")
	if err != nil {
		return nil, requestError(err)
	}
	if resp.IsError() {
		return nil, asAPIError(resp, apiErr)
	}
	if out.Predictions == nil {
		return nil, errors.New("invalid response format from server")
	}
	return &out, nil
}

// Discover reads the available conditions and their feature schemas.
func (c *Client) Discover(ctx context.Context) (*Discovery, error) {
	var out Discovery
	if err := c.get(ctx, "/", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health reads GET /health.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var out Health
	if err := c.get(ctx, "/health", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	apiErr := &APIError{}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(result).
		SetError(apiErr).
		Get(c.base + path)
	if err != nil {
		return requestError(err)
	}
	if resp.IsError() {
		return asAPIError(resp, apiErr)
	}
	return nil
}

func asAPIError(resp *resty.Response, apiErr *APIError) *APIError {
	apiErr.Status = resp.StatusCode()
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode())
	}
	return apiErr
}

func requestError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("no response from server, check that the risk service is running: %w", err)
}
