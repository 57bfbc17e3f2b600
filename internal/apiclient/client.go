// Package apiclient is a typed client for the cdrpulse REST API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"cdrpulse/internal/catalog"
	"cdrpulse/internal/models"
	"cdrpulse/internal/results"
)

// Error is a non-2xx response from the API.
type Error struct {
	Status  int
	Message string
	Fields  map[string]string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return fmt.Sprintf("api: %s (status %d)", e.Message, e.Status)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// ConfigurationRequest is the body of a configuration create.
type ConfigurationRequest struct {
	Name                  string   `json:"name"`
	ApplicationID         string   `json:"applicationId"`
	SelectedAPIIDs        []string `json:"selectedApiIds"`
	VirtualUsers          int      `json:"virtualUsers"`
	RampUpTime            int      `json:"rampUpTime"`
	Duration              int      `json:"duration"`
	ThinkTime             int      `json:"thinkTime"`
	ResponseTimeThreshold *float64 `json:"responseTimeThreshold,omitempty"`
	ErrorRateThreshold    *float64 `json:"errorRateThreshold,omitempty"`
}

// RunRequest is the body of a run create.
type RunRequest struct {
	TestConfigurationID string           `json:"testConfigurationId"`
	Status              models.RunStatus `json:"status,omitempty"`
}

// RunPatch is a partial run update. Nil fields are left untouched.
type RunPatch struct {
	Status      *models.RunStatus `json:"status,omitempty"`
	CompletedAt *time.Time        `json:"completedAt,omitempty"`
	Results     *models.Results   `json:"results,omitempty"`
}

// Client talks to the API over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default instrumented HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New returns a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid api url %q", baseURL)
	}
	c := &Client{
		baseURL: strings.TrimRight(u.String(), "/"),
		http: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) CreateConfiguration(ctx context.Context, in ConfigurationRequest) (models.TestConfiguration, error) {
	var out models.TestConfiguration
	err := c.do(ctx, http.MethodPost, "/test-configurations", in, http.StatusCreated, &out)
	return out, err
}

func (c *Client) GetConfiguration(ctx context.Context, id string) (models.TestConfiguration, error) {
	var out models.TestConfiguration
	err := c.do(ctx, http.MethodGet, "/test-configurations/"+url.PathEscape(id), nil, http.StatusOK, &out)
	return out, err
}

func (c *Client) ListConfigurations(ctx context.Context) ([]models.TestConfiguration, error) {
	var out []models.TestConfiguration
	err := c.do(ctx, http.MethodGet, "/test-configurations", nil, http.StatusOK, &out)
	return out, err
}

func (c *Client) DeleteConfiguration(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/test-configurations/"+url.PathEscape(id), nil, http.StatusNoContent, nil)
}

func (c *Client) CreateRun(ctx context.Context, in RunRequest) (models.TestRun, error) {
	var out models.TestRun
	err := c.do(ctx, http.MethodPost, "/test-runs", in, http.StatusCreated, &out)
	return out, err
}

func (c *Client) GetRun(ctx context.Context, id string) (models.TestRun, error) {
	var out models.TestRun
	err := c.do(ctx, http.MethodGet, "/test-runs/"+url.PathEscape(id), nil, http.StatusOK, &out)
	return out, err
}

func (c *Client) UpdateRun(ctx context.Context, id string, patch RunPatch) (models.TestRun, error) {
	var out models.TestRun
	err := c.do(ctx, http.MethodPatch, "/test-runs/"+url.PathEscape(id), patch, http.StatusOK, &out)
	return out, err
}

// ListRuns returns the most recent runs. A limit of zero uses the server default.
func (c *Client) ListRuns(ctx context.Context, limit int) ([]models.TestRun, error) {
	path := "/test-runs"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out []models.TestRun
	err := c.do(ctx, http.MethodGet, path, nil, http.StatusOK, &out)
	return out, err
}

func (c *Client) ListRunsForConfiguration(ctx context.Context, configID string) ([]models.TestRun, error) {
	var out []models.TestRun
	err := c.do(ctx, http.MethodGet, "/test-configurations/"+url.PathEscape(configID)+"/runs", nil, http.StatusOK, &out)
	return out, err
}

func (c *Client) RunSummary(ctx context.Context, runID string) (results.Summary, error) {
	var out results.Summary
	err := c.do(ctx, http.MethodGet, "/test-runs/"+url.PathEscape(runID)+"/summary", nil, http.StatusOK, &out)
	return out, err
}

func (c *Client) Stats(ctx context.Context) (models.RunStats, error) {
	var out models.RunStats
	err := c.do(ctx, http.MethodGet, "/stats", nil, http.StatusOK, &out)
	return out, err
}

func (c *Client) Applications(ctx context.Context) ([]catalog.Application, error) {
	var out []catalog.Application
	err := c.do(ctx, http.MethodGet, "/catalog/applications", nil, http.StatusOK, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, body any, want int, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &Error{Status: resp.StatusCode}

	var body struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		apiErr.Message = body.Error
		apiErr.Fields = body.Fields
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}
