package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/yevgetman/air-quality-api/internal/provider/resilience"
)

// Adapter-framework errors.
var (
	// ErrMissingCredentials short-circuits calls for providers that require
	// a key when none is configured. The network is never touched.
	ErrMissingCredentials = errors.New("api key required but not configured")

	// ErrUnexpectedStatus is returned for non-2xx upstream responses.
	ErrUnexpectedStatus = errors.New("unexpected upstream status")
)

// HTTPDoer abstracts HTTP request execution so tests can substitute a plain
// client for the resilient one.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the shared provider client.
type ClientConfig struct {
	// Info is the adapter's capability set.
	Info SourceInfo

	// APIKey is the provider credential. May be empty for keyless sources.
	APIKey string

	// Auth is the credential injection strategy.
	Auth Auth

	// BaseURL overrides Info.BaseURL, mainly for tests.
	BaseURL string

	// HTTPClient is the transport. If nil, a resilient client with the
	// given timeout and retry budget is created.
	HTTPClient HTTPDoer

	// Timeout is the per-attempt budget for the default resilient client.
	Timeout time.Duration

	// MaxRetries is the retry budget for the default resilient client.
	MaxRetries uint64

	// BackoffFactor is the retry interval multiplier for the default
	// resilient client.
	BackoffFactor float64

	// Logs receives one ResponseLog row per upstream call. Optional.
	Logs LogRepository

	// Health tracks per-source counters. Optional.
	Health *Tracker

	// Logger for framework-level events.
	Logger zerolog.Logger
}

// Client wraps every outbound provider call with credential injection,
// bounded retry (via the resilient transport), response logging, and health
// updates. Provider adapters embed one and speak JSON through GetJSON.
type Client struct {
	info       SourceInfo
	apiKey     string
	auth       Auth
	baseURL    string
	httpClient HTTPDoer
	logs       LogRepository
	health     *Tracker
	logger     zerolog.Logger
}

// NewClient creates the shared provider client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = cfg.Info.BaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:          cfg.Info.Code,
			Timeout:       cfg.Timeout,
			MaxRetries:    cfg.MaxRetries,
			BackoffFactor: cfg.BackoffFactor,
		})
	}

	return &Client{
		info:       cfg.Info,
		apiKey:     cfg.APIKey,
		auth:       cfg.Auth,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		logs:       cfg.Logs,
		health:     cfg.Health,
		logger:     cfg.Logger,
	}
}

// Info returns the adapter capability set.
func (c *Client) Info() SourceInfo {
	return c.info
}

// HasCredentials reports whether the client can authenticate.
func (c *Client) HasCredentials() bool {
	return !c.info.RequiresAPIKey || c.apiKey != ""
}

// Available reports whether calls should be attempted: credentials present
// and the health tracker not objecting.
func (c *Client) Available() bool {
	if !c.HasCredentials() {
		return false
	}
	if c.health == nil {
		return true
	}
	return c.health.HealthyOrUnknown(c.info.Code)
}

// GetJSON performs a GET against endpoint and decodes the JSON body into
// out. Exactly one response log row is written per call, including on
// failure; health counters are updated unless the caller's context was
// cancelled mid-flight.
func (c *Client) GetJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	if c.info.RequiresAPIKey && c.apiKey == "" {
		c.recordFailure(endpoint, nil, 0, 0, ErrMissingCredentials)
		return ErrMissingCredentials
	}

	if params == nil {
		params = url.Values{}
	}
	headers := http.Header{}
	c.auth.Apply(params, headers, c.apiKey)

	reqURL := c.baseURL + "/" + strings.TrimPrefix(endpoint, "/")
	if encoded := params.Encode(); encoded != "" {
		reqURL += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		// A cancelled parent context means the orchestrator gave up on this
		// call; skip the health update so cancellations do not skew the
		// failure counters.
		if ctx.Err() != nil {
			c.writeLog(endpoint, params, 0, elapsed, "", err)
			return err
		}
		c.recordFailure(endpoint, params, 0, elapsed, err)
		return fmt.Errorf("%s request: %w", c.info.Code, err)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if readErr != nil {
		c.recordFailure(endpoint, params, resp.StatusCode, elapsed, readErr)
		return fmt.Errorf("%s read body: %w", c.info.Code, readErr)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
		c.writeLogBody(endpoint, params, resp.StatusCode, elapsed, body, statusErr)
		c.updateHealth(false, statusErr)
		return statusErr
	}

	if err := json.Unmarshal(body, out); err != nil {
		parseErr := fmt.Errorf("%s decode response: %w", c.info.Code, err)
		c.writeLogBody(endpoint, params, resp.StatusCode, elapsed, body, parseErr)
		c.updateHealth(false, parseErr)
		return parseErr
	}

	c.writeLogBody(endpoint, params, resp.StatusCode, elapsed, body, nil)
	c.updateHealth(true, nil)
	return nil
}

// RecordParseFailure lets adapters count a structurally valid but
// semantically malformed payload against the source's health.
func (c *Client) RecordParseFailure(reason string) {
	if c.health != nil {
		c.health.RecordFailure(c.info.Code, reason)
	}
}

func (c *Client) recordFailure(endpoint string, params url.Values, status int, elapsed int64, err error) {
	c.writeLog(endpoint, params, status, elapsed, "", err)
	c.updateHealth(false, err)
}

func (c *Client) updateHealth(success bool, err error) {
	if c.health == nil {
		return
	}
	if success {
		c.health.RecordSuccess(c.info.Code)
		return
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	c.health.RecordFailure(c.info.Code, msg)
}

func (c *Client) writeLogBody(endpoint string, params url.Values, status int, elapsed int64, body []byte, err error) {
	truncated := string(body)
	if len(truncated) > maxLoggedBody {
		truncated = truncated[:maxLoggedBody]
	}
	c.writeLog(endpoint, params, status, elapsed, truncated, err)
}

// writeLog emits the response log row. Failures here are swallowed and
// logged locally; they never propagate to the caller.
func (c *Client) writeLog(endpoint string, params url.Values, status int, elapsed int64, body string, callErr error) {
	if c.logs == nil {
		return
	}

	flat := make(map[string]string)
	for k, vs := range c.auth.redact(params) {
		if len(vs) > 0 {
			flat[k] = vs[0]
		}
	}

	row := ResponseLog{
		Source:         c.info.Code,
		Endpoint:       endpoint,
		Params:         flat,
		StatusCode:     status,
		ResponseTimeMs: elapsed,
		Body:           body,
		IsError:        callErr != nil || status >= 400,
		CreatedAt:      time.Now().UTC(),
	}
	if callErr != nil {
		row.ErrorMessage = callErr.Error()
	}

	logCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.logs.Insert(logCtx, row); err != nil {
		c.logger.Error().Err(err).Str("source", c.info.Code).Msg("failed to write response log")
	}
}
