// Package nominatim provides a client for the OSM Nominatim reverse
// geocoding API.
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/yevgetman/air-quality-api/internal/location"
	"github.com/yevgetman/air-quality-api/internal/provider/resilience"
)

const (
	// DefaultBaseURL is the base URL for the Nominatim API.
	DefaultBaseURL = "https://nominatim.openstreetmap.org"

	// defaultTimeout keeps geocoding from delaying air quality queries.
	defaultTimeout = 5 * time.Second
)

// ClientConfig holds configuration for the Nominatim client.
type ClientConfig struct {
	// BaseURL is the API base URL (defaults to DefaultBaseURL).
	BaseURL string

	// UserAgent identifies this service, required by Nominatim's usage
	// policy.
	UserAgent string

	// HTTPClient is the HTTP client to use (must implement HTTPDoer).
	// If nil, a default resilient client will be created.
	HTTPClient HTTPDoer

	// Timeout for individual API requests (default: 5s).
	Timeout time.Duration
}

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a Nominatim reverse geocoding client.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient HTTPDoer
}

// NewClient creates a new Nominatim client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = defaultTimeout
		}
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:       "nominatim",
			Timeout:    timeout,
			MaxRetries: 1,
		})
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		userAgent:  cfg.UserAgent,
		httpClient: httpClient,
	}
}

// API response types (from the Nominatim API).

type reverseResponse struct {
	DisplayName string      `json:"display_name"`
	Address     addressData `json:"address"`
	Error       string      `json:"error"`
}

type addressData struct {
	City         string `json:"city"`
	Town         string `json:"town"`
	Village      string `json:"village"`
	Municipality string `json:"municipality"`
	State        string `json:"state"`
	Province     string `json:"province"`
	CountryCode  string `json:"country_code"`
	Postcode     string `json:"postcode"`
}

// ReverseGeocode resolves coordinates to a place.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (location.Place, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("format", "json")
	params.Set("accept-language", "en")
	params.Set("zoom", "10")

	reqURL := c.baseURL + "/reverse?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return location.Place{}, fmt.Errorf("create request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return location.Place{}, fmt.Errorf("reverse geocode: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return location.Place{}, fmt.Errorf("unexpected status %d from reverse endpoint", resp.StatusCode)
	}

	var result reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return location.Place{}, fmt.Errorf("decode reverse response: %w", err)
	}
	if result.Error != "" {
		return location.Place{}, fmt.Errorf("reverse geocode: %s", result.Error)
	}

	return location.Place{
		Lat:        lat,
		Lon:        lon,
		City:       firstNonEmpty(result.Address.City, result.Address.Town, result.Address.Village, result.Address.Municipality),
		Region:     firstNonEmpty(result.Address.State, result.Address.Province),
		Country:    strings.ToUpper(result.Address.CountryCode),
		PostalCode: result.Address.Postcode,
		Formatted:  result.DisplayName,
		ResolvedAt: time.Now().UTC(),
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
