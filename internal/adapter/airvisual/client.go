// Package airvisual adapts the IQAir AirVisual API.
package airvisual

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/yevgetman/air-quality-api/internal/adapter"
	"github.com/yevgetman/air-quality-api/internal/measurement"
	"github.com/yevgetman/air-quality-api/pkg/geo"
)

const (
	// DefaultBaseURL is the base URL for the AirVisual API.
	DefaultBaseURL = "https://api.airvisual.com/v2"

	// SourceCode identifies this provider.
	SourceCode = "AIRVISUAL"

	confidenceScore = 75
)

// Config holds configuration for the AirVisual adapter.
type Config struct {
	// APIKey is the AirVisual API key.
	APIKey string

	// BaseURL is the API base URL (defaults to DefaultBaseURL).
	BaseURL string

	// HTTPClient is the HTTP client to use. If nil, a default resilient
	// client will be created.
	HTTPClient adapter.HTTPDoer

	// Timeout for individual API requests (default: 10s).
	Timeout time.Duration

	// MaxRetries is the per-call retry budget (default: 3).
	MaxRetries uint64

	// BackoffFactor multiplies the retry interval between attempts
	// (default: 2).
	BackoffFactor float64

	// Logs receives response log rows. Optional.
	Logs adapter.LogRepository

	// Health tracks per-source counters. Optional.
	Health *adapter.Tracker

	// Logger for adapter events.
	Logger zerolog.Logger
}

// Adapter is the AirVisual adapter. The free tier exposes only the nearest
// city's US AQI and its main pollutant code, so each query yields at most
// one measurement.
type Adapter struct {
	adapter.NoForecast

	client *adapter.Client
}

// New creates a new AirVisual adapter.
func New(cfg Config) *Adapter {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Adapter{
		client: adapter.NewClient(adapter.ClientConfig{
			Info: adapter.SourceInfo{
				Code:           SourceCode,
				Name:           "IQAir AirVisual",
				BaseURL:        baseURL,
				RequiresAPIKey: true,
				QualityLevel:   measurement.QualityModel,
			},
			APIKey:        cfg.APIKey,
			Auth:          adapter.AuthQueryParam("key"),
			HTTPClient:    cfg.HTTPClient,
			Timeout:       cfg.Timeout,
			MaxRetries:    cfg.MaxRetries,
			BackoffFactor: cfg.BackoffFactor,
			Logs:          cfg.Logs,
			Health:        cfg.Health,
			Logger:        cfg.Logger,
		}),
	}
}

// Info returns the adapter capability set.
func (a *Adapter) Info() adapter.SourceInfo {
	return a.client.Info()
}

// Available reports whether the adapter can be called.
func (a *Adapter) Available() bool {
	return a.client.Available()
}

// API response types (from the AirVisual API).

type nearestCityResponse struct {
	Status string   `json:"status"`
	Data   cityData `json:"data"`
}

type cityData struct {
	City     string       `json:"city"`
	State    string       `json:"state"`
	Country  string       `json:"country"`
	Location locationData `json:"location"`
	Current  currentData  `json:"current"`
}

type locationData struct {
	// Coordinates are GeoJSON order: [longitude, latitude].
	Coordinates []float64 `json:"coordinates"`
}

type currentData struct {
	Pollution pollutionData `json:"pollution"`
}

type pollutionData struct {
	Ts     string `json:"ts"`
	AQIUS  int    `json:"aqius"`
	MainUS string `json:"mainus"`
}

// FetchCurrent retrieves the nearest city's pollution snapshot.
func (a *Adapter) FetchCurrent(ctx context.Context, lat, lon float64, _ adapter.Options) ([]measurement.Measurement, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))

	var resp nearestCityResponse
	if err := a.client.GetJSON(ctx, "nearest_city", params, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "success" {
		a.client.RecordParseFailure("nearest_city status " + resp.Status)
		return []measurement.Measurement{}, nil
	}

	cityLat, cityLon := lat, lon
	if len(resp.Data.Location.Coordinates) >= 2 {
		cityLon, cityLat = resp.Data.Location.Coordinates[0], resp.Data.Location.Coordinates[1]
	}
	distance := geo.DistanceKm(lat, lon, cityLat, cityLon)
	confidence := float64(confidenceScore)

	timestamp := time.Now().UTC()
	if t, err := time.Parse(time.RFC3339, resp.Data.Current.Pollution.Ts); err == nil {
		timestamp = t.UTC()
	}

	value := resp.Data.Current.Pollution.AQIUS

	// Only the dominant pollutant is reported, and only as its index
	// contribution, so the index value stands in for a concentration.
	pollutants := make(map[measurement.Pollutant]float64)
	if key := toPollutant(resp.Data.Current.Pollution.MainUS); key != "" {
		pollutants[key] = float64(value)
	}

	m := measurement.Measurement{
		Source:          SourceCode,
		Lat:             cityLat,
		Lon:             cityLon,
		Timestamp:       timestamp,
		AQI:             &value,
		Pollutants:      pollutants,
		QualityLevel:    measurement.QualityModel,
		DistanceKm:      &distance,
		ConfidenceScore: &confidence,
		StationName:     resp.Data.City,
	}
	return []measurement.Measurement{m}, nil
}

// toPollutant converts an AirVisual main pollutant code to our Pollutant
// type.
func toPollutant(code string) measurement.Pollutant {
	switch code {
	case "p2":
		return measurement.PM25
	case "p1":
		return measurement.PM10
	case "o3":
		return measurement.O3
	case "n2":
		return measurement.NO2
	case "s2":
		return measurement.SO2
	case "co":
		return measurement.CO
	default:
		return ""
	}
}
