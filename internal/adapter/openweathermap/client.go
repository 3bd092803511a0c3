// Package openweathermap adapts the OpenWeatherMap air pollution API.
package openweathermap

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/yevgetman/air-quality-api/internal/adapter"
	"github.com/yevgetman/air-quality-api/internal/aqi"
	"github.com/yevgetman/air-quality-api/internal/measurement"
)

const (
	// DefaultBaseURL is the base URL for the OpenWeatherMap API.
	DefaultBaseURL = "https://api.openweathermap.org/data/2.5"

	// SourceCode identifies this provider.
	SourceCode = "OPENWEATHERMAP"

	confidenceScore = 75
)

// Config holds configuration for the OpenWeatherMap adapter.
type Config struct {
	// APIKey is the OpenWeatherMap API key.
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

// Adapter is the OpenWeatherMap adapter. Model data is returned for the
// query point itself, so distance is always zero. The upstream 1-5 index is
// converted to an approximate EPA value.
type Adapter struct {
	client *adapter.Client
}

// New creates a new OpenWeatherMap adapter.
func New(cfg Config) *Adapter {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Adapter{
		client: adapter.NewClient(adapter.ClientConfig{
			Info: adapter.SourceInfo{
				Code:           SourceCode,
				Name:           "OpenWeatherMap",
				BaseURL:        baseURL,
				RequiresAPIKey: true,
				QualityLevel:   measurement.QualityModel,
			},
			APIKey:        cfg.APIKey,
			Auth:          adapter.AuthQueryParam("appid"),
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

// API response types (from the OpenWeatherMap air pollution API).

type airPollutionResponse struct {
	Coord coordData   `json:"coord"`
	List  []entryData `json:"list"`
}

type coordData struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type entryData struct {
	Dt         int64              `json:"dt"`
	Main       mainData           `json:"main"`
	Components map[string]float64 `json:"components"`
}

type mainData struct {
	AQI int `json:"aqi"`
}

// FetchCurrent retrieves the model estimate for the query point.
func (a *Adapter) FetchCurrent(ctx context.Context, lat, lon float64, _ adapter.Options) ([]measurement.Measurement, error) {
	var resp airPollutionResponse
	if err := a.client.GetJSON(ctx, "air_pollution", coordParams(lat, lon), &resp); err != nil {
		return nil, err
	}
	if len(resp.List) == 0 {
		a.client.RecordParseFailure("air_pollution response has no entries")
		return []measurement.Measurement{}, nil
	}

	entry := resp.List[0]
	value := aqi.FromOWMIndex(entry.Main.AQI)
	distance := 0.0
	confidence := float64(confidenceScore)

	m := measurement.Measurement{
		Source:          SourceCode,
		Lat:             lat,
		Lon:             lon,
		Timestamp:       time.Unix(entry.Dt, 0).UTC(),
		AQI:             &value,
		Pollutants:      toPollutants(entry.Components),
		QualityLevel:    measurement.QualityModel,
		DistanceKm:      &distance,
		ConfidenceScore: &confidence,
	}
	return []measurement.Measurement{m}, nil
}

// FetchForecast retrieves the hourly model forecast for the query point.
func (a *Adapter) FetchForecast(ctx context.Context, lat, lon float64) ([]measurement.ForecastPoint, error) {
	var resp airPollutionResponse
	if err := a.client.GetJSON(ctx, "air_pollution/forecast", coordParams(lat, lon), &resp); err != nil {
		return nil, err
	}

	points := make([]measurement.ForecastPoint, 0, len(resp.List))
	for _, entry := range resp.List {
		value := aqi.FromOWMIndex(entry.Main.AQI)
		points = append(points, measurement.ForecastPoint{
			Source:     SourceCode,
			Lat:        lat,
			Lon:        lon,
			Timestamp:  time.Unix(entry.Dt, 0).UTC(),
			AQI:        value,
			Category:   aqi.CategoryName(value),
			Pollutants: toPollutants(entry.Components),
		})
	}
	return points, nil
}

// toPollutants maps the upstream component keys (µg/m³) onto the canonical
// pollutant set. Keys outside the set (no, nh3) are dropped.
func toPollutants(components map[string]float64) map[measurement.Pollutant]float64 {
	keys := map[string]measurement.Pollutant{
		"pm2_5": measurement.PM25,
		"pm10":  measurement.PM10,
		"o3":    measurement.O3,
		"no2":   measurement.NO2,
		"so2":   measurement.SO2,
		"co":    measurement.CO,
	}

	pollutants := make(map[measurement.Pollutant]float64)
	for upstream, canonical := range keys {
		if v, ok := components[upstream]; ok {
			pollutants[canonical] = v
		}
	}
	return pollutants
}

func coordParams(lat, lon float64) url.Values {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	return params
}
