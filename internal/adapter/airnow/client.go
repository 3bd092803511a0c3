// Package airnow adapts the EPA AirNow observation and forecast API.
package airnow

import (
	"context"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/yevgetman/air-quality-api/internal/adapter"
	"github.com/yevgetman/air-quality-api/internal/measurement"
	"github.com/yevgetman/air-quality-api/pkg/geo"
)

const (
	// DefaultBaseURL is the base URL for the AirNow API.
	DefaultBaseURL = "https://www.airnowapi.org/aq"

	// SourceCode identifies this provider.
	SourceCode = "EPA_AIRNOW"

	defaultRadiusKm = 25
)

// Config holds configuration for the AirNow adapter.
type Config struct {
	// APIKey is the AirNow API key.
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

// Adapter is the EPA AirNow adapter. Observations are grouped per reporting
// area with the maximum AQI across pollutants as the area value.
type Adapter struct {
	client *adapter.Client
}

// New creates a new AirNow adapter.
func New(cfg Config) *Adapter {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Adapter{
		client: adapter.NewClient(adapter.ClientConfig{
			Info: adapter.SourceInfo{
				Code:           SourceCode,
				Name:           "EPA AirNow",
				BaseURL:        baseURL,
				RequiresAPIKey: true,
				QualityLevel:   measurement.QualityVerified,
			},
			APIKey:        cfg.APIKey,
			Auth:          adapter.AuthQueryParam("API_KEY"),
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

// API response types (from the AirNow API).

type observation struct {
	DateObserved  string       `json:"DateObserved"`
	HourObserved  int          `json:"HourObserved"`
	LocalTimeZone string       `json:"LocalTimeZone"`
	ReportingArea string       `json:"ReportingArea"`
	StateCode     string       `json:"StateCode"`
	Latitude      float64      `json:"Latitude"`
	Longitude     float64      `json:"Longitude"`
	ParameterName string       `json:"ParameterName"`
	AQI           int          `json:"AQI"`
	Category      categoryInfo `json:"Category"`
}

type forecastEntry struct {
	DateIssue     string       `json:"DateIssue"`
	DateForecast  string       `json:"DateForecast"`
	ReportingArea string       `json:"ReportingArea"`
	StateCode     string       `json:"StateCode"`
	Latitude      float64      `json:"Latitude"`
	Longitude     float64      `json:"Longitude"`
	ParameterName string       `json:"ParameterName"`
	AQI           int          `json:"AQI"`
	Category      categoryInfo `json:"Category"`
}

type categoryInfo struct {
	Number int    `json:"Number"`
	Name   string `json:"Name"`
}

// FetchCurrent retrieves current observations near the coordinates. The
// per-pollutant observations sharing a reporting area collapse into one
// measurement carrying the maximum AQI.
func (a *Adapter) FetchCurrent(ctx context.Context, lat, lon float64, opts adapter.Options) ([]measurement.Measurement, error) {
	radius := opts.RadiusKm
	if radius == 0 {
		radius = defaultRadiusKm
	}

	params := url.Values{}
	params.Set("latitude", formatCoord(lat))
	params.Set("longitude", formatCoord(lon))
	params.Set("distance", strconv.Itoa(int(radius)))
	params.Set("format", "application/json")

	var observations []observation
	if err := a.client.GetJSON(ctx, "observation/latLong/current/", params, &observations); err != nil {
		return nil, err
	}

	byArea := make(map[string]*measurement.Measurement)
	var order []string
	for _, obs := range observations {
		key := toPollutant(obs.ParameterName)
		if key == "" {
			continue
		}
		observedAt, ok := parseObservedDate(obs.DateObserved)
		if !ok {
			continue
		}

		m, exists := byArea[obs.ReportingArea]
		if !exists {
			distance := geo.DistanceKm(lat, lon, obs.Latitude, obs.Longitude)
			confidence := 100.0
			m = &measurement.Measurement{
				Source:          SourceCode,
				Lat:             obs.Latitude,
				Lon:             obs.Longitude,
				Timestamp:       observedAt,
				Pollutants:      make(map[measurement.Pollutant]float64),
				QualityLevel:    measurement.QualityVerified,
				DistanceKm:      &distance,
				ConfidenceScore: &confidence,
				StationName:     obs.ReportingArea,
			}
			byArea[obs.ReportingArea] = m
			order = append(order, obs.ReportingArea)
		}

		// AirNow reports per-pollutant index values rather than raw
		// concentrations; those index values are the source's native unit.
		m.Pollutants[key] = float64(obs.AQI)
		if obs.AQI >= 0 && (m.AQI == nil || obs.AQI > *m.AQI) {
			value := obs.AQI
			m.AQI = &value
		}
	}

	measurements := make([]measurement.Measurement, 0, len(byArea))
	for _, area := range order {
		measurements = append(measurements, *byArea[area])
	}
	return measurements, nil
}

// FetchForecast retrieves the daily forecast near the coordinates, one point
// per forecast date at midnight UTC with the maximum AQI across pollutants.
func (a *Adapter) FetchForecast(ctx context.Context, lat, lon float64) ([]measurement.ForecastPoint, error) {
	params := url.Values{}
	params.Set("latitude", formatCoord(lat))
	params.Set("longitude", formatCoord(lon))
	params.Set("format", "application/json")

	var entries []forecastEntry
	if err := a.client.GetJSON(ctx, "forecast/latLong/", params, &entries); err != nil {
		return nil, err
	}

	byDate := make(map[string]*measurement.ForecastPoint)
	for _, entry := range entries {
		if entry.AQI < 0 {
			continue
		}
		forecastAt, ok := parseObservedDate(entry.DateForecast)
		if !ok {
			continue
		}

		p, exists := byDate[entry.DateForecast]
		if !exists {
			p = &measurement.ForecastPoint{
				Source:     SourceCode,
				Lat:        entry.Latitude,
				Lon:        entry.Longitude,
				Timestamp:  forecastAt,
				Pollutants: make(map[measurement.Pollutant]float64),
			}
			byDate[entry.DateForecast] = p
		}

		if key := toPollutant(entry.ParameterName); key != "" {
			p.Pollutants[key] = float64(entry.AQI)
		}
		if entry.AQI >= p.AQI {
			p.AQI = entry.AQI
			p.Category = entry.Category.Name
		}
	}

	points := make([]measurement.ForecastPoint, 0, len(byDate))
	for _, p := range byDate {
		points = append(points, *p)
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
	return points, nil
}

// parseObservedDate parses AirNow's date strings ("2024-01-15", sometimes
// padded with whitespace) into midnight UTC.
func parseObservedDate(raw string) (time.Time, bool) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// toPollutant converts an AirNow parameter name to our Pollutant type.
func toPollutant(name string) measurement.Pollutant {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "PM2.5":
		return measurement.PM25
	case "PM10":
		return measurement.PM10
	case "OZONE", "O3":
		return measurement.O3
	case "NO2":
		return measurement.NO2
	case "SO2":
		return measurement.SO2
	case "CO":
		return measurement.CO
	default:
		return ""
	}
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
