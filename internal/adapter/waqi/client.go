// Package waqi adapts the World Air Quality Index (WAQI) API.
package waqi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/yevgetman/air-quality-api/internal/adapter"
	"github.com/yevgetman/air-quality-api/internal/measurement"
	"github.com/yevgetman/air-quality-api/pkg/geo"
)

const (
	// DefaultBaseURL is the base URL for the WAQI API.
	DefaultBaseURL = "https://api.waqi.info"

	// SourceCode identifies this provider.
	SourceCode = "WAQI"

	defaultRadiusKm    = 25
	defaultMaxStations = 10

	// Nearest-station feeds are full observations; bounds results carry only
	// an index value, so they get a lower confidence.
	feedConfidence   = 85
	boundsConfidence = 80
)

// Config holds configuration for the WAQI adapter.
type Config struct {
	// APIKey is the WAQI token.
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

// Adapter is the WAQI adapter. The nearest-station feed provides the primary
// measurement; when more stations are requested, the bounds endpoint fills
// in surrounding stations.
type Adapter struct {
	adapter.NoForecast

	client *adapter.Client
	logger zerolog.Logger
}

// New creates a new WAQI adapter.
func New(cfg Config) *Adapter {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Adapter{
		client: adapter.NewClient(adapter.ClientConfig{
			Info: adapter.SourceInfo{
				Code:           SourceCode,
				Name:           "World Air Quality Index",
				BaseURL:        baseURL,
				RequiresAPIKey: true,
				QualityLevel:   measurement.QualityVerified,
			},
			APIKey:        cfg.APIKey,
			Auth:          adapter.AuthQueryParam("token"),
			HTTPClient:    cfg.HTTPClient,
			Timeout:       cfg.Timeout,
			MaxRetries:    cfg.MaxRetries,
			BackoffFactor: cfg.BackoffFactor,
			Logs:          cfg.Logs,
			Health:        cfg.Health,
			Logger:        cfg.Logger,
		}),
		logger: cfg.Logger,
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

// API response types (from the WAQI API).

type feedResponse struct {
	Status string   `json:"status"`
	Data   feedData `json:"data"`
}

type feedData struct {
	// AQI is a number, or the sentinel "-" when the station has no index.
	AQI  json.RawMessage      `json:"aqi"`
	IDx  int64                `json:"idx"`
	City cityData             `json:"city"`
	IAQI map[string]iaqiValue `json:"iaqi"`
	Time timeData             `json:"time"`
}

type cityData struct {
	Geo  []float64 `json:"geo"`
	Name string    `json:"name"`
}

type iaqiValue struct {
	V float64 `json:"v"`
}

type timeData struct {
	ISO string `json:"iso"`
}

type boundsResponse struct {
	Status string          `json:"status"`
	Data   []boundsStation `json:"data"`
}

type boundsStation struct {
	Lat     float64         `json:"lat"`
	Lon     float64         `json:"lon"`
	UID     int64           `json:"uid"`
	AQI     string          `json:"aqi"`
	Station boundsStationID `json:"station"`
}

type boundsStationID struct {
	Name string `json:"name"`
	Time string `json:"time"`
}

// FetchCurrent retrieves the nearest station feed and, when more than one
// station is wanted, additional stations inside the search radius.
func (a *Adapter) FetchCurrent(ctx context.Context, lat, lon float64, opts adapter.Options) ([]measurement.Measurement, error) {
	maxStations := opts.MaxStations
	if maxStations == 0 {
		maxStations = defaultMaxStations
	}

	primary, err := a.fetchNearest(ctx, lat, lon)
	if err != nil {
		return nil, err
	}

	measurements := []measurement.Measurement{}
	seen := map[string]bool{}
	if primary != nil {
		measurements = append(measurements, *primary)
		seen[primary.StationID] = true
	}

	if maxStations > 1 {
		// Bounds failures never lose the feed result already in hand; the
		// shared client has recorded them.
		stations, boundsErr := a.fetchBounds(ctx, lat, lon, opts.RadiusKm)
		if boundsErr != nil {
			a.logger.Warn().Err(boundsErr).Msg("waqi bounds fetch failed")
		}
		for _, m := range stations {
			if seen[m.StationID] {
				continue
			}
			measurements = append(measurements, m)
			seen[m.StationID] = true
		}
	}

	sort.Slice(measurements, func(i, j int) bool {
		return *measurements[i].DistanceKm < *measurements[j].DistanceKm
	})
	if len(measurements) > maxStations {
		measurements = measurements[:maxStations]
	}
	return measurements, nil
}

func (a *Adapter) fetchNearest(ctx context.Context, lat, lon float64) (*measurement.Measurement, error) {
	endpoint := fmt.Sprintf("feed/geo:%s;%s/", formatCoord(lat), formatCoord(lon))

	var resp feedResponse
	if err := a.client.GetJSON(ctx, endpoint, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "ok" {
		a.client.RecordParseFailure("feed status " + resp.Status)
		return nil, nil
	}

	stationLat, stationLon := lat, lon
	if len(resp.Data.City.Geo) >= 2 {
		stationLat, stationLon = resp.Data.City.Geo[0], resp.Data.City.Geo[1]
	}
	distance := geo.DistanceKm(lat, lon, stationLat, stationLon)
	confidence := float64(feedConfidence)

	timestamp := time.Now().UTC()
	if t, err := time.Parse(time.RFC3339, resp.Data.Time.ISO); err == nil {
		timestamp = t.UTC()
	}

	pollutants := make(map[measurement.Pollutant]float64)
	for key, value := range resp.Data.IAQI {
		if p := measurement.Pollutant(key); measurement.KnownPollutant(p) {
			pollutants[p] = value.V
		}
	}

	m := &measurement.Measurement{
		Source:          SourceCode,
		Lat:             stationLat,
		Lon:             stationLon,
		Timestamp:       timestamp,
		AQI:             parseAQI(resp.Data.AQI),
		Pollutants:      pollutants,
		QualityLevel:    measurement.QualityVerified,
		DistanceKm:      &distance,
		ConfidenceScore: &confidence,
		StationID:       strconv.FormatInt(resp.Data.IDx, 10),
		StationName:     resp.Data.City.Name,
	}
	return m, nil
}

func (a *Adapter) fetchBounds(ctx context.Context, lat, lon, radiusKm float64) ([]measurement.Measurement, error) {
	if radiusKm == 0 {
		radiusKm = defaultRadiusKm
	}
	box := geo.BoxAround(lat, lon, radiusKm)

	params := url.Values{}
	params.Set("latlng", fmt.Sprintf("%s,%s,%s,%s",
		formatCoord(box.SouthLat), formatCoord(box.WestLon),
		formatCoord(box.NorthLat), formatCoord(box.EastLon)))

	var resp boundsResponse
	if err := a.client.GetJSON(ctx, "map/bounds/", params, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "ok" {
		a.client.RecordParseFailure("bounds status " + resp.Status)
		return nil, nil
	}

	measurements := make([]measurement.Measurement, 0, len(resp.Data))
	for _, station := range resp.Data {
		value, err := strconv.Atoi(station.AQI)
		if err != nil || value < 0 {
			continue
		}

		timestamp := time.Now().UTC()
		if t, err := time.Parse(time.RFC3339, station.Station.Time); err == nil {
			timestamp = t.UTC()
		}

		distance := geo.DistanceKm(lat, lon, station.Lat, station.Lon)
		confidence := float64(boundsConfidence)
		aqiValue := value
		measurements = append(measurements, measurement.Measurement{
			Source:          SourceCode,
			Lat:             station.Lat,
			Lon:             station.Lon,
			Timestamp:       timestamp,
			AQI:             &aqiValue,
			Pollutants:      map[measurement.Pollutant]float64{},
			QualityLevel:    measurement.QualityVerified,
			DistanceKm:      &distance,
			ConfidenceScore: &confidence,
			StationID:       strconv.FormatInt(station.UID, 10),
			StationName:     station.Station.Name,
		})
	}
	return measurements, nil
}

// parseAQI reads WAQI's aqi field, which is a number or the sentinel "-"
// meaning no data.
func parseAQI(raw json.RawMessage) *int {
	var value float64
	if err := json.Unmarshal(raw, &value); err != nil || value < 0 {
		return nil
	}
	v := int(value)
	return &v
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
