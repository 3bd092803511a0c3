// Package eccc adapts Environment and Climate Change Canada's GeoMet OGC API
// for realtime AQHI observations.
package eccc

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/yevgetman/air-quality-api/internal/adapter"
	"github.com/yevgetman/air-quality-api/internal/aqi"
	"github.com/yevgetman/air-quality-api/internal/measurement"
	"github.com/yevgetman/air-quality-api/pkg/geo"
)

const (
	// DefaultBaseURL is the base URL for the GeoMet OGC API.
	DefaultBaseURL = "https://api.weather.gc.ca"

	// SourceCode identifies this provider.
	SourceCode = "ECCC_AQHI"

	defaultRadiusKm    = 25
	defaultMaxStations = 10
	confidenceScore    = 90

	// itemsLimit bounds one bbox query; realtime collections repeat each
	// location across observation times.
	itemsLimit = 200
)

// Config holds configuration for the ECCC adapter. The GeoMet API is open
// and needs no credential.
type Config struct {
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

// Adapter is the ECCC AQHI adapter. Each location's newest observation is
// kept and its 1-10+ AQHI converted to an approximate EPA value.
type Adapter struct {
	adapter.NoForecast

	client *adapter.Client
}

// New creates a new ECCC adapter.
func New(cfg Config) *Adapter {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Adapter{
		client: adapter.NewClient(adapter.ClientConfig{
			Info: adapter.SourceInfo{
				Code:           SourceCode,
				Name:           "ECCC Air Quality Health Index",
				BaseURL:        baseURL,
				RequiresAPIKey: false,
				QualityLevel:   measurement.QualityVerified,
			},
			Auth:          adapter.AuthNone(),
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

// API response types (GeoJSON features from the GeoMet OGC API).

type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

type feature struct {
	Geometry   geometryData   `json:"geometry"`
	Properties propertiesData `json:"properties"`
}

type geometryData struct {
	// Coordinates are GeoJSON order: [longitude, latitude].
	Coordinates []float64 `json:"coordinates"`
}

type propertiesData struct {
	AQHI                 *float64 `json:"aqhi"`
	LocationID           string   `json:"location_id"`
	LocationNameEn       string   `json:"location_name_en"`
	ObservationDatetime  string   `json:"observation_datetime"`
}

// FetchCurrent retrieves AQHI observations inside the bounding box around
// the query point, keeping the newest observation per location.
func (a *Adapter) FetchCurrent(ctx context.Context, lat, lon float64, opts adapter.Options) ([]measurement.Measurement, error) {
	radius := opts.RadiusKm
	if radius == 0 {
		radius = defaultRadiusKm
	}
	maxStations := opts.MaxStations
	if maxStations == 0 {
		maxStations = defaultMaxStations
	}

	box := geo.BoxAround(lat, lon, radius)

	params := url.Values{}
	params.Set("f", "json")
	params.Set("limit", strconv.Itoa(itemsLimit))
	params.Set("bbox", fmt.Sprintf("%s,%s,%s,%s",
		formatCoord(box.WestLon), formatCoord(box.SouthLat),
		formatCoord(box.EastLon), formatCoord(box.NorthLat)))

	var resp featureCollection
	if err := a.client.GetJSON(ctx, "collections/aqhi-observations-realtime/items", params, &resp); err != nil {
		return nil, err
	}

	type latest struct {
		m          measurement.Measurement
		observedAt time.Time
	}
	byLocation := make(map[string]latest)

	for _, f := range resp.Features {
		if f.Properties.AQHI == nil || len(f.Geometry.Coordinates) < 2 {
			continue
		}
		observedAt, err := time.Parse(time.RFC3339, f.Properties.ObservationDatetime)
		if err != nil {
			continue
		}

		key := f.Properties.LocationID
		if prev, ok := byLocation[key]; ok && !observedAt.After(prev.observedAt) {
			continue
		}

		stationLon, stationLat := f.Geometry.Coordinates[0], f.Geometry.Coordinates[1]
		distance := geo.DistanceKm(lat, lon, stationLat, stationLon)
		confidence := float64(confidenceScore)
		value := aqi.FromAQHI(int(math.Round(*f.Properties.AQHI)))

		byLocation[key] = latest{
			observedAt: observedAt,
			m: measurement.Measurement{
				Source:          SourceCode,
				Lat:             stationLat,
				Lon:             stationLon,
				Timestamp:       observedAt.UTC(),
				AQI:             &value,
				Pollutants:      map[measurement.Pollutant]float64{},
				QualityLevel:    measurement.QualityVerified,
				DistanceKm:      &distance,
				ConfidenceScore: &confidence,
				StationID:       key,
				StationName:     f.Properties.LocationNameEn,
			},
		}
	}

	measurements := make([]measurement.Measurement, 0, len(byLocation))
	for _, entry := range byLocation {
		measurements = append(measurements, entry.m)
	}
	sort.Slice(measurements, func(i, j int) bool {
		return *measurements[i].DistanceKm < *measurements[j].DistanceKm
	})
	if len(measurements) > maxStations {
		measurements = measurements[:maxStations]
	}
	return measurements, nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
