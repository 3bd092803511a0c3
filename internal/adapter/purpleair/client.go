// Package purpleair adapts the PurpleAir sensor network API.
package purpleair

import (
	"context"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/yevgetman/air-quality-api/internal/adapter"
	"github.com/yevgetman/air-quality-api/internal/aqi"
	"github.com/yevgetman/air-quality-api/internal/measurement"
	"github.com/yevgetman/air-quality-api/pkg/geo"
)

const (
	// DefaultBaseURL is the base URL for the PurpleAir API.
	DefaultBaseURL = "https://api.purpleair.com/v1"

	// SourceCode identifies this provider.
	SourceCode = "PURPLEAIR"

	defaultRadiusKm    = 25
	defaultMaxStations = 10
	defaultMinConfidence = 80
)

// sensorFields is the positional field list requested from the API. The
// response echoes it back; indices are resolved from the echo, never assumed.
var sensorFields = []string{
	"sensor_index",
	"name",
	"latitude",
	"longitude",
	"confidence",
	"last_seen",
	"pm2.5_atm_a",
	"pm2.5_atm_b",
}

// Config holds configuration for the PurpleAir adapter.
type Config struct {
	// APIKey is the PurpleAir read key.
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

	// ApplyEPACorrection enables the EPA correction on raw PM2.5.
	ApplyEPACorrection bool

	// MinConfidence drops sensors below this confidence (default: 80).
	MinConfidence float64
}

// Adapter is the PurpleAir adapter. It queries a bounding box of community
// sensors, averages the two PM2.5 channels, optionally applies the EPA
// correction, and keeps the nearest sensors by distance.
type Adapter struct {
	adapter.NoForecast

	client         *adapter.Client
	applyCorrection bool
	minConfidence  float64
}

// New creates a new PurpleAir adapter.
func New(cfg Config) *Adapter {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	minConfidence := cfg.MinConfidence
	if minConfidence == 0 {
		minConfidence = defaultMinConfidence
	}

	return &Adapter{
		client: adapter.NewClient(adapter.ClientConfig{
			Info: adapter.SourceInfo{
				Code:           SourceCode,
				Name:           "PurpleAir",
				BaseURL:        baseURL,
				RequiresAPIKey: true,
				QualityLevel:   measurement.QualitySensor,
			},
			APIKey:        cfg.APIKey,
			Auth:          adapter.AuthHeader("X-API-Key"),
			HTTPClient:    cfg.HTTPClient,
			Timeout:       cfg.Timeout,
			MaxRetries:    cfg.MaxRetries,
			BackoffFactor: cfg.BackoffFactor,
			Logs:          cfg.Logs,
			Health:        cfg.Health,
			Logger:        cfg.Logger,
		}),
		applyCorrection: cfg.ApplyEPACorrection,
		minConfidence:   minConfidence,
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

type sensorsResponse struct {
	Fields []string `json:"fields"`
	Data   [][]any  `json:"data"`
}

// FetchCurrent retrieves sensors inside the bounding box around the query
// point and normalizes them to measurements sorted by distance.
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
	params.Set("fields", strings.Join(sensorFields, ","))
	params.Set("nwlat", formatCoord(box.NorthLat))
	params.Set("nwlng", formatCoord(box.WestLon))
	params.Set("selat", formatCoord(box.SouthLat))
	params.Set("selng", formatCoord(box.EastLon))

	var resp sensorsResponse
	if err := a.client.GetJSON(ctx, "sensors", params, &resp); err != nil {
		return nil, err
	}

	idx := make(map[string]int, len(resp.Fields))
	for i, name := range resp.Fields {
		idx[name] = i
	}
	for _, required := range []string{"latitude", "longitude", "confidence"} {
		if _, ok := idx[required]; !ok {
			a.client.RecordParseFailure("sensors response missing field " + required)
			return []measurement.Measurement{}, nil
		}
	}

	measurements := make([]measurement.Measurement, 0, len(resp.Data))
	for _, row := range resp.Data {
		m, ok := a.toMeasurement(row, idx, lat, lon)
		if ok {
			measurements = append(measurements, m)
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

// toMeasurement reads one positional sensor row. Sensors below the
// confidence floor or without a usable PM2.5 channel are dropped.
func (a *Adapter) toMeasurement(row []any, idx map[string]int, queryLat, queryLon float64) (measurement.Measurement, bool) {
	sensorLat, ok := floatAt(row, idx, "latitude")
	if !ok {
		return measurement.Measurement{}, false
	}
	sensorLon, ok := floatAt(row, idx, "longitude")
	if !ok {
		return measurement.Measurement{}, false
	}
	confidence, ok := floatAt(row, idx, "confidence")
	if !ok || confidence < a.minConfidence {
		return measurement.Measurement{}, false
	}

	channelA, okA := floatAt(row, idx, "pm2.5_atm_a")
	channelB, okB := floatAt(row, idx, "pm2.5_atm_b")
	var pm25 float64
	switch {
	case okA && okB:
		pm25 = (channelA + channelB) / 2
	case okA:
		pm25 = channelA
	case okB:
		pm25 = channelB
	default:
		return measurement.Measurement{}, false
	}

	if a.applyCorrection {
		pm25 = aqi.CorrectPurpleAir(pm25)
		if pm25 < 0 {
			pm25 = 0
		}
	}

	timestamp := time.Now().UTC()
	if lastSeen, ok := floatAt(row, idx, "last_seen"); ok {
		timestamp = time.Unix(int64(lastSeen), 0).UTC()
	}

	distance := geo.DistanceKm(queryLat, queryLon, sensorLat, sensorLon)
	value := aqi.FromPM25(pm25)

	m := measurement.Measurement{
		Source:    SourceCode,
		Lat:       sensorLat,
		Lon:       sensorLon,
		Timestamp: timestamp,
		AQI:       &value,
		Pollutants: map[measurement.Pollutant]float64{
			measurement.PM25: pm25,
		},
		QualityLevel:    measurement.QualitySensor,
		DistanceKm:      &distance,
		ConfidenceScore: &confidence,
	}
	if sensorIdx, ok := floatAt(row, idx, "sensor_index"); ok {
		m.StationID = strconv.FormatInt(int64(sensorIdx), 10)
	}
	if name, ok := stringAt(row, idx, "name"); ok {
		m.StationName = name
	}
	return m, true
}

func floatAt(row []any, idx map[string]int, field string) (float64, bool) {
	i, ok := idx[field]
	if !ok || i >= len(row) {
		return 0, false
	}
	v, ok := row[i].(float64)
	return v, ok
}

func stringAt(row []any, idx map[string]int, field string) (string, bool) {
	i, ok := idx[field]
	if !ok || i >= len(row) {
		return "", false
	}
	v, ok := row[i].(string)
	return v, ok
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
