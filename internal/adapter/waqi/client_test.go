package waqi_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yevgetman/air-quality-api/internal/adapter"
	"github.com/yevgetman/air-quality-api/internal/adapter/waqi"
	"github.com/yevgetman/air-quality-api/internal/measurement"
)

const feedFixture = `{
  "status": "ok",
  "data": {
    "aqi": 57,
    "idx": 5773,
    "city": {
      "geo": [51.51, -0.13],
      "name": "London"
    },
    "iaqi": {
      "pm25": {"v": 57},
      "pm10": {"v": 24},
      "no2": {"v": 18.4},
      "h": {"v": 80}
    },
    "time": {"iso": "2024-01-15T14:00:00+00:00"}
  }
}`

const feedNoDataFixture = `{
  "status": "ok",
  "data": {
    "aqi": "-",
    "idx": 5773,
    "city": {"geo": [51.51, -0.13], "name": "London"},
    "iaqi": {},
    "time": {"iso": "2024-01-15T14:00:00+00:00"}
  }
}`

const boundsFixture = `{
  "status": "ok",
  "data": [
    {"lat": 51.52, "lon": -0.15, "uid": 1001, "aqi": "44", "station": {"name": "Camden", "time": "2024-01-15T14:00:00Z"}},
    {"lat": 51.49, "lon": -0.12, "uid": 1002, "aqi": "-", "station": {"name": "No Data", "time": "2024-01-15T14:00:00Z"}},
    {"lat": 51.51, "lon": -0.13, "uid": 5773, "aqi": "57", "station": {"name": "London", "time": "2024-01-15T14:00:00Z"}}
  ]
}`

func newAdapter(t *testing.T, handler http.HandlerFunc) *waqi.Adapter {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return waqi.New(waqi.Config{
		APIKey:     "test-token",
		BaseURL:    server.URL,
		HTTPClient: server.Client(),
		Logger:     zerolog.Nop(),
	})
}

func TestFetchCurrentNearestOnly(t *testing.T) {
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasPrefix(r.URL.Path, "/feed/geo:"))
		assert.Equal(t, "test-token", r.URL.Query().Get("token"))
		_, _ = w.Write([]byte(feedFixture))
	})

	measurements, err := a.FetchCurrent(context.Background(), 51.5, -0.12, adapter.Options{MaxStations: 1})
	require.NoError(t, err)
	require.Len(t, measurements, 1)

	m := measurements[0]
	assert.Equal(t, "WAQI", m.Source)
	assert.Equal(t, "5773", m.StationID)
	assert.Equal(t, "London", m.StationName)
	require.NotNil(t, m.AQI)
	assert.Equal(t, 57, *m.AQI)
	assert.Equal(t, measurement.QualityVerified, m.QualityLevel)
	require.NotNil(t, m.ConfidenceScore)
	assert.Equal(t, 85.0, *m.ConfidenceScore)
	assert.Equal(t, time.Date(2024, 1, 15, 14, 0, 0, 0, time.UTC), m.Timestamp.UTC())

	assert.Equal(t, 57.0, m.Pollutants[measurement.PM25])
	assert.Equal(t, 24.0, m.Pollutants[measurement.PM10])
	assert.NotContains(t, m.Pollutants, measurement.Pollutant("h"), "non-pollutant iaqi keys are dropped")
}

func TestFetchCurrentNoDataSentinel(t *testing.T) {
	a := newAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(feedNoDataFixture))
	})

	measurements, err := a.FetchCurrent(context.Background(), 51.5, -0.12, adapter.Options{MaxStations: 1})
	require.NoError(t, err)
	require.Len(t, measurements, 1)
	assert.Nil(t, measurements[0].AQI, `"-" means the station reported no index`)
}

func TestFetchCurrentMergesBoundsStations(t *testing.T) {
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/feed/geo:") {
			_, _ = w.Write([]byte(feedFixture))
			return
		}
		require.Equal(t, "/map/bounds/", r.URL.Path)
		assert.NotEmpty(t, r.URL.Query().Get("latlng"))
		_, _ = w.Write([]byte(boundsFixture))
	})

	measurements, err := a.FetchCurrent(context.Background(), 51.5, -0.12, adapter.Options{})
	require.NoError(t, err)

	// Feed station, plus Camden from bounds. Station 5773 deduplicates
	// against the feed, and the "-" station is dropped.
	require.Len(t, measurements, 2)

	ids := []string{measurements[0].StationID, measurements[1].StationID}
	assert.Contains(t, ids, "5773")
	assert.Contains(t, ids, "1001")

	for _, m := range measurements {
		if m.StationID == "1001" {
			require.NotNil(t, m.AQI)
			assert.Equal(t, 44, *m.AQI)
			require.NotNil(t, m.ConfidenceScore)
			assert.Equal(t, 80.0, *m.ConfidenceScore)
			assert.Empty(t, m.Pollutants)
		}
	}

	assert.LessOrEqual(t, *measurements[0].DistanceKm, *measurements[1].DistanceKm)
}

func TestFetchCurrentErrorStatus(t *testing.T) {
	a := newAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status": "error", "data": {}}`))
	})

	measurements, err := a.FetchCurrent(context.Background(), 51.5, -0.12, adapter.Options{MaxStations: 1})
	require.NoError(t, err)
	assert.Empty(t, measurements)
}

func TestFetchForecastEmpty(t *testing.T) {
	a := waqi.New(waqi.Config{APIKey: "k", Logger: zerolog.Nop()})

	points, err := a.FetchForecast(context.Background(), 51.5, -0.12)
	require.NoError(t, err)
	assert.Empty(t, points)
}
