package forecast_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yevgetman/air-quality-api/internal/forecast"
	"github.com/yevgetman/air-quality-api/internal/measurement"
)

var testNow = time.Date(2024, 1, 15, 12, 30, 0, 0, time.UTC)

func newAggregator(cache forecast.CacheRepository) *forecast.Aggregator {
	return forecast.NewAggregator(forecast.AggregatorConfig{
		Cache:  cache,
		Logger: zerolog.Nop(),
		Clock:  func() time.Time { return testNow },
	})
}

func point(source string, ts time.Time, aqi int, pm25 float64) measurement.ForecastPoint {
	return measurement.ForecastPoint{
		Source:    source,
		Timestamp: ts,
		AQI:       aqi,
		Pollutants: map[measurement.Pollutant]float64{
			measurement.PM25: pm25,
		},
	}
}

func TestAggregateBucketsAndAverages(t *testing.T) {
	a := newAggregator(nil)

	hour14 := time.Date(2024, 1, 15, 14, 0, 0, 0, time.UTC)
	hour15 := time.Date(2024, 1, 15, 15, 0, 0, 0, time.UTC)

	points := []measurement.ForecastPoint{
		point("OPENWEATHERMAP", hour14, 50, 10.0),
		point("EPA_AIRNOW", hour14.Add(20*time.Minute), 61, 12.5),
		point("OPENWEATHERMAP", hour15, 75, 22.0),
	}

	hours := a.Aggregate(context.Background(), 34.05, -118.24, points, false)
	require.Len(t, hours, 2)

	first := hours[0]
	assert.Equal(t, hour14, first.Timestamp)
	assert.Equal(t, 56, first.AQI, "mean of 50 and 61 rounds to 56")
	assert.Equal(t, "Moderate", first.Category)
	assert.Equal(t, 11.25, first.Pollutants[measurement.PM25])
	assert.Equal(t, []string{"EPA_AIRNOW", "OPENWEATHERMAP"}, first.Sources)

	second := hours[1]
	assert.Equal(t, hour15, second.Timestamp)
	assert.Equal(t, 75, second.AQI)
	assert.True(t, first.Timestamp.Before(second.Timestamp), "sorted ascending")
}

func TestAggregateDropsPastPoints(t *testing.T) {
	a := newAggregator(nil)

	points := []measurement.ForecastPoint{
		point("OPENWEATHERMAP", testNow.Add(-2*time.Hour), 200, 90.0),
		point("OPENWEATHERMAP", testNow.Add(90*time.Minute), 40, 8.0),
	}

	hours := a.Aggregate(context.Background(), 34.05, -118.24, points, false)
	require.Len(t, hours, 1)
	assert.Equal(t, 40, hours[0].AQI)
}

func TestAggregateEmptyInput(t *testing.T) {
	a := newAggregator(nil)

	hours := a.Aggregate(context.Background(), 34.05, -118.24, nil, false)
	assert.Empty(t, hours)
}

func TestAggregateCacheRoundTrip(t *testing.T) {
	cache := forecast.NewMemoryCacheRepository()
	a := newAggregator(cache)

	points := []measurement.ForecastPoint{
		point("OPENWEATHERMAP", testNow.Add(time.Hour), 50, 10.0),
	}

	first := a.Aggregate(context.Background(), 34.0522, -118.2437, points, true)
	require.Len(t, first, 1)

	// Nearby coordinates share the 3-decimal key; no points needed.
	second := a.Aggregate(context.Background(), 34.05222, -118.24372, nil, true)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].AQI, second[0].AQI)
}

func TestAggregateCacheExpiry(t *testing.T) {
	cache := forecast.NewMemoryCacheRepository()
	now := testNow
	cache.SetClock(func() time.Time { return now })
	a := newAggregator(cache)

	points := []measurement.ForecastPoint{
		point("OPENWEATHERMAP", testNow.Add(time.Hour), 50, 10.0),
	}
	a.Aggregate(context.Background(), 34.05, -118.24, points, true)

	now = now.Add(11 * time.Minute)
	hours := a.Aggregate(context.Background(), 34.05, -118.24, nil, true)
	assert.Empty(t, hours, "expired entry must miss")
}
