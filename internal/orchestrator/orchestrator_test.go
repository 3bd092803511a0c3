package orchestrator_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yevgetman/air-quality-api/internal/adapter"
	"github.com/yevgetman/air-quality-api/internal/forecast"
	"github.com/yevgetman/air-quality-api/internal/fusion"
	"github.com/yevgetman/air-quality-api/internal/location"
	"github.com/yevgetman/air-quality-api/internal/measurement"
	"github.com/yevgetman/air-quality-api/internal/orchestrator"
)

type fakeAdapter struct {
	mu        sync.Mutex
	code      string
	available bool
	current   []measurement.Measurement
	forecasts []measurement.ForecastPoint
	err       error
	calls     int
}

func (f *fakeAdapter) Info() adapter.SourceInfo {
	return adapter.SourceInfo{Code: f.code, Name: f.code}
}

func (f *fakeAdapter) FetchCurrent(_ context.Context, _, _ float64, _ adapter.Options) ([]measurement.Measurement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.current, nil
}

func (f *fakeAdapter) FetchForecast(_ context.Context, _, _ float64) ([]measurement.ForecastPoint, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.forecasts, nil
}

func (f *fakeAdapter) Available() bool { return f.available }

func (f *fakeAdapter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fixedGeocoder struct {
	place location.Place
}

func (g fixedGeocoder) ReverseGeocode(_ context.Context, lat, lon float64) (location.Place, error) {
	p := g.place
	p.Lat, p.Lon = lat, lon
	return p, nil
}

func currentMeasurement(source string, aqiValue int) measurement.Measurement {
	confidence := 100.0
	return measurement.Measurement{
		Source:          source,
		Timestamp:       time.Now().UTC(),
		AQI:             &aqiValue,
		Pollutants:      map[measurement.Pollutant]float64{},
		QualityLevel:    measurement.QualityVerified,
		ConfidenceScore: &confidence,
	}
}

func newOrchestrator(adapters ...adapter.Adapter) *orchestrator.Orchestrator {
	resolver := location.NewResolver(location.ResolverConfig{
		Geocoder: fixedGeocoder{place: location.Place{City: "Los Angeles", Country: "US"}},
		Logger:   zerolog.Nop(),
	})
	engine := fusion.NewEngine(fusion.EngineConfig{
		Weights: fusion.NewMemoryWeightRepository(),
		Logger:  zerolog.Nop(),
	})
	aggregator := forecast.NewAggregator(forecast.AggregatorConfig{Logger: zerolog.Nop()})

	return orchestrator.New(orchestrator.Config{
		Resolver:   resolver,
		Engine:     engine,
		Aggregator: aggregator,
		Adapters:   adapters,
		Logger:     zerolog.Nop(),
	})
}

func TestQueryBlendsAvailableAdapters(t *testing.T) {
	airnow := &fakeAdapter{
		code:      "EPA_AIRNOW",
		available: true,
		current:   []measurement.Measurement{currentMeasurement("EPA_AIRNOW", 42)},
	}
	owm := &fakeAdapter{
		code:      "OPENWEATHERMAP",
		available: true,
		current:   []measurement.Measurement{currentMeasurement("OPENWEATHERMAP", 42)},
	}

	o := newOrchestrator(airnow, owm)
	result := o.Query(context.Background(), 34.05, -118.24, orchestrator.QueryOptions{})

	assert.Equal(t, "Los Angeles", result.Place.City)
	assert.Equal(t, "US", result.Region.CountryCode)
	require.NotNil(t, result.Current.AQI)
	assert.Equal(t, 42, *result.Current.AQI)
	assert.ElementsMatch(t, []string{"EPA_AIRNOW", "OPENWEATHERMAP"}, result.Current.Sources)
	assert.Contains(t, result.HealthAdvice, "satisfactory")
	assert.Equal(t, 1, airnow.callCount())
	assert.Equal(t, 1, owm.callCount())
}

func TestQuerySkipsUnavailableAdapters(t *testing.T) {
	disabled := &fakeAdapter{
		code:      "EPA_AIRNOW",
		available: false,
		current:   []measurement.Measurement{currentMeasurement("EPA_AIRNOW", 42)},
	}
	healthy := &fakeAdapter{
		code:      "WAQI",
		available: true,
		current:   []measurement.Measurement{currentMeasurement("WAQI", 60)},
	}

	o := newOrchestrator(disabled, healthy)
	result := o.Query(context.Background(), 34.05, -118.24, orchestrator.QueryOptions{})

	assert.Equal(t, 0, disabled.callCount(), "disabled sources are never called")
	require.NotNil(t, result.Current.AQI)
	assert.Equal(t, []string{"WAQI"}, result.Current.Sources)
}

func TestQueryToleratesPartialFailure(t *testing.T) {
	failing := &fakeAdapter{
		code:      "PURPLEAIR",
		available: true,
		err:       errors.New("upstream down"),
	}
	healthy := &fakeAdapter{
		code:      "EPA_AIRNOW",
		available: true,
		current:   []measurement.Measurement{currentMeasurement("EPA_AIRNOW", 55)},
	}

	o := newOrchestrator(failing, healthy)
	result := o.Query(context.Background(), 34.05, -118.24, orchestrator.QueryOptions{})

	require.NotNil(t, result.Current.AQI)
	assert.Equal(t, 55, *result.Current.AQI)
	assert.Equal(t, []string{"EPA_AIRNOW"}, result.Current.Sources)
}

func TestQueryAllAdaptersFailed(t *testing.T) {
	failing := &fakeAdapter{code: "EPA_AIRNOW", available: true, err: errors.New("down")}

	o := newOrchestrator(failing)
	result := o.Query(context.Background(), 34.05, -118.24, orchestrator.QueryOptions{})

	assert.Nil(t, result.Current.AQI)
	assert.Equal(t, fusion.UnavailableError, result.Current.Error)
	assert.Empty(t, result.HealthAdvice)
}

func TestQueryIncludesForecast(t *testing.T) {
	future := time.Now().UTC().Add(2 * time.Hour).Truncate(time.Hour)
	a := &fakeAdapter{
		code:      "OPENWEATHERMAP",
		available: true,
		current:   []measurement.Measurement{currentMeasurement("OPENWEATHERMAP", 42)},
		forecasts: []measurement.ForecastPoint{
			{Source: "OPENWEATHERMAP", Timestamp: future, AQI: 75, Pollutants: map[measurement.Pollutant]float64{}},
		},
	}

	o := newOrchestrator(a)
	result := o.Query(context.Background(), 34.05, -118.24, orchestrator.QueryOptions{IncludeForecast: true})

	require.Len(t, result.Forecast, 1)
	assert.Equal(t, 75, result.Forecast[0].AQI)
	assert.Equal(t, "Moderate", result.Forecast[0].Category)
}

func TestQueryWithoutForecastSkipsForecastCalls(t *testing.T) {
	a := &fakeAdapter{
		code:      "OPENWEATHERMAP",
		available: true,
		current:   []measurement.Measurement{currentMeasurement("OPENWEATHERMAP", 42)},
	}

	o := newOrchestrator(a)
	result := o.Query(context.Background(), 34.05, -118.24, orchestrator.QueryOptions{})

	assert.Nil(t, result.Forecast)
}

func TestQueryManyAdaptersThroughPool(t *testing.T) {
	adapters := make([]adapter.Adapter, 0, 8)
	for _, code := range []string{"A", "B", "C", "D", "E", "F", "G", "H"} {
		adapters = append(adapters, &fakeAdapter{
			code:      code,
			available: true,
			current:   []measurement.Measurement{currentMeasurement(code, 50)},
		})
	}

	o := newOrchestrator(adapters...)
	result := o.Query(context.Background(), 34.05, -118.24, orchestrator.QueryOptions{})

	require.NotNil(t, result.Current.AQI)
	assert.Equal(t, 50, *result.Current.AQI)
	assert.Len(t, result.Current.Sources, 8, "the pool drains every adapter")
}
