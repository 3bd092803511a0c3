// Package orchestrator fans a query out across the provider adapters and
// stitches location, fused current data, and the forecast outlook into one
// response.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/yevgetman/air-quality-api/internal/adapter"
	"github.com/yevgetman/air-quality-api/internal/aqi"
	"github.com/yevgetman/air-quality-api/internal/forecast"
	"github.com/yevgetman/air-quality-api/internal/fusion"
	"github.com/yevgetman/air-quality-api/internal/location"
	"github.com/yevgetman/air-quality-api/internal/measurement"
)

const (
	defaultCurrentWorkers  = 4
	defaultForecastWorkers = 2

	// defaultCallTimeout caps one adapter call including its retries.
	defaultCallTimeout = 30 * time.Second
)

// Result is the stitched answer for one query.
type Result struct {
	Place        location.Place
	Region       location.RegionConfig
	Current      fusion.BlendedResult
	Forecast     []forecast.Hour
	HealthAdvice string
}

// QueryOptions tunes one query.
type QueryOptions struct {
	IncludeForecast bool
	RadiusKm        float64
	UseCache        bool
}

// Config holds dependencies for the orchestrator.
type Config struct {
	Resolver   *location.Resolver
	Engine     *fusion.Engine
	Aggregator *forecast.Aggregator
	Adapters   []adapter.Adapter

	// CurrentWorkers is the current-data fan-out width (default: 4).
	CurrentWorkers int

	// ForecastWorkers is the forecast fan-out width (default: 2).
	ForecastWorkers int

	// CallTimeout is the per-adapter ceiling (default: 30s).
	CallTimeout time.Duration

	Logger zerolog.Logger
}

// Orchestrator coordinates one air quality query end to end. A single
// adapter failure never aborts the batch; only a total absence of fresh
// data surfaces to the caller, as the engine's unavailable result.
type Orchestrator struct {
	resolver        *location.Resolver
	engine          *fusion.Engine
	aggregator      *forecast.Aggregator
	adapters        []adapter.Adapter
	currentWorkers  int
	forecastWorkers int
	callTimeout     time.Duration
	logger          zerolog.Logger
}

// New creates an orchestrator.
func New(cfg Config) *Orchestrator {
	o := &Orchestrator{
		resolver:        cfg.Resolver,
		engine:          cfg.Engine,
		aggregator:      cfg.Aggregator,
		adapters:        cfg.Adapters,
		currentWorkers:  cfg.CurrentWorkers,
		forecastWorkers: cfg.ForecastWorkers,
		callTimeout:     cfg.CallTimeout,
		logger:          cfg.Logger,
	}
	if o.currentWorkers == 0 {
		o.currentWorkers = defaultCurrentWorkers
	}
	if o.forecastWorkers == 0 {
		o.forecastWorkers = defaultForecastWorkers
	}
	if o.callTimeout == 0 {
		o.callTimeout = defaultCallTimeout
	}
	return o
}

// Query resolves the location, fans out to every available adapter in
// region priority order, fuses the results, and optionally aggregates the
// forecast.
func (o *Orchestrator) Query(ctx context.Context, lat, lon float64, opts QueryOptions) Result {
	place := o.resolver.Resolve(ctx, lat, lon, opts.UseCache)
	region := o.resolver.RegionFor(ctx, place.Country)

	callable := o.orderedAdapters(region.SourcePriority)

	measurements := o.fanOutCurrent(ctx, callable, lat, lon, opts)
	current := o.engine.Fuse(ctx, lat, lon, measurements, region.CountryCode, opts.UseCache)

	result := Result{
		Place:   place,
		Region:  region,
		Current: current,
	}

	if opts.IncludeForecast {
		points := o.fanOutForecast(ctx, callable, lat, lon)
		result.Forecast = o.aggregator.Aggregate(ctx, lat, lon, points, opts.UseCache)
	}

	if current.AQI != nil {
		if c, ok := aqi.CategoryFor(*current.AQI, aqi.ScaleEPA); ok {
			result.HealthAdvice = c.HealthMessage
		}
	}

	return result
}

// orderedAdapters returns the available adapters, region priority first,
// then any remaining registered adapters in registration order.
func (o *Orchestrator) orderedAdapters(priority []string) []adapter.Adapter {
	byCode := make(map[string]adapter.Adapter, len(o.adapters))
	for _, a := range o.adapters {
		byCode[a.Info().Code] = a
	}

	ordered := make([]adapter.Adapter, 0, len(o.adapters))
	taken := make(map[string]bool, len(o.adapters))
	for _, code := range priority {
		if a, ok := byCode[code]; ok {
			ordered = append(ordered, a)
			taken[code] = true
		}
	}
	for _, a := range o.adapters {
		if !taken[a.Info().Code] {
			ordered = append(ordered, a)
		}
	}

	callable := ordered[:0]
	for _, a := range ordered {
		if a.Available() {
			callable = append(callable, a)
		} else {
			o.logger.Debug().Str("source", a.Info().Code).Msg("skipping unavailable adapter")
		}
	}
	return callable
}

// fanOutCurrent runs FetchCurrent across the adapters with a bounded worker
// pool, tolerating per-adapter failures.
func (o *Orchestrator) fanOutCurrent(ctx context.Context, adapters []adapter.Adapter, lat, lon float64, opts QueryOptions) []measurement.Measurement {
	type outcome struct {
		source       string
		measurements []measurement.Measurement
		err          error
	}

	jobs := make(chan adapter.Adapter)
	results := make(chan outcome)

	var wg sync.WaitGroup
	for i := 0; i < o.currentWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for a := range jobs {
				callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
				ms, err := a.FetchCurrent(callCtx, lat, lon, adapter.Options{RadiusKm: opts.RadiusKm})
				cancel()
				results <- outcome{source: a.Info().Code, measurements: ms, err: err}
			}
		}()
	}

	go func() {
		for _, a := range adapters {
			jobs <- a
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	var merged []measurement.Measurement
	for r := range results {
		if r.err != nil {
			o.logger.Warn().Err(r.err).Str("source", r.source).Msg("current fetch failed")
			continue
		}
		merged = append(merged, r.measurements...)
	}
	return merged
}

// fanOutForecast runs FetchForecast across the adapters with a narrower
// worker pool.
func (o *Orchestrator) fanOutForecast(ctx context.Context, adapters []adapter.Adapter, lat, lon float64) []measurement.ForecastPoint {
	type outcome struct {
		source string
		points []measurement.ForecastPoint
		err    error
	}

	jobs := make(chan adapter.Adapter)
	results := make(chan outcome)

	var wg sync.WaitGroup
	for i := 0; i < o.forecastWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for a := range jobs {
				callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
				points, err := a.FetchForecast(callCtx, lat, lon)
				cancel()
				results <- outcome{source: a.Info().Code, points: points, err: err}
			}
		}()
	}

	go func() {
		for _, a := range adapters {
			jobs <- a
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	var merged []measurement.ForecastPoint
	for r := range results {
		if r.err != nil {
			o.logger.Warn().Err(r.err).Str("source", r.source).Msg("forecast fetch failed")
			continue
		}
		merged = append(merged, r.points...)
	}
	return merged
}
