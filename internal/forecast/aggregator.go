// Package forecast merges forecast points from multiple providers into an
// hourly outlook.
package forecast

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/yevgetman/air-quality-api/internal/aqi"
	"github.com/yevgetman/air-quality-api/internal/measurement"
)

// defaultCacheTTL matches the blended current-data TTL.
const defaultCacheTTL = 10 * time.Minute

// Hour is one aggregated forecast bucket.
type Hour struct {
	Timestamp  time.Time
	AQI        int
	Category   string
	Pollutants map[measurement.Pollutant]float64
	Sources    []string
}

// CacheRepository persists aggregated forecasts keyed on rounded
// coordinates.
type CacheRepository interface {
	// Get returns the cached hours, or ErrCacheMiss when absent or expired.
	Get(ctx context.Context, lat, lon float64) ([]Hour, error)

	// Put stores the hours under the rounded key until now+ttl.
	Put(ctx context.Context, lat, lon float64, hours []Hour, ttl time.Duration) error
}

// AggregatorConfig holds tuning and dependencies for the aggregator.
type AggregatorConfig struct {
	// CacheTTL defaults to the blended-data TTL (10m).
	CacheTTL time.Duration

	// Cache is optional.
	Cache CacheRepository

	Logger zerolog.Logger

	// Clock overrides the time source for tests.
	Clock func() time.Time
}

// Aggregator buckets forecast points by hour and averages within each
// bucket. It holds no per-request state.
type Aggregator struct {
	cacheTTL time.Duration
	cache    CacheRepository
	logger   zerolog.Logger
	clock    func() time.Time
}

// NewAggregator creates a forecast aggregator.
func NewAggregator(cfg AggregatorConfig) *Aggregator {
	a := &Aggregator{
		cacheTTL: cfg.CacheTTL,
		cache:    cfg.Cache,
		logger:   cfg.Logger,
		clock:    cfg.Clock,
	}
	if a.cacheTTL == 0 {
		a.cacheTTL = defaultCacheTTL
	}
	if a.clock == nil {
		a.clock = time.Now
	}
	return a
}

// Aggregate merges forecast points into hourly buckets: past points are
// dropped, each bucket averages AQI (rounded) and pollutants (2 decimals),
// and buckets come back sorted by timestamp ascending.
func (a *Aggregator) Aggregate(ctx context.Context, lat, lon float64, points []measurement.ForecastPoint, useCache bool) []Hour {
	keyLat, keyLon := roundCoord(lat), roundCoord(lon)

	if useCache && a.cache != nil {
		if hours, err := a.cache.Get(ctx, keyLat, keyLon); err == nil {
			return hours
		}
	}

	now := a.clock().UTC()

	type bucket struct {
		aqiSum         int
		aqiCount       int
		pollutantSums  map[measurement.Pollutant]float64
		pollutantCount map[measurement.Pollutant]int
		sources        map[string]bool
	}
	buckets := make(map[time.Time]*bucket)

	for _, p := range points {
		if p.Timestamp.Before(now) {
			continue
		}
		hour := p.Timestamp.UTC().Truncate(time.Hour)

		b, ok := buckets[hour]
		if !ok {
			b = &bucket{
				pollutantSums:  make(map[measurement.Pollutant]float64),
				pollutantCount: make(map[measurement.Pollutant]int),
				sources:        make(map[string]bool),
			}
			buckets[hour] = b
		}

		b.aqiSum += p.AQI
		b.aqiCount++
		b.sources[p.Source] = true
		for key, value := range p.Pollutants {
			b.pollutantSums[key] += value
			b.pollutantCount[key]++
		}
	}

	hours := make([]Hour, 0, len(buckets))
	for ts, b := range buckets {
		value := int(math.Round(float64(b.aqiSum) / float64(b.aqiCount)))

		pollutants := make(map[measurement.Pollutant]float64, len(b.pollutantSums))
		for key, sum := range b.pollutantSums {
			pollutants[key] = math.Round(sum/float64(b.pollutantCount[key])*100) / 100
		}

		sources := make([]string, 0, len(b.sources))
		for s := range b.sources {
			sources = append(sources, s)
		}
		sort.Strings(sources)

		hours = append(hours, Hour{
			Timestamp:  ts,
			AQI:        value,
			Category:   aqi.CategoryName(value),
			Pollutants: pollutants,
			Sources:    sources,
		})
	}

	sort.Slice(hours, func(i, j int) bool {
		return hours[i].Timestamp.Before(hours[j].Timestamp)
	})

	if a.cache != nil && len(hours) > 0 {
		if err := a.cache.Put(ctx, keyLat, keyLon, hours, a.cacheTTL); err != nil {
			a.logger.Error().Err(err).Msg("failed to write forecast cache")
		}
	}
	return hours
}

func roundCoord(v float64) float64 {
	return math.Round(v*1000) / 1000
}
