package fusion

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/yevgetman/air-quality-api/internal/aqi"
	"github.com/yevgetman/air-quality-api/internal/measurement"
)

// Engine defaults.
const (
	defaultMaxDataAge       = 3 * time.Hour
	defaultPreferredDataAge = 30 * time.Minute
	defaultSearchRadiusKm   = 25.0
	defaultCacheTTL         = 10 * time.Minute

	// timeDecayFloor and distanceFactorFloor keep old or distant
	// measurements from vanishing entirely.
	timeDecayFloor      = 0.1
	distanceFactorFloor = 0.1
)

// qualityFactors weighs measurement provenance. Unknown tiers get 0.5.
var qualityFactors = map[measurement.QualityLevel]float64{
	measurement.QualityVerified:  1.0,
	measurement.QualitySensor:    0.9,
	measurement.QualityModel:     0.8,
	measurement.QualityEstimated: 0.6,
}

// EngineConfig holds tuning and dependencies for the fusion engine.
type EngineConfig struct {
	// MaxDataAge drops older measurements entirely (default: 3h).
	MaxDataAge time.Duration

	// PreferredDataAge is the age up to which no decay applies (default: 30m).
	PreferredDataAge time.Duration

	// SearchRadiusKm anchors the distance falloff (default: 25).
	SearchRadiusKm float64

	// CacheTTL is how long blended results stay cached (default: 10m).
	CacheTTL time.Duration

	// DefaultTrust applies to sources without a stored weight (default: 0.5).
	DefaultTrust float64

	// Weights is optional; without it every source gets DefaultTrust.
	Weights WeightRepository

	// Cache is optional; without it every query blends from scratch.
	Cache CacheRepository

	// Logs is optional; blend audit rows are written best-effort.
	Logs LogRepository

	Logger zerolog.Logger

	// Clock overrides the time source for tests.
	Clock func() time.Time
}

// Engine blends measurements. It holds no per-request state and is safe for
// concurrent use.
type Engine struct {
	maxDataAge       time.Duration
	preferredDataAge time.Duration
	searchRadiusKm   float64
	cacheTTL         time.Duration
	defaultTrust     float64

	weights WeightRepository
	cache   CacheRepository
	logs    LogRepository
	logger  zerolog.Logger
	clock   func() time.Time
}

// NewEngine creates a fusion engine.
func NewEngine(cfg EngineConfig) *Engine {
	e := &Engine{
		maxDataAge:       cfg.MaxDataAge,
		preferredDataAge: cfg.PreferredDataAge,
		searchRadiusKm:   cfg.SearchRadiusKm,
		cacheTTL:         cfg.CacheTTL,
		defaultTrust:     cfg.DefaultTrust,
		weights:          cfg.Weights,
		cache:            cfg.Cache,
		logs:             cfg.Logs,
		logger:           cfg.Logger,
		clock:            cfg.Clock,
	}
	if e.maxDataAge == 0 {
		e.maxDataAge = defaultMaxDataAge
	}
	if e.preferredDataAge == 0 {
		e.preferredDataAge = defaultPreferredDataAge
	}
	if e.searchRadiusKm == 0 {
		e.searchRadiusKm = defaultSearchRadiusKm
	}
	if e.cacheTTL == 0 {
		e.cacheTTL = defaultCacheTTL
	}
	if e.defaultTrust == 0 {
		e.defaultTrust = DefaultTrustFactor
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	return e
}

// Fuse blends the measurements for one query point. The result is
// deterministic for a fixed input set, configuration, and clock, and does
// not depend on input order.
func (e *Engine) Fuse(ctx context.Context, lat, lon float64, measurements []measurement.Measurement, regionCode string, useCache bool) BlendedResult {
	keyLat, keyLon := roundCoord(lat), roundCoord(lon)
	now := e.clock().UTC()

	if useCache && e.cache != nil {
		if cached, err := e.cache.Get(ctx, keyLat, keyLon); err == nil {
			return *cached
		}
	}

	fresh := make([]measurement.Measurement, 0, len(measurements))
	for _, m := range measurements {
		if m.Fresh(now, e.maxDataAge) {
			fresh = append(fresh, m)
		}
	}

	if len(fresh) == 0 {
		return BlendedResult{
			Lat:         keyLat,
			Lon:         keyLon,
			RegionCode:  regionCode,
			Category:    aqi.CategoryUnavailable,
			Pollutants:  map[measurement.Pollutant]float64{},
			Sources:     []string{},
			LastUpdated: now,
			Error:       UnavailableError,
		}
	}

	details := make([]SourceDetail, 0, len(fresh))
	weights := make([]float64, 0, len(fresh))
	for _, m := range fresh {
		w := e.weightFor(ctx, &m, regionCode, now)
		weights = append(weights, w)
		details = append(details, SourceDetail{
			Source:       m.Source,
			Weight:       round4(w),
			AQI:          m.AQI,
			DistanceKm:   m.DistanceKm,
			Timestamp:    m.Timestamp,
			QualityLevel: m.QualityLevel,
			StationName:  m.StationName,
		})
	}

	blended := blendAQI(fresh, weights)
	pollutants := blendPollutants(fresh, weights)

	// Deterministic attribution order: weight descending, then source and
	// station as tie-breakers so input order never shows through.
	sort.SliceStable(details, func(i, j int) bool {
		if details[i].Weight != details[j].Weight {
			return details[i].Weight > details[j].Weight
		}
		if details[i].Source != details[j].Source {
			return details[i].Source < details[j].Source
		}
		return details[i].StationName < details[j].StationName
	})

	sources := make([]string, 0, len(details))
	seen := make(map[string]bool)
	for _, d := range details {
		if !seen[d.Source] {
			sources = append(sources, d.Source)
			seen[d.Source] = true
		}
	}

	result := BlendedResult{
		Lat:           keyLat,
		Lon:           keyLon,
		RegionCode:    regionCode,
		AQI:           &blended,
		Category:      aqi.CategoryName(blended),
		Pollutants:    pollutants,
		Sources:       sources,
		SourceDetails: details,
		LastUpdated:   now,
		CachedUntil:   now.Add(e.cacheTTL),
	}

	if e.cache != nil {
		if err := e.cache.Put(ctx, result, e.cacheTTL); err != nil {
			e.logger.Error().Err(err).Msg("failed to write blended cache")
		}
	}
	e.writeLog(ctx, result, len(fresh))

	return result
}

// weightFor computes trust × time_decay × distance_factor × quality ×
// confidence for one measurement.
func (e *Engine) weightFor(ctx context.Context, m *measurement.Measurement, regionCode string, now time.Time) float64 {
	trust := e.defaultTrust
	timeDecayFactor := 1.0
	distanceWeightFactor := 1.0
	if e.weights != nil {
		sw, err := e.weights.Get(ctx, m.Source, regionCode)
		if err != nil {
			sw, err = e.weights.Get(ctx, m.Source, "DEFAULT")
		}
		if err == nil {
			trust = sw.TrustFactor
			timeDecayFactor = sw.TimeDecayFactor
			distanceWeightFactor = sw.DistanceWeightFactor
		}
	}

	timeDecay := 1.0
	ageMinutes := m.Age(now).Minutes()
	preferredMinutes := e.preferredDataAge.Minutes()
	if ageMinutes > preferredMinutes {
		timeDecay = math.Exp(-ageMinutes / (2 * preferredMinutes))
		if timeDecay < timeDecayFloor {
			timeDecay = timeDecayFloor
		}
	}
	timeDecay *= timeDecayFactor

	distanceFactor := 1.0
	if m.DistanceKm != nil && *m.DistanceKm > 0 {
		distanceFactor = 1 - *m.DistanceKm/e.searchRadiusKm
		if distanceFactor < distanceFactorFloor {
			distanceFactor = distanceFactorFloor
		}
	}
	distanceFactor *= distanceWeightFactor

	quality, ok := qualityFactors[m.QualityLevel]
	if !ok {
		quality = 0.5
	}

	confidence := 1.0
	if m.ConfidenceScore != nil {
		confidence = *m.ConfidenceScore / 100
	}

	return trust * timeDecay * distanceFactor * quality * confidence
}

// blendAQI computes the weighted mean over AQI-bearing measurements,
// rounded half away from zero. Zero total weight yields 0.
func blendAQI(measurements []measurement.Measurement, weights []float64) int {
	var sum, totalWeight float64
	for i, m := range measurements {
		if m.AQI == nil {
			continue
		}
		sum += float64(*m.AQI) * weights[i]
		totalWeight += weights[i]
	}
	if totalWeight == 0 {
		return 0
	}
	return int(math.Round(sum / totalWeight))
}

// blendPollutants computes per-pollutant weighted means over the
// measurements that reported each key, rounded to 2 decimals.
func blendPollutants(measurements []measurement.Measurement, weights []float64) map[measurement.Pollutant]float64 {
	sums := make(map[measurement.Pollutant]float64)
	totals := make(map[measurement.Pollutant]float64)
	for i, m := range measurements {
		for key, value := range m.Pollutants {
			sums[key] += value * weights[i]
			totals[key] += weights[i]
		}
	}

	blended := make(map[measurement.Pollutant]float64, len(sums))
	for key, sum := range sums {
		if totals[key] == 0 {
			continue
		}
		blended[key] = math.Round(sum/totals[key]*100) / 100
	}
	return blended
}

func (e *Engine) writeLog(ctx context.Context, result BlendedResult, inputCount int) {
	if e.logs == nil {
		return
	}
	entry := LogEntry{
		ID:          uuid.New().String(),
		Lat:         result.Lat,
		Lon:         result.Lon,
		RegionCode:  result.RegionCode,
		InputCount:  inputCount,
		SourceCodes: result.Sources,
		AQI:         result.AQI,
		CreatedAt:   e.clock().UTC(),
	}
	if err := e.logs.Insert(ctx, entry); err != nil {
		e.logger.Error().Err(err).Msg("failed to write fusion log")
	}
}

// InvalidateCache drops every cached blended result.
func (e *Engine) InvalidateCache(ctx context.Context) error {
	if e.cache == nil {
		return nil
	}
	return e.cache.Invalidate(ctx)
}

func roundCoord(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
