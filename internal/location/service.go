package location

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/yevgetman/air-quality-api/internal/aqi"
)

// defaultCacheTTL is how long a resolved place stays cached.
const defaultCacheTTL = 24 * time.Hour

// Geocoder resolves coordinates to a place.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (Place, error)
}

// Resolver answers "where is this point and how should its air quality be
// blended". Geocoder failures degrade to an unknown country rather than
// failing the query.
type Resolver struct {
	geocoder Geocoder
	cache    CacheRepository
	regions  RegionRepository
	cacheTTL time.Duration
	logger   zerolog.Logger
}

// ResolverConfig holds dependencies for the resolver.
type ResolverConfig struct {
	Geocoder Geocoder

	// Cache is optional; without it every resolve hits the geocoder.
	Cache CacheRepository

	// Regions is optional; without it only the seeded defaults apply.
	Regions RegionRepository

	// CacheTTL defaults to 24h.
	CacheTTL time.Duration

	Logger zerolog.Logger
}

// NewResolver creates a location resolver.
func NewResolver(cfg ResolverConfig) *Resolver {
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = defaultCacheTTL
	}
	return &Resolver{
		geocoder: cfg.Geocoder,
		cache:    cfg.Cache,
		regions:  cfg.Regions,
		cacheTTL: ttl,
		logger:   cfg.Logger,
	}
}

// Resolve reverse-geocodes the coordinates, consulting the cache first when
// useCache is set. On geocoder failure a place with Country set to
// CountryUnknown is returned so callers can proceed with defaults.
func (r *Resolver) Resolve(ctx context.Context, lat, lon float64, useCache bool) Place {
	keyLat, keyLon := CacheKey(lat), CacheKey(lon)

	if useCache && r.cache != nil {
		if place, err := r.cache.Get(ctx, keyLat, keyLon); err == nil {
			return *place
		}
	}

	place, err := r.geocoder.ReverseGeocode(ctx, lat, lon)
	if err != nil {
		r.logger.Warn().Err(err).
			Float64("lat", lat).
			Float64("lon", lon).
			Msg("reverse geocode failed, using unknown country")
		return Place{
			Lat:        lat,
			Lon:        lon,
			Country:    CountryUnknown,
			ResolvedAt: time.Now().UTC(),
		}
	}

	if r.cache != nil {
		cached := place
		cached.Lat, cached.Lon = keyLat, keyLon
		if err := r.cache.Put(ctx, cached, r.cacheTTL); err != nil {
			r.logger.Error().Err(err).Msg("failed to write location cache")
		}
	}
	return place
}

// RegionFor returns the blending configuration for a country code. Stored
// configurations take precedence over the seeded defaults; unknown countries
// get the DEFAULT configuration.
func (r *Resolver) RegionFor(ctx context.Context, countryCode string) RegionConfig {
	if r.regions != nil {
		if cfg, err := r.regions.Get(ctx, countryCode); err == nil {
			return *cfg
		}
	}

	for _, cfg := range DefaultRegionConfigs() {
		if cfg.CountryCode == countryCode {
			return cfg
		}
	}

	if r.regions != nil {
		if cfg, err := r.regions.Get(ctx, DefaultRegionCode); err == nil {
			return *cfg
		}
	}
	for _, cfg := range DefaultRegionConfigs() {
		if cfg.CountryCode == DefaultRegionCode {
			return cfg
		}
	}

	// Unreachable: the seeded defaults always contain DEFAULT.
	return RegionConfig{CountryCode: DefaultRegionCode, AQIScale: aqi.ScaleEPA}
}
