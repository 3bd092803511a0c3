package location_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yevgetman/air-quality-api/internal/aqi"
	"github.com/yevgetman/air-quality-api/internal/location"
)

type stubGeocoder struct {
	place location.Place
	err   error
	calls int
}

func (g *stubGeocoder) ReverseGeocode(_ context.Context, lat, lon float64) (location.Place, error) {
	g.calls++
	if g.err != nil {
		return location.Place{}, g.err
	}
	p := g.place
	p.Lat, p.Lon = lat, lon
	return p, nil
}

func newResolver(geocoder location.Geocoder, cache location.CacheRepository) *location.Resolver {
	return location.NewResolver(location.ResolverConfig{
		Geocoder: geocoder,
		Cache:    cache,
		Regions:  location.NewMemoryRegionRepository(),
		Logger:   zerolog.Nop(),
	})
}

func TestResolveCachesResult(t *testing.T) {
	geocoder := &stubGeocoder{place: location.Place{City: "Los Angeles", Region: "California", Country: "US"}}
	cache := location.NewMemoryCacheRepository()
	r := newResolver(geocoder, cache)

	first := r.Resolve(context.Background(), 34.0522, -118.2437, true)
	assert.Equal(t, "US", first.Country)
	assert.Equal(t, 1, geocoder.calls)

	// Nearby coordinates share the 3-decimal cache key.
	second := r.Resolve(context.Background(), 34.05222, -118.24372, true)
	assert.Equal(t, "Los Angeles", second.City)
	assert.Equal(t, 1, geocoder.calls, "second resolve must hit the cache")
}

func TestResolveBypassesCache(t *testing.T) {
	geocoder := &stubGeocoder{place: location.Place{Country: "US"}}
	cache := location.NewMemoryCacheRepository()
	r := newResolver(geocoder, cache)

	r.Resolve(context.Background(), 34.05, -118.24, true)
	r.Resolve(context.Background(), 34.05, -118.24, false)

	assert.Equal(t, 2, geocoder.calls)
}

func TestResolveExpiredEntryMisses(t *testing.T) {
	cache := location.NewMemoryCacheRepository()
	now := time.Now()
	cache.SetClock(func() time.Time { return now })

	geocoder := &stubGeocoder{place: location.Place{Country: "US"}}
	r := newResolver(geocoder, cache)

	r.Resolve(context.Background(), 34.05, -118.24, true)
	require.Equal(t, 1, geocoder.calls)

	now = now.Add(25 * time.Hour)
	r.Resolve(context.Background(), 34.05, -118.24, true)
	assert.Equal(t, 2, geocoder.calls, "expired entries must miss")
}

func TestResolveGeocoderFailure(t *testing.T) {
	geocoder := &stubGeocoder{err: errors.New("upstream down")}
	r := newResolver(geocoder, location.NewMemoryCacheRepository())

	place := r.Resolve(context.Background(), 34.05, -118.24, true)

	assert.Equal(t, location.CountryUnknown, place.Country)
	assert.Equal(t, 34.05, place.Lat)
}

func TestRegionForSeededCountries(t *testing.T) {
	r := newResolver(&stubGeocoder{}, nil)

	us := r.RegionFor(context.Background(), "US")
	assert.Equal(t, []string{"EPA_AIRNOW", "PURPLEAIR", "OPENWEATHERMAP", "WAQI"}, us.SourcePriority)
	assert.Equal(t, aqi.ScaleEPA, us.AQIScale)
	assert.True(t, us.HasOfficialData)

	ca := r.RegionFor(context.Background(), "CA")
	assert.Equal(t, "ECCC_AQHI", ca.SourcePriority[0])
	assert.Equal(t, aqi.ScaleAQHI, ca.AQIScale)
}

func TestRegionForUnknownCountryFallsBack(t *testing.T) {
	r := newResolver(&stubGeocoder{}, nil)

	cfg := r.RegionFor(context.Background(), "NL")
	assert.Equal(t, location.DefaultRegionCode, cfg.CountryCode)
	assert.Equal(t, []string{"OPENWEATHERMAP", "AIRVISUAL", "WAQI", "PURPLEAIR"}, cfg.SourcePriority)
	assert.False(t, cfg.HasOfficialData)

	unknown := r.RegionFor(context.Background(), location.CountryUnknown)
	assert.Equal(t, location.DefaultRegionCode, unknown.CountryCode)
}

func TestRegionForStoredOverridesDefaults(t *testing.T) {
	regions := location.NewMemoryRegionRepository()
	require.NoError(t, regions.Upsert(context.Background(), location.RegionConfig{
		CountryCode:    "US",
		SourcePriority: []string{"PURPLEAIR"},
		AQIScale:       aqi.ScaleEPA,
	}))

	r := location.NewResolver(location.ResolverConfig{
		Geocoder: &stubGeocoder{},
		Regions:  regions,
		Logger:   zerolog.Nop(),
	})

	cfg := r.RegionFor(context.Background(), "US")
	assert.Equal(t, []string{"PURPLEAIR"}, cfg.SourcePriority)
}

func TestCacheKeyRounding(t *testing.T) {
	assert.Equal(t, 34.052, location.CacheKey(34.0522))
	assert.Equal(t, -118.244, location.CacheKey(-118.2437))
	assert.Equal(t, 51.5, location.CacheKey(51.5))
}
