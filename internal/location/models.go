// Package location resolves coordinates to a place and its regional air
// quality configuration: which sources to prefer and which index scale to
// report.
package location

import (
	"math"
	"time"

	"github.com/yevgetman/air-quality-api/internal/aqi"
)

// Place is a reverse-geocoded location.
type Place struct {
	Lat        float64
	Lon        float64
	City       string
	Region     string
	Country    string // ISO 3166-1 alpha-2, upper case; "unknown" when unresolved
	PostalCode string
	Formatted  string
	ResolvedAt time.Time
}

// CountryUnknown is the country reported when geocoding fails. Resolution
// failures never block a query; the default region config applies.
const CountryUnknown = "unknown"

// RegionConfig is the per-country blending configuration.
type RegionConfig struct {
	// CountryCode is ISO 3166-1 alpha-2, or "DEFAULT" for the fallback.
	CountryCode string

	// SourcePriority orders provider codes from most to least preferred.
	SourcePriority []string

	// AQIScale is the index scale reported to callers in this region.
	AQIScale aqi.Scale

	// HasOfficialData is true when a government-operated source covers the
	// region.
	HasOfficialData bool
}

// DefaultRegionCode keys the fallback configuration.
const DefaultRegionCode = "DEFAULT"

// DefaultRegionConfigs returns the seeded per-country configurations.
func DefaultRegionConfigs() []RegionConfig {
	return []RegionConfig{
		{
			CountryCode:     "US",
			SourcePriority:  []string{"EPA_AIRNOW", "PURPLEAIR", "OPENWEATHERMAP", "WAQI"},
			AQIScale:        aqi.ScaleEPA,
			HasOfficialData: true,
		},
		{
			CountryCode:     "CA",
			SourcePriority:  []string{"ECCC_AQHI", "PURPLEAIR", "OPENWEATHERMAP", "WAQI"},
			AQIScale:        aqi.ScaleAQHI,
			HasOfficialData: true,
		},
		{
			CountryCode:     DefaultRegionCode,
			SourcePriority:  []string{"OPENWEATHERMAP", "AIRVISUAL", "WAQI", "PURPLEAIR"},
			AQIScale:        aqi.ScaleEPA,
			HasOfficialData: false,
		},
	}
}

// CacheKey rounds a coordinate to 3 decimals, the cache key granularity
// (roughly 110 m).
func CacheKey(v float64) float64 {
	return math.Round(v*1000) / 1000
}
