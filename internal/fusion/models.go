// Package fusion blends measurements from multiple providers into a single
// air quality result using per-source trust weights, freshness decay, and
// distance falloff.
package fusion

import (
	"time"

	"github.com/yevgetman/air-quality-api/internal/measurement"
)

// SourceWeight tunes how much a source counts in a region.
type SourceWeight struct {
	// Source is the provider code.
	Source string

	// RegionCode scopes the weight; "DEFAULT" applies everywhere else.
	RegionCode string

	// TrustFactor is the base trust in (0, 1].
	TrustFactor float64

	// TimeDecayFactor scales the freshness decay term.
	TimeDecayFactor float64

	// DistanceWeightFactor scales the distance falloff term.
	DistanceWeightFactor float64
}

// DefaultTrustFactor applies to sources with no stored weight.
const DefaultTrustFactor = 0.5

// DefaultSourceWeights returns the seeded per-source trust factors.
func DefaultSourceWeights() []SourceWeight {
	trust := map[string]float64{
		"EPA_AIRNOW":     1.0,
		"ECCC_AQHI":      1.0,
		"PURPLEAIR":      0.85,
		"AIRVISUAL":      0.75,
		"OPENWEATHERMAP": 0.7,
		"WAQI":           0.65,
	}

	weights := make([]SourceWeight, 0, len(trust))
	for source, factor := range trust {
		weights = append(weights, SourceWeight{
			Source:               source,
			RegionCode:           "DEFAULT",
			TrustFactor:          factor,
			TimeDecayFactor:      1.0,
			DistanceWeightFactor: 1.0,
		})
	}
	return weights
}

// SourceDetail is one measurement's contribution to a blend.
type SourceDetail struct {
	Source       string
	Weight       float64
	AQI          *int
	DistanceKm   *float64
	Timestamp    time.Time
	QualityLevel measurement.QualityLevel
	StationName  string
}

// BlendedResult is the fused air quality answer for one query point.
type BlendedResult struct {
	Lat        float64
	Lon        float64
	RegionCode string

	// AQI is nil only for the unavailable result (no fresh data).
	AQI      *int
	Category string

	// Pollutants holds weighted means rounded to 2 decimals.
	Pollutants map[measurement.Pollutant]float64

	// Sources lists contributing provider codes, strongest first.
	Sources []string

	// SourceDetails is the per-measurement attribution, sorted by weight
	// descending.
	SourceDetails []SourceDetail

	LastUpdated time.Time
	CachedUntil time.Time
	HitCount    int64

	// Error is set on the unavailable result.
	Error string
}

// Unavailable reports whether the result carries no data.
func (r *BlendedResult) Unavailable() bool {
	return r.AQI == nil
}

// UnavailableError is the user-visible message when no fresh data exists.
const UnavailableError = "No fresh air quality data available"
