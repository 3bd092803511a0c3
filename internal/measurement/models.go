// Package measurement defines the canonical air quality record produced by
// every provider adapter. Adapters normalize their upstream payloads into
// this shape; the fusion engine consumes nothing else.
package measurement

import "time"

// Pollutant is a canonical pollutant key. The set is closed: adapters map
// provider-specific parameter names onto these keys and drop anything else.
type Pollutant string

const (
	PM25 Pollutant = "pm25"
	PM10 Pollutant = "pm10"
	O3   Pollutant = "o3"
	NO2  Pollutant = "no2"
	SO2  Pollutant = "so2"
	CO   Pollutant = "co"
)

// AllPollutants lists the closed pollutant set in display order.
func AllPollutants() []Pollutant {
	return []Pollutant{PM25, PM10, O3, NO2, SO2, CO}
}

// KnownPollutant reports whether key is in the canonical set.
func KnownPollutant(key Pollutant) bool {
	switch key {
	case PM25, PM10, O3, NO2, SO2, CO:
		return true
	}
	return false
}

// QualityLevel classifies the provenance of a measurement.
type QualityLevel string

const (
	QualityVerified  QualityLevel = "verified"
	QualityModel     QualityLevel = "model"
	QualitySensor    QualityLevel = "sensor"
	QualityEstimated QualityLevel = "estimated"
)

// Valid reports whether the quality level is in the closed set.
func (q QualityLevel) Valid() bool {
	switch q {
	case QualityVerified, QualityModel, QualitySensor, QualityEstimated:
		return true
	}
	return false
}

// Measurement is the canonical record for one station (or model point) at
// one instant. Records are immutable after construction: adapters build
// them, the fusion engine only reads them.
type Measurement struct {
	// Source is the stable upstream code, e.g. "EPA_AIRNOW".
	Source string

	// Lat and Lon are the station coordinates in decimal degrees.
	Lat float64
	Lon float64

	// Timestamp is when the measurement was taken, always UTC.
	Timestamp time.Time

	// AQI on the EPA 0-500 scale. Nil when the source reported none.
	AQI *int

	// Pollutants maps canonical keys to concentrations in the source's
	// native unit. Absent keys mean "not reported", never zero.
	Pollutants map[Pollutant]float64

	QualityLevel QualityLevel

	// DistanceKm is the great-circle distance from the query point to the
	// station. Nil when the source answers for the query point itself.
	DistanceKm *float64

	// ConfidenceScore is 0-100, provided by the source or an adapter
	// heuristic. Nil means unknown.
	ConfidenceScore *float64

	StationID   string
	StationName string
}

// Age returns how old the measurement is relative to now.
func (m *Measurement) Age(now time.Time) time.Duration {
	return now.Sub(m.Timestamp)
}

// Fresh reports whether the measurement is younger than maxAge.
func (m *Measurement) Fresh(now time.Time, maxAge time.Duration) bool {
	return m.Age(now) < maxAge
}

// ForecastPoint is one future data point from a forecast-capable adapter.
type ForecastPoint struct {
	Source     string
	Lat        float64
	Lon        float64
	Timestamp  time.Time
	AQI        int
	Category   string
	Pollutants map[Pollutant]float64
}
