// Package aqi holds the index arithmetic shared by adapters and the fusion
// engine: EPA PM2.5 breakpoints, category tables for the EPA and AQHI
// scales, cross-scale conversions, and the PurpleAir EPA correction.
package aqi

import "math"

// Scale identifies an air quality index scale.
type Scale string

const (
	// ScaleEPA is the US EPA 0-500 index. All blending happens on it.
	ScaleEPA Scale = "EPA"

	// ScaleAQHI is Canada's 1-10+ air quality health index.
	ScaleAQHI Scale = "AQHI"
)

// pm25Breakpoints are the EPA piecewise-linear PM2.5 breakpoints
// (concentration low/high in µg/m³ mapped to index low/high).
var pm25Breakpoints = []struct {
	cLow, cHigh   float64
	aqiLow, aqiHigh int
}{
	{0.0, 12.0, 0, 50},
	{12.1, 35.4, 51, 100},
	{35.5, 55.4, 101, 150},
	{55.5, 150.4, 151, 200},
	{150.5, 250.4, 201, 300},
	{250.5, 350.4, 301, 400},
	{350.5, 500.4, 401, 500},
}

// FromPM25 converts a PM2.5 concentration in µg/m³ to the EPA index using
// linear interpolation within the matching breakpoint. Concentrations above
// the top breakpoint clamp to 500.
func FromPM25(pm25 float64) int {
	for _, bp := range pm25Breakpoints {
		if pm25 >= bp.cLow && pm25 <= bp.cHigh {
			v := float64(bp.aqiHigh-bp.aqiLow)/(bp.cHigh-bp.cLow)*(pm25-bp.cLow) + float64(bp.aqiLow)
			return int(math.Round(v))
		}
	}
	if pm25 > 500.4 {
		return 500
	}
	return 0
}

// owmToEPA maps OpenWeatherMap's 1-5 qualitative index onto representative
// EPA values.
var owmToEPA = map[int]int{
	1: 25,  // Good
	2: 75,  // Fair
	3: 125, // Moderate
	4: 175, // Poor
	5: 250, // Very Poor
}

// FromOWMIndex converts OpenWeatherMap's 1-5 index to an approximate EPA
// value. Unknown inputs yield 0.
func FromOWMIndex(idx int) int {
	return owmToEPA[idx]
}

// aqhiToEPA maps Canada's 1-10+ AQHI onto representative EPA values. The
// mapping is approximate: both scales bucket health risk rather than
// concentrations, so the midpoint of the equivalent EPA band is used.
var aqhiToEPA = map[int]int{
	1:  15,
	2:  30,
	3:  45,
	4:  65,
	5:  85,
	6:  100,
	7:  125,
	8:  150,
	9:  175,
	10: 200,
}

// FromAQHI converts a Canadian AQHI reading to an approximate EPA value.
// Readings above 10 ("very high risk") map to 250.
func FromAQHI(aqhi int) int {
	if aqhi > 10 {
		return 250
	}
	return aqhiToEPA[aqhi]
}

// CorrectPurpleAir applies the EPA's recommended correction for raw
// PurpleAir PM2.5 readings. The piecewise ranges overlap at their
// boundaries; first match wins, matching the published formula order.
func CorrectPurpleAir(raw float64) float64 {
	switch {
	case raw < 30:
		return 0.524*raw - 0.0862
	case raw < 50:
		return 0.786*raw - 5.1327
	case raw < 210:
		return 0.69*raw + 2.966
	case raw < 260:
		return 0.786*raw - 5.1327
	default:
		return 0.69*raw + 2.966
	}
}
