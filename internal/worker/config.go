// Package worker provides background job processing: blended-cache warming
// for high-traffic locations and periodic health snapshot flushes.
package worker

import (
	"time"
)

// WarmTarget represents a geographic region whose cache is kept warm.
type WarmTarget struct {
	// Name is the human-readable name of the target.
	Name string

	// Points are the lat/lon coordinates to warm.
	// Typically the centers of major metro areas.
	Points []Point

	// Priority determines warm order (lower = higher priority).
	Priority int
}

// Point represents a geographic coordinate.
type Point struct {
	Lat float64
	Lon float64
}

// WarmConfig holds configuration for the cache warm job.
type WarmConfig struct {
	// Targets are the geographic regions to warm.
	// If empty, uses DefaultWarmTargets.
	Targets []WarmTarget

	// Concurrency is the number of concurrent warm operations.
	// Default: 3
	Concurrency int

	// Timeout is the timeout for each point.
	// Default: 30 seconds
	Timeout time.Duration

	// IncludeForecast also warms the forecast cache.
	// Default: false
	IncludeForecast bool
}

// DefaultWarmConfig returns the default warm configuration.
func DefaultWarmConfig() WarmConfig {
	return WarmConfig{
		Targets:     DefaultWarmTargets(),
		Concurrency: 3,
		Timeout:     30 * time.Second,
	}
}

// DefaultWarmTargets returns the default warm targets: the largest North
// American metro areas, where query traffic concentrates.
func DefaultWarmTargets() []WarmTarget {
	return []WarmTarget{
		{
			Name:     "Los Angeles",
			Priority: 1,
			Points: []Point{
				{Lat: 34.0522, Lon: -118.2437}, // Downtown
				{Lat: 34.0195, Lon: -118.4912}, // Santa Monica
				{Lat: 34.1478, Lon: -118.1445}, // Pasadena
			},
		},
		{
			Name:     "New York",
			Priority: 1,
			Points: []Point{
				{Lat: 40.7128, Lon: -74.0060}, // Manhattan
				{Lat: 40.6782, Lon: -73.9442}, // Brooklyn
			},
		},
		{
			Name:     "Chicago",
			Priority: 1,
			Points: []Point{
				{Lat: 41.8781, Lon: -87.6298},
			},
		},
		{
			Name:     "Houston",
			Priority: 2,
			Points: []Point{
				{Lat: 29.7604, Lon: -95.3698},
			},
		},
		{
			Name:     "Phoenix",
			Priority: 2,
			Points: []Point{
				{Lat: 33.4484, Lon: -112.0740},
			},
		},
		{
			Name:     "San Francisco",
			Priority: 2,
			Points: []Point{
				{Lat: 37.7749, Lon: -122.4194},
				{Lat: 37.8044, Lon: -122.2712}, // Oakland
			},
		},
		{
			Name:     "Seattle",
			Priority: 2,
			Points: []Point{
				{Lat: 47.6062, Lon: -122.3321},
			},
		},
		{
			Name:     "Toronto",
			Priority: 2,
			Points: []Point{
				{Lat: 43.6532, Lon: -79.3832},
			},
		},
		{
			Name:     "Vancouver",
			Priority: 3,
			Points: []Point{
				{Lat: 49.2827, Lon: -123.1207},
			},
		},
		{
			Name:     "Montreal",
			Priority: 3,
			Points: []Point{
				{Lat: 45.5017, Lon: -73.5673},
			},
		},
	}
}

// AllPoints returns all points from all targets.
func (c WarmConfig) AllPoints() []Point {
	var points []Point
	for _, target := range c.Targets {
		points = append(points, target.Points...)
	}
	return points
}

// TotalPoints returns the total number of points to warm.
func (c WarmConfig) TotalPoints() int {
	total := 0
	for _, target := range c.Targets {
		total += len(target.Points)
	}
	return total
}
