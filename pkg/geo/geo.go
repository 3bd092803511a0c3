// Package geo provides great-circle distance and bounding-box helpers
// for station lookups.
package geo

import "math"

// earthRadiusKm is the mean Earth radius used by the haversine formula.
const earthRadiusKm = 6371.0

// kmPerDegree approximates the surface distance of one degree of latitude.
const kmPerDegree = 111.0

// DistanceKm returns the haversine distance in kilometers between two
// coordinates given in decimal degrees.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

// BoundingBox describes a north-west / south-east coordinate pair around a
// center point. Providers with bounding-box queries (PurpleAir, WAQI, ECCC)
// use it to translate a radius into query parameters.
type BoundingBox struct {
	NorthLat float64
	WestLon  float64
	SouthLat float64
	EastLon  float64
}

// BoxAround computes a bounding box of roughly radiusKm around the center.
// Uses the flat approximation of 111 km per degree, which matches upstream
// API expectations for small radii.
func BoxAround(lat, lon, radiusKm float64) BoundingBox {
	offset := radiusKm / kmPerDegree
	return BoundingBox{
		NorthLat: lat + offset,
		WestLon:  lon - offset,
		SouthLat: lat - offset,
		EastLon:  lon + offset,
	}
}
