package adapter

import (
	"context"

	"github.com/yevgetman/air-quality-api/internal/measurement"
)

// Adapter is the uniform contract every provider implements. Adapters
// contain their failures: a malformed payload or upstream error yields an
// empty slice and a recorded failure, never a panic across this boundary.
type Adapter interface {
	// Info returns the static capability set.
	Info() SourceInfo

	// FetchCurrent retrieves current measurements near the coordinates.
	FetchCurrent(ctx context.Context, lat, lon float64, opts Options) ([]measurement.Measurement, error)

	// FetchForecast retrieves future data points. Adapters without forecast
	// support return an empty slice.
	FetchForecast(ctx context.Context, lat, lon float64) ([]measurement.ForecastPoint, error)

	// Available reports whether the adapter can be called: credentials are
	// present (when required) and the health tracker reports the source as
	// healthy or unknown.
	Available() bool
}

// NoForecast is embedded by adapters whose upstream has no forecast
// endpoint.
type NoForecast struct{}

// FetchForecast always returns an empty slice.
func (NoForecast) FetchForecast(_ context.Context, _, _ float64) ([]measurement.ForecastPoint, error) {
	return []measurement.ForecastPoint{}, nil
}
