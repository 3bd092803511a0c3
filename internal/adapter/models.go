// Package adapter provides the uniform contract over upstream air quality
// providers: the adapter interface, credential injection, the shared
// fetching client with retry and response logging, and per-source health
// tracking.
package adapter

import (
	"net/http"
	"net/url"
	"time"

	"github.com/yevgetman/air-quality-api/internal/measurement"
)

// SourceInfo is the static capability set of an adapter.
type SourceInfo struct {
	// Code is the stable source identifier, e.g. "EPA_AIRNOW".
	Code string

	// Name is the human-readable provider name.
	Name string

	// BaseURL is the upstream API base.
	BaseURL string

	// RequiresAPIKey is true when calls without a credential are pointless.
	RequiresAPIKey bool

	// QualityLevel is the provenance tier of this source's measurements.
	QualityLevel measurement.QualityLevel
}

// Auth places a credential into an outgoing request. Providers disagree on
// where the key goes (query parameter under various names, or a header), so
// each adapter carries its own strategy value.
type Auth struct {
	queryParam string
	header     string
}

// AuthQueryParam returns a strategy that sets the credential as a query
// parameter with the given name.
func AuthQueryParam(name string) Auth {
	return Auth{queryParam: name}
}

// AuthHeader returns a strategy that sets the credential in a header with
// the given name.
func AuthHeader(name string) Auth {
	return Auth{header: name}
}

// AuthNone returns the no-op strategy for keyless providers.
func AuthNone() Auth {
	return Auth{}
}

// Apply injects the key into params or headers per the strategy. Empty keys
// are never injected.
func (a Auth) Apply(params url.Values, headers http.Header, key string) {
	if key == "" {
		return
	}
	if a.queryParam != "" {
		params.Set(a.queryParam, key)
	}
	if a.header != "" {
		headers.Set(a.header, key)
	}
}

// redact removes the credential from params destined for the response log.
func (a Auth) redact(params url.Values) url.Values {
	if a.queryParam == "" {
		return params
	}
	clean := url.Values{}
	for k, vs := range params {
		if k == a.queryParam {
			continue
		}
		clean[k] = vs
	}
	return clean
}

// Options carries per-request tuning passed down from the orchestrator.
type Options struct {
	// RadiusKm is the station search radius. Zero means the adapter default.
	RadiusKm float64

	// MaxStations caps how many stations an adapter may return. Zero means
	// the adapter default.
	MaxStations int
}

// maxLoggedBody bounds how much of an upstream body lands in the response
// log.
const maxLoggedBody = 2048

// ResponseLog is one row per upstream HTTP exchange. Rows are written
// best-effort: a failed write never fails the request that produced it.
type ResponseLog struct {
	Source         string
	Endpoint       string
	Params         map[string]string
	StatusCode     int
	ResponseTimeMs int64
	Body           string
	IsError        bool
	ErrorMessage   string
	CreatedAt      time.Time
}

// HealthState is the coarse adapter health classification.
type HealthState string

const (
	StateHealthy  HealthState = "healthy"
	StateDegraded HealthState = "degraded"
	StateDisabled HealthState = "disabled"
)

// Health is the per-source success/failure record.
type Health struct {
	Source              string
	IsActive            bool
	LastSuccessAt       *time.Time
	LastFailureAt       *time.Time
	ConsecutiveFailures int
	TotalRequests       int64
	TotalFailures       int64
	StatusMessage       string
	UpdatedAt           time.Time
}

// SuccessRate is (total - failures) / total; 1.0 before the first request.
func (h *Health) SuccessRate() float64 {
	if h.TotalRequests == 0 {
		return 1.0
	}
	return float64(h.TotalRequests-h.TotalFailures) / float64(h.TotalRequests)
}

// Healthy reports whether the source is active, below the consecutive
// failure threshold, and above the minimum success rate.
func (h *Health) Healthy() bool {
	return h.IsActive &&
		h.ConsecutiveFailures < degradedThreshold &&
		h.SuccessRate() > minSuccessRate
}

// State classifies the health record.
func (h *Health) State() HealthState {
	if !h.IsActive {
		return StateDisabled
	}
	if h.Healthy() {
		return StateHealthy
	}
	return StateDegraded
}
