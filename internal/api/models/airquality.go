package models

// AirQualityResponse is the body for GET /api/v1/air-quality.
type AirQualityResponse struct {
	Location      LocationInfo   `json:"location"`
	Current       Current        `json:"current"`
	Forecast      []ForecastHour `json:"forecast,omitempty"`
	HealthAdvice  string         `json:"health_advice,omitempty"`
	SourceDetails []SourceDetail `json:"source_details"`
}

// LocationInfo describes the resolved query location.
type LocationInfo struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	City    string  `json:"city,omitempty"`
	Region  string  `json:"region,omitempty"`
	Country string  `json:"country"`
}

// Current is the blended current-conditions block. AQI is null when no
// fresh data was available; Error then carries the reason.
type Current struct {
	AQI         *int               `json:"aqi"`
	Category    string             `json:"category"`
	Scale       string             `json:"scale"`
	Pollutants  map[string]float64 `json:"pollutants"`
	Sources     []string           `json:"sources"`
	LastUpdated Timestamp          `json:"last_updated"`
	CachedUntil Timestamp          `json:"cached_until"`
	Error       string             `json:"error,omitempty"`
}

// ForecastHour is one hourly forecast bucket.
type ForecastHour struct {
	Timestamp  Timestamp          `json:"timestamp"`
	AQI        int                `json:"aqi"`
	Category   string             `json:"category"`
	Pollutants map[string]float64 `json:"pollutants"`
	Sources    []string           `json:"sources"`
}

// SourceDetail is the per-measurement attribution row.
type SourceDetail struct {
	Source       string    `json:"source"`
	Weight       float64   `json:"weight"`
	AQI          *int      `json:"aqi"`
	DistanceKm   *float64  `json:"distance_km"`
	Timestamp    Timestamp `json:"timestamp"`
	QualityLevel string    `json:"quality_level"`
	StationName  *string   `json:"station_name"`
}

// HealthAdviceResponse is the body for GET /api/v1/health-advice.
type HealthAdviceResponse struct {
	AQI      int    `json:"aqi"`
	Scale    string `json:"scale"`
	Category string `json:"category"`
	Advice   string `json:"advice"`
}

// SourceStatus describes one registered adapter and its tracked health.
type SourceStatus struct {
	Code                string       `json:"code"`
	Name                string       `json:"name"`
	RequiresAPIKey      bool         `json:"requires_api_key"`
	Available           bool         `json:"available"`
	Status              HealthStatus `json:"status"`
	TotalRequests       int64        `json:"total_requests"`
	SuccessRate         float64      `json:"success_rate"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	LastSuccessAt       *Timestamp   `json:"last_success_at,omitempty"`
	LastFailureAt       *Timestamp   `json:"last_failure_at,omitempty"`
	StatusMessage       string       `json:"status_message,omitempty"`
}

// SourcesResponse is the body for GET /api/v1/sources.
type SourcesResponse struct {
	Sources []SourceStatus `json:"sources"`
}

// AdminActionResponse acknowledges an admin mutation.
type AdminActionResponse struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}
