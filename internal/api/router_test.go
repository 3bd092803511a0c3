package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yevgetman/air-quality-api/internal/adapter"
	"github.com/yevgetman/air-quality-api/internal/api"
	"github.com/yevgetman/air-quality-api/internal/api/models"
	"github.com/yevgetman/air-quality-api/internal/auth"
	"github.com/yevgetman/air-quality-api/internal/forecast"
	"github.com/yevgetman/air-quality-api/internal/fusion"
	"github.com/yevgetman/air-quality-api/internal/location"
	"github.com/yevgetman/air-quality-api/internal/measurement"
	"github.com/yevgetman/air-quality-api/internal/orchestrator"
)

type stubAdapter struct {
	code      string
	available bool
	current   []measurement.Measurement
}

func (s *stubAdapter) Info() adapter.SourceInfo {
	return adapter.SourceInfo{Code: s.code, Name: s.code, RequiresAPIKey: true}
}

func (s *stubAdapter) FetchCurrent(_ context.Context, _, _ float64, _ adapter.Options) ([]measurement.Measurement, error) {
	return s.current, nil
}

func (s *stubAdapter) FetchForecast(_ context.Context, _, _ float64) ([]measurement.ForecastPoint, error) {
	return nil, nil
}

func (s *stubAdapter) Available() bool { return s.available }

type stubGeocoder struct{}

func (stubGeocoder) ReverseGeocode(_ context.Context, lat, lon float64) (location.Place, error) {
	return location.Place{Lat: lat, Lon: lon, City: "Los Angeles", Region: "California", Country: "US"}, nil
}

type testServer struct {
	router  http.Handler
	tracker *adapter.Tracker
	jwt     *auth.JWTService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	aqiValue := 42
	confidence := 100.0
	stub := &stubAdapter{
		code:      "EPA_AIRNOW",
		available: true,
		current: []measurement.Measurement{{
			Source:          "EPA_AIRNOW",
			Timestamp:       time.Now().UTC(),
			AQI:             &aqiValue,
			Pollutants:      map[measurement.Pollutant]float64{measurement.PM25: 10.2},
			QualityLevel:    measurement.QualityVerified,
			ConfidenceScore: &confidence,
		}},
	}
	adapters := []adapter.Adapter{stub}

	tracker := adapter.NewTracker(zerolog.Nop())
	engine := fusion.NewEngine(fusion.EngineConfig{
		Weights: fusion.NewMemoryWeightRepository(),
		Cache:   fusion.NewMemoryCacheRepository(),
		Logger:  zerolog.Nop(),
	})
	resolver := location.NewResolver(location.ResolverConfig{
		Geocoder: stubGeocoder{},
		Logger:   zerolog.Nop(),
	})
	aggregator := forecast.NewAggregator(forecast.AggregatorConfig{Logger: zerolog.Nop()})
	orch := orchestrator.New(orchestrator.Config{
		Resolver:   resolver,
		Engine:     engine,
		Aggregator: aggregator,
		Adapters:   adapters,
		Logger:     zerolog.Nop(),
	})

	jwtService := auth.NewJWTService(auth.JWTConfig{
		SigningKey: "router-test-signing-key",
		Issuer:     "https://api.air-quality.dev",
		Audience:   "air-quality-api",
	})

	router := api.NewRouter(api.RouterConfig{
		Version:      "test",
		BuildTime:    "now",
		Logger:       zerolog.Nop(),
		JWTService:   jwtService,
		Orchestrator: orch,
		Adapters:     adapters,
		Tracker:      tracker,
		Engine:       engine,
	})

	return &testServer{router: router, tracker: tracker, jwt: jwtService}
}

func (s *testServer) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) post(t *testing.T, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, http.NoBody)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := s.get(t, "/api/v1/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	var health models.Health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestAirQualityEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := s.get(t, "/api/v1/air-quality?lat=34.05&lon=-118.24")

	require.Equal(t, http.StatusOK, rec.Code)

	var body models.AirQualityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "US", body.Location.Country)
	assert.Equal(t, "Los Angeles", body.Location.City)
	require.NotNil(t, body.Current.AQI)
	assert.Equal(t, 42, *body.Current.AQI)
	assert.Equal(t, "Good", body.Current.Category)
	assert.Equal(t, "EPA", body.Current.Scale)
	assert.Equal(t, []string{"EPA_AIRNOW"}, body.Current.Sources)
	assert.InDelta(t, 10.2, body.Current.Pollutants["pm25"], 0.001)
	assert.NotEmpty(t, body.HealthAdvice)
	require.Len(t, body.SourceDetails, 1)
	assert.Equal(t, "EPA_AIRNOW", body.SourceDetails[0].Source)
}

func TestAirQualityValidation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name  string
		path  string
		field string
	}{
		{"non-numeric lat", "/api/v1/air-quality?lat=abc&lon=-118.24", "lat"},
		{"missing lon", "/api/v1/air-quality?lat=34.05", "lon"},
		{"lat out of range", "/api/v1/air-quality?lat=91&lon=0", "lat"},
		{"lon out of range", "/api/v1/air-quality?lat=0&lon=181", "lon"},
		{"bad forecast flag", "/api/v1/air-quality?lat=0&lon=0&forecast=maybe", "forecast"},
		{"negative radius", "/api/v1/air-quality?lat=0&lon=0&radius=-5", "radius"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.get(t, tt.path)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

			var problem models.Problem
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
			require.NotEmpty(t, problem.Errors)
			assert.Equal(t, tt.field, problem.Errors[0].Field)
		})
	}
}

func TestHealthAdviceEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := s.get(t, "/api/v1/health-advice?aqi=42")

	require.Equal(t, http.StatusOK, rec.Code)
	var body models.HealthAdviceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 42, body.AQI)
	assert.Equal(t, "EPA", body.Scale)
	assert.Equal(t, "Good", body.Category)
	assert.NotEmpty(t, body.Advice)
}

func TestHealthAdviceAQHIScale(t *testing.T) {
	s := newTestServer(t)

	rec := s.get(t, "/api/v1/health-advice?aqi=5&scale=AQHI")

	require.Equal(t, http.StatusOK, rec.Code)
	var body models.HealthAdviceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "AQHI", body.Scale)
	assert.NotEmpty(t, body.Category)
}

func TestHealthAdviceValidation(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusBadRequest, s.get(t, "/api/v1/health-advice?aqi=abc").Code)
	assert.Equal(t, http.StatusBadRequest, s.get(t, "/api/v1/health-advice?aqi=42&scale=NOPE").Code)
}

func TestSourcesEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.tracker.RecordSuccess("EPA_AIRNOW")

	rec := s.get(t, "/api/v1/sources")

	require.Equal(t, http.StatusOK, rec.Code)
	var body models.SourcesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Sources, 1)
	assert.Equal(t, "EPA_AIRNOW", body.Sources[0].Code)
	assert.Equal(t, models.HealthStatusOK, body.Sources[0].Status)
	assert.True(t, body.Sources[0].Available)
	assert.Equal(t, int64(1), body.Sources[0].TotalRequests)
	assert.NotNil(t, body.Sources[0].LastSuccessAt)
}

func TestAdminEndpointsRequireAuth(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusUnauthorized, s.post(t, "/api/v1/admin/sources/EPA_AIRNOW/reset", "").Code)
	assert.Equal(t, http.StatusUnauthorized, s.post(t, "/api/v1/admin/cache/invalidate", "").Code)
}

func TestAdminResetSource(t *testing.T) {
	s := newTestServer(t)
	for i := 0; i < 10; i++ {
		s.tracker.RecordFailure("EPA_AIRNOW", "boom")
	}
	health, ok := s.tracker.Get("EPA_AIRNOW")
	require.True(t, ok)
	require.False(t, health.IsActive, "source auto-disables at ten consecutive failures")

	token, _, err := s.jwt.GenerateAdminToken("ops@example.com")
	require.NoError(t, err)

	rec := s.post(t, "/api/v1/admin/sources/EPA_AIRNOW/reset", token)
	require.Equal(t, http.StatusOK, rec.Code)

	health, ok = s.tracker.Get("EPA_AIRNOW")
	require.True(t, ok)
	assert.True(t, health.IsActive)
	assert.Zero(t, health.ConsecutiveFailures)
}

func TestAdminResetUnknownSource(t *testing.T) {
	s := newTestServer(t)
	token, _, err := s.jwt.GenerateAdminToken("ops@example.com")
	require.NoError(t, err)

	rec := s.post(t, "/api/v1/admin/sources/NOT_A_SOURCE/reset", token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminInvalidateCache(t *testing.T) {
	s := newTestServer(t)
	token, _, err := s.jwt.GenerateAdminToken("ops@example.com")
	require.NoError(t, err)

	// Prime the cache before invalidating.
	s.get(t, "/api/v1/air-quality?lat=34.05&lon=-118.24")

	rec := s.post(t, "/api/v1/admin/cache/invalidate", token)
	require.Equal(t, http.StatusOK, rec.Code)

	var body models.AdminActionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
}
