package adapter_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yevgetman/air-quality-api/internal/adapter"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, auth adapter.Auth, apiKey string) (*adapter.Client, *adapter.MemoryLogRepository, *adapter.Tracker) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logs := adapter.NewMemoryLogRepository()
	health := adapter.NewTracker(zerolog.Nop())

	client := adapter.NewClient(adapter.ClientConfig{
		Info: adapter.SourceInfo{
			Code:           "TEST_SOURCE",
			Name:           "Test Source",
			BaseURL:        server.URL,
			RequiresAPIKey: apiKey != "",
		},
		APIKey:     apiKey,
		Auth:       auth,
		HTTPClient: server.Client(),
		Logs:       logs,
		Health:     health,
		Logger:     zerolog.Nop(),
	})
	return client, logs, health
}

func TestGetJSONSuccess(t *testing.T) {
	var gotPath, gotQuery string
	handler := func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query().Get("api_key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"value": 42}`))
	}
	client, logs, health := newTestClient(t, handler, adapter.AuthQueryParam("api_key"), "secret")

	var out struct {
		Value int `json:"value"`
	}
	err := client.GetJSON(context.Background(), "data/current", url.Values{}, &out)

	require.NoError(t, err)
	assert.Equal(t, 42, out.Value)
	assert.Equal(t, "/data/current", gotPath)
	assert.Equal(t, "secret", gotQuery)

	rows, err := logs.ListBySource(context.Background(), "TEST_SOURCE", 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.False(t, rows[0].IsError)
	assert.Equal(t, http.StatusOK, rows[0].StatusCode)
	assert.Contains(t, rows[0].Body, `"value"`)

	h, ok := health.Get("TEST_SOURCE")
	require.True(t, ok)
	assert.Equal(t, int64(1), h.TotalRequests)
	assert.Equal(t, int64(0), h.TotalFailures)
}

func TestGetJSONRedactsCredentialFromLog(t *testing.T) {
	handler := func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}
	client, logs, _ := newTestClient(t, handler, adapter.AuthQueryParam("token"), "supersecret")

	var out map[string]any
	params := url.Values{}
	params.Set("lat", "52.37")
	err := client.GetJSON(context.Background(), "feed", params, &out)
	require.NoError(t, err)

	rows, err := logs.ListBySource(context.Background(), "TEST_SOURCE", 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "52.37", rows[0].Params["lat"])
	assert.NotContains(t, rows[0].Params, "token")
}

func TestGetJSONHeaderAuth(t *testing.T) {
	var gotHeader string
	handler := func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-API-Key")
		_, _ = w.Write([]byte(`{}`))
	}
	client, _, _ := newTestClient(t, handler, adapter.AuthHeader("X-API-Key"), "hdrkey")

	var out map[string]any
	err := client.GetJSON(context.Background(), "sensors", nil, &out)

	require.NoError(t, err)
	assert.Equal(t, "hdrkey", gotHeader)
}

func TestGetJSONUpstreamErrorStatus(t *testing.T) {
	handler := func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}
	client, logs, health := newTestClient(t, handler, adapter.AuthNone(), "")

	var out map[string]any
	err := client.GetJSON(context.Background(), "data", nil, &out)

	require.Error(t, err)
	assert.ErrorIs(t, err, adapter.ErrUnexpectedStatus)

	rows, lerr := logs.ListBySource(context.Background(), "TEST_SOURCE", 10)
	require.NoError(t, lerr)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].IsError)
	assert.Equal(t, http.StatusForbidden, rows[0].StatusCode)

	h, ok := health.Get("TEST_SOURCE")
	require.True(t, ok)
	assert.Equal(t, int64(1), h.TotalFailures)
	assert.Equal(t, 1, h.ConsecutiveFailures)
}

func TestGetJSONMalformedBody(t *testing.T) {
	handler := func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"broken":`))
	}
	client, logs, health := newTestClient(t, handler, adapter.AuthNone(), "")

	var out map[string]any
	err := client.GetJSON(context.Background(), "data", nil, &out)

	require.Error(t, err)

	rows, lerr := logs.ListBySource(context.Background(), "TEST_SOURCE", 10)
	require.NoError(t, lerr)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].IsError)

	h, ok := health.Get("TEST_SOURCE")
	require.True(t, ok)
	assert.Equal(t, int64(1), h.TotalFailures)
}

func TestGetJSONMissingCredentialsShortCircuits(t *testing.T) {
	called := false
	handler := func(w http.ResponseWriter, _ *http.Request) {
		called = true
		_, _ = w.Write([]byte(`{}`))
	}

	server := httptest.NewServer(http.HandlerFunc(handler))
	t.Cleanup(server.Close)

	logs := adapter.NewMemoryLogRepository()
	health := adapter.NewTracker(zerolog.Nop())
	client := adapter.NewClient(adapter.ClientConfig{
		Info: adapter.SourceInfo{
			Code:           "TEST_SOURCE",
			BaseURL:        server.URL,
			RequiresAPIKey: true,
		},
		HTTPClient: server.Client(),
		Logs:       logs,
		Health:     health,
		Logger:     zerolog.Nop(),
	})

	var out map[string]any
	err := client.GetJSON(context.Background(), "data", nil, &out)

	assert.ErrorIs(t, err, adapter.ErrMissingCredentials)
	assert.False(t, called, "the network must not be touched without a credential")
	assert.False(t, client.HasCredentials())
	assert.False(t, client.Available())

	h, ok := health.Get("TEST_SOURCE")
	require.True(t, ok)
	assert.Equal(t, int64(1), h.TotalFailures)
}

func TestGetJSONTruncatesLoggedBody(t *testing.T) {
	big := make([]byte, 10_000)
	for i := range big {
		big[i] = 'x'
	}
	handler := func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`"`))
		_, _ = w.Write(big)
		_, _ = w.Write([]byte(`"`))
	}
	client, logs, _ := newTestClient(t, handler, adapter.AuthNone(), "")

	var out string
	err := client.GetJSON(context.Background(), "data", nil, &out)
	require.NoError(t, err)

	rows, lerr := logs.ListBySource(context.Background(), "TEST_SOURCE", 10)
	require.NoError(t, lerr)
	require.Len(t, rows, 1)
	assert.LessOrEqual(t, len(rows[0].Body), 2048)
}

func TestClientAvailableTracksHealth(t *testing.T) {
	handler := func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}
	client, _, _ := newTestClient(t, handler, adapter.AuthNone(), "")

	assert.True(t, client.Available())

	var out map[string]any
	for i := 0; i < 10; i++ {
		_ = client.GetJSON(context.Background(), "data", nil, &out)
	}

	assert.False(t, client.Available())
}
