package adapter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yevgetman/air-quality-api/internal/provider/resilience"
)

func TestNewClientPassesRetryTuningToResilientClient(t *testing.T) {
	c := NewClient(ClientConfig{
		Info:          SourceInfo{Code: "WAQI", BaseURL: "https://api.waqi.info"},
		Timeout:       3 * time.Second,
		MaxRetries:    5,
		BackoffFactor: 4,
	})

	rc, ok := c.httpClient.(*resilience.Client)
	require.True(t, ok, "nil HTTPClient should default to the resilient client")

	cfg := rc.Config()
	assert.Equal(t, "WAQI", cfg.Name)
	assert.Equal(t, 3*time.Second, cfg.Timeout)
	assert.Equal(t, uint64(5), cfg.MaxRetries)
	assert.Equal(t, 4.0, cfg.BackoffFactor)
}
