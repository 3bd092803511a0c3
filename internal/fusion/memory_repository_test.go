package fusion_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yevgetman/air-quality-api/internal/fusion"
)

func TestMemoryCacheDropsExpiredEntryOnRead(t *testing.T) {
	repo := fusion.NewMemoryCacheRepository()

	base := time.Now()
	now := base
	repo.SetClock(func() time.Time { return now })

	aqi := 42
	err := repo.Put(context.Background(), fusion.BlendedResult{
		Lat: 34.052,
		Lon: -118.244,
		AQI: &aqi,
	}, 10*time.Minute)
	require.NoError(t, err)

	now = base.Add(11 * time.Minute)
	_, err = repo.Get(context.Background(), 34.052, -118.244)
	assert.ErrorIs(t, err, fusion.ErrCacheMiss)

	// The expired entry was deleted, not just hidden: winding the clock back
	// before the original expiry does not resurrect it.
	now = base
	_, err = repo.Get(context.Background(), 34.052, -118.244)
	assert.ErrorIs(t, err, fusion.ErrCacheMiss)
}
