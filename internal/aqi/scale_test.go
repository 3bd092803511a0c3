package aqi_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yevgetman/air-quality-api/internal/aqi"
)

func TestFromPM25_Breakpoints(t *testing.T) {
	tests := []struct {
		name string
		pm25 float64
		want int
	}{
		{"zero", 0.0, 0},
		{"top of good", 12.0, 50},
		{"bottom of moderate", 12.1, 51},
		{"corrected purpleair scenario", 12.9238, 53},
		{"top of moderate", 35.4, 100},
		{"usg", 45.0, 123},
		{"hazardous top", 500.4, 500},
		{"beyond range", 600.0, 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, aqi.FromPM25(tt.pm25))
		})
	}
}

func TestFromPM25_Monotonic(t *testing.T) {
	prev := -1
	for c := 0.0; c <= 500.4; c += 0.1 {
		v := aqi.FromPM25(c)
		assert.GreaterOrEqual(t, v, prev, "non-monotonic at %.1f", c)
		prev = v
	}
}

func TestFromOWMIndex(t *testing.T) {
	assert.Equal(t, 25, aqi.FromOWMIndex(1))
	assert.Equal(t, 75, aqi.FromOWMIndex(2))
	assert.Equal(t, 125, aqi.FromOWMIndex(3))
	assert.Equal(t, 175, aqi.FromOWMIndex(4))
	assert.Equal(t, 250, aqi.FromOWMIndex(5))
	assert.Equal(t, 0, aqi.FromOWMIndex(0))
	assert.Equal(t, 0, aqi.FromOWMIndex(6))
}

func TestFromAQHI(t *testing.T) {
	assert.Equal(t, 15, aqi.FromAQHI(1))
	assert.Equal(t, 100, aqi.FromAQHI(6))
	assert.Equal(t, 200, aqi.FromAQHI(10))
	assert.Equal(t, 250, aqi.FromAQHI(11))
}

func TestCorrectPurpleAir(t *testing.T) {
	// Scenario from the EPA correction formula: 25 µg/m³ raw.
	assert.InDelta(t, 12.9238, aqi.CorrectPurpleAir(25), 1e-9)

	// Boundary values take the first matching range.
	assert.InDelta(t, 0.786*30-5.1327, aqi.CorrectPurpleAir(30), 1e-9)
	assert.InDelta(t, 0.69*50+2.966, aqi.CorrectPurpleAir(50), 1e-9)
	assert.InDelta(t, 0.786*210-5.1327, aqi.CorrectPurpleAir(210), 1e-9)
	assert.InDelta(t, 0.69*260+2.966, aqi.CorrectPurpleAir(260), 1e-9)
	assert.InDelta(t, 0.69*300+2.966, aqi.CorrectPurpleAir(300), 1e-9)
}

func TestCategoryFor(t *testing.T) {
	c, ok := aqi.CategoryFor(42, aqi.ScaleEPA)
	assert.True(t, ok)
	assert.Equal(t, "Good", c.Name)

	c, ok = aqi.CategoryFor(61, aqi.ScaleEPA)
	assert.True(t, ok)
	assert.Equal(t, "Moderate", c.Name)
	assert.NotEmpty(t, c.HealthMessage)

	c, ok = aqi.CategoryFor(5, aqi.ScaleAQHI)
	assert.True(t, ok)
	assert.Equal(t, "Moderate Risk", c.Name)

	_, ok = aqi.CategoryFor(501, aqi.ScaleEPA)
	assert.False(t, ok)

	_, ok = aqi.CategoryFor(42, aqi.Scale("BOGUS"))
	assert.False(t, ok)
}

func TestCategoryName_OutOfRange(t *testing.T) {
	assert.Equal(t, aqi.CategoryUnavailable, aqi.CategoryName(-1))
	assert.Equal(t, "Good", aqi.CategoryName(0))
}
