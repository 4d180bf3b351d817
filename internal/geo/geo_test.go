package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistance(t *testing.T) {
	t.Parallel()

	// Paris -> London is roughly 344 km
	d := Distance(48.8566, 2.3522, 51.5074, -0.1278)
	assert.InDelta(t, 344, d, 3)

	assert.InDelta(t, 0, Distance(10, 20, 10, 20), 1e-9)

	// Antipodes: half the circumference
	assert.InDelta(t, math.Pi*EarthRadiusKm, Distance(0, 0, 0, 180), 1e-6)
}

func TestScore_Boundaries(t *testing.T) {
	t.Parallel()

	const maxDistance = 30000
	const maxScore = 1000

	assert.Equal(t, maxScore, Score(0, maxDistance, maxScore))
	assert.Equal(t, 0, Score(30000, maxDistance, maxScore))
	assert.Equal(t, 0, Score(45000, maxDistance, maxScore))

	mid := Score(15000, maxDistance, maxScore)
	assert.Greater(t, mid, 0)
	assert.Less(t, mid, maxScore)
}

func TestScore_MonotonicallyDecreasing(t *testing.T) {
	t.Parallel()

	prev := Score(0, 30000, 1000)
	for d := 500.0; d <= 30000; d += 500 {
		s := Score(d, 30000, 1000)
		assert.LessOrEqual(t, s, prev, "distance %v", d)
		prev = s
	}
}

func TestScore_NonPositiveMaxDistance(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, Score(0, 0, 1000))
}

func TestValidCoordinates(t *testing.T) {
	t.Parallel()

	assert.True(t, ValidCoordinates(0, 0))
	assert.True(t, ValidCoordinates(-90, 180))
	assert.False(t, ValidCoordinates(90.1, 0))
	assert.False(t, ValidCoordinates(0, -180.5))
	assert.False(t, ValidCoordinates(math.NaN(), 0))
}

func TestDestination(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		lat, lng float64
		bearing  float64
		km       float64
	}{
		{"north", 0, 0, 0, 500},
		{"east", 48.8566, 2.3522, 90, 120},
		{"across antimeridian", 10, 179.5, 90, 300},
		{"zero distance", -33.87, 151.21, 45, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			lat, lng := Destination(tc.lat, tc.lng, tc.bearing, tc.km)
			assert.True(t, ValidCoordinates(lat, lng))
			assert.InDelta(t, tc.km, Distance(tc.lat, tc.lng, lat, lng), 1e-6)
		})
	}

	lat, lng := Destination(0, 0, 0, 500)
	assert.Greater(t, lat, 0.0)
	assert.InDelta(t, 0, lng, 1e-9)
}
