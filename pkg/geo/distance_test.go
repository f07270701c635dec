package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversine_ZeroForSamePoint(t *testing.T) {
	assert.Zero(t, Haversine(37.7749, -122.4194, 37.7749, -122.4194))
}

func TestHaversine_KnownDistance(t *testing.T) {
	// San Francisco to Los Angeles, ~559 km great-circle
	d := Haversine(37.7749, -122.4194, 34.0522, -118.2437)
	assert.InDelta(t, 559, d, 5)
}

func TestHaversine_Symmetric(t *testing.T) {
	a := Haversine(37.7749, -122.4194, 40.7128, -74.0060)
	b := Haversine(40.7128, -74.0060, 37.7749, -122.4194)
	assert.InDelta(t, a, b, 1e-9)
}

func TestHaversine_SmallOffset(t *testing.T) {
	// One hundredth of a degree of latitude is about 1.11 km
	d := Haversine(37.7749, -122.4194, 37.7849, -122.4194)
	assert.InDelta(t, 1.11, d, 0.01)
}
