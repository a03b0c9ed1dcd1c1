package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceMeter(t *testing.T) {
	testCases := []struct {
		name                   string
		lat1, lat2, lon1, lon2 float64
		want                   float64
	}{
		{
			name: "one degree longitude at latitude 1",
			lat1: 1, lat2: 1, lon1: 1, lon2: 2,
			want: 111177.99068882648,
		},
		{
			name: "same point",
			lat1: -7.5, lat2: -7.5, lon1: 110.4, lon2: 110.4,
			want: 0,
		},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, DistanceMeter(tt.lat1, tt.lat2, tt.lon1, tt.lon2), 1e-6)
		})
	}
}

func TestHaversineAgreesWithDistanceMeter(t *testing.T) {
	km := CalculateHaversineDistance(-7.76, 110.37, -7.80, 110.41)
	m := DistanceMeter(-7.76, -7.80, 110.37, 110.41)
	assert.InDelta(t, km*1000, m, 1e-3)
}

func TestSplitSegment(t *testing.T) {
	a := NewCoordinate(0, 0)
	b := NewCoordinate(0, 1)

	points := SplitSegment(a, b, 4)
	assert.Len(t, points, 3)
	for i, p := range points {
		assert.InDelta(t, 0, p.Lat, 1e-9)
		assert.InDelta(t, float64(i+1)*0.25, p.Lon, 1e-6)
	}

	assert.Empty(t, SplitSegment(a, b, 1))
}

func TestGetDestinationPoint(t *testing.T) {
	lat, lon := GetDestinationPoint(0, 0, 90, 111.19492664455873)
	assert.InDelta(t, 0, lat, 1e-6)
	assert.InDelta(t, 1, lon, 1e-6)
}
