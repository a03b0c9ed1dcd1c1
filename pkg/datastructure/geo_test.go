package datastructure

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoundingBox(t *testing.T) {
	bb := NewEmptyBoundingBox()
	assert.True(t, bb.IsEmpty())
	assert.False(t, bb.Contains(0, 0))
	assert.True(t, bb.Pad(1).IsEmpty())

	bb.Extend(-7.78, 110.37).Extend(-7.76, 110.39)
	assert.False(t, bb.IsEmpty())

	testCases := []struct {
		name     string
		box      *BoundingBox
		lat, lon float64
		want     bool
	}{
		{name: "corner", box: bb, lat: -7.78, lon: 110.37, want: true},
		{name: "center", box: bb, lat: -7.77, lon: 110.38, want: true},
		{name: "outside", box: bb, lat: -7.775, lon: 110.395, want: false},
		{name: "outside within padding", box: bb.Pad(0.01), lat: -7.775, lon: 110.395, want: true},
	}
	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.box.Contains(tt.lat, tt.lon))
		})
	}

	bound := bb.ToBound()
	assert.InDelta(t, 110.37, bound.Min.Lon(), 1e-9)
	assert.InDelta(t, -7.78, bound.Min.Lat(), 1e-9)
	assert.InDelta(t, 110.39, bound.Max.Lon(), 1e-9)
	assert.InDelta(t, -7.76, bound.Max.Lat(), 1e-9)
}
