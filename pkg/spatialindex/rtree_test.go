package spatialindex

import (
	"testing"

	"github.com/lintang-b-s/fastisochrone/pkg/datastructure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func buildIndex() *Rtree {
	vertices := []*datastructure.Vertex{
		datastructure.NewVertex(-7.7700, 110.3700, 0),
		datastructure.NewVertex(-7.7710, 110.3750, 1),
		datastructure.NewVertex(-7.7800, 110.3900, 2),
		datastructure.NewVertex(-7.7600, 110.3600, 3),
	}
	edges := []*datastructure.Edge{
		datastructure.NewEdge(0, 0, 1, 560, 30, true, true, nil),
		datastructure.NewEdge(0, 1, 2, 2000, 30, true, true, nil),
		datastructure.NewEdge(0, 0, 3, 1500, 30, true, true, nil),
	}
	rt := NewRtree()
	rt.Build(datastructure.NewGraph(vertices, edges), zap.NewNop())
	return rt
}

func TestSnap(t *testing.T) {
	rt := buildIndex()
	require.Equal(t, 4, rt.Len())

	testCases := []struct {
		name     string
		lat, lon float64
		accept   func(v datastructure.Index) bool
		want     datastructure.Index
	}{
		{name: "nearest", lat: -7.7702, lon: 110.3702, want: 0},
		{name: "other corner", lat: -7.7799, lon: 110.3899, want: 2},
		{
			name: "filtered",
			lat:  -7.7702, lon: 110.3702,
			accept: func(v datastructure.Index) bool { return v != 0 },
			want:   1,
		},
	}
	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			v, dist, ok := rt.Snap(tt.lat, tt.lon, tt.accept)
			require.True(t, ok)
			assert.Equal(t, tt.want, v)
			assert.Greater(t, dist, 0.0)
		})
	}

	_, _, ok := rt.Snap(-7.77, 110.37, func(v datastructure.Index) bool { return false })
	assert.False(t, ok)
}

func TestSearchWithinRadius(t *testing.T) {
	rt := buildIndex()
	got := rt.SearchWithinRadius(-7.7705, 110.3725, 0.5)
	assert.ElementsMatch(t, []datastructure.Index{0, 1}, got)
}

func TestCovers(t *testing.T) {
	rt := buildIndex()
	testCases := []struct {
		name     string
		lat, lon float64
		want     bool
	}{
		{name: "inside", lat: -7.775, lon: 110.38, want: true},
		{name: "within padding", lat: -7.785, lon: 110.395, want: true},
		{name: "far away", lat: -6.2, lon: 106.8, want: false},
	}
	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rt.Covers(tt.lat, tt.lon))
		})
	}

	assert.False(t, NewRtree().Covers(-7.775, 110.38))
}
