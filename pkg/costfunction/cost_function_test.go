package costfunction

import (
	"math"
	"testing"

	"github.com/lintang-b-s/fastisochrone/pkg/datastructure"
	"github.com/stretchr/testify/assert"
)

func TestWeightings(t *testing.T) {
	oneWay := datastructure.NewEdge(0, 0, 1, 360, 36, true, false, nil)
	noSpeed := datastructure.NewEdge(1, 0, 1, 100, 0, true, true, nil)

	testCases := []struct {
		name      string
		weighting Weighting
		edge      *datastructure.Edge
		reverse   bool
		want      float64
	}{
		{"shortest forward", NewShortestWeighting(), oneWay, false, 360},
		{"shortest against oneway", NewShortestWeighting(), oneWay, true, math.Inf(1)},
		{"fastest forward", NewFastestWeighting(), oneWay, false, 36},
		{"fastest against oneway", NewFastestWeighting(), oneWay, true, math.Inf(1)},
		{"fastest default speed", NewFastestWeighting(), noSpeed, true, 18},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			es := datastructure.NewEdgeState(tt.edge, false)
			got := tt.weighting.CalcWeight(es, tt.reverse)
			if math.IsInf(tt.want, 1) {
				assert.True(t, math.IsInf(got, 1))
				return
			}
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestNewWeighting(t *testing.T) {
	w, ok := NewWeighting("fastest")
	assert.True(t, ok)
	assert.Equal(t, FASTEST, w.Name())

	_, ok = NewWeighting("curvature")
	assert.False(t, ok)
}
