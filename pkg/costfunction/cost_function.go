package costfunction

import (
	"math"

	"github.com/lintang-b-s/fastisochrone/pkg/datastructure"
)

// Weighting turns an edge into a search cost. reverse=false is the cost of driving from
// e.GetBaseNode() to e.GetAdjNode(); reverse=true is the cost of the opposite direction.
// An inaccessible direction costs +Inf.
type Weighting interface {
	CalcWeight(e datastructure.EdgeState, reverse bool) float64
	Name() string
}

func NewWeighting(name string) (Weighting, bool) {
	switch name {
	case SHORTEST:
		return NewShortestWeighting(), true
	case FASTEST:
		return NewFastestWeighting(), true
	default:
		return nil, false
	}
}

const (
	SHORTEST = "shortest"
	FASTEST  = "fastest"
)

func accessible(e datastructure.EdgeState, reverse bool) bool {
	if reverse {
		return e.CanTraverseBackward()
	}
	return e.CanTraverse()
}

// ShortestWeighting costs an edge by its length in meter.
type ShortestWeighting struct {
}

func NewShortestWeighting() *ShortestWeighting {
	return &ShortestWeighting{}
}

func (sw *ShortestWeighting) CalcWeight(e datastructure.EdgeState, reverse bool) float64 {
	if !accessible(e, reverse) {
		return math.Inf(1)
	}
	return e.GetLength()
}

func (sw *ShortestWeighting) Name() string {
	return SHORTEST
}
