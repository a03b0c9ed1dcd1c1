package costfunction

import (
	"math"

	"github.com/lintang-b-s/fastisochrone/pkg/datastructure"
)

const (
	defaultSpeed = 20.0 // km/h
)

// FastestWeighting costs an edge by its travel time in seconds.
type FastestWeighting struct {
}

func NewFastestWeighting() *FastestWeighting {
	return &FastestWeighting{}
}

func (fw *FastestWeighting) CalcWeight(e datastructure.EdgeState, reverse bool) float64 {
	if !accessible(e, reverse) {
		return math.Inf(1)
	}
	speed := e.GetSpeed()
	if speed <= 0 {
		speed = defaultSpeed
	}
	return e.GetLength() / (speed / 3.6)
}

func (fw *FastestWeighting) Name() string {
	return FASTEST
}
