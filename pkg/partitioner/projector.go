package partitioner

import (
	"math"
	"sort"

	"github.com/lintang-b-s/fastisochrone/pkg/datastructure"
	"github.com/lintang-b-s/fastisochrone/pkg/geo"
)

const NUM_PROJECTIONS = 12

type projectionFunc func(lat, lon float64) float64

// axis k points at k*15 degrees from the east. The value is the coordinate along that axis
// scaled by 1/cos or 1/sin, whichever keeps the tangent factor within [-1, 1].
func newProjection(k int) projectionFunc {
	angle := axisAngle(k)
	if k%12 <= 3 || k%12 >= 9 {
		tan := math.Tan(angle)
		if math.Cos(angle) < 0 {
			return func(lat, lon float64) float64 { return -(lon + tan*lat) }
		}
		return func(lat, lon float64) float64 { return lon + tan*lat }
	}
	cot := math.Cos(angle) / math.Sin(angle)
	return func(lat, lon float64) float64 { return lat + cot*lon }
}

func axisAngle(k int) float64 {
	return float64(k) * 15.0 * math.Pi / 180.0
}

var projections = func() [NUM_PROJECTIONS]projectionFunc {
	var table [NUM_PROJECTIONS]projectionFunc
	for k := 0; k < NUM_PROJECTIONS; k++ {
		table[k] = newProjection(k)
	}
	return table
}()

func orthogonal(k int) int {
	return (k + NUM_PROJECTIONS/2) % NUM_PROJECTIONS
}

// Projections holds one ordering of the same node subset per axis.
type Projections [NUM_PROJECTIONS][]datastructure.Index

type Projector struct {
	graph      *datastructure.Graph
	splitRatio float64
}

func NewProjector(graph *datastructure.Graph, splitRatio float64) *Projector {
	return &Projector{graph: graph, splitRatio: splitRatio}
}

// CalculateProjections sorts nodes along every axis. Ties keep the order of nodes.
func (p *Projector) CalculateProjections(nodes []datastructure.Index) Projections {
	var result Projections
	values := make([]float64, len(nodes))
	for k := 0; k < NUM_PROJECTIONS; k++ {
		for i, v := range nodes {
			lat, lon := p.graph.GetVertexCoordinates(v)
			values[i] = projections[k](lat, lon)
		}
		idx := make([]int, len(nodes))
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(a, b int) bool {
			return values[idx[a]] < values[idx[b]]
		})
		order := make([]datastructure.Index, len(nodes))
		for i, j := range idx {
			order[i] = nodes[j]
		}
		result[k] = order
	}
	return result
}

// squareRange is the haversine distance in km between the splitRatio and 1-splitRatio quantiles.
func (p *Projector) squareRange(order []datastructure.Index) float64 {
	n := len(order)
	if n == 0 {
		return 0
	}
	lo := int(float64(n) * p.splitRatio)
	hi := n - 1 - lo
	latA, lonA := p.graph.GetVertexCoordinates(order[lo])
	latB, lonB := p.graph.GetVertexCoordinates(order[hi])
	return geo.CalculateHaversineDistance(latA, lonA, latB, lonB)
}

// CalculateProjectionOrder ranks the axes by range(axis)/range(orthogonal axis), best first.
func (p *Projector) CalculateProjectionOrder(projs Projections) []int {
	var ranges [NUM_PROJECTIONS]float64
	for k := 0; k < NUM_PROJECTIONS; k++ {
		ranges[k] = p.squareRange(projs[k])
	}

	var scores [NUM_PROJECTIONS]float64
	for k := 0; k < NUM_PROJECTIONS; k++ {
		rp, ro := ranges[k], ranges[orthogonal(k)]
		switch {
		case ro > 0:
			scores[k] = rp / ro
		case rp > 0:
			scores[k] = math.Inf(1)
		default:
			scores[k] = 0
		}
	}

	order := make([]int, NUM_PROJECTIONS)
	for k := range order {
		order[k] = k
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})
	return order
}

// PartitionProjections filters the parent orderings into the orderings of both children.
func (p *Projector) PartitionProjections(projs Projections, nodeToCell []int,
	cellId int) (Projections, Projections) {
	var left, right Projections
	leftId, rightId := cellId<<1, cellId<<1|1
	for k := 0; k < NUM_PROJECTIONS; k++ {
		left[k] = make([]datastructure.Index, 0, len(projs[k])/2)
		right[k] = make([]datastructure.Index, 0, len(projs[k])/2)
		for _, v := range projs[k] {
			switch nodeToCell[v] {
			case leftId:
				left[k] = append(left[k], v)
			case rightId:
				right[k] = append(right[k], v)
			}
		}
	}
	return left, right
}
