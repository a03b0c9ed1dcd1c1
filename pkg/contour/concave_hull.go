package contour

import (
	"errors"
	"math"

	"github.com/fogleman/delaunay"
	"github.com/lintang-b-s/fastisochrone/pkg/datastructure"
	"github.com/paulmach/orb"
)

var (
	ErrTooFewPoints = errors.New("concave hull needs at least 3 distinct points")
	ErrNoHull       = errors.New("concave hull has no closed boundary")
)

func nextHalfedge(e int) int {
	if e%3 == 2 {
		return e - 2
	}
	return e + 1
}

// ConcaveHullByLength digs into the delaunay triangulation of points from the outside. The
// border triangle behind the longest border edge is removed while that edge is longer than
// threshold and its opposite vertex is not on the border yet, so the boundary stays a single
// simple ring. The returned ring is closed and clockwise.
func ConcaveHullByLength(points []orb.Point, threshold float64) (orb.Ring, error) {
	if len(points) < 3 {
		return nil, ErrTooFewPoints
	}
	pts := make([]delaunay.Point, len(points))
	for i, p := range points {
		pts[i] = delaunay.Point{X: p.X(), Y: p.Y()}
	}
	tri, err := delaunay.Triangulate(pts)
	if err != nil {
		return nil, err
	}
	numTriangles := len(tri.Triangles) / 3
	if numTriangles == 0 {
		return nil, ErrNoHull
	}

	halfedges := make([]int, len(tri.Halfedges))
	copy(halfedges, tri.Halfedges)
	removed := make([]bool, numTriangles)
	onBorder := make([]bool, len(points))

	edgeLength := func(e int) float64 {
		a := pts[tri.Triangles[e]]
		b := pts[tri.Triangles[nextHalfedge(e)]]
		return math.Hypot(a.X-b.X, a.Y-b.Y)
	}

	// max heap on edge length.
	pq := datastructure.NewBinaryHeap[int]()
	for e, twin := range halfedges {
		if twin != -1 {
			continue
		}
		onBorder[tri.Triangles[e]] = true
		onBorder[tri.Triangles[nextHalfedge(e)]] = true
		pq.Insert(datastructure.NewPriorityQueueNode(-edgeLength(e), e))
	}

	remaining := numTriangles
	for !pq.IsEmpty() && remaining > 1 {
		node, _ := pq.ExtractMin()
		if -node.GetRank() <= threshold {
			break
		}
		e := node.GetItem()
		t := e / 3
		if removed[t] || halfedges[e] != -1 {
			continue
		}
		e1 := nextHalfedge(e)
		e2 := nextHalfedge(e1)
		opposite := tri.Triangles[e2]
		if onBorder[opposite] {
			continue
		}

		removed[t] = true
		remaining--
		onBorder[opposite] = true
		for _, inner := range []int{e1, e2} {
			twin := halfedges[inner]
			halfedges[inner] = -1
			if twin == -1 {
				continue
			}
			halfedges[twin] = -1
			pq.Insert(datastructure.NewPriorityQueueNode(-edgeLength(twin), twin))
		}
	}

	next := make(map[int]int)
	start := -1
	for e, twin := range halfedges {
		if twin != -1 || removed[e/3] {
			continue
		}
		from := tri.Triangles[e]
		next[from] = tri.Triangles[nextHalfedge(e)]
		if start == -1 || from < start {
			start = from
		}
	}
	if start == -1 {
		return nil, ErrNoHull
	}

	ring := make(orb.Ring, 0, len(next)+1)
	current := start
	for steps := 0; steps <= len(next); steps++ {
		ring = append(ring, points[current])
		to, ok := next[current]
		if !ok {
			return nil, ErrNoHull
		}
		current = to
		if current == start {
			break
		}
	}
	if current != start {
		return nil, ErrNoHull
	}
	ring = append(ring, points[start])
	return normalizeRing(ring), nil
}

// normalizeRing makes the closed ring clockwise and starts it at its smallest point.
func normalizeRing(ring orb.Ring) orb.Ring {
	if len(ring) < 4 {
		return ring
	}
	if ring.Orientation() == orb.CCW {
		ring.Reverse()
	}
	open := ring[:len(ring)-1]
	minIdx := 0
	for i, p := range open {
		if lessPoint(p, open[minIdx]) {
			minIdx = i
		}
	}
	normalized := make(orb.Ring, 0, len(ring))
	normalized = append(normalized, open[minIdx:]...)
	normalized = append(normalized, open[:minIdx]...)
	normalized = append(normalized, open[minIdx])
	return normalized
}

// lessPoint orders by lon, then lat.
func lessPoint(a, b orb.Point) bool {
	if a.X() != b.X() {
		return a.X() < b.X()
	}
	return a.Y() < b.Y()
}
