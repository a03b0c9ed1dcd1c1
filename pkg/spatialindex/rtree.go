package spatialindex

import (
	"github.com/lintang-b-s/fastisochrone/pkg/datastructure"
	"github.com/lintang-b-s/fastisochrone/pkg/geo"
	"github.com/tidwall/rtree"
	"go.uber.org/zap"
)

// maximum number of results of SearchWithinRadius
const maxSearchResults = 20

// degrees a query point may lie outside the graph extent and still be snapped
const coverPadding = 0.01

// Rtree indexes the graph vertices as points in (lon, lat).
type Rtree struct {
	tr    *rtree.RTreeG[datastructure.Index]
	graph *datastructure.Graph
}

func NewRtree() *Rtree {
	var tr rtree.RTreeG[datastructure.Index]
	return &Rtree{
		tr: &tr,
	}
}

// Build. insert every vertex of graph.
func (rt *Rtree) Build(graph *datastructure.Graph, log *zap.Logger) {
	log.Info("Building R-tree spatial index...", zap.Int("vertices", graph.NumberOfVertices()))
	rt.graph = graph
	for _, v := range graph.GetVertices() {
		p := [2]float64{v.GetLon(), v.GetLat()}
		rt.tr.Insert(p, p, v.GetID())
	}
	log.Info("R-tree spatial index built.", zap.Int("items", rt.tr.Len()))
}

func (rt *Rtree) Len() int {
	return rt.tr.Len()
}

// SearchWithinRadius search for vertices within the box of radius (in km) around the query point (qLat, qLon)
func (rt *Rtree) SearchWithinRadius(qLat, qLon, radius float64) []datastructure.Index {
	lowerLat, lowerLon := geo.GetDestinationPoint(qLat, qLon, 225, radius)
	upperLat, upperLon := geo.GetDestinationPoint(qLat, qLon, 45, radius)

	results := make([]datastructure.Index, 0, 10)
	rt.tr.Search([2]float64{lowerLon, lowerLat}, [2]float64{upperLon, upperLat},
		func(min, max [2]float64, data datastructure.Index) bool {
			results = append(results, data)
			return len(results) < maxSearchResults
		})
	return results
}

// Covers reports whether (lat, lon) lies within the padded extent of the indexed graph.
func (rt *Rtree) Covers(lat, lon float64) bool {
	if rt.graph == nil {
		return false
	}
	return rt.graph.GetBoundingBox().Pad(coverPadding).Contains(lat, lon)
}

// Snap returns the vertex closest to (lat, lon) that accept allows, with its distance in meter.
// A nil accept allows every vertex. ok is false if no vertex qualifies.
func (rt *Rtree) Snap(lat, lon float64, accept func(v datastructure.Index) bool) (datastructure.Index, float64, bool) {
	q := [2]float64{lon, lat}
	var (
		found   datastructure.Index
		foundOk bool
	)
	rt.tr.Nearby(rtree.BoxDist[float64, datastructure.Index](q, q, nil),
		func(min, max [2]float64, data datastructure.Index, dist float64) bool {
			if accept != nil && !accept(data) {
				return true
			}
			found = data
			foundOk = true
			return false
		})
	if !foundOk {
		return 0, 0, false
	}
	vLat, vLon := rt.graph.GetVertexCoordinates(found)
	return found, geo.DistanceMeter(lat, vLat, lon, vLon), true
}
