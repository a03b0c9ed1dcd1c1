package isochrone

import (
	"github.com/lintang-b-s/fastisochrone/pkg/contour"
	da "github.com/lintang-b-s/fastisochrone/pkg/datastructure"
	"github.com/lintang-b-s/fastisochrone/pkg/storage"
	"github.com/lintang-b-s/fastisochrone/pkg/util"
	"github.com/paulmach/orb"
)

// BuildIsochronePolygons returns one polygon per fully reachable cell (or supercell) and one
// per active cell. The polygons may overlap.
func BuildIsochronePolygons(result *Result, cellStorage *storage.CellStorage, graph *da.Graph,
	useSupercells bool) orb.MultiPolygon {
	polygons := make(orb.MultiPolygon, 0)
	added := make(map[int]struct{})

	for _, cellId := range result.GetFullyReachableCells() {
		id := cellId
		if useSupercells {
			id = coarsestFullyReachableCell(result, cellStorage, cellId)
		}
		ring := contourRing(cellStorage, id)
		if ring == nil && id != cellId {
			id = cellId
			ring = contourRing(cellStorage, id)
		}
		if _, ok := added[id]; ok || ring == nil {
			continue
		}
		added[id] = struct{}{}
		polygons = append(polygons, orb.Polygon{ring})
	}

	activeCellMaps := result.GetActiveCellMaps()
	for _, cellId := range util.SortedKeys(activeCellMaps) {
		if result.IsFullyReachable(cellId) {
			continue
		}
		nodes := make([]int, 0, len(activeCellMaps[cellId]))
		for _, node := range util.SortedKeys(activeCellMaps[cellId]) {
			if da.Le(activeCellMaps[cellId][node], result.GetLimit()) {
				nodes = append(nodes, int(node))
			}
		}
		if len(nodes) == 0 {
			continue
		}
		polygons = append(polygons, activeCellPolygon(graph, nodes))
	}
	return polygons
}

// coarsestFullyReachableCell walks up the supercell hierarchy while every cell below is fully
// reachable.
func coarsestFullyReachableCell(result *Result, cellStorage *storage.CellStorage, cellId int) int {
	superCell := cellStorage.GetSuperCellOfCell(cellId)
	if superCell == -1 || !allFullyReachable(result, cellStorage.GetCellsOfSuperCellAsList(superCell)) {
		return cellId
	}

	superSuperCell := cellStorage.GetSuperCellOfCell(superCell)
	if superSuperCell == -1 {
		return superCell
	}
	for _, sibling := range cellStorage.GetCellsOfSuperCellAsList(superSuperCell) {
		if !allFullyReachable(result, cellStorage.GetCellsOfSuperCellAsList(sibling)) {
			return superCell
		}
	}
	return superSuperCell
}

func allFullyReachable(result *Result, cells []int) bool {
	if len(cells) == 0 {
		return false
	}
	for _, c := range cells {
		if !result.IsFullyReachable(c) {
			return false
		}
	}
	return true
}

// contourRing returns the stored contour of id as a closed ring, or nil if there is none.
func contourRing(cellStorage *storage.CellStorage, id int) orb.Ring {
	coords := cellStorage.GetCellContourOrder(id)
	if len(coords) < 4 {
		return nil
	}
	ring := make(orb.Ring, 0, len(coords)+1)
	for _, c := range coords {
		ring = append(ring, orb.Point{c.Lon, c.Lat})
	}
	if !ring.Closed() {
		ring = append(ring, ring[0])
	}
	return ring
}

// activeCellPolygon is the concave hull of the reached nodes and their edges. Too few or
// collinear points fall back to their buffered bounding box.
func activeCellPolygon(graph *da.Graph, nodes []int) orb.Polygon {
	points := contour.CreateCoordinates(graph, nil, nodes)
	if ring, err := contour.CreateContour(points); err == nil && len(ring) >= 4 {
		return orb.Polygon{ring}
	}

	bb := da.NewEmptyBoundingBox()
	for _, node := range nodes {
		bb.Extend(graph.GetVertexCoordinates(da.Index(node)))
	}
	return bb.Pad(contour.BUFFER_SIZE).ToBound().ToPolygon()
}
