package isochrone

import (
	"sort"

	da "github.com/lintang-b-s/fastisochrone/pkg/datastructure"
	"github.com/lintang-b-s/fastisochrone/pkg/storage"
	"github.com/lintang-b-s/fastisochrone/pkg/util"
)

// Result of a fast isochrone query. Active cell maps hold node weights, entries above the
// limit included. Fully reachable cells are reachable as a whole.
type Result struct {
	limit               float64
	startCell           int
	startCellMap        map[da.Index]float64
	activeCellMaps      map[int]map[da.Index]float64
	fullyReachableCells map[int]struct{}
	cellStorage         *storage.CellStorage
}

func (r *Result) GetLimit() float64 {
	return r.limit
}

func (r *Result) GetStartCell() int {
	return r.startCell
}

func (r *Result) GetStartCellMap() map[da.Index]float64 {
	return r.startCellMap
}

func (r *Result) GetActiveCellMaps() map[int]map[da.Index]float64 {
	return r.activeCellMaps
}

// GetFullyReachableCells returns the sorted ids of the fully reachable cells.
func (r *Result) GetFullyReachableCells() []int {
	return util.SortedKeys(r.fullyReachableCells)
}

func (r *Result) IsFullyReachable(cellId int) bool {
	_, ok := r.fullyReachableCells[cellId]
	return ok
}

// ApproximateActiveCells moves every active cell whose share of own nodes within the limit
// exceeds approximation into the fully reachable cells. 1 keeps all active cells, 0 moves
// every cell with at least one node within the limit.
func (r *Result) ApproximateActiveCells(approximation float64) {
	for _, cellId := range util.SortedKeys(r.activeCellMaps) {
		cellNodes := r.cellStorage.GetNodesOfCell(cellId)
		if len(cellNodes) == 0 {
			continue
		}
		cellMap := r.activeCellMaps[cellId]
		found := 0
		for _, node := range cellNodes {
			if weight, ok := cellMap[da.Index(node)]; ok && da.Le(weight, r.limit) {
				found++
			}
		}
		if float64(found)/float64(len(cellNodes)) > approximation {
			delete(r.activeCellMaps, cellId)
			r.fullyReachableCells[cellId] = struct{}{}
		}
	}
}

// ReachableNodes returns the sorted nodes within the limit.
func (r *Result) ReachableNodes() []da.Index {
	nodes := make(map[da.Index]struct{})
	for _, cellMap := range r.activeCellMaps {
		for node, weight := range cellMap {
			if da.Le(weight, r.limit) {
				nodes[node] = struct{}{}
			}
		}
	}
	for cellId := range r.fullyReachableCells {
		for _, node := range r.cellStorage.GetNodesOfCell(cellId) {
			nodes[da.Index(node)] = struct{}{}
		}
	}

	result := make([]da.Index, 0, len(nodes))
	for node := range nodes {
		result = append(result, node)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}
