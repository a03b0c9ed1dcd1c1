package isochrone

import (
	"math"

	"github.com/lintang-b-s/fastisochrone/pkg/costfunction"
	da "github.com/lintang-b-s/fastisochrone/pkg/datastructure"
	"github.com/lintang-b-s/fastisochrone/pkg/storage"
)

// dijkstraSearch is a forward node based Dijkstra over a sparse label map. Entries stay in
// fromMap when they are relaxed, whether or not they are expanded later.
type dijkstraSearch struct {
	graph     *da.Graph
	weighting costfunction.Weighting
	filter    da.EdgeFilter

	fromMap   map[da.Index]float64
	heapNodes map[da.Index]*da.PriorityQueueNode[da.Index]
	settled   map[da.Index]struct{}
	pq        *da.MinHeap[da.Index]

	maxVisitedNodes int // 0 is unbounded
	visitedNodes    int
}

func newDijkstraSearch(graph *da.Graph, weighting costfunction.Weighting, filter da.EdgeFilter) *dijkstraSearch {
	return &dijkstraSearch{
		graph:     graph,
		weighting: weighting,
		filter:    filter,
		fromMap:   make(map[da.Index]float64),
		heapNodes: make(map[da.Index]*da.PriorityQueueNode[da.Index]),
		settled:   make(map[da.Index]struct{}),
		pq:        da.NewFourAryHeap[da.Index](),
	}
}

// relax lowers the label of node to weight. It reports whether the label changed.
func (ds *dijkstraSearch) relax(node da.Index, weight float64) bool {
	if _, done := ds.settled[node]; done {
		return false
	}
	if old, ok := ds.fromMap[node]; ok && weight >= old {
		return false
	}
	ds.fromMap[node] = weight

	if hn, ok := ds.heapNodes[node]; ok && hn.GetPos() >= 0 {
		ds.pq.DecreaseKey(hn, weight)
		return true
	}
	hn := da.NewPriorityQueueNode(weight, node)
	ds.heapNodes[node] = hn
	ds.pq.Insert(hn)
	return true
}

// relaxEdges relaxes every accepted edge leaving node.
func (ds *dijkstraSearch) relaxEdges(node da.Index, weight float64) {
	ds.graph.ForAcceptedEdgesOf(node, ds.filter, func(e da.EdgeState) {
		edgeWeight := ds.weighting.CalcWeight(e, false)
		if math.IsInf(edgeWeight, 1) {
			return
		}
		ds.relax(e.GetAdjNode(), weight+edgeWeight)
	})
}

// run settles nodes in weight order and hands each one to settle, which decides whether to
// relax its neighbours. It stops early if settle returns false.
func (ds *dijkstraSearch) run(settle func(node da.Index, weight float64) bool) {
	for !ds.pq.IsEmpty() {
		if ds.maxVisitedNodes > 0 && ds.visitedNodes >= ds.maxVisitedNodes {
			return
		}
		item, _ := ds.pq.ExtractMin()
		node := item.GetItem()
		weight := item.GetRank()
		ds.settled[node] = struct{}{}
		ds.visitedNodes++
		if !settle(node, weight) {
			return
		}
	}
}

// RangeDijkstra searches from one node and tracks the largest weight among a set of relevant
// nodes. Used for eccentricities.
type RangeDijkstra struct {
	search    *dijkstraSearch
	radius    float64 // 0 is unbounded
	cellNodes map[da.Index]struct{}

	maxWeight      float64
	foundCellNodes int
}

func NewRangeDijkstra(graph *da.Graph, weighting costfunction.Weighting, filter da.EdgeFilter) *RangeDijkstra {
	return &RangeDijkstra{
		search: newDijkstraSearch(graph, weighting, filter),
	}
}

func (rd *RangeDijkstra) SetMaxVisitedNodes(n int) {
	rd.search.maxVisitedNodes = n
}

func (rd *RangeDijkstra) SetRadius(radius float64) {
	rd.radius = radius
}

// SetCellNodes sets the nodes counted by GetFoundCellNodeSize.
func (rd *RangeDijkstra) SetCellNodes(nodes []int) {
	rd.cellNodes = make(map[da.Index]struct{}, len(nodes))
	for _, n := range nodes {
		rd.cellNodes[da.Index(n)] = struct{}{}
	}
}

// CalcMaxWeight runs the search from `from` and returns the largest settled weight among
// relevantNodes.
func (rd *RangeDijkstra) CalcMaxWeight(from da.Index, relevantNodes map[da.Index]struct{}) float64 {
	rd.search.relax(from, 0)
	rd.search.run(func(node da.Index, weight float64) bool {
		if rd.radius > 0 && weight > rd.radius {
			return false
		}
		if _, ok := rd.cellNodes[node]; ok {
			rd.foundCellNodes++
		}
		if _, ok := relevantNodes[node]; ok && weight > rd.maxWeight {
			rd.maxWeight = weight
		}
		rd.search.relaxEdges(node, weight)
		return true
	})
	return rd.maxWeight
}

func (rd *RangeDijkstra) GetFoundCellNodeSize() int {
	return rd.foundCellNodes
}

func (rd *RangeDijkstra) GetVisitedNodes() int {
	return rd.search.visitedNodes
}

// ActiveCellDijkstra expands the nodes of one cell below the limit, starting from weighted
// seeds. Edges onto border nodes of other cells are relaxed but never expanded.
type ActiveCellDijkstra struct {
	search *dijkstraSearch
	cells  CellLookup
	cellId int
	limit  float64
}

func NewActiveCellDijkstra(graph *da.Graph, weighting costfunction.Weighting, cells CellLookup,
	cellId int, limit float64, additionalFilter da.EdgeFilter) *ActiveCellDijkstra {
	filter := filterSequence(da.OutEdgeFilter(), additionalFilter, NewCellAndBorderNodeFilter(cells, cellId))
	return &ActiveCellDijkstra{
		search: newDijkstraSearch(graph, weighting, filter),
		cells:  cells,
		cellId: cellId,
		limit:  limit,
	}
}

func (ac *ActiveCellDijkstra) AddInitialNode(node da.Index, weight float64) {
	ac.search.relax(node, weight)
}

func (ac *ActiveCellDijkstra) Run() {
	ac.search.run(func(node da.Index, weight float64) bool {
		if weight < ac.limit && ac.cells.GetCellId(int(node)) == ac.cellId {
			ac.search.relaxEdges(node, weight)
		}
		return true
	})
}

func (ac *ActiveCellDijkstra) GetFromMap() map[da.Index]float64 {
	return ac.search.fromMap
}

func (ac *ActiveCellDijkstra) GetVisitedNodes() int {
	return ac.search.visitedNodes
}

// BorderNodeDijkstra runs on border nodes only. It follows precomputed in-cell shortcuts and
// graph edges that cross from one cell to a border node of another.
type BorderNodeDijkstra struct {
	search    *dijkstraSearch
	cells     CellLookup
	distances *storage.BorderNodeDistanceStorage
	limit     float64
}

func NewBorderNodeDijkstra(graph *da.Graph, weighting costfunction.Weighting, cells CellLookup,
	distances *storage.BorderNodeDistanceStorage, limit float64, additionalFilter da.EdgeFilter) *BorderNodeDijkstra {
	crossing := da.EdgeFilterFunc(func(e da.EdgeState) bool {
		adj := int(e.GetAdjNode())
		return cells.GetBorderness(adj) && cells.GetCellId(adj) != cells.GetCellId(int(e.GetBaseNode()))
	})
	return &BorderNodeDijkstra{
		search:    newDijkstraSearch(graph, weighting, filterSequence(da.OutEdgeFilter(), additionalFilter, crossing)),
		cells:     cells,
		distances: distances,
		limit:     limit,
	}
}

func (bd *BorderNodeDijkstra) AddInitialNode(node da.Index, weight float64) {
	bd.search.relax(node, weight)
}

func (bd *BorderNodeDijkstra) Run() {
	bd.search.run(func(node da.Index, weight float64) bool {
		if weight >= bd.limit {
			return true
		}
		set := bd.distances.GetBorderNodeDistanceSet(int(node))
		for i, adj := range set.AdjBorderNodeIds {
			if math.IsInf(set.Distances[i], 1) {
				continue
			}
			bd.search.relax(da.Index(adj), weight+set.Distances[i])
		}
		bd.search.relaxEdges(node, weight)
		return true
	})
}

func (bd *BorderNodeDijkstra) GetFromMap() map[da.Index]float64 {
	return bd.search.fromMap
}

func (bd *BorderNodeDijkstra) GetVisitedNodes() int {
	return bd.search.visitedNodes
}

// oneToManyDijkstra returns the weight from `from` to each target, +Inf if unreached. It stops
// once every target is settled. Targets left in the queue keep their tentative weight.
func oneToManyDijkstra(graph *da.Graph, weighting costfunction.Weighting, filter da.EdgeFilter,
	from da.Index, targets []int, maxVisitedNodes int) []float64 {
	search := newDijkstraSearch(graph, weighting, filter)
	search.maxVisitedNodes = maxVisitedNodes

	remaining := make(map[da.Index]struct{}, len(targets))
	for _, t := range targets {
		remaining[da.Index(t)] = struct{}{}
	}

	search.relax(from, 0)
	search.run(func(node da.Index, weight float64) bool {
		delete(remaining, node)
		if len(remaining) == 0 {
			return false
		}
		search.relaxEdges(node, weight)
		return true
	})

	result := make([]float64, len(targets))
	for i, t := range targets {
		w, ok := search.fromMap[da.Index(t)]
		if !ok {
			w = math.Inf(1)
		}
		result[i] = w
	}
	return result
}

// BoundedDijkstra searches the whole graph from `from` and returns the weight of every node
// within limit. It is the baseline the fast isochrone is checked against.
func BoundedDijkstra(graph *da.Graph, weighting costfunction.Weighting, additionalFilter da.EdgeFilter,
	from da.Index, limit float64) map[da.Index]float64 {
	ds := newDijkstraSearch(graph, weighting, filterSequence(da.OutEdgeFilter(), additionalFilter))
	ds.relax(from, 0)
	reached := make(map[da.Index]float64)
	ds.run(func(node da.Index, weight float64) bool {
		if da.Gt(weight, limit) {
			return false
		}
		reached[node] = weight
		ds.relaxEdges(node, weight)
		return true
	})
	return reached
}
