package isochrone

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/lintang-b-s/fastisochrone/pkg/costfunction"
	da "github.com/lintang-b-s/fastisochrone/pkg/datastructure"
	"github.com/lintang-b-s/fastisochrone/pkg/storage"
	"github.com/lintang-b-s/fastisochrone/pkg/util"
)

var ErrAlreadyRun = errors.New("fast isochrone algorithm already run")

type algorithmState uint8

const (
	NotRun algorithmState = iota
	StartCellPhase
	BorderNodePhase
	ActiveCellPhase
	Done
)

const (
	phaseStartCell  = "start_cell"
	phaseBorderNode = "border_node"
	phaseActiveCell = "active_cell"
)

// PhaseObserver receives the duration and number of settled nodes of every query phase.
// metrics.Metrics implements it.
type PhaseObserver interface {
	ObservePhase(phase string, d time.Duration, settledNodes int)
}

// FastIsochroneAlgorithm answers one isochrone query from precomputed cells, eccentricities
// and border node distances. It is not reusable.
type FastIsochroneAlgorithm struct {
	graph            *da.Graph
	weighting        costfunction.Weighting
	isoNodes         *storage.IsochroneNodeStorage
	cellStorage      *storage.CellStorage
	eccStorage       *storage.EccentricityStorage
	distStorage      *storage.BorderNodeDistanceStorage
	additionalFilter da.EdgeFilter
	observer         PhaseObserver

	state     algorithmState
	from      da.Index
	startCell int
	limit     float64

	startCellMap        map[da.Index]float64
	borderNodeMap       map[da.Index]float64
	fullyReachableCells map[int]struct{}
	entryPoints         map[int]map[da.Index]float64
	activeCellMaps      map[int]map[da.Index]float64
	startCellImproved   bool
}

func NewFastIsochroneAlgorithm(graph *da.Graph, weighting costfunction.Weighting,
	isoNodes *storage.IsochroneNodeStorage, cellStorage *storage.CellStorage,
	eccStorage *storage.EccentricityStorage, distStorage *storage.BorderNodeDistanceStorage,
	additionalFilter da.EdgeFilter) *FastIsochroneAlgorithm {
	return &FastIsochroneAlgorithm{
		graph:            graph,
		weighting:        weighting,
		isoNodes:         isoNodes,
		cellStorage:      cellStorage,
		eccStorage:       eccStorage,
		distStorage:      distStorage,
		additionalFilter: additionalFilter,
		state:            NotRun,
	}
}

func (fa *FastIsochroneAlgorithm) SetPhaseObserver(observer PhaseObserver) {
	fa.observer = observer
}

func (fa *FastIsochroneAlgorithm) observe(phase string, start time.Time, settled int) {
	if fa.observer != nil {
		fa.observer.ObservePhase(phase, time.Since(start), settled)
	}
}

// CalcIsochroneNodes runs the three query phases from `from` with the weight limit isochroneLimit.
func (fa *FastIsochroneAlgorithm) CalcIsochroneNodes(ctx context.Context, from da.Index,
	isochroneLimit float64) (*Result, error) {
	if fa.state != NotRun {
		return nil, util.WrapErrorf(ErrAlreadyRun, util.ErrBadParamInput, "fast isochrone query")
	}
	if int(from) >= fa.graph.NumberOfVertices() {
		return nil, util.WrapErrorf(nil, util.ErrBadParamInput, "origin node %d out of range", from)
	}
	if isochroneLimit < 0 || math.IsNaN(isochroneLimit) {
		return nil, util.WrapErrorf(nil, util.ErrBadParamInput, "invalid isochrone limit %f", isochroneLimit)
	}

	fa.from = from
	fa.limit = isochroneLimit
	fa.startCell = fa.isoNodes.GetCellId(int(from))
	fa.fullyReachableCells = make(map[int]struct{})
	fa.entryPoints = make(map[int]map[da.Index]float64)

	fa.state = StartCellPhase
	fa.runStartCellPhase()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fa.state = BorderNodePhase
	fa.runBorderNodePhase()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fa.state = ActiveCellPhase
	fa.runActiveCellPhase()
	fa.state = Done

	return &Result{
		limit:               fa.limit,
		startCell:           fa.startCell,
		startCellMap:        fa.startCellMap,
		activeCellMaps:      fa.activeCellMaps,
		fullyReachableCells: fa.fullyReachableCells,
		cellStorage:         fa.cellStorage,
	}, nil
}

func (fa *FastIsochroneAlgorithm) runStartCellPhase() {
	start := time.Now()
	search := NewActiveCellDijkstra(fa.graph, fa.weighting, fa.isoNodes, fa.startCell, fa.limit, fa.additionalFilter)
	search.AddInitialNode(fa.from, 0)
	search.Run()
	fa.startCellMap = search.GetFromMap()
	fa.observe(phaseStartCell, start, search.GetVisitedNodes())
}

func (fa *FastIsochroneAlgorithm) runBorderNodePhase() {
	start := time.Now()
	search := NewBorderNodeDijkstra(fa.graph, fa.weighting, fa.isoNodes, fa.distStorage, fa.limit, fa.additionalFilter)
	for node, weight := range fa.startCellMap {
		if fa.isoNodes.GetBorderness(int(node)) {
			search.AddInitialNode(node, weight)
		}
	}
	search.Run()
	fa.borderNodeMap = search.GetFromMap()

	for node, weight := range fa.borderNodeMap {
		if !fa.eccStorage.HasBorderNode(int(node)) {
			continue
		}
		if fa.eccStorage.GetFullyReachable(int(node)) &&
			da.Le(weight+float64(fa.eccStorage.GetEccentricity(int(node))), fa.limit) {
			fa.fullyReachableCells[fa.isoNodes.GetCellId(int(node))] = struct{}{}
		}
	}

	for node, weight := range fa.borderNodeMap {
		cell := fa.isoNodes.GetCellId(int(node))
		if _, full := fa.fullyReachableCells[cell]; full {
			// inactive
			delete(fa.startCellMap, node)
			continue
		}
		if da.Gt(weight, fa.limit) {
			continue
		}
		if cell == fa.startCell {
			if old, ok := fa.startCellMap[node]; !ok || weight < old {
				fa.startCellMap[node] = weight
				fa.startCellImproved = true
			}
			continue
		}
		delete(fa.startCellMap, node)
		if fa.entryPoints[cell] == nil {
			fa.entryPoints[cell] = make(map[da.Index]float64)
		}
		fa.entryPoints[cell][node] = weight
	}
	fa.observe(phaseBorderNode, start, search.GetVisitedNodes())
}

func (fa *FastIsochroneAlgorithm) runActiveCellPhase() {
	start := time.Now()
	settled := 0
	fa.activeCellMaps = make(map[int]map[da.Index]float64, len(fa.entryPoints)+1)

	for _, cell := range util.SortedKeys(fa.entryPoints) {
		search := NewActiveCellDijkstra(fa.graph, fa.weighting, fa.isoNodes, cell, fa.limit, fa.additionalFilter)
		for node, weight := range fa.entryPoints[cell] {
			search.AddInitialNode(node, weight)
		}
		search.Run()
		settled += search.GetVisitedNodes()
		fa.activeCellMaps[cell] = search.GetFromMap()
	}

	if _, full := fa.fullyReachableCells[fa.startCell]; fa.startCellImproved && !full {
		search := NewActiveCellDijkstra(fa.graph, fa.weighting, fa.isoNodes, fa.startCell, fa.limit, fa.additionalFilter)
		for node, weight := range fa.startCellMap {
			search.AddInitialNode(node, weight)
		}
		search.Run()
		settled += search.GetVisitedNodes()
		fa.startCellMap = search.GetFromMap()
	}
	fa.activeCellMaps[fa.startCell] = fa.startCellMap
	fa.observe(phaseActiveCell, start, settled)
}
