package isochrone

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/lintang-b-s/fastisochrone/pkg/concurrent"
	"github.com/lintang-b-s/fastisochrone/pkg/costfunction"
	da "github.com/lintang-b-s/fastisochrone/pkg/datastructure"
	"github.com/lintang-b-s/fastisochrone/pkg/spatialindex"
	"github.com/lintang-b-s/fastisochrone/pkg/storage"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// share of cell nodes a border node must reach for its cell to count as fully reachable.
	ACCEPTED_FULLY_REACHABLE_PERCENTAGE = 0.995
	ECCENTRICITY_DIJKSTRA_LIMIT_FACTOR  = 10
	BORDER_NODE_DIJKSTRA_LIMIT_FACTOR   = 20
)

type eccentricityResult struct {
	node           int
	eccentricity   float64
	fullyReachable bool
}

type borderDistanceResult struct {
	cellId int
	sets   int
}

// Eccentricity precomputes per weighting the eccentricity of every border node and the
// distances between the border nodes of each cell.
type Eccentricity struct {
	graph        *da.Graph
	dir          *storage.Directory
	isoNodes     *storage.IsochroneNodeStorage
	cellStorage  *storage.CellStorage
	maxCellNodes int
	workers      int
	radius       float64
	logger       *zap.Logger

	locationIndex *spatialindex.Rtree

	eccentricityStorages   map[string]*storage.EccentricityStorage
	borderDistanceStorages map[string]*storage.BorderNodeDistanceStorage
}

func NewEccentricity(graph *da.Graph, dir *storage.Directory, isoNodes *storage.IsochroneNodeStorage,
	cellStorage *storage.CellStorage, maxCellNodes, workers int, radius float64, logger *zap.Logger) *Eccentricity {
	if workers < 1 {
		workers = 1
	}
	return &Eccentricity{
		graph:                  graph,
		dir:                    dir,
		isoNodes:               isoNodes,
		cellStorage:            cellStorage,
		maxCellNodes:           maxCellNodes,
		workers:                workers,
		radius:                 radius,
		logger:                 logger,
		eccentricityStorages:   make(map[string]*storage.EccentricityStorage),
		borderDistanceStorages: make(map[string]*storage.BorderNodeDistanceStorage),
	}
}

// SetLocationIndex makes the eccentricity use only the nodes closest to the cell contour,
// instead of every cell node.
func (ec *Eccentricity) SetLocationIndex(index *spatialindex.Rtree) {
	ec.locationIndex = index
}

func (ec *Eccentricity) GetEccentricityStorage(weighting costfunction.Weighting) *storage.EccentricityStorage {
	s, ok := ec.eccentricityStorages[weighting.Name()]
	if !ok {
		s = storage.NewEccentricityStorage(ec.dir, weighting.Name())
		ec.eccentricityStorages[weighting.Name()] = s
	}
	return s
}

func (ec *Eccentricity) GetBorderNodeDistanceStorage(weighting costfunction.Weighting) *storage.BorderNodeDistanceStorage {
	s, ok := ec.borderDistanceStorages[weighting.Name()]
	if !ok {
		s = storage.NewBorderNodeDistanceStorage(ec.dir, weighting.Name())
		ec.borderDistanceStorages[weighting.Name()] = s
	}
	return s
}

func (ec *Eccentricity) borderNodes() []int {
	nodes := make([]int, 0)
	for v := 0; v < ec.isoNodes.NumberOfNodes(); v++ {
		if ec.isoNodes.GetBorderness(v) {
			nodes = append(nodes, v)
		}
	}
	return nodes
}

// CalcEccentricities computes and flushes the eccentricity storage of weighting.
func (ec *Eccentricity) CalcEccentricities(ctx context.Context, weighting costfunction.Weighting,
	additionalFilter da.EdgeFilter) error {
	start := time.Now()
	eccStorage := ec.GetEccentricityStorage(weighting)
	borderNodes := ec.borderNodes()
	eccStorage.Init(borderNodes)

	relevantNodes := make(map[int]map[da.Index]struct{}, len(ec.cellStorage.GetCellIds()))
	for _, cellId := range ec.cellStorage.GetCellIds() {
		relevantNodes[cellId] = ec.relevantContourNodes(cellId)
	}

	var done atomic.Int64
	sometimes := rate.Sometimes{Interval: 5 * time.Second}

	wp := concurrent.NewWorkerPool[int, eccentricityResult](ec.workers, len(borderNodes), len(borderNodes))
	wp.Start(ctx, func(ctx context.Context, node int) (eccentricityResult, error) {
		res := ec.calcEccentricity(node, weighting, additionalFilter, relevantNodes[ec.isoNodes.GetCellId(node)])
		count := done.Add(1)
		sometimes.Do(func() {
			ec.logger.Info("calculating eccentricities", zap.String("weighting", weighting.Name()),
				zap.Int64("done", count), zap.Int("borderNodes", len(borderNodes)))
		})
		return res, nil
	})
	for _, node := range borderNodes {
		wp.AddJob(node)
	}
	wp.Close()
	if err := wp.Wait(); err != nil {
		return err
	}

	fullyReachable := 0
	for res := range wp.CollectResults() {
		eccStorage.SetEccentricity(res.node, res.eccentricity)
		eccStorage.SetFullyReachable(res.node, res.fullyReachable)
		if res.fullyReachable {
			fullyReachable++
		}
	}

	eccStorage.StoreBorderNodeToPointerMap()
	if err := eccStorage.Flush(); err != nil {
		return err
	}
	ec.logger.Info("eccentricities calculated", zap.String("weighting", weighting.Name()),
		zap.Int("borderNodes", len(borderNodes)), zap.Int("fullyReachable", fullyReachable),
		zap.Duration("took", time.Since(start)))
	return nil
}

// calcEccentricity searches inside the cell first. If too few cell nodes are found, the search
// is repeated on the whole graph, bounded by the visited node limit.
func (ec *Eccentricity) calcEccentricity(node int, weighting costfunction.Weighting,
	additionalFilter da.EdgeFilter, relevantNodes map[da.Index]struct{}) eccentricityResult {
	cellId := ec.isoNodes.GetCellId(node)
	cellNodes := ec.cellStorage.GetNodesOfCell(cellId)

	newSearch := func(filter da.EdgeFilter) *RangeDijkstra {
		rd := NewRangeDijkstra(ec.graph, weighting, filter)
		rd.SetMaxVisitedNodes(ec.maxCellNodes * ECCENTRICITY_DIJKSTRA_LIMIT_FACTOR)
		rd.SetRadius(ec.radius)
		rd.SetCellNodes(cellNodes)
		return rd
	}

	rd := newSearch(filterSequence(da.OutEdgeFilter(), NewFixedCellEdgeFilter(ec.isoNodes, cellId), additionalFilter))
	eccentricity := rd.CalcMaxWeight(da.Index(node), relevantNodes)
	if ratio(rd.GetFoundCellNodeSize(), len(cellNodes)) < ACCEPTED_FULLY_REACHABLE_PERCENTAGE {
		rd = newSearch(filterSequence(da.OutEdgeFilter(), additionalFilter))
		eccentricity = rd.CalcMaxWeight(da.Index(node), relevantNodes)
	}

	return eccentricityResult{
		node:           node,
		eccentricity:   eccentricity,
		fullyReachable: ratio(rd.GetFoundCellNodeSize(), len(cellNodes)) >= ACCEPTED_FULLY_REACHABLE_PERCENTAGE,
	}
}

func ratio(found, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(found) / float64(total)
}

// relevantContourNodes returns the cell nodes closest to the contour points of cellId, or all
// cell nodes without a location index.
func (ec *Eccentricity) relevantContourNodes(cellId int) map[da.Index]struct{} {
	cellNodes := ec.cellStorage.GetNodesOfCell(cellId)
	contour := ec.cellStorage.GetCellContourOrder(cellId)
	nodes := make(map[da.Index]struct{})
	if ec.locationIndex == nil || len(contour) == 0 {
		for _, v := range cellNodes {
			nodes[da.Index(v)] = struct{}{}
		}
		return nodes
	}

	inCell := func(v da.Index) bool {
		return ec.isoNodes.GetCellId(int(v)) == cellId
	}
	for _, c := range contour {
		if v, _, ok := ec.locationIndex.Snap(c.Lat, c.Lon, inCell); ok {
			nodes[v] = struct{}{}
		}
	}
	return nodes
}

// CalcBorderNodeDistances computes and flushes the border node distance storage of weighting.
func (ec *Eccentricity) CalcBorderNodeDistances(ctx context.Context, weighting costfunction.Weighting,
	additionalFilter da.EdgeFilter) error {
	start := time.Now()
	distStorage := ec.GetBorderNodeDistanceStorage(weighting)
	borderNodeCount := len(ec.borderNodes())
	distStorage.Init(borderNodeCount)

	cellIds := ec.cellStorage.GetCellIds()
	var done atomic.Int64
	sometimes := rate.Sometimes{Interval: 5 * time.Second}

	wp := concurrent.NewWorkerPool[int, borderDistanceResult](ec.workers, len(cellIds), len(cellIds))
	wp.Start(ctx, func(ctx context.Context, cellId int) (borderDistanceResult, error) {
		sets := ec.calcBorderNodeDistancesOfCell(distStorage, cellId, weighting, additionalFilter)
		count := done.Add(1)
		sometimes.Do(func() {
			ec.logger.Info("calculating border node distances", zap.String("weighting", weighting.Name()),
				zap.Int64("cells", count), zap.Int("totalCells", len(cellIds)))
		})
		return borderDistanceResult{cellId: cellId, sets: sets}, nil
	})
	for _, cellId := range cellIds {
		wp.AddJob(cellId)
	}
	wp.Close()
	if err := wp.Wait(); err != nil {
		return err
	}

	sets := 0
	for res := range wp.CollectResults() {
		sets += res.sets
	}

	distStorage.StoreBorderNodeToPointerMap()
	if err := distStorage.Flush(); err != nil {
		return err
	}
	ec.logger.Info("border node distances calculated", zap.String("weighting", weighting.Name()),
		zap.Int("cells", len(cellIds)), zap.Int("sets", sets), zap.Duration("took", time.Since(start)))
	return nil
}

func (ec *Eccentricity) calcBorderNodeDistancesOfCell(distStorage *storage.BorderNodeDistanceStorage,
	cellId int, weighting costfunction.Weighting, additionalFilter da.EdgeFilter) int {
	cellBorderNodes := make([]int, 0)
	for _, v := range ec.cellStorage.GetNodesOfCell(cellId) {
		if ec.isoNodes.GetBorderness(v) {
			cellBorderNodes = append(cellBorderNodes, v)
		}
	}

	filter := filterSequence(da.OutEdgeFilter(), NewFixedCellEdgeFilter(ec.isoNodes, cellId), additionalFilter)
	for _, borderNode := range cellBorderNodes {
		weights := oneToManyDijkstra(ec.graph, weighting, filter, da.Index(borderNode), cellBorderNodes,
			ec.maxCellNodes*BORDER_NODE_DIJKSTRA_LIMIT_FACTOR)

		set := storage.BorderNodeDistanceSet{
			AdjBorderNodeIds: make([]int, 0, len(cellBorderNodes)-1),
			Distances:        make([]float64, 0, len(cellBorderNodes)-1),
		}
		for i, target := range cellBorderNodes {
			if target == borderNode {
				continue
			}
			set.AdjBorderNodeIds = append(set.AdjBorderNodeIds, target)
			set.Distances = append(set.Distances, weights[i])
		}
		distStorage.StoreBorderNodeDistanceSet(borderNode, set)
	}
	return len(cellBorderNodes)
}
