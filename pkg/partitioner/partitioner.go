package partitioner

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/lintang-b-s/fastisochrone/pkg/datastructure"
	"github.com/lintang-b-s/fastisochrone/pkg/util"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

type Partitioner struct {
	graph   *datastructure.Graph
	filter  datastructure.EdgeFilter
	params  Params
	workers int
	logger  *zap.Logger
}

func NewPartitioner(graph *datastructure.Graph, filter datastructure.EdgeFilter,
	cfg util.PartitionConfig, logger *zap.Logger) *Partitioner {
	ratio := cfg.SplitRatio
	if ratio <= 0 {
		ratio = DEFAULT_SPLIT_RATIO
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	return &Partitioner{
		graph:  graph,
		filter: filter,
		params: Params{
			MaxCellNodes:          cfg.MaxCellNodes,
			MinCellNodes:          cfg.MinCellNodes,
			SplitRatio:            ratio,
			MinSplittingIteration: cfg.MinSplittingIteration,
			MaxSplittingIteration: cfg.MaxSplittingIteration,
		},
		workers: workers,
		logger:  logger,
	}
}

// Run partitions the whole graph. It returns the leaf cell id and the borderness of every node.
func (p *Partitioner) Run(ctx context.Context) ([]int, []bool, error) {
	start := time.Now()
	n := p.graph.NumberOfVertices()
	nodeToCell := make([]int, n)
	if n == 0 {
		return nodeToCell, []bool{}, nil
	}

	nodes := make([]datastructure.Index, n)
	for i := range nodes {
		nodes[i] = datastructure.Index(i)
	}

	projector := NewProjector(p.graph, p.params.SplitRatio)

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(p.workers)

	var splits atomic.Int64
	sometimes := rate.Sometimes{Interval: 5 * time.Second}
	root := &InertialFlow{
		ctx:        gctx,
		graph:      p.graph,
		filter:     p.filter,
		projector:  projector,
		params:     p.params,
		nodeToCell: nodeToCell,
		group:      group,
		progress: func(cellId, size int) {
			count := splits.Add(1)
			sometimes.Do(func() {
				p.logger.Info("partitioning", zap.Int64("splits", count),
					zap.Int("cellId", cellId), zap.Int("size", size))
			})
		},
		cellId:      1,
		projections: projector.CalculateProjections(nodes),
	}

	if !group.TryGo(root.Run) {
		if err := root.Run(); err != nil {
			return nil, nil, err
		}
	}
	if err := group.Wait(); err != nil {
		return nil, nil, util.WrapErrorf(err, util.ErrInternalServerError, "partitioning failed")
	}

	borderness := CalcBorderness(p.graph, p.filter, nodeToCell)

	p.logger.Info("partitioning done", zap.Int("nodes", n), zap.Int64("splits", splits.Load()),
		zap.Duration("took", time.Since(start)))
	return nodeToCell, borderness, nil
}

// CalcBorderness marks every node with an accepted edge into another cell.
func CalcBorderness(graph *datastructure.Graph, filter datastructure.EdgeFilter, nodeToCell []int) []bool {
	borderness := make([]bool, graph.NumberOfVertices())
	for _, e := range graph.GetEdges() {
		es := datastructure.NewEdgeState(e, false)
		if filter != nil && !filter.Accept(es) && !filter.Accept(datastructure.NewEdgeState(e, true)) {
			continue
		}
		if nodeToCell[e.GetBase()] != nodeToCell[e.GetAdj()] {
			borderness[e.GetBase()] = true
			borderness[e.GetAdj()] = true
		}
	}
	return borderness
}
