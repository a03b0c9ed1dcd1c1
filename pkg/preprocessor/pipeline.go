package preprocessor

import (
	"context"
	"time"

	"github.com/lintang-b-s/fastisochrone/pkg/contour"
	"github.com/lintang-b-s/fastisochrone/pkg/costfunction"
	da "github.com/lintang-b-s/fastisochrone/pkg/datastructure"
	"github.com/lintang-b-s/fastisochrone/pkg/isochrone"
	"github.com/lintang-b-s/fastisochrone/pkg/metrics"
	"github.com/lintang-b-s/fastisochrone/pkg/partitioner"
	"github.com/lintang-b-s/fastisochrone/pkg/spatialindex"
	"github.com/lintang-b-s/fastisochrone/pkg/storage"
	"github.com/lintang-b-s/fastisochrone/pkg/util"
	"go.uber.org/zap"
)

// Pipeline runs the preprocessing steps of the fast isochrone in order. Steps whose storages
// already exist in the directory are loaded instead of recomputed.
type Pipeline struct {
	graph   *da.Graph
	dir     *storage.Directory
	cfg     util.FastIsochroneConfig
	metrics *metrics.Metrics
	logger  *zap.Logger

	locationIndex *spatialindex.Rtree

	isoNodes     *storage.IsochroneNodeStorage
	cellStorage  *storage.CellStorage
	eccentricity *isochrone.Eccentricity
}

func NewPipeline(graph *da.Graph, dir *storage.Directory, cfg util.FastIsochroneConfig,
	m *metrics.Metrics, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		graph:   graph,
		dir:     dir,
		cfg:     cfg,
		metrics: m,
		logger:  logger,
	}
}

// SetLocationIndex restricts the eccentricity targets to the nodes nearest to each contour.
func (p *Pipeline) SetLocationIndex(index *spatialindex.Rtree) {
	p.locationIndex = index
}

func (p *Pipeline) Run(ctx context.Context) error {
	start := time.Now()
	weighting, ok := costfunction.NewWeighting(p.cfg.Weighting)
	if !ok {
		return util.WrapErrorf(nil, util.ErrBadParamInput, "unknown weighting %q", p.cfg.Weighting)
	}

	if err := p.partition(ctx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.contours(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.eccentricities(ctx, weighting); err != nil {
		return err
	}

	p.logger.Info("preprocessing done", zap.String("weighting", weighting.Name()),
		zap.Int("cells", len(p.cellStorage.GetCellIds())), zap.Duration("took", time.Since(start)))
	return nil
}

func (p *Pipeline) partition(ctx context.Context) error {
	n := p.graph.NumberOfVertices()
	p.isoNodes = storage.NewIsochroneNodeStorage(n, p.dir)
	loaded, err := p.isoNodes.LoadExisting()
	if err != nil {
		return err
	}
	if loaded && p.isoNodes.NumberOfNodes() != n {
		return util.WrapErrorf(util.ErrCorruptedData, util.ErrCorruptedData,
			"isochrone node storage has %d nodes, graph has %d", p.isoNodes.NumberOfNodes(), n)
	}

	if !loaded {
		timer := p.timer(metrics.StepPartition)
		cellIds, borderness, err := partitioner.NewPartitioner(p.graph, da.AllEdgeFilter(), p.cfg.Partition,
			p.logger).Run(ctx)
		if err != nil {
			return err
		}
		p.isoNodes.SetCellIds(cellIds)
		p.isoNodes.SetBorderness(borderness)
		if err := p.isoNodes.Flush(); err != nil {
			return err
		}
		p.observe(timer)
	} else {
		p.logger.Info("loaded existing partition", zap.Int("cells", len(p.isoNodes.GetCellIds())))
	}

	borderNodes := 0
	for v := 0; v < n; v++ {
		if p.isoNodes.GetBorderness(v) {
			borderNodes++
		}
	}
	if p.metrics != nil {
		p.metrics.SetPartitionSize(len(p.isoNodes.GetCellIds()), borderNodes)
	}
	return nil
}

func (p *Pipeline) contours() error {
	p.cellStorage = storage.NewCellStorage(p.graph.NumberOfVertices(), p.dir, p.isoNodes)
	loaded, err := p.cellStorage.LoadExisting()
	if err != nil {
		return err
	}
	if loaded && p.cellStorage.IsContourPrepared() && !p.cellStorage.IsCorrupted() {
		p.logger.Info("loaded existing contours", zap.Int("cells", len(p.cellStorage.GetCellIds())))
		return nil
	}
	if loaded {
		p.logger.Warn("cell storage incomplete, recomputing contours")
	}

	timer := p.timer(metrics.StepContour)
	p.cellStorage.Init()
	p.cellStorage.CalcCellNodesMap()
	err = contour.NewContour(p.graph, da.AllEdgeFilter(), p.isoNodes, p.cellStorage,
		p.cfg.Partition.MaxCellNodes, p.cfg.SupercellsEnabled, p.logger).CalculateContour()
	if err != nil {
		return err
	}
	p.observe(timer)
	return nil
}

func (p *Pipeline) eccentricities(ctx context.Context, weighting costfunction.Weighting) error {
	p.eccentricity = isochrone.NewEccentricity(p.graph, p.dir, p.isoNodes, p.cellStorage,
		p.cfg.Partition.MaxCellNodes, p.cfg.EccentricityWorkers, p.cfg.EccentricityRadius, p.logger)
	if p.locationIndex != nil {
		p.eccentricity.SetLocationIndex(p.locationIndex)
	}

	loaded, err := p.eccentricity.GetEccentricityStorage(weighting).LoadExisting()
	if err != nil {
		return err
	}
	if !loaded {
		timer := p.timer(metrics.StepEccentricity)
		if err := p.eccentricity.CalcEccentricities(ctx, weighting, nil); err != nil {
			return err
		}
		p.observe(timer)
	}

	loaded, err = p.eccentricity.GetBorderNodeDistanceStorage(weighting).LoadExisting()
	if err != nil {
		return err
	}
	if !loaded {
		timer := p.timer(metrics.StepBorderNodes)
		if err := p.eccentricity.CalcBorderNodeDistances(ctx, weighting, nil); err != nil {
			return err
		}
		p.observe(timer)
	}
	return nil
}

func (p *Pipeline) timer(step string) *metrics.Timer {
	if p.metrics == nil {
		return nil
	}
	return metrics.NewTimer(p.metrics.PreprocessingDuration, step)
}

func (p *Pipeline) observe(timer *metrics.Timer) {
	if timer != nil {
		timer.ObserveDuration()
	}
}

func (p *Pipeline) GetIsochroneNodeStorage() *storage.IsochroneNodeStorage {
	return p.isoNodes
}

func (p *Pipeline) GetCellStorage() *storage.CellStorage {
	return p.cellStorage
}

func (p *Pipeline) GetEccentricity() *isochrone.Eccentricity {
	return p.eccentricity
}
