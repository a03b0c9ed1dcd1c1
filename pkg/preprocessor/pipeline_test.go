package preprocessor

import (
	"context"
	"fmt"
	"math"
	"sort"
	"testing"

	"github.com/lintang-b-s/fastisochrone/pkg/costfunction"
	da "github.com/lintang-b-s/fastisochrone/pkg/datastructure"
	"github.com/lintang-b-s/fastisochrone/pkg/isochrone"
	"github.com/lintang-b-s/fastisochrone/pkg/metrics"
	"github.com/lintang-b-s/fastisochrone/pkg/storage"
	"github.com/lintang-b-s/fastisochrone/pkg/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// createGridGraph returns a width x width grid with 100 meter edges.
func createGridGraph(width int) *da.Graph {
	vertices := make([]*da.Vertex, 0, width*width)
	edges := make([]*da.Edge, 0)
	for i := 0; i < width*width; i++ {
		vertices = append(vertices, da.NewVertex(-7.7+0.0009*float64(i/width), 110.3+0.0009*float64(i%width),
			da.Index(i)))
		if i%width < width-1 {
			edges = append(edges, da.NewEdge(0, da.Index(i), da.Index(i+1), 100, 30, true, true, nil))
		}
		if i/width < width-1 {
			edges = append(edges, da.NewEdge(0, da.Index(i), da.Index(i+width), 100, 30, true, true, nil))
		}
	}
	return da.NewGraph(vertices, edges)
}

func testConfig() util.FastIsochroneConfig {
	cfg := util.DefaultFastIsochroneConfig()
	cfg.Partition = util.PartitionConfig{
		MaxCellNodes:          10,
		SplitRatio:            0.4,
		MaxSplittingIteration: 1 << 26,
		Workers:               2,
	}
	cfg.EccentricityWorkers = 2
	cfg.Weighting = costfunction.SHORTEST
	return cfg
}

func reachableWithin(graph *da.Graph, from int, limit float64) []da.Index {
	dist := make([]float64, graph.NumberOfVertices())
	for i := range dist {
		dist[i] = math.Inf(1)
	}
	dist[from] = 0
	weighting := costfunction.NewShortestWeighting()
	for changed := true; changed; {
		changed = false
		for u := range dist {
			if math.IsInf(dist[u], 1) {
				continue
			}
			graph.ForEdgesOf(da.Index(u), func(e da.EdgeState) {
				if w := dist[u] + weighting.CalcWeight(e, false); w < dist[e.GetAdjNode()] {
					dist[e.GetAdjNode()] = w
					changed = true
				}
			})
		}
	}
	nodes := make([]da.Index, 0)
	for v, d := range dist {
		if d <= limit {
			nodes = append(nodes, da.Index(v))
		}
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })
	return nodes
}

func TestPipeline(t *testing.T) {
	graph := createGridGraph(6)
	dirPath := t.TempDir()
	m := metrics.NewMetrics(prometheus.NewRegistry(), "test")

	pipeline := NewPipeline(graph, storage.NewDirectory(dirPath), testConfig(), m, zap.NewNop())
	require.NoError(t, pipeline.Run(context.Background()))

	isoNodes := pipeline.GetIsochroneNodeStorage()
	cellStorage := pipeline.GetCellStorage()
	assert.Greater(t, len(cellStorage.GetCellIds()), 2)
	assert.False(t, cellStorage.IsCorrupted())
	assert.True(t, cellStorage.IsContourPrepared())
	for _, cellId := range cellStorage.GetCellIds() {
		assert.LessOrEqual(t, len(cellStorage.GetNodesOfCell(cellId)), 10)
	}

	borderNodes := 0
	for v := 0; v < graph.NumberOfVertices(); v++ {
		if isoNodes.GetBorderness(v) {
			borderNodes++
			assert.True(t, pipeline.GetEccentricity().GetEccentricityStorage(costfunction.NewShortestWeighting()).HasBorderNode(v))
		}
	}
	assert.Equal(t, float64(len(cellStorage.GetCellIds())), testutil.ToFloat64(m.Cells))
	assert.Equal(t, float64(borderNodes), testutil.ToFloat64(m.BorderNodes))
	assert.Equal(t, 4, testutil.CollectAndCount(m.PreprocessingDuration))

	t.Run("second run loads existing storages", func(t *testing.T) {
		m2 := metrics.NewMetrics(prometheus.NewRegistry(), "test")
		again := NewPipeline(graph, storage.NewDirectory(dirPath), testConfig(), m2, zap.NewNop())
		require.NoError(t, again.Run(context.Background()))
		assert.Equal(t, 0, testutil.CollectAndCount(m2.PreprocessingDuration))
		assert.Equal(t, isoNodes.GetCellIds(), again.GetIsochroneNodeStorage().GetCellIds())
		assert.Equal(t, float64(borderNodes), testutil.ToFloat64(m2.BorderNodes))
	})

	t.Run("queries on loaded storages match dijkstra", func(t *testing.T) {
		weighting := costfunction.NewShortestWeighting()
		s, err := LoadStorages(storage.NewDirectory(dirPath), graph.NumberOfVertices(), weighting)
		require.NoError(t, err)

		for _, from := range []int{0, 14, 35} {
			for _, limit := range []float64{0, 150, 300, 450, 700, 1200} {
				t.Run(fmt.Sprintf("from %d limit %.0f", from, limit), func(t *testing.T) {
					alg := isochrone.NewFastIsochroneAlgorithm(graph, weighting, s.IsoNodes, s.CellStorage,
						s.EccStorage, s.DistStorage, nil)
					res, err := alg.CalcIsochroneNodes(context.Background(), da.Index(from), limit)
					require.NoError(t, err)
					assert.Equal(t, reachableWithin(graph, from, limit), res.ReachableNodes())
				})
			}
		}
	})
}

func TestPipelineErrors(t *testing.T) {
	graph := createGridGraph(3)

	t.Run("unknown weighting", func(t *testing.T) {
		cfg := testConfig()
		cfg.Weighting = "curvy"
		err := NewPipeline(graph, storage.NewRAMDirectory(), cfg, nil, zap.NewNop()).Run(context.Background())
		require.Error(t, err)
		assert.Equal(t, util.ErrBadParamInput, util.ErrorCode(err))
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := NewPipeline(graph, storage.NewRAMDirectory(), testConfig(), nil, zap.NewNop()).Run(ctx)
		assert.Error(t, err)
	})

	t.Run("missing storages", func(t *testing.T) {
		_, err := LoadStorages(storage.NewDirectory(t.TempDir()), graph.NumberOfVertices(),
			costfunction.NewShortestWeighting())
		require.Error(t, err)
		assert.Equal(t, util.ErrNotFound, util.ErrorCode(err))
	})

	t.Run("graph size mismatch", func(t *testing.T) {
		dirPath := t.TempDir()
		require.NoError(t, NewPipeline(graph, storage.NewDirectory(dirPath), testConfig(), nil, zap.NewNop()).
			Run(context.Background()))
		_, err := LoadStorages(storage.NewDirectory(dirPath), graph.NumberOfVertices()+1,
			costfunction.NewShortestWeighting())
		require.Error(t, err)
		assert.Equal(t, util.ErrCorruptedData, util.ErrorCode(err))
	})
}
