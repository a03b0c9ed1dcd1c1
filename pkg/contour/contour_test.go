package contour

import (
	"math"
	"testing"

	"github.com/lintang-b-s/fastisochrone/pkg/datastructure"
	"github.com/lintang-b-s/fastisochrone/pkg/geo"
	"github.com/lintang-b-s/fastisochrone/pkg/storage"
	"github.com/lintang-b-s/fastisochrone/pkg/util"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDistance(t *testing.T) {
	assert.Equal(t, 111177.99068882648, Distance(1, 1, 1, 2))
}

func jitter(i, j int) (float64, float64) {
	return 0.0001 * math.Sin(float64(i)*12.9898+float64(j)*78.233),
		0.0001 * math.Cos(float64(i)*39.346+float64(j)*11.135)
}

func TestConcaveHullByLength(t *testing.T) {
	t.Run("square", func(t *testing.T) {
		points := make([]orb.Point, 0)
		for i := 0; i <= 10; i++ {
			for j := 0; j <= 10; j++ {
				points = append(points, orb.Point{float64(i) * 0.001, float64(j) * 0.001})
			}
		}
		ring, err := ConcaveHullByLength(points, CONCAVE_HULL_THRESHOLD)
		require.NoError(t, err)

		assert.True(t, ring.Closed())
		assert.Equal(t, orb.CW, ring.Orientation())
		assert.Equal(t, orb.Point{0, 0}, ring[0])
		bound := ring.Bound()
		assert.InDelta(t, 0, bound.Min.X(), 1e-12)
		assert.InDelta(t, 0.01, bound.Max.X(), 1e-12)
		assert.InDelta(t, 0.01, bound.Max.Y(), 1e-12)
		assert.InDelta(t, 0.0001, planar.Area(orb.Polygon{ring}), 1e-9)
	})

	t.Run("l shape", func(t *testing.T) {
		points := make([]orb.Point, 0)
		for i := 0; i <= 20; i++ {
			for j := 0; j <= 20; j++ {
				if i > 4 && j > 4 {
					continue
				}
				dx, dy := jitter(i, j)
				points = append(points, orb.Point{float64(i)*0.001 + dx, float64(j)*0.001 + dy})
			}
		}
		ring, err := ConcaveHullByLength(points, CONCAVE_HULL_THRESHOLD)
		require.NoError(t, err)

		assert.Equal(t, orb.CW, ring.Orientation())
		assert.True(t, planar.RingContains(ring, orb.Point{0.002, 0.015}))
		assert.False(t, planar.RingContains(ring, orb.Point{0.015, 0.015}))
		assert.False(t, planar.RingContains(ring, orb.Point{0.007, 0.007}))
		assert.Less(t, planar.Area(orb.Polygon{ring}), 0.0002)
	})

	t.Run("too few points", func(t *testing.T) {
		_, err := ConcaveHullByLength([]orb.Point{{0, 0}, {1, 1}}, CONCAVE_HULL_THRESHOLD)
		assert.ErrorIs(t, err, ErrTooFewPoints)
	})

	t.Run("collinear", func(t *testing.T) {
		_, err := ConcaveHullByLength([]orb.Point{{0, 0}, {1, 1}, {2, 2}}, CONCAVE_HULL_THRESHOLD)
		assert.Error(t, err)
	})
}

func TestSplitAndAddLatLon(t *testing.T) {
	coords := []geo.Coordinate{geo.NewCoordinate(0, 0), geo.NewCoordinate(0, 0.01)}
	// about 1112m, split into 9 pieces with 2 offset points per split point.
	points := splitAndAddLatLon(coords, nil, MIN_EDGE_LENGTH, MAX_EDGE_LENGTH)
	require.Len(t, points, 16)
	for _, p := range points {
		assert.InDelta(t, BUFFER_SIZE, math.Abs(p.Lat()), 1e-9)
	}

	short := []geo.Coordinate{geo.NewCoordinate(0, 0), geo.NewCoordinate(0, 0.0005), geo.NewCoordinate(0, 0.001)}
	assert.Len(t, splitAndAddLatLon(short, nil, MIN_EDGE_LENGTH, MAX_EDGE_LENGTH), 2)
}

func TestAddLatLonSkipsLast(t *testing.T) {
	coords := []geo.Coordinate{geo.NewCoordinate(1, 2), geo.NewCoordinate(3, 4)}
	points := addLatLon(coords, nil)
	assert.Equal(t, []orb.Point{{2 + BUFFER_SIZE, 1 + BUFFER_SIZE}, {2 - BUFFER_SIZE, 1 - BUFFER_SIZE}}, points)
}

// createGridGraph builds a width x width grid with 0.005 degree spacing. Nodes left of the
// middle column go to cell 2, the others to cell 3.
func createGridGraph(width int) (*datastructure.Graph, []int) {
	vertices := make([]*datastructure.Vertex, 0, width*width)
	cellIds := make([]int, 0, width*width)
	for r := 0; r < width; r++ {
		for c := 0; c < width; c++ {
			id := datastructure.Index(r*width + c)
			vertices = append(vertices, datastructure.NewVertex(-7.7+float64(r)*0.005, 110.3+float64(c)*0.005, id))
			if c < width/2 {
				cellIds = append(cellIds, 2)
			} else {
				cellIds = append(cellIds, 3)
			}
		}
	}
	edges := make([]*datastructure.Edge, 0)
	addEdge := func(u, v int) {
		lat1, lon1 := vertices[u].GetLat(), vertices[u].GetLon()
		lat2, lon2 := vertices[v].GetLat(), vertices[v].GetLon()
		dist := geo.DistanceMeter(lat1, lat2, lon1, lon2)
		edges = append(edges, datastructure.NewEdge(0, datastructure.Index(u), datastructure.Index(v),
			dist, 40, true, true, nil))
	}
	for r := 0; r < width; r++ {
		for c := 0; c < width; c++ {
			u := r*width + c
			if c+1 < width {
				addEdge(u, u+1)
			}
			if r+1 < width {
				addEdge(u, u+width)
			}
		}
	}
	return datastructure.NewGraph(vertices, edges), cellIds
}

func newCellStorages(dir *storage.Directory, cellIds []int) (*storage.IsochroneNodeStorage, *storage.CellStorage) {
	isoNodes := storage.NewIsochroneNodeStorage(len(cellIds), dir)
	isoNodes.SetCellIds(cellIds)
	cellStorage := storage.NewCellStorage(len(cellIds), dir, isoNodes)
	cellStorage.Init()
	cellStorage.CalcCellNodesMap()
	return isoNodes, cellStorage
}

func TestCalculateContour(t *testing.T) {
	testCases := []struct {
		name       string
		supercells bool
	}{
		{name: "base cells only", supercells: false},
		{name: "with supercells", supercells: true},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			graph, cellIds := createGridGraph(4)
			isoNodes, cellStorage := newCellStorages(storage.NewRAMDirectory(), cellIds)

			c := NewContour(graph, datastructure.AllEdgeFilter(), isoNodes, cellStorage, 10, tt.supercells, zap.NewNop())
			require.NoError(t, c.CalculateContour())

			assert.True(t, cellStorage.IsContourPrepared())
			assert.False(t, cellStorage.IsCorrupted())

			contourIds := []int{2, 3}
			if tt.supercells {
				contourIds = append(contourIds, 1)
				assert.Equal(t, 1, cellStorage.GetSuperCellOfCell(2))
				assert.Equal(t, []int{2, 3}, cellStorage.GetCellsOfSuperCellAsList(1))
			} else {
				assert.Equal(t, -1, cellStorage.GetSuperCellOfCell(2))
			}

			for _, id := range contourIds {
				coords := cellStorage.GetCellContourOrder(id)
				require.GreaterOrEqual(t, len(coords), 4, "cell %d", id)
				ring := make(orb.Ring, len(coords))
				for i, coord := range coords {
					ring[i] = orb.Point{coord.Lon, coord.Lat}
				}
				assert.True(t, ring.Closed())
				assert.Equal(t, orb.CW, ring.Orientation())

				nodes := cellStorage.GetNodesOfCell(id)
				if id == 1 {
					nodes = append(cellStorage.GetNodesOfCell(2), cellStorage.GetNodesOfCell(3)...)
				}
				bound := ring.Bound()
				for _, node := range nodes {
					lat, lon := graph.GetVertexCoordinates(datastructure.Index(node))
					assert.True(t, bound.Contains(orb.Point{lon, lat}), "node %d outside cell %d", node, id)
				}
			}
		})
	}
}

func TestIdentifySuperCells(t *testing.T) {
	testCases := []struct {
		name           string
		cellIds        []int
		maxCellNodes   int
		wantSuper      map[int][]int
		wantSuperSuper map[int][]int
	}{
		{
			name:         "two levels",
			cellIds:      []int{8, 8, 9, 10, 11, 12, 13, 14, 15, 15},
			maxCellNodes: 1,
			wantSuper: map[int][]int{
				2: {8, 9, 10, 11},
				3: {12, 13, 14, 15},
			},
			wantSuperSuper: map[int][]int{
				1: {2, 3},
			},
		},
		{
			name:         "disconnected siblings are skipped",
			cellIds:      []int{2, 2, 2, 6, 7},
			maxCellNodes: 10,
			wantSuper: map[int][]int{
				1: {2},
			},
			wantSuperSuper: map[int][]int{},
		},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			isoNodes, cellStorage := newCellStorages(storage.NewRAMDirectory(), tt.cellIds)
			c := NewContour(nil, nil, isoNodes, cellStorage, tt.maxCellNodes, true, zap.NewNop())

			superCells := c.identifySuperCells(isoNodes.GetCellIds(), SUPER_CELL_HIERARCHY_LEVEL, true, nil)
			assert.Equal(t, tt.wantSuper, superCells)

			superSuperCells := c.identifySuperCells(util.SortedKeys(superCells), SUPER_SUPER_CELL_HIERARCHY_LEVEL,
				false, superCells)
			assert.Equal(t, tt.wantSuperSuper, superSuperCells)
		})
	}
}
