package contour

import (
	"math"
	"sort"
	"time"

	"github.com/lintang-b-s/fastisochrone/pkg/datastructure"
	"github.com/lintang-b-s/fastisochrone/pkg/geo"
	"github.com/lintang-b-s/fastisochrone/pkg/storage"
	"github.com/lintang-b-s/fastisochrone/pkg/util"
	"github.com/paulmach/orb"
	"go.uber.org/zap"
)

const (
	// edges longer than this (meter) get intermediate points so long straight roads do not
	// leave gaps between neighbouring outlines.
	MIN_EDGE_LENGTH = 125
	MAX_EDGE_LENGTH = math.MaxInt32

	// a supercell holds at most 2^(2+1) base cells, a super-super cell 2^(2+2+1).
	SUPER_CELL_HIERARCHY_LEVEL       = 2
	SUPER_SUPER_CELL_HIERARCHY_LEVEL = 2

	CONCAVE_HULL_THRESHOLD = 0.006 // degree
	BUFFER_SIZE            = 0.0003
)

// Contour computes the outline of every cell and, optionally, of supercells built by
// pruning low bits off cell ids.
type Contour struct {
	graph             *datastructure.Graph
	filter            datastructure.EdgeFilter
	isoNodes          *storage.IsochroneNodeStorage
	cellStorage       *storage.CellStorage
	maxCellNodes      int
	supercellsEnabled bool
	logger            *zap.Logger
}

func NewContour(graph *datastructure.Graph, filter datastructure.EdgeFilter,
	isoNodes *storage.IsochroneNodeStorage, cellStorage *storage.CellStorage,
	maxCellNodes int, supercellsEnabled bool, logger *zap.Logger) *Contour {
	return &Contour{
		graph:             graph,
		filter:            filter,
		isoNodes:          isoNodes,
		cellStorage:       cellStorage,
		maxCellNodes:      maxCellNodes,
		supercellsEnabled: supercellsEnabled,
		logger:            logger,
	}
}

// Distance returns the haversine distance in meter.
func Distance(lat1, lat2, lon1, lon2 float64) float64 {
	return geo.DistanceMeter(lat1, lat2, lon1, lon2)
}

// CalculateContour computes and stores all contours, then flushes the cell storage.
func (c *Contour) CalculateContour() error {
	start := time.Now()
	emptyContours := c.handleBaseCells()
	if err := c.cellStorage.Flush(); err != nil {
		return err
	}

	superCells := c.handleSuperCells()
	if err := c.cellStorage.StoreContourPointerMap(); err != nil {
		return err
	}
	if c.supercellsEnabled {
		c.cellStorage.StoreSuperCells(superCells)
	}
	c.cellStorage.SetContourPrepared(true)
	if err := c.cellStorage.Flush(); err != nil {
		return err
	}

	c.logger.Info("contours calculated",
		zap.Int("cells", len(c.isoNodes.GetCellIds())),
		zap.Int("supercells", len(superCells)),
		zap.Int("emptyContours", emptyContours),
		zap.Duration("took", time.Since(start)))
	return nil
}

func (c *Contour) handleBaseCells() int {
	empty := 0
	for _, cellId := range c.isoNodes.GetCellIds() {
		points := CreateCoordinates(c.graph, c.filter, c.cellStorage.GetNodesOfCell(cellId))
		if !c.saveContour(cellId, points) {
			empty++
		}
	}
	return empty
}

// handleSuperCells returns the supercell and super-super cell ids mapped to their subcells.
// Contours are computed from the base cells below each of them.
func (c *Contour) handleSuperCells() map[int][]int {
	superCells := make(map[int][]int)
	if !c.supercellsEnabled {
		return superCells
	}

	cellIds := c.isoNodes.GetCellIds()
	superCells = c.identifySuperCells(cellIds, SUPER_CELL_HIERARCHY_LEVEL, true, nil)
	superSuperCells := c.identifySuperCells(util.SortedKeys(superCells), SUPER_SUPER_CELL_HIERARCHY_LEVEL,
		false, superCells)

	superCellsToBaseCells := getBaseCellsOfSuperSuperCells(superSuperCells, superCells)
	for id, cells := range superCells {
		superCellsToBaseCells[id] = cells
	}
	for id, cells := range superSuperCells {
		superCells[id] = cells
	}

	for _, id := range util.SortedKeys(superCellsToBaseCells) {
		c.saveContour(id, c.createSuperCellCoordinates(superCellsToBaseCells[id]))
	}
	return superCells
}

func getBaseCellsOfSuperSuperCells(superSuperCells, superCells map[int][]int) map[int][]int {
	baseCells := make(map[int][]int, len(superSuperCells))
	for id, subCells := range superSuperCells {
		cells := make([]int, 0)
		for _, subCell := range subCells {
			cells = append(cells, superCells[subCell]...)
		}
		sort.Ints(cells)
		baseCells[id] = cells
	}
	return baseCells
}

func (c *Contour) createSuperCellCoordinates(cells []int) []orb.Point {
	points := make([]orb.Point, 0, len(cells)*10)
	for _, cellId := range cells {
		for _, coord := range c.cellStorage.GetCellContourOrder(cellId) {
			points = append(points, orb.Point{coord.Lon, coord.Lat})
		}
	}
	return sortAndDedup(points)
}

// identifySuperCells groups cellIds below the ancestor id>>hierarchyLevel. Close ids are
// geographically close, so cells are visited in ascending order. Ids that would collide
// with an existing contour are skipped.
func (c *Contour) identifySuperCells(cellIds []int, hierarchyLevel int, primary bool,
	existing map[int][]int) map[int][]int {
	cellSet := make(map[int]struct{}, len(cellIds))
	maxId := -1
	for _, id := range cellIds {
		cellSet[id] = struct{}{}
		maxId = util.MaxInt(maxId, id)
	}
	ordered := append([]int(nil), cellIds...)
	sort.Ints(ordered)

	visited := make(map[int]struct{})
	superCells := make(map[int][]int)
	for _, cellId := range ordered {
		if _, ok := visited[cellId]; ok {
			continue
		}
		if primary && !c.isValidBaseCell(cellSet, cellId) {
			continue
		}
		level := hierarchyLevel
		motherId := cellId >> level
		for motherId == 0 && level > 0 {
			level--
			motherId = cellId >> level
		}
		if level == 0 {
			continue
		}
		if _, ok := existing[motherId]; ok {
			continue
		}

		superCell := make([]int, 0)
		c.createSuperCell(cellSet, visited, &superCell, maxId, motherId, primary)
		for _, cell := range superCell {
			visited[cell] = struct{}{}
		}
		if len(superCell) > 0 {
			sort.Ints(superCell)
			superCells[motherId] = superCell
		}
	}
	return superCells
}

// isValidBaseCell reports whether nothing was split off cellId and it was not split off itself.
func (c *Contour) isValidBaseCell(cellSet map[int]struct{}, cellId int) bool {
	if _, ok := cellSet[cellId<<1]; ok {
		return false
	}
	return !c.isDisconnectedCell(cellSet, cellId)
}

// isDisconnectedCell reports whether cellId and its sibling together are smaller than a regular cell.
func (c *Contour) isDisconnectedCell(cellSet map[int]struct{}, cellId int) bool {
	if _, ok := cellSet[cellId^1]; !ok {
		return false
	}
	return len(c.cellStorage.GetNodesOfCell(cellId))+len(c.cellStorage.GetNodesOfCell(cellId^1)) < c.maxCellNodes
}

func (c *Contour) createSuperCell(cellSet map[int]struct{}, visited map[int]struct{}, superCell *[]int,
	maxId, currentCell int, primary bool) {
	if currentCell > maxId {
		return
	}
	if _, ok := visited[currentCell]; ok {
		return
	}
	_, isCell := cellSet[currentCell]
	if primary && isCell && !c.isValidBaseCell(cellSet, currentCell) {
		return
	}
	if !isCell {
		c.createSuperCell(cellSet, visited, superCell, maxId, currentCell<<1, primary)
		c.createSuperCell(cellSet, visited, superCell, maxId, currentCell<<1|1, primary)
		return
	}
	*superCell = append(*superCell, currentCell)
}

// saveContour stores the hull of points for cellId, or an empty contour if there is none.
func (c *Contour) saveContour(cellId int, points []orb.Point) bool {
	ring, err := CreateContour(points)
	if err != nil || len(ring) < 2 {
		if err != nil {
			c.logger.Debug("no contour for cell", zap.Int("cellId", cellId), zap.Error(err))
		}
		c.cellStorage.SetCellContourOrder(cellId, nil, nil)
		return false
	}
	lats := make([]float64, len(ring))
	lons := make([]float64, len(ring))
	for i, p := range ring {
		lats[i] = p.Lat()
		lons[i] = p.Lon()
	}
	c.cellStorage.SetCellContourOrder(cellId, lats, lons)
	return true
}

// CreateContour is the concave hull of points with the contour threshold.
func CreateContour(points []orb.Point) (orb.Ring, error) {
	return ConcaveHullByLength(points, CONCAVE_HULL_THRESHOLD)
}

// CreateCoordinates returns the buffered points of nodes and of every accepted edge between
// two of them, sorted by lon then lat without duplicates.
func CreateCoordinates(graph *datastructure.Graph, filter datastructure.EdgeFilter, nodes []int) []orb.Point {
	nodeSet := make(map[datastructure.Index]struct{}, len(nodes))
	towers := make([]geo.Coordinate, 0, len(nodes))
	for _, node := range nodes {
		nodeSet[datastructure.Index(node)] = struct{}{}
		lat, lon := graph.GetVertexCoordinates(datastructure.Index(node))
		towers = append(towers, geo.NewCoordinate(lat, lon))
	}

	points := make([]orb.Point, 0, len(nodes)*4)
	points = addLatLon(towers, points)

	visitedEdges := make(map[datastructure.Index]struct{})
	for _, node := range nodes {
		graph.ForAcceptedEdgesOf(datastructure.Index(node), filter, func(e datastructure.EdgeState) {
			if _, ok := visitedEdges[e.GetEdgeId()]; ok {
				return
			}
			if _, ok := nodeSet[e.GetAdjNode()]; !ok {
				return
			}
			visitedEdges[e.GetEdgeId()] = struct{}{}
			points = splitAndAddLatLon(e.FetchWayGeometry(graph), points, MIN_EDGE_LENGTH, MAX_EDGE_LENGTH)
		})
	}
	return sortAndDedup(points)
}

// addLatLon adds two diagonal buffer points per coordinate. The last coordinate is skipped.
func addLatLon(coords []geo.Coordinate, points []orb.Point) []orb.Point {
	for i := 0; i < len(coords)-1; i++ {
		lat, lon := coords[i].Lat, coords[i].Lon
		points = append(points,
			orb.Point{lon + BUFFER_SIZE, lat + BUFFER_SIZE},
			orb.Point{lon - BUFFER_SIZE, lat - BUFFER_SIZE})
	}
	return points
}

// splitAndAddLatLon offsets the way geometry to both sides by BUFFER_SIZE and fills segments
// longer than minLimit with interpolated points.
func splitAndAddLatLon(coords []geo.Coordinate, points []orb.Point, minLimit, maxLimit float64) []orb.Point {
	for i := 0; i < len(coords)-1; i++ {
		a, b := coords[i], coords[i+1]
		dist := Distance(a.Lat, b.Lat, a.Lon, b.Lon)
		dx := a.Lon - b.Lon
		dy := a.Lat - b.Lat
		normLength := math.Sqrt(dx*dx + dy*dy)
		if normLength == 0 {
			continue
		}
		scale := BUFFER_SIZE / normLength
		dx2 := -dy * scale
		dy2 := dx * scale

		if i != 0 {
			points = append(points,
				orb.Point{a.Lon + dx2, a.Lat + dy2},
				orb.Point{a.Lon - dx2, a.Lat - dy2})
		}
		if dist > minLimit && dist < maxLimit {
			n := int(math.Ceil(dist / minLimit))
			for _, p := range geo.SplitSegment(a, b, n) {
				points = append(points,
					orb.Point{p.Lon + dx2, p.Lat + dy2},
					orb.Point{p.Lon - dx2, p.Lat - dy2})
			}
		}
	}
	return points
}

func sortAndDedup(points []orb.Point) []orb.Point {
	sort.Slice(points, func(i, j int) bool {
		return lessPoint(points[i], points[j])
	})
	out := points[:0]
	for _, p := range points {
		if len(out) > 0 && p == out[len(out)-1] {
			continue
		}
		out = append(out, p)
	}
	return out
}
