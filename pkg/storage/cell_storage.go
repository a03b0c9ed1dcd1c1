package storage

import (
	"sort"

	"github.com/lintang-b-s/fastisochrone/pkg"
	"github.com/lintang-b-s/fastisochrone/pkg/geo"
	"github.com/lintang-b-s/fastisochrone/pkg/util"
)

// CellStorage stores the nodes and the contour of every cell, plus the supercell hierarchy.
//
//	header(0)  = cellCount
//	header(4)  = contourCount
//	header(8)  = supercell block offset, high 32 bits
//	header(12) = supercell block offset, low 32 bits
//	header(16) = contour prepared flag
//
//	[0, nodeIndexOffset)                  (cellId:4B, nodeListPointer:8B) per cell
//	[nodeIndexOffset, contourIndexOffset) (cellId:4B, contourPointer:8B) per contour
//	[contourIndexOffset, ...)             node lists ending in -1, then contours ending in
//	                                      (MaxInt32, MaxInt32), then the supercell block
type CellStorage struct {
	cells              *DataAccess
	nodeCount          int
	nodeIndexOffset    int64
	contourIndexOffset int64
	cellContourPointer int64
	isoNodes           *IsochroneNodeStorage

	cellIdToNodesPointerMap   map[int]int64
	cellIdToContourPointerMap map[int]int64
	cellIdToSuperCellMap      map[int]int
	superCellIdToCellsMap     map[int][]int
}

func NewCellStorage(nodeCount int, dir *Directory, isoNodes *IsochroneNodeStorage) *CellStorage {
	return &CellStorage{
		cells:                     dir.Find(pkg.CELLS_STORAGE),
		nodeCount:                 nodeCount,
		isoNodes:                  isoNodes,
		cellIdToNodesPointerMap:   make(map[int]int64),
		cellIdToContourPointerMap: make(map[int]int64),
		cellIdToSuperCellMap:      make(map[int]int),
		superCellIdToCellsMap:     make(map[int][]int),
	}
}

func (cs *CellStorage) setOffsets(cellCount int) {
	cs.nodeIndexOffset = int64(cellCount) * 12
	// room for two contour pointers per cell, the second one for supercells.
	cs.contourIndexOffset = 2 * int64(cellCount) * 18
}

func (cs *CellStorage) LoadExisting() (bool, error) {
	ok, err := cs.cells.LoadExisting()
	if err != nil || !ok {
		return ok, err
	}
	cellCount := int(cs.cells.GetHeader(0))
	cs.setOffsets(cellCount)
	cs.cellIdToNodesPointerMap = make(map[int]int64, cellCount)
	cs.cellIdToContourPointerMap = make(map[int]int64, cellCount)
	cs.cellIdToSuperCellMap = make(map[int]int, cellCount)
	cs.superCellIdToCellsMap = make(map[int][]int)

	capacity := cs.cells.GetCapacity()
	if capacity < cs.contourIndexOffset {
		return false, util.WrapErrorf(util.ErrCorruptedData, util.ErrCorruptedData,
			"cell storage too small for %d cells", cellCount)
	}
	cs.fillCellIdToNodesPointerMap(cellCount)
	if err := cs.fillCellIdToContourPointerMap(); err != nil {
		return false, err
	}
	if err := cs.fillSuperCellMap(); err != nil {
		return false, err
	}
	return true, nil
}

func (cs *CellStorage) Init() {
	cs.cells.Create(1000)
	cellCount := len(cs.isoNodes.GetCellIds())
	cs.cellIdToNodesPointerMap = make(map[int]int64, cellCount)
	cs.cellIdToContourPointerMap = make(map[int]int64, cellCount)
	cs.cellIdToSuperCellMap = make(map[int]int, cellCount)
	cs.superCellIdToCellsMap = make(map[int][]int)
}

// CalcCellNodesMap groups the nodes by cell and writes the node lists and their pointer map.
func (cs *CellStorage) CalcCellNodesMap() {
	cellIdToNodes := make(map[int][]int, len(cs.isoNodes.GetCellIds()))
	for node := 0; node < cs.nodeCount; node++ {
		cellId := cs.isoNodes.GetCellId(node)
		cellIdToNodes[cellId] = append(cellIdToNodes[cellId], node)
	}
	cellIds := util.SortedKeys(cellIdToNodes)
	cellCount := len(cellIds)
	cs.cells.SetHeader(0, int32(cellCount))
	cs.setOffsets(cellCount)

	nodePointer := cs.contourIndexOffset
	for _, cellId := range cellIds {
		nodes := cellIdToNodes[cellId]
		cs.cells.EnsureCapacity(nodePointer + int64(len(nodes)+1)*BYTE_COUNT)
		cs.cellIdToNodesPointerMap[cellId] = nodePointer
		for _, node := range nodes {
			cs.cells.SetInt(nodePointer, int32(node))
			nodePointer += BYTE_COUNT
		}
		cs.cells.SetInt(nodePointer, pkg.NODE_LIST_END)
		nodePointer += BYTE_COUNT
	}
	cs.cellContourPointer = nodePointer

	listPointer := int64(0)
	for _, cellId := range cellIds {
		cs.cells.SetInt(listPointer, int32(cellId))
		listPointer += BYTE_COUNT
		cs.cells.SetLong(listPointer, cs.cellIdToNodesPointerMap[cellId])
		listPointer += 2 * BYTE_COUNT
	}
}

// GetNodesOfCell returns nil for unknown cells.
func (cs *CellStorage) GetNodesOfCell(cellId int) []int {
	nodePointer, ok := cs.cellIdToNodesPointerMap[cellId]
	if !ok {
		return nil
	}
	nodes := make([]int, 0)
	for current := cs.cells.GetInt(nodePointer); current != pkg.NODE_LIST_END; current = cs.cells.GetInt(nodePointer) {
		nodes = append(nodes, int(current))
		nodePointer += BYTE_COUNT
	}
	return nodes
}

func (cs *CellStorage) GetCellIds() []int {
	return util.SortedKeys(cs.cellIdToNodesPointerMap)
}

func (cs *CellStorage) SetCellContourOrder(cellId int, latitudes, longitudes []float64) {
	util.AssertPanic(len(latitudes) == len(longitudes), "lat and lon must be same size")
	cs.cellIdToContourPointerMap[cellId] = cs.cellContourPointer
	cs.cells.EnsureCapacity(cs.cellContourPointer + 8*int64(len(latitudes)+1))
	for i := range latitudes {
		cs.cells.SetInt(cs.cellContourPointer, DegreeToInt(latitudes[i]))
		cs.cellContourPointer += BYTE_COUNT
		cs.cells.SetInt(cs.cellContourPointer, DegreeToInt(longitudes[i]))
		cs.cellContourPointer += BYTE_COUNT
	}
	cs.cells.SetInt(cs.cellContourPointer, pkg.CONTOUR_LIST_END)
	cs.cellContourPointer += BYTE_COUNT
	cs.cells.SetInt(cs.cellContourPointer, pkg.CONTOUR_LIST_END)
	cs.cellContourPointer += BYTE_COUNT
}

// GetCellContourOrder returns the stored ring of a cell or supercell, nil if there is none.
func (cs *CellStorage) GetCellContourOrder(cellId int) []geo.Coordinate {
	pointer, ok := cs.cellIdToContourPointerMap[cellId]
	if !ok {
		return nil
	}
	ring := make([]geo.Coordinate, 0)
	for {
		lat := cs.cells.GetInt(pointer)
		lon := cs.cells.GetInt(pointer + BYTE_COUNT)
		if lat == pkg.CONTOUR_LIST_END && lon == pkg.CONTOUR_LIST_END {
			return ring
		}
		ring = append(ring, geo.NewCoordinate(IntToDegree(lat), IntToDegree(lon)))
		pointer += 2 * BYTE_COUNT
	}
}

func (cs *CellStorage) HasContour(cellId int) bool {
	_, ok := cs.cellIdToContourPointerMap[cellId]
	return ok
}

// StoreContourPointerMap writes the contour pointer map. There is room for two contours per cell.
func (cs *CellStorage) StoreContourPointerMap() error {
	contourIds := util.SortedKeys(cs.cellIdToContourPointerMap)
	if cs.nodeIndexOffset+int64(len(contourIds))*12 > cs.contourIndexOffset {
		return util.WrapErrorf(nil, util.ErrInternalServerError,
			"%d contours do not fit the pointer map of %d cells", len(contourIds), cs.cells.GetHeader(0))
	}
	cs.cells.SetHeader(4, int32(len(contourIds)))
	listPointer := cs.nodeIndexOffset
	for _, cellId := range contourIds {
		cs.cells.SetInt(listPointer, int32(cellId))
		listPointer += BYTE_COUNT
		cs.cells.SetLong(listPointer, cs.cellIdToContourPointerMap[cellId])
		listPointer += 2 * BYTE_COUNT
	}
	return nil
}

// StoreSuperCells appends the block [superId, cells..., -1]... -1 after the contours.
func (cs *CellStorage) StoreSuperCells(superCells map[int][]int) {
	cs.superCellIdToCellsMap = make(map[int][]int, len(superCells))
	cs.cells.SetHeader(8, int32(cs.cellContourPointer>>32))
	cs.cells.SetHeader(12, int32(cs.cellContourPointer))

	size := int64(1)
	for _, cells := range superCells {
		size += int64(len(cells)) + 2
	}
	cs.cells.EnsureCapacity(cs.cellContourPointer + size*BYTE_COUNT)

	for _, superCell := range util.SortedKeys(superCells) {
		cells := append([]int(nil), superCells[superCell]...)
		sort.Ints(cells)
		cs.superCellIdToCellsMap[superCell] = cells

		cs.cells.SetInt(cs.cellContourPointer, int32(superCell))
		cs.cellContourPointer += BYTE_COUNT
		for _, cellId := range cells {
			cs.cells.SetInt(cs.cellContourPointer, int32(cellId))
			cs.cellIdToSuperCellMap[cellId] = superCell
			cs.cellContourPointer += BYTE_COUNT
		}
		cs.cells.SetInt(cs.cellContourPointer, pkg.NODE_LIST_END)
		cs.cellContourPointer += BYTE_COUNT
	}
	cs.cells.SetInt(cs.cellContourPointer, pkg.NODE_LIST_END)
	cs.cellContourPointer += BYTE_COUNT
}

func (cs *CellStorage) GetCellsOfSuperCell(superCell int) map[int]struct{} {
	cells, ok := cs.superCellIdToCellsMap[superCell]
	if !ok {
		return nil
	}
	set := make(map[int]struct{}, len(cells))
	for _, c := range cells {
		set[c] = struct{}{}
	}
	return set
}

// GetCellsOfSuperCellAsList returns the children in ascending order.
func (cs *CellStorage) GetCellsOfSuperCellAsList(superCell int) []int {
	return cs.superCellIdToCellsMap[superCell]
}

// GetSuperCellOfCell returns -1 if cell is not part of a supercell.
func (cs *CellStorage) GetSuperCellOfCell(cell int) int {
	superCell, ok := cs.cellIdToSuperCellMap[cell]
	if !ok {
		return -1
	}
	return superCell
}

func (cs *CellStorage) GetSuperCellIds() []int {
	return util.SortedKeys(cs.superCellIdToCellsMap)
}

func (cs *CellStorage) fillCellIdToNodesPointerMap(cellCount int) {
	for i := 0; i < cellCount; i++ {
		cellId := int(cs.cells.GetInt(int64(i) * 12))
		cs.cellIdToNodesPointerMap[cellId] = cs.cells.GetLong(int64(i)*12 + BYTE_COUNT)
	}
}

func (cs *CellStorage) fillCellIdToContourPointerMap() error {
	contourCount := int64(cs.cells.GetHeader(4))
	if cs.nodeIndexOffset+contourCount*12 > cs.contourIndexOffset {
		return util.WrapErrorf(util.ErrCorruptedData, util.ErrCorruptedData,
			"contour count %d exceeds the pointer map", contourCount)
	}
	listPointer := cs.nodeIndexOffset
	for i := int64(0); i < contourCount; i++ {
		cellId := int(cs.cells.GetInt(listPointer))
		listPointer += BYTE_COUNT
		cs.cellIdToContourPointerMap[cellId] = cs.cells.GetLong(listPointer)
		listPointer += 2 * BYTE_COUNT
	}
	return nil
}

func (cs *CellStorage) fillSuperCellMap() error {
	bytePos := int64(cs.cells.GetHeader(8))<<32 | int64(uint32(cs.cells.GetHeader(12)))
	if bytePos == 0 {
		return nil
	}
	capacity := cs.cells.GetCapacity()
	if bytePos >= capacity {
		return util.WrapErrorf(util.ErrCorruptedData, util.ErrCorruptedData, "supercell block out of range")
	}
	for cs.cells.GetInt(bytePos) != pkg.NODE_LIST_END {
		superCell := int(cs.cells.GetInt(bytePos))
		bytePos += BYTE_COUNT
		cells := make([]int, 0)
		for cs.cells.GetInt(bytePos) != pkg.NODE_LIST_END {
			cellId := int(cs.cells.GetInt(bytePos))
			cells = append(cells, cellId)
			cs.cellIdToSuperCellMap[cellId] = superCell
			bytePos += BYTE_COUNT
			if bytePos+BYTE_COUNT > capacity {
				return util.WrapErrorf(util.ErrCorruptedData, util.ErrCorruptedData, "unterminated supercell block")
			}
		}
		cs.superCellIdToCellsMap[superCell] = cells
		bytePos += BYTE_COUNT
		if bytePos+BYTE_COUNT > capacity {
			return util.WrapErrorf(util.ErrCorruptedData, util.ErrCorruptedData, "unterminated supercell block")
		}
	}
	return nil
}

func (cs *CellStorage) IsContourPrepared() bool {
	return cs.cells.GetHeader(16) > 0
}

func (cs *CellStorage) SetContourPrepared(prepared bool) {
	v := int32(0)
	if prepared {
		v = 1
	}
	cs.cells.SetHeader(16, v)
}

// IsCorrupted reports whether a cell lacks a contour or a contour belongs to no known cell.
func (cs *CellStorage) IsCorrupted() bool {
	for cellId := range cs.cellIdToNodesPointerMap {
		if _, ok := cs.cellIdToContourPointerMap[cellId]; !ok {
			return true
		}
	}
	for cellId := range cs.cellIdToContourPointerMap {
		_, isCell := cs.cellIdToNodesPointerMap[cellId]
		_, isSuperCell := cs.superCellIdToCellsMap[cellId]
		if !isCell && !isSuperCell {
			return true
		}
	}
	return false
}

func (cs *CellStorage) GetCapacity() int64 {
	return cs.cells.GetCapacity()
}

func (cs *CellStorage) Flush() error {
	return cs.cells.Flush()
}

func (cs *CellStorage) Close() error {
	return cs.cells.Close()
}
