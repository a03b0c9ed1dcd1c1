package storage

import (
	"sort"

	"github.com/lintang-b-s/fastisochrone/pkg"
	"github.com/lintang-b-s/fastisochrone/pkg/util"
)

const BYTE_COUNT = 4

// IsochroneNodeStorage stores the leaf cell id and the borderness bit of every node.
//
//	header(0) = nodeCount
//	[0, nodeCount*4)            cell id per node
//	[nodeCount*4, +ceil(n/8))   borderness bitset
type IsochroneNodeStorage struct {
	isoNodes         *DataAccess
	nodeCount        int
	cellIdsByteCount int64
	cellIds          []int
}

func NewIsochroneNodeStorage(nodeCount int, dir *Directory) *IsochroneNodeStorage {
	return &IsochroneNodeStorage{
		isoNodes:         dir.Find(pkg.ISOCHRONE_NODES_STORAGE),
		nodeCount:        nodeCount,
		cellIdsByteCount: int64(nodeCount) * BYTE_COUNT,
	}
}

func (s *IsochroneNodeStorage) LoadExisting() (bool, error) {
	ok, err := s.isoNodes.LoadExisting()
	if err != nil || !ok {
		return ok, err
	}
	s.nodeCount = int(s.isoNodes.GetHeader(0))
	s.cellIdsByteCount = int64(s.nodeCount) * BYTE_COUNT
	if s.isoNodes.GetCapacity() < s.cellIdsByteCount+int64((s.nodeCount+7)/8) {
		return false, util.WrapErrorf(util.ErrCorruptedData, util.ErrCorruptedData,
			"isochrone node storage too small for %d nodes", s.nodeCount)
	}
	s.collectCellIds()
	return true, nil
}

func (s *IsochroneNodeStorage) init() {
	if s.isoNodes.GetCapacity() == 0 {
		s.isoNodes.Create(s.cellIdsByteCount + int64((s.nodeCount+7)/8))
		s.isoNodes.SetHeader(0, int32(s.nodeCount))
	}
}

func (s *IsochroneNodeStorage) SetCellIds(cellIds []int) {
	util.AssertPanic(len(cellIds) == s.nodeCount, "one cell id per node required")
	s.init()
	for node, cellId := range cellIds {
		s.isoNodes.SetInt(int64(node)*BYTE_COUNT, int32(cellId))
	}
	s.collectCellIds()
}

func (s *IsochroneNodeStorage) SetBorderness(borderness []bool) {
	util.AssertPanic(len(borderness) == s.nodeCount, "one borderness flag per node required")
	s.init()
	bits := make([]byte, (s.nodeCount+7)/8)
	for node, border := range borderness {
		if border {
			bits[node/8] |= 1 << (node % 8)
		}
	}
	s.isoNodes.SetBytes(s.cellIdsByteCount, bits)
}

func (s *IsochroneNodeStorage) GetBorderness(node int) bool {
	b := s.isoNodes.GetByte(s.cellIdsByteCount + int64(node/8))
	return b&(1<<(node%8)) != 0
}

func (s *IsochroneNodeStorage) GetCellId(node int) int {
	return int(s.isoNodes.GetInt(int64(node) * BYTE_COUNT))
}

// GetCellIds returns the distinct cell ids in ascending order.
func (s *IsochroneNodeStorage) GetCellIds() []int {
	return s.cellIds
}

func (s *IsochroneNodeStorage) NumberOfNodes() int {
	return s.nodeCount
}

func (s *IsochroneNodeStorage) collectCellIds() {
	seen := make(map[int]struct{})
	for node := 0; node < s.nodeCount; node++ {
		seen[s.GetCellId(node)] = struct{}{}
	}
	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	s.cellIds = ids
}

func (s *IsochroneNodeStorage) Flush() error {
	return s.isoNodes.Flush()
}

func (s *IsochroneNodeStorage) Close() error {
	return s.isoNodes.Close()
}
