package storage

import (
	"sync"

	"github.com/lintang-b-s/fastisochrone/pkg"
	"github.com/lintang-b-s/fastisochrone/pkg/util"
)

// BorderNodeDistanceSet holds the distances from one border node to the other border
// nodes of its cell. Unreachable border nodes carry +Inf.
type BorderNodeDistanceSet struct {
	AdjBorderNodeIds []int
	Distances        []float64
}

func (s BorderNodeDistanceSet) Size() int {
	return len(s.AdjBorderNodeIds)
}

// BorderNodeDistanceStorage is appended to by concurrent workers, one set per border node.
//
//	header(0) = borderNodeCount
//	[0, borderNodeCount*12)   (node:4B, setPointer:8B)
//	[borderNodeCount*12, ...) (n:4B, ids:n*4B, distances:n*8B) per border node
type BorderNodeDistanceStorage struct {
	distances           *DataAccess
	borderNodeCount     int
	borderNodeToPointer map[int]int64
	pointer             int64
	mu                  sync.Mutex
}

func NewBorderNodeDistanceStorage(dir *Directory, weightingName string) *BorderNodeDistanceStorage {
	return &BorderNodeDistanceStorage{
		distances:           dir.Find(pkg.BORDER_NODE_DISTANCES_STORAGE + weightingName),
		borderNodeToPointer: make(map[int]int64),
	}
}

func (s *BorderNodeDistanceStorage) LoadExisting() (bool, error) {
	ok, err := s.distances.LoadExisting()
	if err != nil || !ok {
		return ok, err
	}
	s.borderNodeCount = int(s.distances.GetHeader(0))
	capacity := s.distances.GetCapacity()
	if capacity < int64(s.borderNodeCount)*12 {
		return false, util.WrapErrorf(util.ErrCorruptedData, util.ErrCorruptedData,
			"border node distance storage too small for %d border nodes", s.borderNodeCount)
	}
	s.borderNodeToPointer = make(map[int]int64, s.borderNodeCount)
	for i := 0; i < s.borderNodeCount; i++ {
		node := int(s.distances.GetInt(int64(i) * 12))
		pointer := s.distances.GetLong(int64(i)*12 + BYTE_COUNT)
		if pointer < 0 || pointer+BYTE_COUNT > capacity {
			return false, util.WrapErrorf(util.ErrCorruptedData, util.ErrCorruptedData,
				"distance set of border node %d out of range", node)
		}
		s.borderNodeToPointer[node] = pointer
	}
	return true, nil
}

func (s *BorderNodeDistanceStorage) Init(borderNodeCount int) {
	s.borderNodeCount = borderNodeCount
	s.pointer = int64(borderNodeCount) * 12
	s.distances.Create(s.pointer)
	s.distances.SetHeader(0, int32(borderNodeCount))
	s.borderNodeToPointer = make(map[int]int64, borderNodeCount)
}

func (s *BorderNodeDistanceStorage) StoreBorderNodeDistanceSet(node int, set BorderNodeDistanceSet) {
	util.AssertPanic(len(set.AdjBorderNodeIds) == len(set.Distances), "ids and distances must be same size")
	s.mu.Lock()
	defer s.mu.Unlock()

	n := int64(set.Size())
	s.distances.EnsureCapacity(s.pointer + BYTE_COUNT + n*3*BYTE_COUNT)
	s.borderNodeToPointer[node] = s.pointer
	s.distances.SetInt(s.pointer, int32(n))
	s.pointer += BYTE_COUNT
	for _, id := range set.AdjBorderNodeIds {
		s.distances.SetInt(s.pointer, int32(id))
		s.pointer += BYTE_COUNT
	}
	for _, d := range set.Distances {
		s.distances.SetBytes(s.pointer, DoubleToByteArray(d))
		s.pointer += 2 * BYTE_COUNT
	}
}

func (s *BorderNodeDistanceStorage) GetBorderNodeDistanceSet(node int) BorderNodeDistanceSet {
	pointer, ok := s.borderNodeToPointer[node]
	util.AssertPanic(ok, "node is not a border node")
	n := int(s.distances.GetInt(pointer))
	pointer += BYTE_COUNT
	set := BorderNodeDistanceSet{
		AdjBorderNodeIds: make([]int, n),
		Distances:        make([]float64, n),
	}
	for i := 0; i < n; i++ {
		set.AdjBorderNodeIds[i] = int(s.distances.GetInt(pointer))
		pointer += BYTE_COUNT
	}
	for i := 0; i < n; i++ {
		set.Distances[i] = ByteArrayToDouble(s.distances.GetBytes(pointer, 8))
		pointer += 2 * BYTE_COUNT
	}
	return set
}

func (s *BorderNodeDistanceStorage) HasBorderNode(node int) bool {
	_, ok := s.borderNodeToPointer[node]
	return ok
}

func (s *BorderNodeDistanceStorage) StoreBorderNodeToPointerMap() {
	s.mu.Lock()
	defer s.mu.Unlock()
	util.AssertPanic(len(s.borderNodeToPointer) <= s.borderNodeCount, "more distance sets than border nodes")
	listPointer := int64(0)
	for _, node := range util.SortedKeys(s.borderNodeToPointer) {
		s.distances.SetInt(listPointer, int32(node))
		listPointer += BYTE_COUNT
		s.distances.SetLong(listPointer, s.borderNodeToPointer[node])
		listPointer += 2 * BYTE_COUNT
	}
	// sets are optional per border node, shrink the count to what was written.
	s.distances.SetHeader(0, int32(len(s.borderNodeToPointer)))
}

func (s *BorderNodeDistanceStorage) Flush() error {
	return s.distances.Flush()
}

func (s *BorderNodeDistanceStorage) Close() error {
	return s.distances.Close()
}
