package storage

import (
	"math"

	"github.com/lintang-b-s/fastisochrone/pkg"
	"github.com/lintang-b-s/fastisochrone/pkg/util"
)

const eccentricityRecordSize = 2 * BYTE_COUNT

// EccentricityStorage keeps per border node the eccentricity inside its cell and whether
// the whole cell is reachable from it. One storage per weighting.
//
//	header(0) = borderNodeCount
//	[0, borderNodeCount*12)   (node:4B, recordPointer:8B)
//	[borderNodeCount*12, ...) (fullyReachable:4B, eccentricity:4B) per border node
type EccentricityStorage struct {
	eccentricities        *DataAccess
	borderNodeCount       int
	borderNodeToPointer   map[int]int64
	borderNodePointerBase int64
}

func NewEccentricityStorage(dir *Directory, weightingName string) *EccentricityStorage {
	return &EccentricityStorage{
		eccentricities:      dir.Find(pkg.ECCENTRICITIES_STORAGE + weightingName),
		borderNodeToPointer: make(map[int]int64),
	}
}

func (s *EccentricityStorage) LoadExisting() (bool, error) {
	ok, err := s.eccentricities.LoadExisting()
	if err != nil || !ok {
		return ok, err
	}
	s.borderNodeCount = int(s.eccentricities.GetHeader(0))
	s.borderNodePointerBase = int64(s.borderNodeCount) * 12
	if s.eccentricities.GetCapacity() < s.borderNodePointerBase+int64(s.borderNodeCount)*eccentricityRecordSize {
		return false, util.WrapErrorf(util.ErrCorruptedData, util.ErrCorruptedData,
			"eccentricity storage too small for %d border nodes", s.borderNodeCount)
	}
	s.borderNodeToPointer = make(map[int]int64, s.borderNodeCount)
	for i := 0; i < s.borderNodeCount; i++ {
		node := int(s.eccentricities.GetInt(int64(i) * 12))
		s.borderNodeToPointer[node] = s.eccentricities.GetLong(int64(i)*12 + BYTE_COUNT)
	}
	return true, nil
}

// Init preallocates one record per border node so workers can write without locking.
func (s *EccentricityStorage) Init(borderNodes []int) {
	s.borderNodeCount = len(borderNodes)
	s.borderNodePointerBase = int64(s.borderNodeCount) * 12
	s.eccentricities.Create(s.borderNodePointerBase + int64(s.borderNodeCount)*eccentricityRecordSize)
	s.eccentricities.SetHeader(0, int32(s.borderNodeCount))
	s.borderNodeToPointer = make(map[int]int64, s.borderNodeCount)
	pointer := s.borderNodePointerBase
	for _, node := range borderNodes {
		s.borderNodeToPointer[node] = pointer
		pointer += eccentricityRecordSize
	}
}

func (s *EccentricityStorage) pointerOf(node int) int64 {
	pointer, ok := s.borderNodeToPointer[node]
	util.AssertPanic(ok, "node is not a border node")
	return pointer
}

func (s *EccentricityStorage) SetEccentricity(node int, eccentricity float64) {
	s.eccentricities.SetInt(s.pointerOf(node)+BYTE_COUNT, int32(math.Ceil(eccentricity)))
}

func (s *EccentricityStorage) GetEccentricity(node int) int {
	return int(s.eccentricities.GetInt(s.pointerOf(node) + BYTE_COUNT))
}

func (s *EccentricityStorage) SetFullyReachable(node int, fullyReachable bool) {
	v := int32(0)
	if fullyReachable {
		v = 1
	}
	s.eccentricities.SetInt(s.pointerOf(node), v)
}

func (s *EccentricityStorage) GetFullyReachable(node int) bool {
	return s.eccentricities.GetInt(s.pointerOf(node)) == 1
}

func (s *EccentricityStorage) HasBorderNode(node int) bool {
	_, ok := s.borderNodeToPointer[node]
	return ok
}

func (s *EccentricityStorage) StoreBorderNodeToPointerMap() {
	listPointer := int64(0)
	for _, node := range util.SortedKeys(s.borderNodeToPointer) {
		s.eccentricities.SetInt(listPointer, int32(node))
		listPointer += BYTE_COUNT
		s.eccentricities.SetLong(listPointer, s.borderNodeToPointer[node])
		listPointer += 2 * BYTE_COUNT
	}
}

func (s *EccentricityStorage) Flush() error {
	return s.eccentricities.Flush()
}

func (s *EccentricityStorage) Close() error {
	return s.eccentricities.Close()
}
