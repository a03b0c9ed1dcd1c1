package storage

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/lintang-b-s/fastisochrone/pkg"
	"github.com/lintang-b-s/fastisochrone/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cells of the 10 node toy graph used by the isochrone tests.
var (
	toyCellIds    = []int{2, 2, 2, 2, 3, 3, 3, 3, 2, 3}
	toyBorderness = []bool{false, false, false, true, true, false, false, true, true, false}
)

func TestByteConversion(t *testing.T) {
	assert.Equal(t, int64(-1234567890123), ByteArrayToLong(LongToByteArray(-1234567890123)))
	assert.Equal(t, 3.25, ByteArrayToDouble(DoubleToByteArray(3.25)))
	assert.True(t, math.IsInf(ByteArrayToDouble(DoubleToByteArray(math.Inf(1))), 1))

	testCases := []struct {
		name string
		deg  float64
		want int32
	}{
		{name: "positive", deg: 110.3691, want: 1103691000},
		{name: "negative", deg: -7.7956, want: -77956000},
		{name: "max sentinel", deg: math.MaxFloat64, want: math.MaxInt32},
	}
	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			got := DegreeToInt(tt.deg)
			assert.Equal(t, tt.want, got)
			assert.InDelta(t, tt.deg, IntToDegree(got), 1e-7)
		})
	}
}

func TestDataAccessFlushAndLoad(t *testing.T) {
	testCases := []struct {
		name   string
		newDir func(t *testing.T) (*Directory, *Directory)
	}{
		{
			name: "disk",
			newDir: func(t *testing.T) (*Directory, *Directory) {
				dir := t.TempDir()
				return NewDirectory(dir), NewDirectory(dir)
			},
		},
		{
			name: "ram",
			newDir: func(t *testing.T) (*Directory, *Directory) {
				dir := NewRAMDirectory()
				return dir, dir
			},
		},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			writeDir, readDir := tt.newDir(t)

			da := writeDir.Find("test")
			da.Create(16)
			da.EnsureCapacity(5000)
			da.SetInt(4000, 42)
			da.SetLong(8, math.MaxInt64)
			da.SetHeader(28, -5)
			require.NoError(t, da.Flush())

			loaded := readDir.Find("test")
			ok, err := loaded.LoadExisting()
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, int32(42), loaded.GetInt(4000))
			assert.Equal(t, int64(math.MaxInt64), loaded.GetLong(8))
			assert.Equal(t, int32(-5), loaded.GetHeader(28))
		})
	}
}

func TestDataAccessMissingAndCorrupted(t *testing.T) {
	dir := t.TempDir()

	ok, err := NewDirectory(dir).Find("missing").LoadExisting()
	require.NoError(t, err)
	assert.False(t, ok)

	da := NewDirectory(dir).Find("corrupt")
	da.Create(64)
	da.SetInt(0, 7)
	require.NoError(t, da.Flush())

	path := filepath.Join(dir, "corrupt"+pkg.STORAGE_FILE_EXTENSION)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	// first payload byte, after magic, version, header, length and checksum.
	raw[4+4+HEADER_SLOTS*4+8+4] ^= 0xff
	require.NoError(t, os.WriteFile(path, raw, 0644))

	ok, err = NewDirectory(dir).Find("corrupt").LoadExisting()
	assert.False(t, ok)
	require.Error(t, err)
	assert.ErrorIs(t, err, util.ErrCorruptedData)

	require.NoError(t, os.WriteFile(path, []byte("nope"), 0644))
	_, err = NewDirectory(dir).Find("corrupt").LoadExisting()
	assert.ErrorIs(t, err, util.ErrCorruptedData)
}

func TestIsochroneNodeStorage(t *testing.T) {
	dir := t.TempDir()
	s := NewIsochroneNodeStorage(len(toyCellIds), NewDirectory(dir))
	s.SetCellIds(toyCellIds)
	s.SetBorderness(toyBorderness)
	require.NoError(t, s.Flush())

	loaded := NewIsochroneNodeStorage(0, NewDirectory(dir))
	ok, err := loaded.LoadExisting()
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, len(toyCellIds), loaded.NumberOfNodes())
	assert.Equal(t, []int{2, 3}, loaded.GetCellIds())
	for node := range toyCellIds {
		assert.Equal(t, toyCellIds[node], loaded.GetCellId(node), "node %d", node)
		assert.Equal(t, toyBorderness[node], loaded.GetBorderness(node), "node %d", node)
	}

	assert.Panics(t, func() { s.SetCellIds([]int{1}) })
}

func newToyCellStorage(dir *Directory) *CellStorage {
	isoNodes := NewIsochroneNodeStorage(len(toyCellIds), dir)
	isoNodes.SetCellIds(toyCellIds)
	isoNodes.SetBorderness(toyBorderness)
	cs := NewCellStorage(len(toyCellIds), dir, isoNodes)
	cs.Init()
	cs.CalcCellNodesMap()
	return cs
}

func TestCellStorage(t *testing.T) {
	dir := t.TempDir()
	cs := newToyCellStorage(NewDirectory(dir))

	assert.Equal(t, []int{0, 1, 2, 3, 8}, cs.GetNodesOfCell(2))
	assert.Equal(t, []int{4, 5, 6, 7, 9}, cs.GetNodesOfCell(3))
	assert.Nil(t, cs.GetNodesOfCell(5))

	cs.SetCellContourOrder(2, []float64{1, 3, 4}, []float64{1, 1, 2})
	assert.True(t, cs.IsCorrupted(), "cell 3 has no contour yet")
	cs.SetCellContourOrder(3, []float64{4, 3, 3.5}, []float64{4, 5, 6})
	cs.SetCellContourOrder(1, []float64{1, 4, 4, 1}, []float64{1, 1, 6, 6})
	require.NoError(t, cs.StoreContourPointerMap())
	cs.StoreSuperCells(map[int][]int{1: {3, 2}})
	cs.SetContourPrepared(true)
	require.NoError(t, cs.Flush())

	isoNodes := NewIsochroneNodeStorage(0, NewDirectory(dir))
	_, err := isoNodes.LoadExisting()
	require.NoError(t, err)
	loaded := NewCellStorage(isoNodes.NumberOfNodes(), NewDirectory(dir), isoNodes)
	ok, err := loaded.LoadExisting()
	require.NoError(t, err)
	require.True(t, ok)

	assert.True(t, loaded.IsContourPrepared())
	assert.False(t, loaded.IsCorrupted())
	assert.Equal(t, []int{2, 3}, loaded.GetCellIds())
	assert.Equal(t, []int{4, 5, 6, 7, 9}, loaded.GetNodesOfCell(3))

	ring := loaded.GetCellContourOrder(3)
	require.Len(t, ring, 3)
	assert.InDelta(t, 4.0, ring[0].Lat, 1e-7)
	assert.InDelta(t, 6.0, ring[2].Lon, 1e-7)
	assert.Len(t, loaded.GetCellContourOrder(1), 4)
	assert.Nil(t, loaded.GetCellContourOrder(9))

	assert.Equal(t, 1, loaded.GetSuperCellOfCell(2))
	assert.Equal(t, 1, loaded.GetSuperCellOfCell(3))
	assert.Equal(t, -1, loaded.GetSuperCellOfCell(7))
	assert.Equal(t, []int{2, 3}, loaded.GetCellsOfSuperCellAsList(1))
	assert.Equal(t, map[int]struct{}{2: {}, 3: {}}, loaded.GetCellsOfSuperCell(1))
	assert.Equal(t, []int{1}, loaded.GetSuperCellIds())
}

func TestCellStorageContourPointerMapOverflow(t *testing.T) {
	dir := NewRAMDirectory()
	isoNodes := NewIsochroneNodeStorage(3, dir)
	isoNodes.SetCellIds([]int{2, 2, 2})
	cs := NewCellStorage(3, dir, isoNodes)
	cs.Init()
	cs.CalcCellNodesMap()

	for _, id := range []int{2, 4, 8} {
		cs.SetCellContourOrder(id, []float64{0}, []float64{0})
	}
	err := cs.StoreContourPointerMap()
	require.Error(t, err)
	assert.Equal(t, util.ErrInternalServerError, util.ErrorCode(err))
}

func TestEccentricityStorage(t *testing.T) {
	dir := t.TempDir()
	s := NewEccentricityStorage(NewDirectory(dir), "fastest")
	s.Init([]int{3, 4, 7, 8})
	s.SetEccentricity(3, 3.2)
	s.SetFullyReachable(3, true)
	s.SetEccentricity(4, 2)
	s.SetFullyReachable(4, false)
	s.StoreBorderNodeToPointerMap()
	require.NoError(t, s.Flush())

	_, err := os.Stat(filepath.Join(dir, pkg.ECCENTRICITIES_STORAGE+"fastest"+pkg.STORAGE_FILE_EXTENSION))
	require.NoError(t, err)

	loaded := NewEccentricityStorage(NewDirectory(dir), "fastest")
	ok, err := loaded.LoadExisting()
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, 4, loaded.GetEccentricity(3))
	assert.True(t, loaded.GetFullyReachable(3))
	assert.Equal(t, 2, loaded.GetEccentricity(4))
	assert.False(t, loaded.GetFullyReachable(4))
	assert.Equal(t, 0, loaded.GetEccentricity(8))
	assert.True(t, loaded.HasBorderNode(7))
	assert.False(t, loaded.HasBorderNode(0))
	assert.Panics(t, func() { loaded.GetEccentricity(0) })

	other := NewEccentricityStorage(NewDirectory(dir), "shortest")
	ok, err = other.LoadExisting()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBorderNodeDistanceStorage(t *testing.T) {
	dir := NewRAMDirectory()
	s := NewBorderNodeDistanceStorage(dir, "fastest")
	s.Init(4)
	s.StoreBorderNodeDistanceSet(3, BorderNodeDistanceSet{AdjBorderNodeIds: []int{8}, Distances: []float64{4}})
	s.StoreBorderNodeDistanceSet(8, BorderNodeDistanceSet{AdjBorderNodeIds: []int{3}, Distances: []float64{4}})
	s.StoreBorderNodeDistanceSet(4, BorderNodeDistanceSet{
		AdjBorderNodeIds: []int{7},
		Distances:        []float64{math.Inf(1)},
	})
	s.StoreBorderNodeToPointerMap()
	require.NoError(t, s.Flush())

	loaded := NewBorderNodeDistanceStorage(dir, "fastest")
	ok, err := loaded.LoadExisting()
	require.NoError(t, err)
	require.True(t, ok)

	set := loaded.GetBorderNodeDistanceSet(3)
	assert.Equal(t, []int{8}, set.AdjBorderNodeIds)
	assert.Equal(t, []float64{4}, set.Distances)
	assert.True(t, math.IsInf(loaded.GetBorderNodeDistanceSet(4).Distances[0], 1))
	assert.False(t, loaded.HasBorderNode(7))
	assert.Panics(t, func() { loaded.GetBorderNodeDistanceSet(7) })
	assert.Panics(t, func() {
		s.StoreBorderNodeDistanceSet(7, BorderNodeDistanceSet{AdjBorderNodeIds: []int{1, 2}, Distances: []float64{1}})
	})
}
