package storage

import (
	"encoding/binary"
	"math"

	"github.com/lintang-b-s/fastisochrone/pkg/util"
)

const DEGREE_FACTOR = 10_000_000

func LongToByteArray(v int64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, uint64(v))
	return b
}

func ByteArrayToLong(b []byte) int64 {
	util.AssertPanic(len(b) == 8, "long needs 8 bytes")
	return int64(binary.LittleEndian.Uint64(b))
}

func DoubleToByteArray(v float64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, math.Float64bits(v))
	return b
}

func ByteArrayToDouble(b []byte) float64 {
	util.AssertPanic(len(b) == 8, "double needs 8 bytes")
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}

// DegreeToInt stores a coordinate as fixed point with 7 decimals.
func DegreeToInt(deg float64) int32 {
	if deg >= math.MaxFloat64 {
		return math.MaxInt32
	}
	if deg <= -math.MaxFloat64 {
		return -math.MaxInt32
	}
	return int32(math.Round(deg * DEGREE_FACTOR))
}

func IntToDegree(v int32) float64 {
	if v == math.MaxInt32 {
		return math.MaxFloat64
	}
	if v == -math.MaxInt32 {
		return -math.MaxFloat64
	}
	return float64(v) / DEGREE_FACTOR
}
