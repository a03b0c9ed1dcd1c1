package datastructure

import (
	"math"

	"github.com/paulmach/orb"
)

// BoundingBox is an axis aligned lat/lon box. An empty box contains nothing until extended.
type BoundingBox struct {
	minLat, minLon float64
	maxLat, maxLon float64
}

func NewBoundingBox(minLat, minLon, maxLat, maxLon float64) *BoundingBox {
	return &BoundingBox{minLat: minLat,
		minLon: minLon,
		maxLat: maxLat,
		maxLon: maxLon}
}

func NewEmptyBoundingBox() *BoundingBox {
	return NewBoundingBox(math.MaxFloat64, math.MaxFloat64, -math.MaxFloat64, -math.MaxFloat64)
}

// Extend grows the box to include (lat, lon).
func (b *BoundingBox) Extend(lat, lon float64) *BoundingBox {
	b.minLat = math.Min(b.minLat, lat)
	b.minLon = math.Min(b.minLon, lon)
	b.maxLat = math.Max(b.maxLat, lat)
	b.maxLon = math.Max(b.maxLon, lon)
	return b
}

func (b *BoundingBox) IsEmpty() bool {
	return b.minLat > b.maxLat || b.minLon > b.maxLon
}

// Pad returns a copy grown by deg degrees on every side.
func (b *BoundingBox) Pad(deg float64) *BoundingBox {
	if b.IsEmpty() {
		return NewEmptyBoundingBox()
	}
	return NewBoundingBox(b.minLat-deg, b.minLon-deg, b.maxLat+deg, b.maxLon+deg)
}

func (b *BoundingBox) Contains(lat, lon float64) bool {
	return lat >= b.minLat && lat <= b.maxLat && lon >= b.minLon && lon <= b.maxLon
}

// ToBound converts to an orb bound in (lon, lat) order.
func (b *BoundingBox) ToBound() orb.Bound {
	return orb.Bound{Min: orb.Point{b.minLon, b.minLat}, Max: orb.Point{b.maxLon, b.maxLat}}
}

func (b *BoundingBox) GetMinLat() float64 {
	return b.minLat
}

func (b *BoundingBox) GetMinLon() float64 {
	return b.minLon
}

func (b *BoundingBox) GetMaxLat() float64 {
	return b.maxLat
}

func (b *BoundingBox) GetMaxLon() float64 {
	return b.maxLon
}
