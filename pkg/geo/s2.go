package geo

import (
	"github.com/golang/geo/s2"
)

func toS2Point(c Coordinate) s2.Point {
	return s2.PointFromLatLng(s2.LatLngFromDegrees(c.Lat, c.Lon))
}

func fromS2Point(p s2.Point) Coordinate {
	ll := s2.LatLngFromPoint(p)
	return NewCoordinate(ll.Lat.Degrees(), ll.Lng.Degrees())
}

// Interpolate returns the point at fraction t of the great circle segment a-b.
func Interpolate(t float64, a, b Coordinate) Coordinate {
	return fromS2Point(s2.Interpolate(t, toS2Point(a), toS2Point(b)))
}

// SplitSegment returns the n-1 points dividing a-b into n pieces of equal length.
func SplitSegment(a, b Coordinate, n int) []Coordinate {
	if n < 2 {
		return nil
	}
	points := make([]Coordinate, 0, n-1)
	for j := 1; j < n; j++ {
		points = append(points, Interpolate(float64(j)/float64(n), a, b))
	}
	return points
}
