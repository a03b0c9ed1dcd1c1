package main

import (
	"fmt"
	"io"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/twpayne/go-polyline"
)

const (
	formatGeoJSON  = "geojson"
	formatPolyline = "polyline"
)

type queryInfo struct {
	lat, lon       float64
	limit          float64
	weighting      string
	reachableNodes int
	activeCells    int
	fullyReachable int
}

// writeGeoJSON writes a FeatureCollection with the isochrone multipolygon and the origin.
func writeGeoJSON(w io.Writer, polygons orb.MultiPolygon, info queryInfo) error {
	fc := geojson.NewFeatureCollection()

	area := geojson.NewFeature(polygons)
	area.Properties["limit"] = info.limit
	area.Properties["weighting"] = info.weighting
	area.Properties["reachableNodes"] = info.reachableNodes
	area.Properties["fullyReachableCells"] = info.fullyReachable
	area.Properties["activeCells"] = info.activeCells
	fc.Append(area)

	origin := geojson.NewFeature(orb.Point{info.lon, info.lat})
	origin.Properties["name"] = "origin"
	fc.Append(origin)

	data, err := fc.MarshalJSON()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

// writePolylines writes one encoded polyline per polygon ring, rings of one polygon separated
// by a space.
func writePolylines(w io.Writer, polygons orb.MultiPolygon) error {
	for _, polygon := range polygons {
		for i, ring := range polygon {
			if i > 0 {
				if _, err := fmt.Fprint(w, " "); err != nil {
					return err
				}
			}
			if _, err := w.Write(encodeRing(ring)); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}

// encodeRing encodes a ring as lat/lon pairs.
func encodeRing(ring orb.Ring) []byte {
	coords := make([][]float64, 0, len(ring))
	for _, p := range ring {
		coords = append(coords, []float64{p.Lat(), p.Lon()})
	}
	return polyline.EncodeCoords(coords)
}
