package osmparser

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lintang-b-s/fastisochrone/pkg"
	da "github.com/lintang-b-s/fastisochrone/pkg/datastructure"
	"github.com/lintang-b-s/fastisochrone/pkg/geo"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmxml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testOsm = `<?xml version="1.0" encoding="UTF-8"?>
<osm version="0.6" generator="test">
  <node id="1" lat="-7.7000" lon="110.3000"/>
  <node id="2" lat="-7.7010" lon="110.3005"/>
  <node id="3" lat="-7.7020" lon="110.3010"/>
  <node id="4" lat="-7.7030" lon="110.3020"/>
  <node id="5" lat="-7.7040" lon="110.3030"/>
  <node id="6" lat="-7.7050" lon="110.3040">
    <tag k="barrier" v="gate"/>
  </node>
  <node id="7" lat="-7.7060" lon="110.3050"/>
  <way id="100">
    <nd ref="1"/>
    <nd ref="2"/>
    <nd ref="3"/>
    <tag k="highway" v="residential"/>
  </way>
  <way id="101">
    <nd ref="3"/>
    <nd ref="4"/>
    <nd ref="5"/>
    <tag k="highway" v="primary"/>
    <tag k="oneway" v="yes"/>
    <tag k="maxspeed" v="40 mph"/>
  </way>
  <way id="102">
    <nd ref="5"/>
    <nd ref="6"/>
    <nd ref="7"/>
    <tag k="highway" v="service"/>
  </way>
  <way id="103">
    <nd ref="1"/>
    <nd ref="7"/>
    <tag k="highway" v="footway"/>
  </way>
</osm>`

func parseTestOsm(t *testing.T) *da.Graph {
	t.Helper()
	parser := NewOsmParser(zap.NewNop())
	graph, err := parser.ParseScanner(context.Background(), func() (osm.Scanner, error) {
		return osmxml.New(context.Background(), strings.NewReader(testOsm)), nil
	})
	require.NoError(t, err)
	return graph
}

func TestParseScanner(t *testing.T) {
	graph := parseTestOsm(t)

	// tower nodes 1, 3, 5, the gate twice and 7. the footway is dropped.
	require.Equal(t, 6, graph.NumberOfVertices())
	require.Equal(t, 4, graph.NumberOfEdges())

	t.Run("way split at junction keeps pillar geometry", func(t *testing.T) {
		e := graph.GetEdge(0)
		assert.Equal(t, da.Index(0), e.GetBase())
		assert.Equal(t, da.Index(1), e.GetAdj())
		require.Len(t, e.GetGeometry(), 1)
		assert.InDelta(t, -7.7010, e.GetGeometry()[0].Lat, 1e-9)
		assert.InDelta(t, 110.3005, e.GetGeometry()[0].Lon, 1e-9)

		want := (geo.CalculateHaversineDistance(-7.7000, 110.3000, -7.7010, 110.3005) +
			geo.CalculateHaversineDistance(-7.7010, 110.3005, -7.7020, 110.3010)) * 1000
		assert.InDelta(t, want, e.GetLength(), 1e-6)
		assert.Equal(t, pkg.DefaultSpeeds[pkg.RESIDENTIAL], e.GetSpeed())
		assert.True(t, e.IsForward())
		assert.True(t, e.IsBackward())
	})

	t.Run("oneway with maxspeed in mph", func(t *testing.T) {
		e := graph.GetEdge(1)
		assert.Equal(t, da.Index(1), e.GetBase())
		assert.Equal(t, da.Index(2), e.GetAdj())
		assert.True(t, e.IsForward())
		assert.False(t, e.IsBackward())
		assert.InDelta(t, 40*1.60934, e.GetSpeed(), 1e-9)
	})

	t.Run("barrier disconnects both sides", func(t *testing.T) {
		before, after := graph.GetEdge(2), graph.GetEdge(3)
		assert.Equal(t, da.Index(2), before.GetBase())
		assert.Equal(t, da.Index(3), before.GetAdj())
		assert.Equal(t, da.Index(4), after.GetBase())
		assert.Equal(t, da.Index(5), after.GetAdj())

		gateLat, gateLon := graph.GetVertexCoordinates(3)
		copyLat, copyLon := graph.GetVertexCoordinates(4)
		assert.Equal(t, gateLat, copyLat)
		assert.Equal(t, gateLon, copyLon)
		assert.Equal(t, 1, graph.GetDegree(3))
		assert.Equal(t, 1, graph.GetDegree(4))
	})
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.osm")
	require.NoError(t, os.WriteFile(path, []byte(testOsm), 0644))

	graph, err := NewOsmParser(zap.NewNop()).Parse(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 6, graph.NumberOfVertices())
	assert.Equal(t, 4, graph.NumberOfEdges())

	_, err = NewOsmParser(zap.NewNop()).Parse(context.Background(), filepath.Join(dir, "missing.osm.pbf"))
	assert.Error(t, err)
}

func TestDirectionFlags(t *testing.T) {
	testCases := []struct {
		name         string
		tags         osm.Tags
		wantForward  bool
		wantBackward bool
	}{
		{"two way", osm.Tags{{Key: "highway", Value: "residential"}}, true, true},
		{"oneway yes", osm.Tags{{Key: "highway", Value: "primary"}, {Key: "oneway", Value: "yes"}}, true, false},
		{"oneway reverse", osm.Tags{{Key: "highway", Value: "primary"}, {Key: "oneway", Value: "-1"}}, false, true},
		{"motorway implies oneway", osm.Tags{{Key: "highway", Value: "motorway"}}, true, false},
		{"motorway explicit two way", osm.Tags{{Key: "highway", Value: "motorway"}, {Key: "oneway", Value: "no"}}, true, true},
		{"roundabout", osm.Tags{{Key: "highway", Value: "tertiary"}, {Key: "junction", Value: "roundabout"}}, true, false},
		{"reversible", osm.Tags{{Key: "highway", Value: "trunk"}, {Key: "oneway", Value: "reversible"}}, false, false},
		{"vehicle backward no", osm.Tags{{Key: "highway", Value: "secondary"}, {Key: "vehicle:backward", Value: "no"}}, true, false},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			forward, backward := directionFlags(tt.tags)
			assert.Equal(t, tt.wantForward, forward)
			assert.Equal(t, tt.wantBackward, backward)
		})
	}
}

func TestAcceptOsmWay(t *testing.T) {
	testCases := []struct {
		name string
		tags osm.Tags
		want bool
	}{
		{"residential", osm.Tags{{Key: "highway", Value: "residential"}}, true},
		{"footway", osm.Tags{{Key: "highway", Value: "footway"}}, false},
		{"private", osm.Tags{{Key: "highway", Value: "service"}, {Key: "access", Value: "private"}}, false},
		{"area", osm.Tags{{Key: "highway", Value: "service"}, {Key: "area", Value: "yes"}}, false},
		{"no motor vehicles", osm.Tags{{Key: "highway", Value: "tertiary"}, {Key: "motor_vehicle", Value: "no"}}, false},
		{"untagged", osm.Tags{{Key: "name", Value: "Jalan Kaliurang"}}, false},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, acceptOsmWay(&osm.Way{Tags: tt.tags}))
		})
	}
}

func TestWaySpeed(t *testing.T) {
	testCases := []struct {
		name string
		tags osm.Tags
		want float64
	}{
		{"km/h default unit", osm.Tags{{Key: "maxspeed", Value: "50"}}, 50},
		{"km/h suffix", osm.Tags{{Key: "maxspeed", Value: "70 km/h"}}, 70},
		{"knots", osm.Tags{{Key: "maxspeed", Value: "10 knots"}}, 18.52},
		{"invalid falls back to highway", osm.Tags{{Key: "highway", Value: "trunk_link"}, {Key: "maxspeed", Value: "signals"}}, pkg.DefaultSpeeds[pkg.TRUNK]},
		{"unknown highway", osm.Tags{{Key: "highway", Value: "road"}}, pkg.DefaultSpeeds[pkg.OTHER_HIGHWAY]},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, waySpeed(tt.tags), 1e-9)
		})
	}
}
