package osmparser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lintang-b-s/fastisochrone/pkg"
	da "github.com/lintang-b-s/fastisochrone/pkg/datastructure"
	"github.com/lintang-b-s/fastisochrone/pkg/geo"
	"github.com/lintang-b-s/fastisochrone/pkg/util"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/paulmach/osm/osmxml"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type nodeType uint8

const (
	END_NODE nodeType = iota + 1
	BETWEEN_NODE
	JUNCTION_NODE
)

type nodeCoord struct {
	lat float64
	lon float64
}

type node struct {
	id    int64
	coord nodeCoord
}

// OsmParser turns the drivable ways of an OSM extract into a Graph. Ways are split at
// junctions into edges between tower nodes, the nodes in between become edge geometry.
// Barrier nodes split a way into two disconnected edges.
type OsmParser struct {
	wayNodeMap      map[int64]nodeType
	acceptedNodeMap map[int64]nodeCoord
	barrierNodes    map[int64]struct{}
	nodeIDMap       map[int64]da.Index
	edgeSet         map[[2]da.Index]struct{}
	maxNodeID       int64

	vertices []*da.Vertex
	edges    []*da.Edge
	logger   *zap.Logger
}

func NewOsmParser(logger *zap.Logger) *OsmParser {
	return &OsmParser{
		wayNodeMap:      make(map[int64]nodeType),
		acceptedNodeMap: make(map[int64]nodeCoord),
		barrierNodes:    make(map[int64]struct{}),
		nodeIDMap:       make(map[int64]da.Index),
		edgeSet:         make(map[[2]da.Index]struct{}),
		vertices:        make([]*da.Vertex, 0),
		edges:           make([]*da.Edge, 0),
		logger:          logger,
	}
}

// Parse reads an .osm.pbf file, or an .osm xml file.
func (p *OsmParser) Parse(ctx context.Context, mapFile string) (*da.Graph, error) {
	f, err := os.Open(mapFile)
	if err != nil {
		return nil, util.WrapErrorf(err, util.ErrNotFound, "open osm file %s", mapFile)
	}
	defer f.Close()

	xml := strings.HasSuffix(mapFile, ".osm") || filepath.Ext(mapFile) == ".xml"
	return p.ParseScanner(ctx, func() (osm.Scanner, error) {
		if _, err := f.Seek(0, 0); err != nil {
			return nil, err
		}
		if xml {
			return osmxml.New(ctx, f), nil
		}
		return osmpbf.New(ctx, f, 0), nil
	})
}

// ParseScanner runs two passes over the scanners returned by newScanner. The first marks
// the nodes of accepted ways, the second reads coordinates and builds the edges. Nodes must
// precede ways, as they do in osm extracts.
func (p *OsmParser) ParseScanner(ctx context.Context, newScanner func() (osm.Scanner, error)) (*da.Graph, error) {
	start := time.Now()
	scanner, err := newScanner()
	if err != nil {
		return nil, err
	}
	countWays := 0
	for scanner.Scan() {
		way, ok := scanner.Object().(*osm.Way)
		if !ok || len(way.Nodes) < 2 || !acceptOsmWay(way) {
			continue
		}
		countWays++
		for i, n := range way.Nodes {
			if _, ok := p.wayNodeMap[int64(n.ID)]; ok {
				p.wayNodeMap[int64(n.ID)] = JUNCTION_NODE
			} else if i == 0 || i == len(way.Nodes)-1 {
				p.wayNodeMap[int64(n.ID)] = END_NODE
			} else {
				p.wayNodeMap[int64(n.ID)] = BETWEEN_NODE
			}
		}
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, fmt.Errorf("scanning ways: %w", err)
	}
	scanner.Close()
	p.logger.Info("scanned openstreetmap ways", zap.Int("ways", countWays), zap.Int("wayNodes", len(p.wayNodeMap)))

	scanner, err = newScanner()
	if err != nil {
		return nil, err
	}
	defer scanner.Close()

	sometimes := rate.Sometimes{Interval: 5 * time.Second}
	processedWays := 0
	for scanner.Scan() {
		switch o := scanner.Object().(type) {
		case *osm.Node:
			p.maxNodeID = max(p.maxNodeID, int64(o.ID))
			if _, ok := p.wayNodeMap[int64(o.ID)]; ok {
				p.acceptedNodeMap[int64(o.ID)] = nodeCoord{lat: o.Lat, lon: o.Lon}
			}
			barrier := o.Tags.Find("barrier")
			if _, ok := acceptedBarrierType[barrier]; ok && !isAllowed(o.Tags.Find("access")) {
				p.barrierNodes[int64(o.ID)] = struct{}{}
			}
		case *osm.Way:
			if len(o.Nodes) < 2 || !acceptOsmWay(o) {
				continue
			}
			p.processWay(o)
			processedWays++
			sometimes.Do(func() {
				p.logger.Info("processing openstreetmap ways", zap.Int("ways", processedWays),
					zap.Int("edges", len(p.edges)))
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("processing ways: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	graph := da.NewGraph(p.vertices, p.edges)
	p.logger.Info("graph built", zap.Int("vertices", graph.NumberOfVertices()),
		zap.Int("edges", graph.NumberOfEdges()), zap.Duration("took", time.Since(start)))
	return graph, nil
}

func (p *OsmParser) processWay(way *osm.Way) {
	forward, backward := directionFlags(way.Tags)
	if !forward && !backward {
		return
	}
	speed := waySpeed(way.Tags)

	segment := make([]node, 0, len(way.Nodes))
	for _, wn := range way.Nodes {
		coord, ok := p.acceptedNodeMap[int64(wn.ID)]
		if !ok {
			// outside the extract
			p.processSegment(segment, speed, forward, backward)
			segment = segment[:0]
			continue
		}
		n := node{id: int64(wn.ID), coord: coord}
		segment = append(segment, n)
		if p.wayNodeMap[n.id] == JUNCTION_NODE {
			p.processSegment(segment, speed, forward, backward)
			segment = []node{n}
		}
	}
	p.processSegment(segment, speed, forward, backward)
}

func (p *OsmParser) processSegment(segment []node, speed float64, forward, backward bool) {
	if len(segment) < 2 {
		return
	}
	if segment[0].id == segment[len(segment)-1].id {
		if len(segment) == 2 {
			return
		}
		// loop, split so both edges have distinct endpoints
		p.splitAtBarriers(segment[:len(segment)-1], speed, forward, backward)
		p.splitAtBarriers(segment[len(segment)-2:], speed, forward, backward)
		return
	}
	p.splitAtBarriers(segment, speed, forward, backward)
}

func (p *OsmParser) splitAtBarriers(segment []node, speed float64, forward, backward bool) {
	waySegment := make([]node, 0, len(segment))
	for _, n := range segment {
		if _, ok := p.barrierNodes[n.id]; !ok {
			waySegment = append(waySegment, n)
			continue
		}
		if len(waySegment) != 0 {
			waySegment = append(waySegment, n)
			p.addEdge(waySegment, speed, forward, backward)
		}
		// same coordinate under a fresh id so the edges on both sides stay disconnected
		waySegment = []node{p.copyNode(n)}
	}
	if len(waySegment) > 1 {
		p.addEdge(waySegment, speed, forward, backward)
	}
}

func (p *OsmParser) copyNode(n node) node {
	p.maxNodeID++
	p.acceptedNodeMap[p.maxNodeID] = n.coord
	return node{id: p.maxNodeID, coord: n.coord}
}

func (p *OsmParser) vertexOf(n node) da.Index {
	if id, ok := p.nodeIDMap[n.id]; ok {
		return id
	}
	id := da.Index(len(p.vertices))
	p.nodeIDMap[n.id] = id
	p.vertices = append(p.vertices, da.NewVertex(n.coord.lat, n.coord.lon, id))
	return id
}

func (p *OsmParser) addEdge(segment []node, speed float64, forward, backward bool) {
	from, to := segment[0], segment[len(segment)-1]
	if from.id == to.id {
		return
	}
	base, adj := p.vertexOf(from), p.vertexOf(to)

	// parallel ways between the same tower nodes keep only the first edge
	key := [2]da.Index{min(base, adj), max(base, adj)}
	if _, ok := p.edgeSet[key]; ok {
		return
	}
	p.edgeSet[key] = struct{}{}

	distance := 0.0
	geometry := make([]geo.Coordinate, 0, len(segment)-2)
	for i := 1; i < len(segment); i++ {
		distance += geo.CalculateHaversineDistance(segment[i-1].coord.lat, segment[i-1].coord.lon,
			segment[i].coord.lat, segment[i].coord.lon)
		if i < len(segment)-1 {
			geometry = append(geometry, geo.NewCoordinate(segment[i].coord.lat, segment[i].coord.lon))
		}
	}

	p.edges = append(p.edges, da.NewEdge(da.Index(len(p.edges)), base, adj, distance*1000, speed,
		forward, backward, geometry))
}

func acceptOsmWay(way *osm.Way) bool {
	if way.Tags.Find("area") == "yes" {
		return false
	}
	if access := way.Tags.Find("access"); access == "no" || access == "private" {
		return false
	}
	if way.Tags.Find("motor_vehicle") == "no" {
		return false
	}
	highway := way.Tags.Find("highway")
	if highway != "" {
		_, ok := acceptedHighway[highway]
		return ok
	}
	return way.Tags.Find("junction") != ""
}

func isAllowed(access string) bool {
	return access == "yes" || access == "permissive" || access == "designated"
}

func isRestricted(value string) bool {
	return value == "no" || value == "restricted"
}

// directionFlags returns whether the way may be driven along and against its node order.
func directionFlags(tags osm.Tags) (forward, backward bool) {
	forward, backward = true, true

	highway := tags.Find("highway")
	junction := tags.Find("junction")
	if highway == "motorway" || highway == "motorway_link" || junction == "roundabout" || junction == "circular" {
		backward = false
	}

	switch tags.Find("oneway") {
	case "yes", "true", "1":
		forward, backward = true, false
	case "-1", "reverse":
		forward, backward = false, true
	case "no":
		forward, backward = true, true
	case "reversible":
		forward, backward = false, false
	}

	if isRestricted(tags.Find("vehicle:forward")) || isRestricted(tags.Find("motor_vehicle:forward")) {
		forward = false
	}
	if isRestricted(tags.Find("vehicle:backward")) || isRestricted(tags.Find("motor_vehicle:backward")) {
		backward = false
	}
	return forward, backward
}

// waySpeed is the maxspeed tag in km/h, or the default speed of the highway type.
func waySpeed(tags osm.Tags) float64 {
	if speed, ok := parseMaxSpeed(tags.Find("maxspeed")); ok {
		return speed
	}
	return pkg.DefaultSpeeds[highwayType(tags.Find("highway"))]
}

func parseMaxSpeed(value string) (float64, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	factor := 1.0
	switch {
	case strings.HasSuffix(value, "mph"):
		factor = 1.60934
		value = strings.TrimSuffix(value, "mph")
	case strings.HasSuffix(value, "knots"):
		factor = 1.852
		value = strings.TrimSuffix(value, "knots")
	case strings.HasSuffix(value, "km/h"):
		value = strings.TrimSuffix(value, "km/h")
	}
	speed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || speed <= 0 {
		return 0, false
	}
	return speed * factor, true
}

func highwayType(highway string) pkg.OsmHighwayType {
	switch strings.TrimSuffix(highway, "_link") {
	case "motorway", "motorroad":
		return pkg.MOTORWAY
	case "trunk":
		return pkg.TRUNK
	case "primary":
		return pkg.PRIMARY
	case "secondary":
		return pkg.SECONDARY
	case "tertiary":
		return pkg.TERTIARY
	case "residential":
		return pkg.RESIDENTIAL
	case "service":
		return pkg.SERVICE
	case "living_street":
		return pkg.LIVING_STREET
	case "unclassified":
		return pkg.UNCLASSIFIED
	default:
		return pkg.OTHER_HIGHWAY
	}
}

var (
	// https://wiki.openstreetmap.org/wiki/OSM_tags_for_routing/Telenav
	acceptedHighway = map[string]struct{}{
		"motorway":         {},
		"motorway_link":    {},
		"trunk":            {},
		"trunk_link":       {},
		"primary":          {},
		"primary_link":     {},
		"secondary":        {},
		"secondary_link":   {},
		"residential":      {},
		"residential_link": {},
		"service":          {},
		"tertiary":         {},
		"tertiary_link":    {},
		"road":             {},
		"unclassified":     {},
		"living_street":    {},
		"motorroad":        {},
	}

	// https://wiki.openstreetmap.org/wiki/Key:barrier
	// these barriers split a way unless they are tagged with a permissive access.
	acceptedBarrierType = map[string]struct{}{
		"bollard":        {},
		"swing_gate":     {},
		"jersey_barrier": {},
		"lift_gate":      {},
		"block":          {},
		"gate":           {},
	}
)
