package datastructure

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/lintang-b-s/fastisochrone/pkg/geo"
	"github.com/lintang-b-s/fastisochrone/pkg/util"
)

// WriteGraph writes g as bzip2 compressed text:
//
//	numVertices numEdges
//	lat lon                                              (per vertex)
//	base adj dist speed forward backward n lat lon ...   (per edge, n pillar points)
func (g *Graph) WriteGraph(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	bz, err := bzip2.NewWriter(f, &bzip2.WriterConfig{})
	if err != nil {
		return err
	}
	defer bz.Close()

	w := bufio.NewWriter(bz)

	fmt.Fprintf(w, "%d %d\n", len(g.vertices), len(g.edges))

	for vId := 0; vId < len(g.vertices); vId++ {
		v := g.vertices[vId]
		latF := strconv.FormatFloat(v.lat, 'f', -1, 64)
		lonF := strconv.FormatFloat(v.lon, 'f', -1, 64)
		fmt.Fprintf(w, "%s %s\n", latF, lonF)
	}

	for _, e := range g.edges {
		distF := strconv.FormatFloat(e.dist, 'f', -1, 64)
		speedF := strconv.FormatFloat(e.speed, 'f', -1, 64)

		fmt.Fprintf(w, "%d %d %s %s %t %t %d", e.base, e.adj, distF, speedF,
			e.forward, e.backward, len(e.geometry))
		for _, p := range e.geometry {
			fmt.Fprintf(w, " %s %s", strconv.FormatFloat(p.Lat, 'f', -1, 64),
				strconv.FormatFloat(p.Lon, 'f', -1, 64))
		}
		fmt.Fprintf(w, "\n")
	}

	return w.Flush()
}

func fields(s string) []string {
	return strings.Fields(s)
}

func ParseIndex(s string) (Index, error) {
	u, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if u > math.MaxUint32 {
		return 0, fmt.Errorf("value %s overflows uint32", s)
	}
	return Index(u), nil
}

func ReadGraph(filename string) (*Graph, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	bz, err := bzip2.NewReader(f, nil)
	if err != nil {
		return nil, err
	}

	br := bufio.NewReader(bz)

	line, err := util.ReadLine(br)
	if err != nil {
		return nil, err
	}

	tokens := fields(line)
	if len(tokens) != 2 {
		return nil, util.WrapErrorf(util.ErrCorruptedData, util.ErrCorruptedData,
			"graph header: expected 2 fields, got %d", len(tokens))
	}

	numVertices, err := ParseIndex(tokens[0])
	if err != nil {
		return nil, err
	}
	numEdges, err := ParseIndex(tokens[1])
	if err != nil {
		return nil, err
	}

	vertices := make([]*Vertex, numVertices)
	for i := 0; i < int(numVertices); i++ {
		vertexLine, err := util.ReadLine(br)
		if err != nil {
			return nil, err
		}
		vertices[i], err = parseVertex(vertexLine, Index(i))
		if err != nil {
			return nil, err
		}
	}

	edges := make([]*Edge, numEdges)
	for i := 0; i < int(numEdges); i++ {
		edgeLine, err := util.ReadLine(br)
		if err != nil {
			return nil, err
		}
		edges[i], err = parseEdge(edgeLine, Index(i), numVertices)
		if err != nil {
			return nil, err
		}
	}

	return NewGraph(vertices, edges), nil
}

func parseVertex(line string, id Index) (*Vertex, error) {
	tokens := fields(line)
	if len(tokens) != 2 {
		return nil, fmt.Errorf("vertex %d: expected 2 fields, got %d", id, len(tokens))
	}
	lat, err := strconv.ParseFloat(tokens[0], 64)
	if err != nil {
		return nil, err
	}
	lon, err := strconv.ParseFloat(tokens[1], 64)
	if err != nil {
		return nil, err
	}
	return NewVertex(lat, lon, id), nil
}

func parseEdge(line string, id Index, numVertices Index) (*Edge, error) {
	tokens := fields(line)
	if len(tokens) < 7 {
		return nil, fmt.Errorf("edge %d: expected at least 7 fields, got %d", id, len(tokens))
	}
	base, err := ParseIndex(tokens[0])
	if err != nil {
		return nil, err
	}
	adj, err := ParseIndex(tokens[1])
	if err != nil {
		return nil, err
	}
	if base >= numVertices || adj >= numVertices {
		return nil, fmt.Errorf("edge %d: endpoint out of range", id)
	}
	dist, err := strconv.ParseFloat(tokens[2], 64)
	if err != nil {
		return nil, err
	}
	speed, err := strconv.ParseFloat(tokens[3], 64)
	if err != nil {
		return nil, err
	}
	forward, err := strconv.ParseBool(tokens[4])
	if err != nil {
		return nil, err
	}
	backward, err := strconv.ParseBool(tokens[5])
	if err != nil {
		return nil, err
	}
	n, err := strconv.Atoi(tokens[6])
	if err != nil {
		return nil, err
	}
	if len(tokens) != 7+2*n {
		return nil, fmt.Errorf("edge %d: expected %d geometry values, got %d", id, 2*n, len(tokens)-7)
	}

	var geometry []geo.Coordinate
	if n > 0 {
		geometry = make([]geo.Coordinate, n)
		for i := 0; i < n; i++ {
			lat, err := strconv.ParseFloat(tokens[7+2*i], 64)
			if err != nil {
				return nil, err
			}
			lon, err := strconv.ParseFloat(tokens[8+2*i], 64)
			if err != nil {
				return nil, err
			}
			geometry[i] = geo.NewCoordinate(lat, lon)
		}
	}

	return NewEdge(id, base, adj, dist, speed, forward, backward, geometry), nil
}
