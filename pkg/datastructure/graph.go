package datastructure

import (
	"github.com/lintang-b-s/fastisochrone/pkg/geo"
)

type Index uint32

type Vertex struct {
	lat float64
	lon float64
	id  Index
}

func NewVertex(lat, lon float64, id Index) *Vertex {
	return &Vertex{
		lat: lat,
		lon: lon,
		id:  id,
	}
}

func (v *Vertex) GetID() Index {
	return v.id
}

func (v *Vertex) GetLat() float64 {
	return v.lat
}

func (v *Vertex) GetLon() float64 {
	return v.lon
}

// Edge is an undirected road segment between two tower nodes. forward/backward are the
// access flags for base->adj and adj->base.
type Edge struct {
	edgeId   Index
	base     Index
	adj      Index
	dist     float64 // meter
	speed    float64 // km/h
	forward  bool
	backward bool
	geometry []geo.Coordinate // pillar nodes between base and adj, in base->adj order
}

func NewEdge(edgeId, base, adj Index, dist, speed float64, forward, backward bool,
	geometry []geo.Coordinate) *Edge {
	return &Edge{
		edgeId:   edgeId,
		base:     base,
		adj:      adj,
		dist:     dist,
		speed:    speed,
		forward:  forward,
		backward: backward,
		geometry: geometry,
	}
}

func (e *Edge) GetEdgeId() Index {
	return e.edgeId
}

func (e *Edge) GetBase() Index {
	return e.base
}

func (e *Edge) GetAdj() Index {
	return e.adj
}

func (e *Edge) GetLength() float64 {
	return e.dist
}

func (e *Edge) GetSpeed() float64 {
	return e.speed
}

func (e *Edge) IsForward() bool {
	return e.forward
}

func (e *Edge) IsBackward() bool {
	return e.backward
}

func (e *Edge) GetGeometry() []geo.Coordinate {
	return e.geometry
}

// EdgeState is an edge seen from one of its endpoints.
type EdgeState struct {
	edge    *Edge
	reverse bool
}

func NewEdgeState(edge *Edge, reverse bool) EdgeState {
	return EdgeState{edge: edge, reverse: reverse}
}

func (es EdgeState) GetEdge() *Edge {
	return es.edge
}

func (es EdgeState) GetEdgeId() Index {
	return es.edge.edgeId
}

func (es EdgeState) GetBaseNode() Index {
	if es.reverse {
		return es.edge.adj
	}
	return es.edge.base
}

func (es EdgeState) GetAdjNode() Index {
	if es.reverse {
		return es.edge.base
	}
	return es.edge.adj
}

func (es EdgeState) GetLength() float64 {
	return es.edge.dist
}

func (es EdgeState) GetSpeed() float64 {
	return es.edge.speed
}

func (es EdgeState) IsReverse() bool {
	return es.reverse
}

// CanTraverse reports whether the edge may be driven from base node to adj node.
func (es EdgeState) CanTraverse() bool {
	if es.reverse {
		return es.edge.backward
	}
	return es.edge.forward
}

// CanTraverseBackward reports whether the edge may be driven from adj node to base node.
func (es EdgeState) CanTraverseBackward() bool {
	if es.reverse {
		return es.edge.forward
	}
	return es.edge.backward
}

// FetchWayGeometry returns base node, pillar nodes and adj node in traversal order.
func (es EdgeState) FetchWayGeometry(g *Graph) []geo.Coordinate {
	points := make([]geo.Coordinate, 0, len(es.edge.geometry)+2)
	baseLat, baseLon := g.GetVertexCoordinates(es.edge.base)
	adjLat, adjLon := g.GetVertexCoordinates(es.edge.adj)
	points = append(points, geo.NewCoordinate(baseLat, baseLon))
	points = append(points, es.edge.geometry...)
	points = append(points, geo.NewCoordinate(adjLat, adjLon))
	if es.reverse {
		for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
			points[i], points[j] = points[j], points[i]
		}
	}
	return points
}

// Graph stores every edge once. firstEdge/adjacency is a csr list of the edges incident
// to each vertex, so an undirected edge shows up in the lists of both endpoints.
type Graph struct {
	vertices    []*Vertex
	edges       []*Edge
	firstEdge   []Index
	adjacency   []Index
	boundingBox *BoundingBox
}

func NewGraph(vertices []*Vertex, edges []*Edge) *Graph {
	n := len(vertices)
	degree := make([]Index, n+1)
	for _, e := range edges {
		degree[e.base]++
		if e.adj != e.base {
			degree[e.adj]++
		}
	}

	firstEdge := make([]Index, n+1)
	for v := 0; v < n; v++ {
		firstEdge[v+1] = firstEdge[v] + degree[v]
	}

	adjacency := make([]Index, firstEdge[n])
	fill := make([]Index, n)
	copy(fill, firstEdge[:n])
	for i, e := range edges {
		e.edgeId = Index(i)
		adjacency[fill[e.base]] = Index(i)
		fill[e.base]++
		if e.adj != e.base {
			adjacency[fill[e.adj]] = Index(i)
			fill[e.adj]++
		}
	}

	bb := NewEmptyBoundingBox()
	for _, v := range vertices {
		bb.Extend(v.lat, v.lon)
	}

	return &Graph{
		vertices:    vertices,
		edges:       edges,
		firstEdge:   firstEdge,
		adjacency:   adjacency,
		boundingBox: bb,
	}
}

func (g *Graph) NumberOfVertices() int {
	return len(g.vertices)
}

func (g *Graph) NumberOfEdges() int {
	return len(g.edges)
}

func (g *Graph) GetVertex(u Index) *Vertex {
	return g.vertices[u]
}

func (g *Graph) GetVertices() []*Vertex {
	return g.vertices
}

func (g *Graph) GetEdge(e Index) *Edge {
	return g.edges[e]
}

func (g *Graph) GetEdges() []*Edge {
	return g.edges
}

func (g *Graph) GetVertexCoordinates(u Index) (float64, float64) {
	v := g.vertices[u]
	return v.lat, v.lon
}

func (g *Graph) GetDegree(u Index) int {
	return int(g.firstEdge[u+1] - g.firstEdge[u])
}

func (g *Graph) GetBoundingBox() *BoundingBox {
	return g.boundingBox
}

// ForEdgesOf calls handle for every edge incident to u, seen from u.
func (g *Graph) ForEdgesOf(u Index, handle func(e EdgeState)) {
	for i := g.firstEdge[u]; i < g.firstEdge[u+1]; i++ {
		edge := g.edges[g.adjacency[i]]
		handle(NewEdgeState(edge, edge.base != u))
	}
}

// ForAcceptedEdgesOf is ForEdgesOf restricted to edges accepted by filter.
func (g *Graph) ForAcceptedEdgesOf(u Index, filter EdgeFilter, handle func(e EdgeState)) {
	g.ForEdgesOf(u, func(e EdgeState) {
		if filter != nil && !filter.Accept(e) {
			return
		}
		handle(e)
	})
}
