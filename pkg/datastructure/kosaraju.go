package datastructure

// StronglyConnectedComponents runs kosaraju's algorithm on the road network, following the
// access flags of the edges. It returns the component of every vertex and the number of
// components.
func (g *Graph) StronglyConnectedComponents() ([]int, int) {
	n := g.NumberOfVertices()

	order := make([]Index, 0, n)
	visited := make([]bool, n)
	for v := 0; v < n; v++ {
		if !visited[v] {
			g.dfs(Index(v), visited, false, func(u Index) {
				order = append(order, u)
			})
		}
	}

	components := make([]int, n)
	visited = make([]bool, n)
	count := 0
	for i := len(order) - 1; i >= 0; i-- {
		v := order[i]
		if visited[v] {
			continue
		}
		g.dfs(v, visited, true, func(u Index) {
			components[u] = count
		})
		count++
	}
	return components, count
}

// dfs is an iterative depth first search that calls finish in post order. reversed follows
// the edges against their access direction.
func (g *Graph) dfs(start Index, visited []bool, reversed bool, finish func(v Index)) {
	type frame struct {
		v    Index
		next Index
	}
	visited[start] = true
	stack := []frame{{v: start, next: g.firstEdge[start]}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next == g.firstEdge[top.v+1] {
			finish(top.v)
			stack = stack[:len(stack)-1]
			continue
		}
		edge := g.edges[g.adjacency[top.next]]
		top.next++

		es := NewEdgeState(edge, edge.base != top.v)
		traversable := es.CanTraverse()
		if reversed {
			traversable = es.CanTraverseBackward()
		}
		w := es.GetAdjNode()
		if traversable && !visited[w] {
			visited[w] = true
			stack = append(stack, frame{v: w, next: g.firstEdge[w]})
		}
	}
}

// LargestStronglyConnectedComponent returns a graph holding only the vertices of the largest
// strongly connected component and the edges between them. newIds maps old vertex ids to new
// ones, -1 for dropped vertices.
func (g *Graph) LargestStronglyConnectedComponent() (*Graph, []int) {
	components, count := g.StronglyConnectedComponents()
	sizes := make([]int, count)
	for _, c := range components {
		sizes[c]++
	}
	largest := 0
	for c, size := range sizes {
		if size > sizes[largest] {
			largest = c
		}
	}

	newIds := make([]int, g.NumberOfVertices())
	vertices := make([]*Vertex, 0)
	for v, c := range components {
		newIds[v] = -1
		if c != largest {
			continue
		}
		newIds[v] = len(vertices)
		old := g.vertices[v]
		vertices = append(vertices, NewVertex(old.lat, old.lon, Index(newIds[v])))
	}

	edges := make([]*Edge, 0, len(g.edges))
	for _, e := range g.edges {
		base, adj := newIds[e.base], newIds[e.adj]
		if base < 0 || adj < 0 {
			continue
		}
		edges = append(edges, NewEdge(Index(len(edges)), Index(base), Index(adj), e.dist, e.speed,
			e.forward, e.backward, e.geometry))
	}
	return NewGraph(vertices, edges), newIds
}
