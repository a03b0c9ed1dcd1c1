package partitioner

import (
	"github.com/lintang-b-s/fastisochrone/pkg/datastructure"
)

// FlowEdgeData is a unit capacity residual arc. An arc can be traversed iff !flow.
type FlowEdgeData struct {
	flow    bool
	inverse int32
	target  int32
	active  bool // arc crosses the last computed cut
}

func (fe *FlowEdgeData) IsFlow() bool {
	return fe.flow
}

func (fe *FlowEdgeData) GetInverse() int32 {
	return fe.inverse
}

func (fe *FlowEdgeData) IsActive() bool {
	return fe.active
}

type FlowNodeData struct {
	visited   int
	parentArc int32
	rank      int
}

func (fn *FlowNodeData) Reset() {
	fn.visited = 0
	fn.parentArc = -1
}

// PartitioningData is the residual network of one max flow subproblem. Nodes are indexed
// locally in [0, len(nodes)); arcs of local node u are arcs[firstArc[u]:firstArc[u+1]].
type PartitioningData struct {
	nodes     []datastructure.Index
	local     map[datastructure.Index]int32
	firstArc  []int32
	flowEdges []FlowEdgeData
	flowNodes []FlowNodeData
}

// NewPartitioningData builds the residual network over nodes. Every accepted edge with both
// endpoints in nodes becomes two arcs that are each other's inverse.
func NewPartitioningData(graph *datastructure.Graph, filter datastructure.EdgeFilter,
	nodes []datastructure.Index) *PartitioningData {
	local := make(map[datastructure.Index]int32, len(nodes))
	for i, v := range nodes {
		local[v] = int32(i)
	}

	type arcPair struct {
		u, v int32
	}
	pairs := make([]arcPair, 0, len(nodes))
	degree := make([]int32, len(nodes)+1)
	for i, u := range nodes {
		graph.ForAcceptedEdgesOf(u, filter, func(e datastructure.EdgeState) {
			if e.IsReverse() {
				// each edge is taken once, from its base node.
				return
			}
			v, ok := local[e.GetAdjNode()]
			if !ok || v == int32(i) {
				return
			}
			pairs = append(pairs, arcPair{u: int32(i), v: v})
			degree[i]++
			degree[v]++
		})
	}

	firstArc := make([]int32, len(nodes)+1)
	for i := 0; i < len(nodes); i++ {
		firstArc[i+1] = firstArc[i] + degree[i]
	}
	fill := make([]int32, len(nodes))
	copy(fill, firstArc[:len(nodes)])

	flowEdges := make([]FlowEdgeData, 2*len(pairs))
	for _, p := range pairs {
		a, b := fill[p.u], fill[p.v]
		fill[p.u]++
		fill[p.v]++
		flowEdges[a] = FlowEdgeData{inverse: b, target: p.v}
		flowEdges[b] = FlowEdgeData{inverse: a, target: p.u}
	}

	flowNodes := make([]FlowNodeData, len(nodes))
	for i := range flowNodes {
		flowNodes[i].Reset()
	}

	return &PartitioningData{
		nodes:     nodes,
		local:     local,
		firstArc:  firstArc,
		flowEdges: flowEdges,
		flowNodes: flowNodes,
	}
}

func (pd *PartitioningData) NumberOfNodes() int {
	return len(pd.nodes)
}

func (pd *PartitioningData) NumberOfArcs() int {
	return len(pd.flowEdges)
}

func (pd *PartitioningData) GetNode(u int32) datastructure.Index {
	return pd.nodes[u]
}

func (pd *PartitioningData) GetLocal(v datastructure.Index) (int32, bool) {
	u, ok := pd.local[v]
	return u, ok
}

func (pd *PartitioningData) GetFlowEdgeData(arc int32) *FlowEdgeData {
	return &pd.flowEdges[arc]
}

func (pd *PartitioningData) GetFlowNodeData(u int32) *FlowNodeData {
	return &pd.flowNodes[u]
}

func (pd *PartitioningData) forArcsOf(u int32, handle func(arc int32, fe *FlowEdgeData)) {
	for a := pd.firstArc[u]; a < pd.firstArc[u+1]; a++ {
		handle(a, &pd.flowEdges[a])
	}
}

// augment pushes one unit over arc. Flow on the inverse arc is cancelled first.
func (pd *PartitioningData) augment(arc int32) {
	fe := &pd.flowEdges[arc]
	inv := &pd.flowEdges[fe.inverse]
	if inv.flow {
		inv.flow = false
		return
	}
	fe.flow = true
}

func (pd *PartitioningData) ClearFlow() {
	for i := range pd.flowEdges {
		pd.flowEdges[i].flow = false
	}
}

func (pd *PartitioningData) ClearActiveEdges() {
	for i := range pd.flowEdges {
		pd.flowEdges[i].active = false
	}
}

func (pd *PartitioningData) ClearVisitedNodes() {
	for i := range pd.flowNodes {
		pd.flowNodes[i].Reset()
	}
}
