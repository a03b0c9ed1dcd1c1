package partitioner

import (
	"math"

	"github.com/lintang-b-s/fastisochrone/pkg/datastructure"
)

// EdmondsKarp computes a unit capacity max flow between the head and the tail of a node
// ordering. Augmenting paths are searched best-first: the reached node with the highest
// rank in the ordering is explored next, which walks greedily toward the sinks.
type EdmondsKarp struct {
	pData        *PartitioningData
	splitRatio   float64
	srcLimit     int // rank < srcLimit is a source
	snkLimit     int // rank >= snkLimit is a sink
	maxFlowLimit int
	maxBFSCalls  int
	visitedToken int
}

func NewEdmondsKarp(graph *datastructure.Graph, filter datastructure.EdgeFilter,
	orderedNodes []datastructure.Index, splitRatio float64) *EdmondsKarp {
	ek := &EdmondsKarp{
		pData:        NewPartitioningData(graph, filter, orderedNodes),
		splitRatio:   splitRatio,
		maxFlowLimit: math.MaxInt,
	}
	ek.SetOrderedNodes(orderedNodes)
	return ek
}

// SetOrderedNodes ranks the subset by order. order must be a permutation of the subset.
func (ek *EdmondsKarp) SetOrderedNodes(order []datastructure.Index) {
	for r, v := range order {
		u, ok := ek.pData.GetLocal(v)
		if !ok {
			continue
		}
		ek.pData.GetFlowNodeData(u).rank = r
	}
	n := len(order)
	k := int(float64(n) * ek.splitRatio)
	if k < 1 && n >= 2 {
		k = 1
	}
	ek.srcLimit = k
	ek.snkLimit = n - k
}

func (ek *EdmondsKarp) SetMaxFlowLimit(limit int) {
	ek.maxFlowLimit = limit
}

func (ek *EdmondsKarp) Reset() {
	ek.pData.ClearFlow()
	ek.pData.ClearActiveEdges()
	ek.pData.ClearVisitedNodes()
	ek.visitedToken = 0
}

func (ek *EdmondsKarp) isSource(u int32) bool {
	return ek.pData.GetFlowNodeData(u).rank < ek.srcLimit
}

func (ek *EdmondsKarp) isSink(u int32) bool {
	return ek.pData.GetFlowNodeData(u).rank >= ek.snkLimit
}

// GetMaxFlow returns the flow value, or math.MaxInt once the flow exceeds the max flow limit.
func (ek *EdmondsKarp) GetMaxFlow() int {
	ek.maxBFSCalls = ek.pData.NumberOfArcs() + 1
	flow := 0
	for calls := 0; calls < ek.maxBFSCalls; calls++ {
		f := ek.bfs()
		if f == 0 {
			break
		}
		flow += f
		if flow > ek.maxFlowLimit {
			return math.MaxInt
		}
	}
	return flow
}

// bfs finds one augmenting path from any source to any sink and pushes one unit along it.
func (ek *EdmondsKarp) bfs() int {
	ek.visitedToken++
	token := ek.visitedToken
	pd := ek.pData

	pq := datastructure.NewFourAryHeap[int32]()
	for u := int32(0); u < int32(pd.NumberOfNodes()); u++ {
		if !ek.isSource(u) {
			continue
		}
		fn := pd.GetFlowNodeData(u)
		fn.visited = token
		fn.parentArc = -1
		pq.Insert(datastructure.NewPriorityQueueNode(-float64(fn.rank), u))
	}

	for !pq.IsEmpty() {
		node, _ := pq.ExtractMin()
		u := node.GetItem()
		if ek.isSink(u) {
			ek.augmentPath(u)
			return 1
		}

		pd.forArcsOf(u, func(arc int32, fe *FlowEdgeData) {
			if fe.flow {
				return
			}
			fn := pd.GetFlowNodeData(fe.target)
			if fn.visited == token {
				return
			}
			fn.visited = token
			fn.parentArc = arc
			pq.Insert(datastructure.NewPriorityQueueNode(-float64(fn.rank), fe.target))
		})
	}
	return 0
}

func (ek *EdmondsKarp) augmentPath(sink int32) {
	pd := ek.pData
	v := sink
	for {
		arc := pd.GetFlowNodeData(v).parentArc
		if arc < 0 {
			return
		}
		pd.augment(arc)
		// tail of arc is the target of its inverse.
		v = pd.GetFlowEdgeData(pd.GetFlowEdgeData(arc).inverse).target
	}
}

// residualReachable marks every node reachable from the sources in the residual graph.
func (ek *EdmondsKarp) residualReachable() []bool {
	pd := ek.pData
	reached := make([]bool, pd.NumberOfNodes())
	stack := make([]int32, 0)
	for u := int32(0); u < int32(pd.NumberOfNodes()); u++ {
		if ek.isSource(u) {
			reached[u] = true
			stack = append(stack, u)
		}
	}
	for len(stack) > 0 {
		u := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		pd.forArcsOf(u, func(arc int32, fe *FlowEdgeData) {
			if fe.flow || reached[fe.target] {
				return
			}
			reached[fe.target] = true
			stack = append(stack, fe.target)
		})
	}
	return reached
}

// CalcNodePartition splits the subset into the residual source side and the rest. Arcs
// crossing the cut are marked active.
func (ek *EdmondsKarp) CalcNodePartition() *BiPartition {
	pd := ek.pData
	reached := ek.residualReachable()
	bp := NewBiPartition()
	pd.ClearActiveEdges()
	for u := int32(0); u < int32(pd.NumberOfNodes()); u++ {
		if reached[u] {
			bp.add(0, pd.GetNode(u))
			pd.forArcsOf(u, func(arc int32, fe *FlowEdgeData) {
				if !reached[fe.target] {
					fe.active = true
				}
			})
		} else {
			bp.add(1, pd.GetNode(u))
		}
	}
	return bp
}

func (ek *EdmondsKarp) GetSrcPartition() []datastructure.Index {
	return ek.CalcNodePartition().GetPartition(0)
}

func (ek *EdmondsKarp) GetSnkPartition() []datastructure.Index {
	return ek.CalcNodePartition().GetPartition(1)
}

// NumberOfCutArcs counts the arcs marked by the last CalcNodePartition.
func (ek *EdmondsKarp) NumberOfCutArcs() int {
	count := 0
	for i := 0; i < ek.pData.NumberOfArcs(); i++ {
		if ek.pData.GetFlowEdgeData(int32(i)).IsActive() {
			count++
		}
	}
	return count
}
