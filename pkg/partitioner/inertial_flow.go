package partitioner

import (
	"context"
	"math"
	"sort"

	"github.com/lintang-b-s/fastisochrone/pkg/datastructure"
	"github.com/lintang-b-s/fastisochrone/pkg/util"
	"golang.org/x/sync/errgroup"
)

// InertialFlow bisects one subproblem and recurses into its sides. All subproblems of a run
// share nodeToCell and the errgroup; each one writes only its own nodes.
type InertialFlow struct {
	ctx        context.Context
	graph      *datastructure.Graph
	filter     datastructure.EdgeFilter
	projector  *Projector
	params     Params
	nodeToCell []int
	group      *errgroup.Group
	progress   func(cellId, size int)

	cellId      int
	projections Projections
}

// Params bounds the recursion. See util.PartitionConfig.
type Params struct {
	MaxCellNodes          int
	MinCellNodes          int
	SplitRatio            float64
	MinSplittingIteration int
	MaxSplittingIteration int
}

func (inf *InertialFlow) child(cellId int, projs Projections) *InertialFlow {
	c := *inf
	c.cellId = cellId
	c.projections = projs
	return &c
}

func (inf *InertialFlow) size() int {
	return len(inf.projections[0])
}

// Run splits the subproblem, saves both sides and recurses.
func (inf *InertialFlow) Run() error {
	if util.StopConcurrentOperation(inf.ctx) {
		return inf.ctx.Err()
	}

	partitionNodeCount := inf.size()
	if partitionNodeCount == 0 {
		return nil
	}
	if partitionNodeCount == 1 {
		inf.nodeToCell[inf.projections[0][0]] = inf.cellId
		return nil
	}

	biPartition := inf.graphBiSplit()
	inf.saveResults(biPartition)

	left, right := inf.projector.PartitionProjections(inf.projections, inf.nodeToCell, inf.cellId)
	inf.projections = Projections{}

	if inf.progress != nil {
		inf.progress(inf.cellId, partitionNodeCount)
	}

	sides := [2]Projections{left, right}
	var next []*InertialFlow
	for side := 0; side < 2; side++ {
		childId := inf.cellId<<1 | side
		if inf.invokeNext(biPartition.Size(side)) {
			next = append(next, inf.child(childId, sides[side]))
			continue
		}
		if inf.cellId < inf.params.MaxSplittingIteration {
			inf.saveMultiCells(inf.separateDisconnected(sides[side][0]), childId)
		}
	}

	return inf.recursion(next, partitionNodeCount)
}

func (inf *InertialFlow) invokeNext(sideSize int) bool {
	if inf.cellId < inf.params.MaxSplittingIteration && sideSize > inf.params.MaxCellNodes {
		return true
	}
	return inf.cellId < inf.params.MinSplittingIteration && sideSize > 1
}

// recursion runs large subproblems on the errgroup and small ones inline. A full group
// also falls back to running inline.
func (inf *InertialFlow) recursion(next []*InertialFlow, partitionNodeCount int) error {
	parallel := partitionNodeCount > inf.params.MaxCellNodes*4
	for _, c := range next {
		if parallel && inf.group.TryGo(c.Run) {
			continue
		}
		if err := c.Run(); err != nil {
			return err
		}
	}
	return nil
}

// graphBiSplit tries the best CONSIDERED_PROJECTIONS axes and keeps the smallest cut.
func (inf *InertialFlow) graphBiSplit() *BiPartition {
	n := inf.size()
	numEdges := inf.graph.NumberOfEdges()
	numNodes := inf.graph.NumberOfVertices()
	mincutScore := int(math.Ceil(float64(numEdges*n) / float64(numNodes)))
	if mincutScore < MIN_CUT_SCORE {
		mincutScore = MIN_CUT_SCORE
	}

	projOrder := inf.projector.CalculateProjectionOrder(inf.projections)
	ek := NewEdmondsKarp(inf.graph, inf.filter, inf.projections[projOrder[0]], inf.params.SplitRatio)

	var best *BiPartition
	for i, proj := range projOrder {
		if i == CONSIDERED_PROJECTIONS {
			break
		}
		ek.SetOrderedNodes(inf.projections[proj])
		ek.SetMaxFlowLimit(mincutScore)
		ek.Reset()
		cutScore := ek.GetMaxFlow()
		if cutScore < mincutScore {
			mincutScore = cutScore
			best = ek.CalcNodePartition()
		}
	}

	if best == nil {
		best = medianSplit(inf.projections[projOrder[0]])
	}
	return best
}

func medianSplit(order []datastructure.Index) *BiPartition {
	bp := NewBiPartition()
	half := len(order) / 2
	for i, v := range order {
		if i < half {
			bp.add(0, v)
		} else {
			bp.add(1, v)
		}
	}
	return bp
}

func (inf *InertialFlow) saveResults(bp *BiPartition) {
	for _, v := range bp.GetPartition(0) {
		inf.nodeToCell[v] = inf.cellId << 1
	}
	for _, v := range bp.GetPartition(1) {
		inf.nodeToCell[v] = inf.cellId<<1 | 1
	}
}

// separateDisconnected returns the connected components of nodes under the partition filter,
// grouped into at most MAX_SUBCELL_NUMBER cells. Largest components come first; small
// components and the overflow are merged into the last cell.
func (inf *InertialFlow) separateDisconnected(nodes []datastructure.Index) [][]datastructure.Index {
	inSet := make(map[datastructure.Index]bool, len(nodes))
	for _, v := range nodes {
		inSet[v] = true
	}

	components := make([][]datastructure.Index, 0, 1)
	for _, start := range nodes {
		if !inSet[start] {
			continue
		}
		inSet[start] = false
		component := []datastructure.Index{start}
		stack := []datastructure.Index{start}
		for len(stack) > 0 {
			u := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			inf.graph.ForAcceptedEdgesOf(u, inf.filter, func(e datastructure.EdgeState) {
				v := e.GetAdjNode()
				if !inSet[v] {
					return
				}
				inSet[v] = false
				component = append(component, v)
				stack = append(stack, v)
			})
		}
		components = append(components, component)
	}

	sort.SliceStable(components, func(i, j int) bool {
		return len(components[i]) > len(components[j])
	})

	cells := make([][]datastructure.Index, 0, len(components))
	for _, c := range components {
		if len(cells) == 0 || (len(c) >= inf.params.MinCellNodes && len(cells) < MAX_SUBCELL_NUMBER) {
			cells = append(cells, c)
			continue
		}
		cells[len(cells)-1] = append(cells[len(cells)-1], c...)
	}
	return cells
}

// saveMultiCells numbers cells as the leaves of a balanced binary subtree rooted at motherId.
func (inf *InertialFlow) saveMultiCells(cells [][]datastructure.Index, motherId int) {
	if len(cells) == 0 {
		return
	}
	if len(cells) == 1 {
		for _, v := range cells[0] {
			inf.nodeToCell[v] = motherId
		}
		return
	}
	half := (len(cells) + 1) / 2
	inf.saveMultiCells(cells[:half], motherId<<1)
	inf.saveMultiCells(cells[half:], motherId<<1|1)
}
