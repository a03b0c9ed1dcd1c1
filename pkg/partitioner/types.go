package partitioner

import "github.com/lintang-b-s/fastisochrone/pkg/datastructure"

const (
	MAX_SUBCELL_NUMBER     = 10
	CONSIDERED_PROJECTIONS = 3
	MIN_CUT_SCORE          = 5
	DEFAULT_SPLIT_RATIO    = 0.4
)

// BiPartition holds the two sides of a cut.
type BiPartition struct {
	partitions [2][]datastructure.Index
}

func NewBiPartition() *BiPartition {
	return &BiPartition{
		partitions: [2][]datastructure.Index{
			make([]datastructure.Index, 0),
			make([]datastructure.Index, 0),
		},
	}
}

func (bp *BiPartition) add(side int, u datastructure.Index) {
	bp.partitions[side] = append(bp.partitions[side], u)
}

func (bp *BiPartition) GetPartition(side int) []datastructure.Index {
	return bp.partitions[side]
}

func (bp *BiPartition) Size(side int) int {
	return len(bp.partitions[side])
}
