package isochrone

import (
	da "github.com/lintang-b-s/fastisochrone/pkg/datastructure"
)

// CellLookup resolves the cell and borderness of a node. storage.IsochroneNodeStorage implements it.
type CellLookup interface {
	GetCellId(node int) int
	GetBorderness(node int) bool
}

// FixedCellEdgeFilter accepts edges with both endpoints in one cell.
type FixedCellEdgeFilter struct {
	cells  CellLookup
	cellId int
}

func NewFixedCellEdgeFilter(cells CellLookup, cellId int) *FixedCellEdgeFilter {
	return &FixedCellEdgeFilter{cells: cells, cellId: cellId}
}

func (f *FixedCellEdgeFilter) Accept(e da.EdgeState) bool {
	return f.cells.GetCellId(int(e.GetBaseNode())) == f.cellId &&
		f.cells.GetCellId(int(e.GetAdjNode())) == f.cellId
}

// CellAndBorderNodeFilter accepts edges leading into the cell or onto any border node.
type CellAndBorderNodeFilter struct {
	cells  CellLookup
	cellId int
}

func NewCellAndBorderNodeFilter(cells CellLookup, cellId int) *CellAndBorderNodeFilter {
	return &CellAndBorderNodeFilter{cells: cells, cellId: cellId}
}

func (f *CellAndBorderNodeFilter) Accept(e da.EdgeState) bool {
	adj := int(e.GetAdjNode())
	return f.cells.GetCellId(adj) == f.cellId || f.cells.GetBorderness(adj)
}

// filterSequence drops nil filters.
func filterSequence(filters ...da.EdgeFilter) da.EdgeFilterSequence {
	seq := make(da.EdgeFilterSequence, 0, len(filters))
	for _, f := range filters {
		if f != nil {
			seq = append(seq, f)
		}
	}
	return seq
}
