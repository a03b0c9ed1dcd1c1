package datastructure

// EdgeFilter decides whether a search may use an edge. The EdgeState is seen from the
// node that is being settled.
type EdgeFilter interface {
	Accept(e EdgeState) bool
}

type EdgeFilterFunc func(e EdgeState) bool

func (f EdgeFilterFunc) Accept(e EdgeState) bool {
	return f(e)
}

// AccessFilter accepts edges by their access flags. out checks base->adj, in checks adj->base.
type AccessFilter struct {
	out bool
	in  bool
}

func OutEdgeFilter() AccessFilter {
	return AccessFilter{out: true}
}

func InEdgeFilter() AccessFilter {
	return AccessFilter{in: true}
}

func AllEdgeFilter() AccessFilter {
	return AccessFilter{out: true, in: true}
}

func (f AccessFilter) Accept(e EdgeState) bool {
	return (f.out && e.CanTraverse()) || (f.in && e.CanTraverseBackward())
}

// EdgeFilterSequence accepts an edge only if every filter accepts it.
type EdgeFilterSequence []EdgeFilter

func (s EdgeFilterSequence) Accept(e EdgeState) bool {
	for _, f := range s {
		if !f.Accept(e) {
			return false
		}
	}
	return true
}
