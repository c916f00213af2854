package geom

import (
	"sort"

	"github.com/paulmach/orb"
	"github.com/tidwall/rtree"
)

// RTreeItem represents an item stored in the RTree
type RTreeItem struct {
	Index int
}

// RTree wraps tidwall/rtree for bounding box lookups of reference features
type RTree struct {
	tree *rtree.RTreeG[RTreeItem]
}

// NewRTree creates a new RTree
func NewRTree() *RTree {
	return &RTree{
		tree: &rtree.RTreeG[RTreeItem]{},
	}
}

// Insert adds a feature index to the RTree with the given bounding box
func (r *RTree) Insert(index int, b orb.Bound) {
	r.tree.Insert(
		[2]float64{b.Min[0], b.Min[1]},
		[2]float64{b.Max[0], b.Max[1]},
		RTreeItem{Index: index},
	)
}

// Search returns the indexes whose bounding boxes intersect the query bound,
// sorted ascending so callers see features in load order
func (r *RTree) Search(b orb.Bound) []int {
	result := make([]int, 0)
	r.tree.Search(
		[2]float64{b.Min[0], b.Min[1]},
		[2]float64{b.Max[0], b.Max[1]},
		func(min, max [2]float64, item RTreeItem) bool {
			result = append(result, item.Index)
			return true // continue searching
		},
	)
	sort.Ints(result)
	return result
}

// SearchPoint returns the indexes whose bounding boxes contain the point
func (r *RTree) SearchPoint(p orb.Point) []int {
	return r.Search(orb.Bound{Min: p, Max: p})
}

// Size returns the number of items in the RTree
func (r *RTree) Size() int {
	return r.tree.Len()
}
