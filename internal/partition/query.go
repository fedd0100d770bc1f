package partition

import (
	"github.com/dynlb/pkg/collections"
)

// PointAssign returns the worker that owns the leaf cell containing p.
// Points exactly on a splitting plane resolve to the left child.
// O(depth), no allocation.
func (t *Tree) PointAssign(p [3]float64) int32 {
	i := int32(0)
	for {
		n := &t.Nodes[i]
		if n.Kind == KindLeaf {
			return n.Rank
		}
		if p[n.Dim] <= n.Split {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// BoxAssign writes the distinct workers owning leaves that intersect
// the axis-aligned box [lo, hi] into out and returns how many were
// written. out must have room for one entry per worker.
func (t *Tree) BoxAssign(lo, hi [3]float64, out []int32) int {
	stack := collections.GetInt32Slice()
	defer collections.PutInt32Slice(stack)

	seen := collections.NewBitset(64)
	count := 0

	*stack = append(*stack, 0)
	for len(*stack) > 0 {
		i := (*stack)[len(*stack)-1]
		*stack = (*stack)[:len(*stack)-1]

		n := &t.Nodes[i]
		if n.Kind == KindLeaf {
			if !seen.Test(int(n.Rank)) {
				seen.Set(int(n.Rank))
				out[count] = n.Rank
				count++
			}
			continue
		}

		if lo[n.Dim] <= n.Split {
			*stack = append(*stack, n.Left)
		}
		if hi[n.Dim] >= n.Split {
			*stack = append(*stack, n.Right)
		}
	}

	return count
}
