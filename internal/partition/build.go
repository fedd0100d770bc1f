package partition

import (
	apperrors "github.com/dynlb/pkg/errors"
)

// DefaultRadixCutoff returns the leaf-size bound used when the caller
// leaves the cutoff unset. It targets roughly 64 leaves per worker so
// that rank assignment starts out close to balanced.
func DefaultRadixCutoff(n, workers int) int {
	cutoff := n / (workers * 64)
	if cutoff < 1 {
		cutoff = 1
	}
	return cutoff
}

// builder carries the shared state of a tree construction.
type builder struct {
	x, y, z []float64
	order   []int32
	nodes   []Node
}

// coord returns the dim coordinate of the point at position pos of the
// build permutation.
func (b *builder) coord(dim int, pos int32) float64 {
	switch dim {
	case 0:
		return b.x[pos]
	case 1:
		return b.y[pos]
	default:
		return b.z[pos]
	}
}

// less orders two point indices by coordinate, ties by index, so every
// split is deterministic even on coincident points.
func (b *builder) less(dim int, a, c int32) bool {
	ca, cc := b.coord(dim, a), b.coord(dim, c)
	if ca != cc {
		return ca < cc
	}
	return a < c
}

// longestAxis picks the axis with the largest extent over the cell
// [first, first+size); ties resolve to the lowest axis.
func (b *builder) longestAxis(first, size int) int {
	p := b.order[first]
	lo := [3]float64{b.x[p], b.y[p], b.z[p]}
	hi := lo

	for _, idx := range b.order[first+1 : first+size] {
		c := [3]float64{b.x[idx], b.y[idx], b.z[idx]}
		for d := 0; d < 3; d++ {
			if c[d] < lo[d] {
				lo[d] = c[d]
			}
			if c[d] > hi[d] {
				hi[d] = c[d]
			}
		}
	}

	dim := 0
	best := hi[0] - lo[0]
	for d := 1; d < 3; d++ {
		if hi[d]-lo[d] > best {
			best = hi[d] - lo[d]
			dim = d
		}
	}
	return dim
}

// selectNth partially sorts order[lo:hi) so that position k holds the
// k-th smallest element by (coordinate, index) and everything before it
// compares lower. Iterative quickselect with a middle pivot.
func (b *builder) selectNth(dim, lo, hi, k int) {
	for hi-lo > 1 {
		pivot := b.order[lo+(hi-lo)/2]
		b.order[lo+(hi-lo)/2], b.order[hi-1] = b.order[hi-1], b.order[lo+(hi-lo)/2]

		store := lo
		for i := lo; i < hi-1; i++ {
			if b.less(dim, b.order[i], pivot) {
				b.order[i], b.order[store] = b.order[store], b.order[i]
				store++
			}
		}
		b.order[store], b.order[hi-1] = b.order[hi-1], b.order[store]

		switch {
		case k < store:
			hi = store
		case k > store:
			lo = store + 1
		default:
			return
		}
	}
}

// appendLeaf adds a leaf covering [first, first+size) and returns its index.
func (b *builder) appendLeaf(first, size int) int32 {
	b.nodes = append(b.nodes, Node{
		Kind:  KindLeaf,
		First: int32(first),
		Size:  int32(size),
	})
	return int32(len(b.nodes) - 1)
}

// splitAt splits the cell [first, first+size) at position first+mid
// along its longest axis and returns the internal node index; the
// caller fills in the child links after building each side. The split
// coordinate is the largest coordinate of the left half, so queries
// that send ties to the left child find every left-half point there.
func (b *builder) splitAt(first, size, mid int) int32 {
	dim := b.longestAxis(first, size)
	b.selectNth(dim, first, first+size, first+mid)

	split := b.coord(dim, b.order[first])
	for _, idx := range b.order[first+1 : first+mid] {
		if c := b.coord(dim, idx); c > split {
			split = c
		}
	}

	node := int32(len(b.nodes))
	b.nodes = append(b.nodes, Node{
		Kind:  KindInternal,
		Dim:   uint8(dim),
		Split: split,
	})
	return node
}

// buildRadix recursively splits at the point median until cells shrink
// to the cutoff.
func (b *builder) buildRadix(first, size, cutoff int) int32 {
	if size <= cutoff {
		return b.appendLeaf(first, size)
	}

	mid := size / 2
	node := b.splitAt(first, size, mid)
	left := b.buildRadix(first, mid, cutoff)
	right := b.buildRadix(first+mid, size-mid, cutoff)
	b.nodes[node].Left = left
	b.nodes[node].Right = right
	return node
}

// buildRCB recursively bisects the cell, handing each side a share of
// the remaining leaf budget and a proportional share of the points.
func (b *builder) buildRCB(first, size, leaves int) int32 {
	if leaves <= 1 || size <= 1 {
		return b.appendLeaf(first, size)
	}

	leftLeaves := (leaves + 1) / 2
	mid := size * leftLeaves / leaves
	if mid < 1 {
		mid = 1
	}
	if mid > size-1 {
		mid = size - 1
	}

	node := b.splitAt(first, size, mid)
	left := b.buildRCB(first, mid, leftLeaves)
	right := b.buildRCB(first+mid, size-mid, leaves-leftLeaves)
	b.nodes[node].Left = left
	b.nodes[node].Right = right
	return node
}

// newBuilder validates the coordinate arrays and seeds the identity
// permutation.
func newBuilder(x, y, z []float64) (*builder, error) {
	n := len(x)
	if len(y) != n || len(z) != n {
		return nil, apperrors.Newf(apperrors.CodeInvalidArgument,
			"coordinate arrays must have equal length: %d/%d/%d", len(x), len(y), len(z))
	}
	if n == 0 {
		return nil, apperrors.New(apperrors.CodeDegenerateInput, "cannot partition zero points")
	}

	order := make([]int32, n)
	for i := range order {
		order[i] = int32(i)
	}
	return &builder{x: x, y: y, z: z, order: order}, nil
}

// BuildRadix builds a radix tree: every cell splits along its longest
// axis at the point median until cells hold at most cutoff points.
func BuildRadix(x, y, z []float64, cutoff int) (*Tree, error) {
	if cutoff < 1 {
		return nil, apperrors.Newf(apperrors.CodeInvalidArgument, "radix cutoff must be >= 1, got %d", cutoff)
	}

	b, err := newBuilder(x, y, z)
	if err != nil {
		return nil, err
	}

	b.buildRadix(0, len(x), cutoff)
	return &Tree{Nodes: b.nodes, Order: b.order}, nil
}

// BuildRCB builds a recursive-coordinate-bisection tree with exactly
// the requested leaf count, provided at least that many points exist;
// with fewer points the recursion bottoms out early on single-point
// cells.
func BuildRCB(x, y, z []float64, leaves int) (*Tree, error) {
	if leaves < 1 {
		return nil, apperrors.Newf(apperrors.CodeInvalidArgument, "rcb leaf count must be >= 1, got %d", leaves)
	}

	b, err := newBuilder(x, y, z)
	if err != nil {
		return nil, err
	}

	b.buildRCB(0, len(x), leaves)
	return &Tree{Nodes: b.nodes, Order: b.order}, nil
}
