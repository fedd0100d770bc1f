// Package partition builds and queries the binary space-partitioning
// trees that map point regions to workers.
//
// A tree is a flat array of fixed-size nodes with node 0 as the root.
// Internal nodes reference children at strictly larger indices, which
// keeps the array broadcast-friendly: the coordinator serialises the
// node array verbatim and every worker installs an identical copy.
package partition

import (
	"math"
)

// NodeKind discriminates internal nodes from leaves.
type NodeKind uint8

const (
	// KindInternal is a splitting node.
	KindInternal NodeKind = 0
	// KindLeaf is a terminal cell owning a point range.
	KindLeaf NodeKind = 1
)

// Node is one cell of the partition tree. Internal nodes use Dim,
// Split, Left and Right; leaves use First, Size and Rank. The struct
// maps 1:1 onto the fixed-size wire record.
type Node struct {
	Kind  NodeKind
	Dim   uint8
	Split float64
	Left  int32
	Right int32
	First int32
	Size  int32
	Rank  int32
}

// Tree is a partition tree over a global point set.
type Tree struct {
	Nodes []Node

	// Order is the build-time permutation of point indices; leaf
	// ranges [First, First+Size) address positions in it. Only the
	// coordinator holds it; it is not part of the wire image.
	Order []int32
}

// LeafCount returns the number of leaves.
func (t *Tree) LeafCount() int32 {
	var n int32
	for i := range t.Nodes {
		if t.Nodes[i].Kind == KindLeaf {
			n++
		}
	}
	return n
}

// AssignRanks distributes leaves over workers in node-index order:
// every worker receives floor(L/W) leaves and the first L mod W
// workers one extra.
func (t *Tree) AssignRanks(workers int) {
	leaves := int(t.LeafCount())
	base := leaves / workers
	rem := leaves % workers

	leafIdx := 0
	for i := range t.Nodes {
		if t.Nodes[i].Kind != KindLeaf {
			continue
		}
		t.Nodes[i].Rank = rankForLeaf(leafIdx, base, rem)
		leafIdx++
	}
}

// rankForLeaf maps a leaf ordinal to its worker under the base+remainder
// distribution.
func rankForLeaf(leafIdx, base, rem int) int32 {
	boundary := rem * (base + 1)
	if leafIdx < boundary {
		return int32(leafIdx / (base + 1))
	}
	return int32(rem + (leafIdx-boundary)/base)
}

// RankCounts sums leaf sizes per assigned worker.
func (t *Tree) RankCounts(workers int) []int64 {
	counts := make([]int64, workers)
	for i := range t.Nodes {
		n := &t.Nodes[i]
		if n.Kind == KindLeaf {
			counts[n.Rank] += int64(n.Size)
		}
	}
	return counts
}

// Imbalance returns the load-imbalance ratio of a per-worker count
// vector: the maximum count divided by the minimum. An empty worker
// yields +Inf, never NaN, so threshold comparisons stay well-defined.
func Imbalance(counts []int64) float64 {
	if len(counts) == 0 {
		return math.Inf(1)
	}

	minCount, maxCount := counts[0], counts[0]
	for _, c := range counts[1:] {
		if c < minCount {
			minCount = c
		}
		if c > maxCount {
			maxCount = c
		}
	}

	if minCount == 0 {
		return math.Inf(1)
	}
	return float64(maxCount) / float64(minCount)
}
