package partition

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// leafCells walks the tree and returns each leaf's rank with the cell
// bounds implied by the chain of splits from the root.
type cell struct {
	lo, hi [3]float64
	rank   int32
}

func leafCells(tree *Tree) []cell {
	var cells []cell

	var walk func(i int32, lo, hi [3]float64)
	walk = func(i int32, lo, hi [3]float64) {
		n := tree.Nodes[i]
		if n.Kind == KindLeaf {
			cells = append(cells, cell{lo: lo, hi: hi, rank: n.Rank})
			return
		}
		lhi := hi
		lhi[n.Dim] = n.Split
		walk(n.Left, lo, lhi)
		llo := lo
		llo[n.Dim] = n.Split
		walk(n.Right, llo, hi)
	}

	inf := math.Inf(1)
	walk(0, [3]float64{-inf, -inf, -inf}, [3]float64{inf, inf, inf})
	return cells
}

func TestPointAssign_BuildPointsMapBack(t *testing.T) {
	x, y, z := randomCloud(t, 400, 31)

	for _, mode := range []string{"radix", "rcb"} {
		var tree *Tree
		var err error
		if mode == "radix" {
			tree, err = BuildRadix(x, y, z, 8)
		} else {
			tree, err = BuildRCB(x, y, z, 12)
		}
		require.NoError(t, err)
		tree.AssignRanks(4)

		// Every build point must land in its build-time leaf.
		for _, node := range tree.Nodes {
			if node.Kind != KindLeaf {
				continue
			}
			for pos := node.First; pos < node.First+node.Size; pos++ {
				idx := tree.Order[pos]
				got := tree.PointAssign([3]float64{x[idx], y[idx], z[idx]})
				assert.Equal(t, node.Rank, got, "%s point %d", mode, idx)
			}
		}
	}
}

func TestPointAssign_TieGoesLeft(t *testing.T) {
	tree := &Tree{Nodes: []Node{
		{Kind: KindInternal, Dim: 0, Split: 0.5, Left: 1, Right: 2},
		{Kind: KindLeaf, Rank: 3},
		{Kind: KindLeaf, Rank: 7},
	}}

	assert.Equal(t, int32(3), tree.PointAssign([3]float64{0.4, 0, 0}))
	assert.Equal(t, int32(3), tree.PointAssign([3]float64{0.5, 0, 0}))
	assert.Equal(t, int32(7), tree.PointAssign([3]float64{0.6, 0, 0}))
}

func TestBoxAssign_MatchesBruteForce(t *testing.T) {
	x, y, z := randomCloud(t, 300, 37)

	tree, err := BuildRadix(x, y, z, 8)
	require.NoError(t, err)
	tree.AssignRanks(5)

	cells := leafCells(tree)
	rng := rand.New(rand.NewSource(99))

	for trial := 0; trial < 50; trial++ {
		var lo, hi [3]float64
		for d := 0; d < 3; d++ {
			a, b := rng.Float64(), rng.Float64()
			if a > b {
				a, b = b, a
			}
			lo[d], hi[d] = a, b
		}

		want := map[int32]bool{}
		for _, c := range cells {
			hit := true
			for d := 0; d < 3; d++ {
				if lo[d] > c.hi[d] || hi[d] < c.lo[d] {
					hit = false
					break
				}
			}
			if hit {
				want[c.rank] = true
			}
		}

		out := make([]int32, 5)
		n := tree.BoxAssign(lo, hi, out)

		got := map[int32]bool{}
		for _, r := range out[:n] {
			require.False(t, got[r], "duplicate rank in output")
			got[r] = true
		}
		assert.Equal(t, want, got, "trial %d", trial)
	}
}

func TestBoxAssign_FullDomainReturnsAllWorkers(t *testing.T) {
	x, y, z := randomCloud(t, 200, 41)

	tree, err := BuildRCB(x, y, z, 6)
	require.NoError(t, err)
	tree.AssignRanks(6)

	out := make([]int32, 6)
	n := tree.BoxAssign([3]float64{0, 0, 0}, [3]float64{1, 1, 1}, out)
	require.Equal(t, 6, n)

	ranks := append([]int32(nil), out[:n]...)
	sort.Slice(ranks, func(i, j int) bool { return ranks[i] < ranks[j] })
	assert.Equal(t, []int32{0, 1, 2, 3, 4, 5}, ranks)
}
