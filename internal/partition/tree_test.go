package partition

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssignRanks_EvenAndRemainder(t *testing.T) {
	x, y, z := randomCloud(t, 64, 19)

	tree, err := BuildRCB(x, y, z, 10)
	require.NoError(t, err)

	tree.AssignRanks(4)

	// 10 leaves over 4 workers: workers 0 and 1 own 3 leaves, 2 and 3 own 2.
	leafOwners := make(map[int32]int)
	for _, node := range tree.Nodes {
		if node.Kind != KindLeaf {
			continue
		}
		require.GreaterOrEqual(t, node.Rank, int32(0))
		require.Less(t, node.Rank, int32(4))
		leafOwners[node.Rank]++
	}
	assert.Equal(t, map[int32]int{0: 3, 1: 3, 2: 2, 3: 2}, leafOwners)
}

func TestAssignRanks_FewerLeavesThanWorkers(t *testing.T) {
	tree, err := BuildRCB([]float64{0.1, 0.9}, []float64{0.5, 0.5}, []float64{0.5, 0.5}, 2)
	require.NoError(t, err)

	tree.AssignRanks(5)

	counts := tree.RankCounts(5)
	assert.Equal(t, []int64{1, 1, 0, 0, 0}, counts)
}

func TestRankCounts(t *testing.T) {
	x, y, z := randomCloud(t, 100, 23)

	tree, err := BuildRCB(x, y, z, 4)
	require.NoError(t, err)
	tree.AssignRanks(4)

	counts := tree.RankCounts(4)
	var total int64
	for _, c := range counts {
		total += c
	}
	assert.Equal(t, int64(100), total)
}

func TestImbalance(t *testing.T) {
	assert.Equal(t, 1.0, Imbalance([]int64{5, 5, 5}))
	assert.Equal(t, 2.0, Imbalance([]int64{10, 5}))
	assert.True(t, math.IsInf(Imbalance([]int64{3, 0, 2}), 1))
	assert.True(t, math.IsInf(Imbalance([]int64{0, 0}), 1), "0/0 maps to +Inf, not NaN")
	assert.True(t, math.IsInf(Imbalance(nil), 1))
	assert.False(t, math.IsNaN(Imbalance([]int64{0, 0})))
}
