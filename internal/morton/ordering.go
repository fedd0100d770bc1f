package morton

import (
	"context"
	"sort"

	"github.com/dynlb/pkg/parallel"
)

// Ordering computes Morton keys for all points and returns a
// permutation of 0..n-1 with non-decreasing keys. Equal keys keep
// index order, so the ordering is stable and deterministic.
//
// Key computation fans out over hint workers (0 selects the hardware
// optimum); the sort itself is serial.
func Ordering(ctx context.Context, x, y, z []float64, hint int) (order []int32, keys []uint32, err error) {
	n := len(x)
	if n == 0 {
		return nil, nil, nil
	}

	box := BoundsOf(x, y, z)

	keys = make([]uint32, n)
	err = parallel.ForEachChunk(ctx, n, hint, func(start, end int) error {
		for i := start; i < end; i++ {
			keys[i] = Key(box, x[i], y[i], z[i])
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	order = make([]int32, n)
	for i := range order {
		order[i] = int32(i)
	}
	sort.Slice(order, func(a, b int) bool {
		ia, ib := order[a], order[b]
		if keys[ia] != keys[ib] {
			return keys[ia] < keys[ib]
		}
		return ia < ib
	})

	return order, keys, nil
}
