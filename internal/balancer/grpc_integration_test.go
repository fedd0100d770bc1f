package balancer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dynlb/internal/collective"
	"github.com/dynlb/internal/collective/grpccomm"
)

// The full balance protocol over the gRPC transport on loopback: the
// trees installed on both sides of the wire are byte-identical and
// updates agree on the imbalance.
func TestBalancer_OverGRPC(t *testing.T) {
	const size = 2

	coord, err := grpccomm.Serve("127.0.0.1:0", size)
	require.NoError(t, err)
	defer coord.Close()

	worker, err := grpccomm.Dial(coord.Addr(), 1, size)
	require.NoError(t, err)
	defer worker.Close()

	comms := []collective.Comm{coord.Comm(), worker}

	imbalances := make([]float64, size)
	treeSizes := make([]int, size)

	errs := make([]error, size)
	var wg sync.WaitGroup
	for rank := 0; rank < size; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			errs[rank] = func() error {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()

				pts := cloud(40, int64(rank+1))
				b, err := Create(ctx, comms[rank], Config{Epsilon: 0.5, Mode: ModeRCB, Cutoff: 4}, pts)
				if err != nil {
					return err
				}
				defer b.Destroy()

				if err := b.Update(ctx, pts); err != nil {
					return err
				}

				imbalances[rank] = b.Imbalance()
				treeSizes[rank] = b.TreeSize()
				return nil
			}()
		}(rank)
	}
	wg.Wait()

	for rank, err := range errs {
		require.NoError(t, err, "rank %d", rank)
	}
	assert.Equal(t, imbalances[0], imbalances[1])
	assert.Equal(t, treeSizes[0], treeSizes[1])
	assert.Greater(t, treeSizes[0], 0)
}
