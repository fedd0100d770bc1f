package grpccomm

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dynlb/internal/collective"
	apperrors "github.com/dynlb/pkg/errors"
)

// startGroup brings up a loopback coordinator plus dialled workers.
func startGroup(t *testing.T, size int) []collective.Comm {
	t.Helper()

	coord, err := Serve("127.0.0.1:0", size)
	require.NoError(t, err)
	t.Cleanup(func() { _ = coord.Close() })

	comms := make([]collective.Comm, size)
	comms[0] = coord.Comm()
	for rank := 1; rank < size; rank++ {
		c, err := Dial(coord.Addr(), rank, size)
		require.NoError(t, err)
		t.Cleanup(func() { _ = c.Close() })
		comms[rank] = c
	}
	return comms
}

func TestDial_RankValidation(t *testing.T) {
	_, err := Dial("127.0.0.1:1", 0, 2)
	assert.True(t, apperrors.IsInvalidArgument(err), "rank 0 must attach via the coordinator")

	_, err = Dial("127.0.0.1:1", 5, 2)
	assert.True(t, apperrors.IsInvalidArgument(err))
}

func TestGroup_MatchesLocalSemantics(t *testing.T) {
	const size = 3
	comms := startGroup(t, size)

	errs := make([]error, size)
	var wg sync.WaitGroup
	for rank, c := range comms {
		wg.Add(1)
		go func(rank int, c collective.Comm) {
			defer wg.Done()
			errs[rank] = func() error {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				counts, err := c.GatherInt(ctx, 100+rank)
				if err != nil {
					return err
				}
				if rank == 0 {
					assert.Equal(t, []int{100, 101, 102}, counts)
				} else {
					assert.Nil(t, counts)
				}

				coords, err := c.GatherFloat64(ctx, []float64{float64(rank), float64(rank) + 0.5})
				if err != nil {
					return err
				}
				if rank == 0 {
					assert.Equal(t, []float64{0, 0.5, 1, 1.5, 2, 2.5}, coords)
				}

				var img []byte
				if rank == 0 {
					img = []byte("node array image")
				}
				got, err := c.Broadcast(ctx, img)
				if err != nil {
					return err
				}
				assert.Equal(t, []byte("node array image"), got)

				var parts [][]int32
				if rank == 0 {
					parts = [][]int32{{0}, {1, 1}, {2, 2, 2}}
				}
				mine, err := c.ScatterInt32(ctx, parts)
				if err != nil {
					return err
				}
				assert.Len(t, mine, rank+1)

				sum, err := c.AllReduceInt64(ctx, []int64{int64(rank), 1})
				if err != nil {
					return err
				}
				assert.Equal(t, []int64{3, 3}, sum)
				return nil
			}()
		}(rank, c)
	}
	wg.Wait()

	for rank, err := range errs {
		require.NoError(t, err, "rank %d", rank)
	}
}

func TestWorker_FailureSurfacesAsCollectiveFailure(t *testing.T) {
	coord, err := Serve("127.0.0.1:0", 2)
	require.NoError(t, err)

	worker, err := Dial(coord.Addr(), 1, 2)
	require.NoError(t, err)
	defer worker.Close()

	// Stop the coordinator before the worker enters the collective.
	require.NoError(t, coord.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = worker.GatherInt(ctx, 1)
	assert.True(t, apperrors.IsCollectiveFailure(err), "got %v", err)
}
