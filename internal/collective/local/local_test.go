package local

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dynlb/internal/collective"
	apperrors "github.com/dynlb/pkg/errors"
)

func TestNewGroup(t *testing.T) {
	comms, err := NewGroup(4)
	require.NoError(t, err)
	require.Len(t, comms, 4)

	for rank, c := range comms {
		assert.Equal(t, rank, c.Rank())
		assert.Equal(t, 4, c.Size())
	}
}

func TestNewGroup_InvalidSize(t *testing.T) {
	_, err := NewGroup(0)
	assert.True(t, apperrors.IsInvalidArgument(err))
}

func TestGroup_EndToEnd(t *testing.T) {
	comms, err := NewGroup(3)
	require.NoError(t, err)

	errs := make([]error, 3)
	var wg sync.WaitGroup
	for rank, c := range comms {
		wg.Add(1)
		go func(rank int, c collective.Comm) {
			defer wg.Done()
			errs[rank] = func() error {
				ctx := context.Background()

				// Gather local counts at the root.
				counts, err := c.GatherInt(ctx, rank+1)
				if err != nil {
					return err
				}

				// Root broadcasts a decision derived from them.
				var msg []byte
				if rank == 0 {
					if len(counts) != 3 {
						return assert.AnError
					}
					msg = []byte{byte(counts[0] + counts[1] + counts[2])}
				}
				got, err := c.Broadcast(ctx, msg)
				if err != nil {
					return err
				}
				if got[0] != 6 {
					return assert.AnError
				}

				// All ranks agree on a sum.
				sum, err := c.AllReduceInt64(ctx, []int64{int64(rank)})
				if err != nil {
					return err
				}
				if sum[0] != 3 {
					return assert.AnError
				}
				return c.Close()
			}()
		}(rank, c)
	}
	wg.Wait()

	for rank, err := range errs {
		assert.NoError(t, err, "rank %d", rank)
	}
}
