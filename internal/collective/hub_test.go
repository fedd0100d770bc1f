package collective

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/dynlb/pkg/errors"
)

// runGroup drives fn once per rank, each on its own goroutine, and
// fails the test on the first returned error.
func runGroup(t *testing.T, hub *Hub, size int, fn func(c Comm) error) {
	t.Helper()

	errs := make([]error, size)
	var wg sync.WaitGroup
	for rank := 0; rank < size; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			errs[rank] = fn(NewComm(hub.Attach(rank)))
		}(rank)
	}
	wg.Wait()

	for rank, err := range errs {
		require.NoError(t, err, "rank %d", rank)
	}
}

func TestNewHub_InvalidSize(t *testing.T) {
	_, err := NewHub(0)
	assert.True(t, apperrors.IsInvalidArgument(err))
}

func TestGatherInt(t *testing.T) {
	hub, err := NewHub(4)
	require.NoError(t, err)

	runGroup(t, hub, 4, func(c Comm) error {
		got, err := c.GatherInt(context.Background(), 10+c.Rank())
		if err != nil {
			return err
		}
		if c.Rank() == 0 {
			assert.Equal(t, []int{10, 11, 12, 13}, got)
		} else {
			assert.Nil(t, got)
		}
		return nil
	})
}

func TestGatherFloat64_VariableLengths(t *testing.T) {
	hub, err := NewHub(3)
	require.NoError(t, err)

	// Rank r contributes r values; the root sees the rank-ordered concat.
	runGroup(t, hub, 3, func(c Comm) error {
		vals := make([]float64, c.Rank())
		for i := range vals {
			vals[i] = float64(c.Rank()) + float64(i)/10
		}
		got, err := c.GatherFloat64(context.Background(), vals)
		if err != nil {
			return err
		}
		if c.Rank() == 0 {
			assert.Equal(t, []float64{1.0, 2.0, 2.1}, got)
		}
		return nil
	})
}

func TestBroadcast(t *testing.T) {
	hub, err := NewHub(3)
	require.NoError(t, err)

	payload := []byte("tree image")
	runGroup(t, hub, 3, func(c Comm) error {
		var data []byte
		if c.Rank() == 0 {
			data = payload
		}
		got, err := c.Broadcast(context.Background(), data)
		if err != nil {
			return err
		}
		assert.Equal(t, payload, got)
		return nil
	})
}

func TestScatterInt32(t *testing.T) {
	hub, err := NewHub(3)
	require.NoError(t, err)

	parts := [][]int32{{0, 0}, {1}, {2, 2, 2}}
	runGroup(t, hub, 3, func(c Comm) error {
		var in [][]int32
		if c.Rank() == 0 {
			in = parts
		}
		got, err := c.ScatterInt32(context.Background(), in)
		if err != nil {
			return err
		}
		assert.Equal(t, parts[c.Rank()], got)
		return nil
	})
}

func TestAllReduceInt64(t *testing.T) {
	hub, err := NewHub(4)
	require.NoError(t, err)

	runGroup(t, hub, 4, func(c Comm) error {
		vals := []int64{int64(c.Rank()), 1, 0}
		got, err := c.AllReduceInt64(context.Background(), vals)
		if err != nil {
			return err
		}
		assert.Equal(t, []int64{6, 4, 0}, got)
		return nil
	})
}

func TestAllReduceInt64_LengthMismatch(t *testing.T) {
	hub, err := NewHub(2)
	require.NoError(t, err)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for rank := 0; rank < 2; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			c := NewComm(hub.Attach(rank))
			_, errs[rank] = c.AllReduceInt64(context.Background(), make([]int64, 1+rank))
		}(rank)
	}
	wg.Wait()

	for rank := 0; rank < 2; rank++ {
		assert.True(t, apperrors.IsInvalidArgument(errs[rank]), "rank %d: %v", rank, errs[rank])
	}
}

func TestExchange_MismatchedOps(t *testing.T) {
	hub, err := NewHub(2)
	require.NoError(t, err)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c := NewComm(hub.Attach(0))
		_, errs[0] = c.GatherInt(context.Background(), 1)
	}()
	go func() {
		defer wg.Done()
		c := NewComm(hub.Attach(1))
		_, errs[1] = c.AllReduceInt64(context.Background(), []int64{1})
	}()
	wg.Wait()

	for rank, err := range errs {
		assert.True(t, apperrors.IsInvalidArgument(err), "rank %d: %v", rank, err)
	}
}

func TestExchange_ContextCancelled(t *testing.T) {
	hub, err := NewHub(2)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// Only rank 0 enters; the round never completes and the context
	// expiry surfaces as a collective failure.
	c := NewComm(hub.Attach(0))
	_, err = c.GatherInt(ctx, 1)
	assert.True(t, apperrors.IsCollectiveFailure(err))
}

func TestExchange_RankValidation(t *testing.T) {
	hub, err := NewHub(2)
	require.NoError(t, err)

	_, err = hub.Exchange(context.Background(), 5, OpGather, nil)
	assert.True(t, apperrors.IsInvalidArgument(err))
}

func TestConsecutiveRounds(t *testing.T) {
	hub, err := NewHub(3)
	require.NoError(t, err)

	runGroup(t, hub, 3, func(c Comm) error {
		for round := 0; round < 10; round++ {
			sum, err := c.AllReduceInt64(context.Background(), []int64{int64(round)})
			if err != nil {
				return err
			}
			assert.Equal(t, int64(3*round), sum[0])
		}
		return nil
	})
}
