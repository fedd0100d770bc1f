package parallel

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkers(t *testing.T) {
	assert.Equal(t, DefaultWorkers(), Workers(0))
	assert.Equal(t, DefaultWorkers(), Workers(-3))
	assert.Equal(t, 5, Workers(5))
	assert.GreaterOrEqual(t, DefaultWorkers(), 2)
}

func TestForEachChunk_CoversRange(t *testing.T) {
	const n = 1000
	var covered [n]int32

	err := ForEachChunk(context.Background(), n, 4, func(start, end int) error {
		for i := start; i < end; i++ {
			atomic.AddInt32(&covered[i], 1)
		}
		return nil
	})
	require.NoError(t, err)

	for i := 0; i < n; i++ {
		assert.Equal(t, int32(1), covered[i], "index %d", i)
	}
}

func TestForEachChunk_Empty(t *testing.T) {
	called := false
	err := ForEachChunk(context.Background(), 0, 4, func(start, end int) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, called)
}

func TestForEachChunk_Error(t *testing.T) {
	err := ForEachChunk(context.Background(), 100, 4, func(start, end int) error {
		if start == 0 {
			return fmt.Errorf("chunk failed")
		}
		return nil
	})
	assert.EqualError(t, err, "chunk failed")
}

func TestForEachChunk_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := ForEachChunk(ctx, 100, 4, func(start, end int) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMapChunks_SumsInChunkOrder(t *testing.T) {
	const n = 777
	total := 0
	err := MapChunks(context.Background(), n, 3, func(start, end int) (int, error) {
		sum := 0
		for i := start; i < end; i++ {
			sum += i
		}
		return sum, nil
	}, func(partial int) {
		total += partial
	})
	require.NoError(t, err)
	assert.Equal(t, n*(n-1)/2, total)
}

func TestMapChunks_Error(t *testing.T) {
	err := MapChunks(context.Background(), 10, 2, func(start, end int) (int, error) {
		return 0, fmt.Errorf("boom")
	}, func(int) {})
	assert.EqualError(t, err, "boom")
}
