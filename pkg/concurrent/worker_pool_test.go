package concurrent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPool(t *testing.T) {
	n := 100
	wp := NewWorkerPool[int, int](4, n, n)
	wp.Start(context.Background(), func(ctx context.Context, job int) (int, error) {
		return job * job, nil
	})
	for i := 0; i < n; i++ {
		wp.AddJob(i)
	}
	wp.Close()
	require.NoError(t, wp.Wait())

	sum := 0
	count := 0
	for r := range wp.CollectResults() {
		sum += r
		count++
	}
	assert.Equal(t, n, count)
	assert.Equal(t, 328350, sum)
}

func TestWorkerPoolFirstError(t *testing.T) {
	errBoom := errors.New("boom")
	wp := NewWorkerPool[int, int](2, 10, 10)
	wp.Start(context.Background(), func(ctx context.Context, job int) (int, error) {
		if job == 3 {
			return 0, errBoom
		}
		return job, nil
	})
	for i := 0; i < 10; i++ {
		wp.AddJob(i)
	}
	wp.Close()
	assert.ErrorIs(t, wp.Wait(), errBoom)
}

func TestWorkerPoolCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	wp := NewWorkerPool[int, int](2, 5, 5)
	wp.Start(ctx, func(ctx context.Context, job int) (int, error) {
		return job, nil
	})
	for i := 0; i < 5; i++ {
		wp.AddJob(i)
	}
	wp.Close()
	assert.ErrorIs(t, wp.Wait(), context.Canceled)
	assert.Empty(t, wp.CollectResults())
}
