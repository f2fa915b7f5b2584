package batcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/omniengine/internal/errs"
	"github.com/joeycumines/omniengine/internal/job"
	"github.com/joeycumines/omniengine/internal/tensor"
)

func TestNew_RejectsNonPositiveMaxBatch(t *testing.T) {
	_, err := New(0, time.Millisecond, tensor.Shape{1, 2}, tensor.F32, func(context.Context, job.Batch) {})
	assert.ErrorIs(t, err, errs.ErrConfig)
}

func TestBatcher_PadsPartialBatchOnFlushInterval(t *testing.T) {
	shape := tensor.Shape{1, 2}
	batches := make(chan job.Batch, 4)
	b, err := New(4, 20*time.Millisecond, shape, tensor.F32, func(_ context.Context, batch job.Batch) {
		batches <- batch
	})
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.Submit(context.Background(), job.Job{ID: "a", Input: tensor.Zeros(shape, tensor.F32)}))

	select {
	case batch := <-batches:
		assert.Len(t, batch.Jobs, 4)
		assert.Equal(t, 1, batch.RealCount())
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for flush-interval batch")
	}
}

func TestBatcher_FlushesFullBatchWithoutWaiting(t *testing.T) {
	shape := tensor.Shape{1, 2}
	batches := make(chan job.Batch, 4)
	b, err := New(2, time.Hour, shape, tensor.F32, func(_ context.Context, batch job.Batch) {
		batches <- batch
	})
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.Submit(context.Background(), job.Job{ID: "a", Input: tensor.Zeros(shape, tensor.F32)}))
	require.NoError(t, b.Submit(context.Background(), job.Job{ID: "b", Input: tensor.Zeros(shape, tensor.F32)}))

	select {
	case batch := <-batches:
		assert.Len(t, batch.Jobs, 2)
		assert.Equal(t, 2, batch.RealCount())
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for size-triggered flush")
	}
}

func TestBatcher_ZeroWaitFlushesImmediately(t *testing.T) {
	shape := tensor.Shape{1}
	var mu sync.Mutex
	var sizes []int
	done := make(chan struct{}, 3)

	b, err := New(4, 0, shape, tensor.F32, func(_ context.Context, batch job.Batch) {
		mu.Lock()
		sizes = append(sizes, batch.RealCount())
		mu.Unlock()
		done <- struct{}{}
	})
	require.NoError(t, err)
	defer b.Close()

	for i := 0; i < 3; i++ {
		require.NoError(t, b.Submit(context.Background(), job.Job{ID: "x", Input: tensor.Zeros(shape, tensor.F32)}))
	}

	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for immediate flush")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, sizes, 3)
	for _, s := range sizes {
		assert.Equal(t, 1, s)
	}
}
