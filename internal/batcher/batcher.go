// Package batcher gathers inbound jobs into fixed-size batches under a
// time bound, using github.com/joeycumines/go-microbatch for the
// underlying size+time flush accumulation and layering the fixed-B
// dummy-padding rule on top: microbatch on its own only flushes
// partial batches early, it does not pad them.
package batcher

import (
	"context"
	"fmt"
	"time"

	microbatch "github.com/joeycumines/go-microbatch"

	"github.com/joeycumines/omniengine/internal/errs"
	"github.com/joeycumines/omniengine/internal/job"
	"github.com/joeycumines/omniengine/internal/tensor"
)

// Processor runs one fully-padded batch. It does not return an error:
// per-job failure (engine fault) and per-batch bookkeeping are its own
// responsibility, since microbatch has no per-job error channel wired
// to anything OmniEngine's ingress side reads.
type Processor func(ctx context.Context, b job.Batch)

// Batcher wraps a microbatch.Batcher[job.Job], padding every flushed
// batch up to exactly MaxBatch jobs before invoking a Processor.
type Batcher struct {
	mb       *microbatch.Batcher[job.Job]
	maxBatch int
}

// New constructs a Batcher. maxWait == 0 means flush every job
// immediately ("max_wait_ms: 0" per the queue configuration), which is
// expressed to microbatch as MaxSize 1 with time-based flushing
// disabled, since microbatch panics if both MaxSize and FlushInterval
// are left at zero and a FlushInterval alone only flushes once MaxSize
// real jobs have accumulated.
func New(maxBatch int, maxWait time.Duration, dummyShape tensor.Shape, dummyDType tensor.DType, process Processor) (*Batcher, error) {
	if maxBatch <= 0 {
		return nil, fmt.Errorf("%w: max_batch must be positive, got %d", errs.ErrConfig, maxBatch)
	}

	cfg := &microbatch.BatcherConfig{
		MaxSize:        maxBatch,
		FlushInterval:  maxWait,
		MaxConcurrency: 1, // one worker serializes all inference on its device
	}
	if maxWait <= 0 {
		cfg.MaxSize = 1
		cfg.FlushInterval = -1
	}

	b := &Batcher{maxBatch: maxBatch}
	b.mb = microbatch.NewBatcher(cfg, func(ctx context.Context, jobs []job.Job) error {
		batch, err := job.Pad(jobs, maxBatch, dummyShape, dummyDType)
		if err != nil {
			// microbatch's own MaxSize bound guarantees len(jobs) <=
			// maxBatch; job.Pad only returns errs.ErrBatch when that
			// invariant is violated, which would mean microbatch
			// itself is broken.
			panic(err)
		}
		process(ctx, batch)
		return nil
	})

	return b, nil
}

// Submit enqueues job j for batching. It blocks only until j has been
// assigned to an open or newly-opened batch, not until the batch
// flushes or is processed; the job's result is delivered later via
// egress, keyed by j.ReplyKey.
func (b *Batcher) Submit(ctx context.Context, j job.Job) error {
	_, err := b.mb.Submit(ctx, j)
	return err
}

// Close cancels any in-flight batch and stops the Batcher immediately.
func (b *Batcher) Close() error {
	return b.mb.Close()
}

// Shutdown stops accepting new jobs, flushes and finishes the
// currently-open batch (padded to MaxBatch), then returns.
func (b *Batcher) Shutdown(ctx context.Context) error {
	return b.mb.Shutdown(ctx)
}
