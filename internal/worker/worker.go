// Package worker owns one device's Engine, Batcher, Pipeline, and
// optional scripting host, draining submitted jobs and publishing a
// Result per real job once its batch completes.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/joeycumines/go-catrate"

	"github.com/joeycumines/omniengine/internal/batcher"
	"github.com/joeycumines/omniengine/internal/engine"
	"github.com/joeycumines/omniengine/internal/errs"
	"github.com/joeycumines/omniengine/internal/job"
	"github.com/joeycumines/omniengine/internal/metrics"
	"github.com/joeycumines/omniengine/internal/pipeline"
	"github.com/joeycumines/omniengine/internal/telemetry"
	"github.com/joeycumines/omniengine/internal/tensor"
)

// ResultSink receives one Result per completed real job. Dummy jobs
// never reach it.
type ResultSink func(job.Result)

// Worker binds an Engine to exactly one Batcher and Pipeline, and owns
// the optional scripting-host stages wired into that Pipeline.
type Worker struct {
	ID      int
	idLabel string
	eng     engine.Engine
	batch   *batcher.Batcher
	pipe    *pipeline.Pipeline
	sink    ResultSink
	log     *telemetry.Logger
	mets    *metrics.Metrics
	faults  *catrate.Limiter
	closers []func() error
}

// New constructs a Worker around a loaded Engine, wiring pre/post
// Stage instances (nil for identity) and a Batcher configured from
// maxBatch/maxWait. faultLimiter throttles repeated backend-fault log
// lines; pass nil to log every fault. mets may be nil to disable
// metrics recording.
func New(id int, eng engine.Engine, pre, post pipeline.Stage, maxBatch int, maxWait time.Duration, sink ResultSink, log *telemetry.Logger, mets *metrics.Metrics, faultLimiter *catrate.Limiter) *Worker {
	w := &Worker{
		ID:      id,
		idLabel: strconv.Itoa(id),
		eng:     eng,
		pipe:    pipeline.New(pre, eng, post),
		sink:    sink,
		log:     log,
		mets:    mets,
		faults:  faultLimiter,
	}

	inShape, inDType := eng.InputSpec()
	dummyShape := inShape.WithLeadingDim(1)

	b, err := batcher.New(maxBatch, maxWait, dummyShape, inDType, w.processBatch)
	if err != nil {
		// maxBatch <= 0 is a config error that should have been caught
		// at load time, by internal/config's validation.
		panic(err)
	}
	w.batch = b

	return w
}

// Submit hands one real job to the Worker's Batcher.
func (w *Worker) Submit(ctx context.Context, j job.Job) error {
	return w.batch.Submit(ctx, j)
}

// processBatch is the batcher.Processor: run the fully-padded batch
// through the Pipeline, split the output, and publish one Result per
// real job. A backend fault is isolated to this batch: every real job
// in it receives an error Result, and the Worker keeps running.
func (w *Worker) processBatch(ctx context.Context, b job.Batch) {
	start := time.Now()
	batchInput, err := stackInputs(b)
	if err != nil {
		w.faultBatch(b, err, start)
		return
	}

	out, err := w.pipe.Run(ctx, batchInput)
	if err != nil {
		w.faultBatch(b, err, start)
		return
	}

	rows, err := pipeline.Split(out, len(b.Jobs))
	if err != nil {
		w.faultBatch(b, err, start)
		return
	}

	completedAt := time.Now()
	for i, j := range b.Jobs {
		if j.IsDummy {
			continue
		}
		w.sink(job.Result{
			Job:         j,
			Output:      rows[i],
			CompletedAt: completedAt,
			WorkerID:    w.ID,
		})
	}

	if w.log != nil {
		w.log.Debug().Int("real_count", b.RealCount()).Int("batch_size", len(b.Jobs)).
			Dur("elapsed", completedAt.Sub(start)).Log("batch processed")
	}
	if w.mets != nil {
		w.mets.RecordBatch(w.idLabel, b.RealCount(), completedAt.Sub(start), false)
	}
}

// faultBatch publishes an error Result for every real job in a batch
// that failed end to end, logging the fault once (subject to rate
// limiting).
func (w *Worker) faultBatch(b job.Batch, err error, start time.Time) {
	if w.log != nil && (w.faults == nil || allowFaultLog(w.faults, w.ID)) {
		w.log.Err().Err(err).Int("worker_id", w.ID).Int("real_count", b.RealCount()).
			Dur("elapsed", time.Since(start)).Log("batch fault")
	}
	if w.mets != nil {
		w.mets.RecordBatch(w.idLabel, b.RealCount(), time.Since(start), true)
	}

	completedAt := time.Now()
	for _, j := range b.Jobs {
		if j.IsDummy {
			continue
		}
		w.sink(job.Result{
			Job:         j,
			Err:         err,
			CompletedAt: completedAt,
			WorkerID:    w.ID,
		})
	}
}

func allowFaultLog(limiter *catrate.Limiter, workerID int) bool {
	_, ok := limiter.Allow(workerID)
	return ok
}

// stackInputs assembles the batch tensor. Every job input, like the
// dummy shape, carries a leading dim of 1; that dim is folded into the
// batch dim so the result has the engine's input shape.
func stackInputs(b job.Batch) (tensor.Tensor, error) {
	t, err := tensor.Stack(b.Inputs())
	if err != nil {
		return tensor.Tensor{}, err
	}
	if len(t.Shape) < 2 || t.Shape[1] != 1 {
		return tensor.Tensor{}, fmt.Errorf("%w: job input shape %v has no leading dim of 1", errs.ErrPipeline, t.Shape.Trailing())
	}
	t.Shape = append(tensor.Shape{t.Shape[0]}, t.Shape[2:]...)
	return t, nil
}

// Shutdown stops accepting new jobs, lets the currently-open batch
// flush and finish, then releases the Engine and any script host
// registered via RegisterCloser.
func (w *Worker) Shutdown(ctx context.Context) error {
	if err := w.batch.Shutdown(ctx); err != nil {
		return err
	}
	for _, c := range w.closers {
		_ = c()
	}
	return w.eng.Close()
}

// RegisterCloser adds a resource (e.g. a scripthost.Host) to be
// released during Shutdown, after the Batcher has drained.
func (w *Worker) RegisterCloser(c func() error) {
	w.closers = append(w.closers, c)
}
