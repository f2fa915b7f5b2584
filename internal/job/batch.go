package job

import (
	"fmt"

	"github.com/joeycumines/omniengine/internal/errs"
	"github.com/joeycumines/omniengine/internal/tensor"
)

// Batch is an ordered sequence of Jobs of length exactly B, the
// engine's declared batch size. Real jobs occupy the leading positions
// in dispatch order; dummies are always trailing.
type Batch struct {
	Jobs []Job
}

// Pad grows jobs (already in reception order) to exactly size B by
// appending dummy jobs shaped like shape/dtype. It is a programming
// error (ErrBatch) for jobs to already exceed b; the caller's bounded
// channel must prevent that.
func Pad(jobs []Job, b int, shape tensor.Shape, dtype tensor.DType) (Batch, error) {
	if len(jobs) > b {
		return Batch{}, fmt.Errorf("%w: %d jobs exceeds max_batch %d", errs.ErrBatch, len(jobs), b)
	}
	out := make([]Job, 0, b)
	out = append(out, jobs...)
	for len(out) < b {
		out = append(out, NewDummy(shape, dtype))
	}
	return Batch{Jobs: out}, nil
}

// RealCount returns the number of non-dummy jobs in the batch.
func (b Batch) RealCount() int {
	n := 0
	for _, j := range b.Jobs {
		if !j.IsDummy {
			n++
		}
	}
	return n
}

// Inputs returns the ordered input tensors of every job in the batch,
// real and dummy alike: B rows, in batch order, as the engine contract
// expects.
func (b Batch) Inputs() []tensor.Tensor {
	out := make([]tensor.Tensor, len(b.Jobs))
	for i, j := range b.Jobs {
		out[i] = j.Input
	}
	return out
}
