// Package pipeline composes the three stages a Worker drives per
// batch: an optional preprocessor, the mandatory Engine, and an
// optional postprocessor. Absent stages behave as identity.
package pipeline

import (
	"context"
	"fmt"

	"github.com/joeycumines/omniengine/internal/engine"
	"github.com/joeycumines/omniengine/internal/errs"
	"github.com/joeycumines/omniengine/internal/tensor"
)

// Stage is the capability custom preprocess/postprocess stages
// implement: apply(Tensor) -> Tensor. Stages must be pure with respect
// to the batch they receive; the Pipeline never invokes a Stage
// concurrently with itself, so stateful stages (e.g. running
// statistics across batches) are safe as long as they document it.
type Stage interface {
	Apply(t tensor.Tensor) (tensor.Tensor, error)
}

// StageFunc adapts a plain function to the Stage interface.
type StageFunc func(t tensor.Tensor) (tensor.Tensor, error)

func (f StageFunc) Apply(t tensor.Tensor) (tensor.Tensor, error) { return f(t) }

// identity is the Stage used when a slot is left unconfigured.
var identity Stage = StageFunc(func(t tensor.Tensor) (tensor.Tensor, error) { return t, nil })

// Pipeline is an ordered preprocess -> engine -> postprocess
// composition around one Engine instance.
type Pipeline struct {
	Pre  Stage
	Eng  engine.Engine
	Post Stage
}

// New builds a Pipeline. A nil pre/post stage is replaced with
// identity.
func New(pre Stage, eng engine.Engine, post Stage) *Pipeline {
	if pre == nil {
		pre = identity
	}
	if post == nil {
		post = identity
	}
	return &Pipeline{Pre: pre, Eng: eng, Post: post}
}

// Run drives one batch tensor (leading dim B) through preprocess,
// engine inference, and postprocess, returning the final output tensor
// (leading dim B) for the caller to split per job index.
func (p *Pipeline) Run(ctx context.Context, batchInput tensor.Tensor) (tensor.Tensor, error) {
	wantShape, wantDType := p.Eng.InputSpec()
	wantTrailing := wantShape.Trailing()

	pre, err := p.Pre.Apply(batchInput)
	if err != nil {
		return tensor.Tensor{}, fmt.Errorf("%w: preprocessor: %v", errs.ErrPipeline, err)
	}
	if !pre.Shape.Trailing().Equal(wantTrailing) || pre.DType != wantDType {
		return tensor.Tensor{}, fmt.Errorf("%w: preprocessor output shape %v dtype %s does not match engine input %v dtype %s",
			errs.ErrPipeline, pre.Shape, pre.DType, wantShape, wantDType)
	}

	out, err := p.Eng.Infer(ctx, pre)
	if err != nil {
		return tensor.Tensor{}, err // already wrapped in errs.ErrBackendFault by the adapter
	}

	post, err := p.Post.Apply(out)
	if err != nil {
		return tensor.Tensor{}, fmt.Errorf("%w: postprocessor: %v", errs.ErrPipeline, err)
	}
	if len(post.Shape) == 0 || post.Shape[0] != batchInput.Shape[0] {
		return tensor.Tensor{}, fmt.Errorf("%w: postprocessor output leading dim %v does not match batch size %d",
			errs.ErrPipeline, post.Shape, batchInput.Shape[0])
	}

	return post, nil
}

// Split divides a tensor with leading dim B into B row tensors, in
// order, for per-job result assignment.
func Split(t tensor.Tensor, b int) ([]tensor.Tensor, error) {
	if len(t.Shape) == 0 || t.Shape[0] != b {
		return nil, fmt.Errorf("%w: cannot split tensor shape %v into %d rows", errs.ErrPipeline, t.Shape, b)
	}
	out := make([]tensor.Tensor, b)
	for i := 0; i < b; i++ {
		out[i] = t.Row(i)
	}
	return out, nil
}
