// Package unimplemented backs the backend adapters with no available
// Go binding yet (TensorRT, Torch, TensorFlow). It satisfies
// engine.Engine structurally so EngineSpec validation and the backend
// factory have a concrete, testable target for every declared backend
// kind, and fails fast with errs.ErrEngineLoad rather than panicking
// or silently succeeding.
package unimplemented

import (
	"context"
	"fmt"

	"github.com/joeycumines/omniengine/internal/engine"
	"github.com/joeycumines/omniengine/internal/errs"
	"github.com/joeycumines/omniengine/internal/tensor"
)

type backend struct {
	name engine.Backend
}

// Loader returns an engine.Loader that always fails to load, naming
// the backend it stands in for.
func Loader(name engine.Backend) engine.Loader {
	return func(spec engine.Spec) (engine.Engine, error) {
		return nil, fmt.Errorf("%w: backend %q is not linked into this build", errs.ErrEngineLoad, name)
	}
}

// compile-time assertion that backend would satisfy engine.Engine, had
// Loader ever returned one.
var _ engine.Engine = (*backend)(nil)

func (b *backend) Infer(context.Context, tensor.Tensor) (tensor.Tensor, error) {
	return tensor.Tensor{}, fmt.Errorf("%w: backend %q is not linked into this build", errs.ErrEngineLoad, b.name)
}
func (b *backend) BatchSize() int                           { return 0 }
func (b *backend) InputSpec() (tensor.Shape, tensor.DType)  { return nil, "" }
func (b *backend) OutputSpec() (tensor.Shape, tensor.DType) { return nil, "" }
func (b *backend) Close() error                             { return nil }
