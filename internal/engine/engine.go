// Package engine defines the backend-engine capability contract: load
// a model, run one batch, report the shapes it was configured with.
// Concrete backends (ONNX, TensorRT, Torch, TensorFlow) are adapters
// implementing this interface; nothing here depends on any of them.
package engine

import (
	"context"
	"fmt"

	"github.com/joeycumines/omniengine/internal/errs"
	"github.com/joeycumines/omniengine/internal/tensor"
)

// Backend identifies the inference library a Spec targets.
type Backend string

const (
	ONNX       Backend = "onnx"
	TensorRT   Backend = "tensorrt"
	Torch      Backend = "torch"
	TensorFlow Backend = "tensorflow"
)

// Device identifies where a Spec's model is placed.
type Device string

const (
	CPU Device = "cpu"
	GPU Device = "gpu"
)

// Spec is the immutable description of one loaded model: backend kind,
// device placement, artifact path, input/output names and shapes
// (leading dim B), and dtype. One Spec produces one Engine instance
// per Worker.
type Spec struct {
	Backend       Backend
	Device        Device
	DeviceOrdinal int
	ModelPath     string
	InputNames    []string
	OutputNames   []string
	InputShapes   []tensor.Shape
	OutputShapes  []tensor.Shape
	DType         tensor.DType
}

// BatchSize returns B, the leading dimension shared by every declared
// input/output shape.
func (s Spec) BatchSize() int {
	if len(s.InputShapes) == 0 || len(s.InputShapes[0]) == 0 {
		return 0
	}
	return s.InputShapes[0][0]
}

// Engine is the polymorphic backend capability: load a model, execute
// one batch. Each Worker owns exactly one Engine instance; an Engine
// is NOT required to be safe for concurrent use.
type Engine interface {
	// Infer runs exactly one batch. input has leading dim B, shape
	// matching InputSpec(), dtype matching Spec.DType. The returned
	// tensor has leading dim B, shape matching OutputSpec().
	//
	// Infer fails with errs.ErrBackendFault on device OOM, shape
	// mismatch, or library error. The fault is fatal to the current
	// batch, never to the Engine or the Worker that owns it.
	Infer(ctx context.Context, input tensor.Tensor) (tensor.Tensor, error)

	// BatchSize returns B.
	BatchSize() int

	// InputSpec and OutputSpec report the shape (including leading
	// dim B) and dtype the Engine was configured with.
	InputSpec() (tensor.Shape, tensor.DType)
	OutputSpec() (tensor.Shape, tensor.DType)

	// Close releases the loaded model and any device context. Called
	// once, when the owning Worker shuts down.
	Close() error
}

// Loader constructs an Engine from a Spec. Each backend adapter
// package exposes one of these as its entry point.
type Loader func(spec Spec) (Engine, error)

// loaders is the backend-kind -> constructor registry, populated by
// the backend adapter packages' init functions via Register.
var loaders = map[Backend]Loader{}

// Register associates a Backend kind with the Loader that constructs
// it. Backend adapter packages call this from an init function so
// that importing the adapter package is sufficient to make it
// available to Load.
func Register(b Backend, l Loader) {
	loaders[b] = l
}

// Load selects the Loader registered for spec.Backend and constructs
// an Engine from it.
func Load(spec Spec) (Engine, error) {
	l, ok := loaders[spec.Backend]
	if !ok {
		return nil, fmt.Errorf("%w: no adapter registered for backend %q", errs.ErrEngineLoad, spec.Backend)
	}
	e, err := l(spec)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errs.ErrEngineLoad, spec.Backend, err)
	}
	return e, nil
}
