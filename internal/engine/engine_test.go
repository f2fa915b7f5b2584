package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/omniengine/internal/errs"
	"github.com/joeycumines/omniengine/internal/tensor"
)

type noopEngine struct{ spec Spec }

func (e *noopEngine) Infer(context.Context, tensor.Tensor) (tensor.Tensor, error) {
	return tensor.Tensor{}, nil
}
func (e *noopEngine) BatchSize() int                           { return e.spec.BatchSize() }
func (e *noopEngine) InputSpec() (tensor.Shape, tensor.DType)  { return e.spec.InputShapes[0], e.spec.DType }
func (e *noopEngine) OutputSpec() (tensor.Shape, tensor.DType) { return e.spec.OutputShapes[0], e.spec.DType }
func (e *noopEngine) Close() error                             { return nil }

func TestSpec_BatchSize(t *testing.T) {
	s := Spec{InputShapes: []tensor.Shape{{8, 3, 224, 224}}}
	assert.Equal(t, 8, s.BatchSize())

	empty := Spec{}
	assert.Equal(t, 0, empty.BatchSize())
}

func TestRegisterAndLoad(t *testing.T) {
	const testBackend Backend = "test-backend-engine"
	Register(testBackend, func(spec Spec) (Engine, error) {
		return &noopEngine{spec: spec}, nil
	})

	spec := Spec{Backend: testBackend, InputShapes: []tensor.Shape{{1}}, OutputShapes: []tensor.Shape{{1}}, DType: tensor.F32}
	e, err := Load(spec)
	require.NoError(t, err)
	assert.Equal(t, 1, e.BatchSize())
}

func TestLoad_UnregisteredBackend(t *testing.T) {
	_, err := Load(Spec{Backend: Backend("never-registered")})
	assert.ErrorIs(t, err, errs.ErrEngineLoad)
}

func TestLoad_LoaderError(t *testing.T) {
	const failBackend Backend = "test-backend-fails"
	Register(failBackend, func(Spec) (Engine, error) {
		return nil, assert.AnError
	})

	_, err := Load(Spec{Backend: failBackend})
	assert.ErrorIs(t, err, errs.ErrEngineLoad)
}
