// Package onnxbackend adapts github.com/yalue/onnxruntime_go sessions
// to the engine.Engine capability. Session construction and tensor
// lifetime follow the embedding-model pattern retrieved from the
// example pack (see DESIGN.md).
package onnxbackend

import (
	"context"
	"fmt"

	onnxruntime "github.com/yalue/onnxruntime_go"

	"github.com/joeycumines/omniengine/internal/engine"
	"github.com/joeycumines/omniengine/internal/errs"
	"github.com/joeycumines/omniengine/internal/tensor"
)

func init() {
	engine.Register(engine.ONNX, Load)
}

// backend wraps one onnxruntime session, owned exclusively by the
// Worker that constructed it.
type backend struct {
	session     *onnxruntime.DynamicAdvancedSession
	inputShape  tensor.Shape
	outputShape tensor.Shape
	dtype       tensor.DType
	batchSize   int
}

// Load constructs an onnxruntime session for spec.ModelPath. Called
// once per Worker, at startup.
func Load(spec engine.Spec) (engine.Engine, error) {
	if spec.ModelPath == "" {
		return nil, fmt.Errorf("onnx: model_path is required")
	}
	if len(spec.InputShapes) == 0 || len(spec.OutputShapes) == 0 {
		return nil, fmt.Errorf("onnx: input_shapes and output_shapes are required")
	}

	inputNames, outputNames := spec.InputNames, spec.OutputNames
	if len(inputNames) == 0 || len(outputNames) == 0 {
		inInfo, outInfo, err := onnxruntime.GetInputOutputInfo(spec.ModelPath)
		if err != nil {
			return nil, fmt.Errorf("onnx: get input/output info: %w", err)
		}
		if len(inputNames) == 0 {
			for _, in := range inInfo {
				inputNames = append(inputNames, in.Name)
			}
		}
		if len(outputNames) == 0 {
			for _, out := range outInfo {
				outputNames = append(outputNames, out.Name)
			}
		}
	}

	session, err := onnxruntime.NewDynamicAdvancedSession(spec.ModelPath, inputNames, outputNames, nil)
	if err != nil {
		return nil, fmt.Errorf("onnx: create session: %w", err)
	}

	return &backend{
		session:     session,
		inputShape:  spec.InputShapes[0],
		outputShape: spec.OutputShapes[0],
		dtype:       spec.DType,
		batchSize:   spec.BatchSize(),
	}, nil
}

func (b *backend) BatchSize() int { return b.batchSize }

func (b *backend) InputSpec() (tensor.Shape, tensor.DType)  { return b.inputShape, b.dtype }
func (b *backend) OutputSpec() (tensor.Shape, tensor.DType) { return b.outputShape, b.dtype }

// Infer runs the session once against input, which must already carry
// leading dim B and the configured shape/dtype.
func (b *backend) Infer(ctx context.Context, input tensor.Tensor) (tensor.Tensor, error) {
	if !input.Shape.Equal(b.inputShape) {
		return tensor.Tensor{}, fmt.Errorf("%w: input shape %v does not match spec %v", errs.ErrBackendFault, input.Shape, b.inputShape)
	}

	inTensor, err := toONNXTensor(input)
	if err != nil {
		return tensor.Tensor{}, fmt.Errorf("%w: %v", errs.ErrBackendFault, err)
	}
	defer inTensor.Destroy()

	outputs := []onnxruntime.Value{nil}
	if err := b.session.Run([]onnxruntime.Value{inTensor}, outputs); err != nil {
		return tensor.Tensor{}, fmt.Errorf("%w: session run: %v", errs.ErrBackendFault, err)
	}
	if outputs[0] == nil {
		return tensor.Tensor{}, fmt.Errorf("%w: nil output tensor", errs.ErrBackendFault)
	}

	out, err := fromONNXValue(outputs[0], b.outputShape, b.dtype)
	if err != nil {
		return tensor.Tensor{}, fmt.Errorf("%w: %v", errs.ErrBackendFault, err)
	}
	return out, nil
}

func (b *backend) Close() error {
	return b.session.Destroy()
}

// toONNXTensor and fromONNXValue translate between this repo's
// row-major byte Tensor and onnxruntime_go's typed Value/Tensor[T].
// Only the float32 and int32 paths are implemented; any other dtype is
// rejected with an error, as onnxruntime_go's typed tensors are
// generic over numeric Go types, not raw bytes.
func toONNXTensor(t tensor.Tensor) (onnxruntime.Value, error) {
	shape := make([]int64, len(t.Shape))
	for i, d := range t.Shape {
		shape[i] = int64(d)
	}
	onnxShape := onnxruntime.NewShape(shape...)

	switch t.DType {
	case tensor.F32:
		data := bytesToFloat32(t.Data)
		return onnxruntime.NewTensor(onnxShape, data)
	case tensor.I32:
		data := bytesToInt32(t.Data)
		return onnxruntime.NewTensor(onnxShape, data)
	default:
		return nil, fmt.Errorf("onnx: unsupported dtype %s for direct tensor construction", t.DType)
	}
}

func fromONNXValue(v onnxruntime.Value, shape tensor.Shape, dtype tensor.DType) (tensor.Tensor, error) {
	switch dtype {
	case tensor.F32:
		rt, ok := v.(*onnxruntime.Tensor[float32])
		if !ok {
			return tensor.Tensor{}, fmt.Errorf("onnx: unexpected output type, want *Tensor[float32]")
		}
		defer rt.Destroy()
		return tensor.Tensor{DType: dtype, Shape: shape, Data: float32ToBytes(rt.GetData())}, nil
	case tensor.I32:
		rt, ok := v.(*onnxruntime.Tensor[int32])
		if !ok {
			return tensor.Tensor{}, fmt.Errorf("onnx: unexpected output type, want *Tensor[int32]")
		}
		defer rt.Destroy()
		return tensor.Tensor{DType: dtype, Shape: shape, Data: int32ToBytes(rt.GetData())}, nil
	default:
		return tensor.Tensor{}, fmt.Errorf("onnx: unsupported dtype %s for direct tensor extraction", dtype)
	}
}
