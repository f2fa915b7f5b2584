// Package scripthost adapts github.com/dop251/goja as the embedded
// scripting runtime behind the custom preprocess/postprocess stage
// contract: one *goja.Runtime per Worker, loaded once at Worker
// startup, released at Worker shutdown. The host language is
// single-threaded (goja.Runtime is not safe for concurrent use), so no
// cross-worker sharing is permitted, enforced simply by each Worker
// owning its own Host.
package scripthost

import (
	"fmt"

	"github.com/dop251/goja"

	"github.com/joeycumines/omniengine/internal/tensor"
)

// Host owns one goja.Runtime and the compiled stage function loaded
// into it. Not safe for concurrent use.
type Host struct {
	rt     *goja.Runtime
	apply  goja.Callable
	source string
}

// New compiles source (a JS program defining a top-level function
// named fnName with signature
// function(shape: number[], dtype: string, bytes: ArrayBuffer) -> {shape, dtype, bytes}
// ) into a fresh runtime.
func New(source, fnName string) (*Host, error) {
	rt := goja.New()
	if _, err := rt.RunString(source); err != nil {
		return nil, fmt.Errorf("scripthost: run script: %w", err)
	}

	val := rt.Get(fnName)
	if val == nil {
		return nil, fmt.Errorf("scripthost: script does not define %q", fnName)
	}
	fn, ok := goja.AssertFunction(val)
	if !ok {
		return nil, fmt.Errorf("scripthost: %q is not a function", fnName)
	}

	return &Host{rt: rt, apply: fn, source: source}, nil
}

// Apply invokes the compiled stage function with t's shape, dtype and
// raw bytes, and decodes its return value back into a Tensor.
func (h *Host) Apply(t tensor.Tensor) (tensor.Tensor, error) {
	shape := make([]interface{}, len(t.Shape))
	for i, d := range t.Shape {
		shape[i] = int64(d)
	}

	result, err := h.apply(goja.Undefined(), h.rt.ToValue(shape), h.rt.ToValue(string(t.DType)), h.rt.ToValue(h.rt.NewArrayBuffer(t.Data)))
	if err != nil {
		return tensor.Tensor{}, fmt.Errorf("scripthost: stage call failed: %w", err)
	}

	exported, ok := result.Export().(map[string]interface{})
	if !ok {
		return tensor.Tensor{}, fmt.Errorf("scripthost: stage did not return an object")
	}

	shapeOut, err := exportShape(exported["shape"])
	if err != nil {
		return tensor.Tensor{}, fmt.Errorf("scripthost: %w", err)
	}
	dtypeOut, _ := exported["dtype"].(string)
	bytesOut, err := exportBytes(exported["bytes"])
	if err != nil {
		return tensor.Tensor{}, fmt.Errorf("scripthost: %w", err)
	}

	return tensor.Tensor{
		DType: tensor.DType(dtypeOut),
		Shape: shapeOut,
		Data:  bytesOut,
	}, nil
}

func exportShape(v interface{}) (tensor.Shape, error) {
	raw, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("stage result.shape is not an array")
	}
	out := make(tensor.Shape, len(raw))
	for i, d := range raw {
		n, ok := d.(int64)
		if !ok {
			if f, ok := d.(float64); ok {
				n = int64(f)
			} else {
				return nil, fmt.Errorf("stage result.shape[%d] is not numeric", i)
			}
		}
		out[i] = int(n)
	}
	return out, nil
}

func exportBytes(v interface{}) ([]byte, error) {
	switch b := v.(type) {
	case goja.ArrayBuffer:
		return b.Bytes(), nil
	case []byte:
		return b, nil
	default:
		return nil, fmt.Errorf("stage result.bytes is not an ArrayBuffer")
	}
}

// Close releases the runtime. Called once, when the owning Worker
// shuts down.
func (h *Host) Close() error {
	h.rt = nil
	h.apply = nil
	return nil
}
