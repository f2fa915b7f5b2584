package scripthost

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/omniengine/internal/tensor"
)

const normalizeSrc = `
function normalize(shape, dtype, bytes) {
  var view = new Uint8Array(bytes);
  var out = new Uint8Array(view.length);
  for (var i = 0; i < view.length; i++) {
    out[i] = 255 - view[i];
  }
  return {shape: shape, dtype: dtype, bytes: out.buffer};
}
`

func TestHost_Apply(t *testing.T) {
	h, err := New(normalizeSrc, "normalize")
	require.NoError(t, err)
	defer h.Close()

	in := tensor.Tensor{DType: tensor.U8, Shape: tensor.Shape{1, 3}, Data: []byte{0, 10, 255}}
	out, err := h.Apply(in)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 3}, out.Shape)
	assert.Equal(t, tensor.U8, out.DType)
	assert.Equal(t, []byte{255, 245, 0}, out.Data)
}

func TestNew_MissingFunction(t *testing.T) {
	_, err := New(`function other() {}`, "normalize")
	assert.Error(t, err)
}

func TestNew_NotAFunction(t *testing.T) {
	_, err := New(`var normalize = 1;`, "normalize")
	assert.Error(t, err)
}

func TestNew_SyntaxError(t *testing.T) {
	_, err := New(`function normalize( {`, "normalize")
	assert.Error(t, err)
}

func TestHost_Apply_BadReturnShape(t *testing.T) {
	h, err := New(`function normalize(shape, dtype, bytes) { return {shape: "nope", dtype: dtype, bytes: bytes}; }`, "normalize")
	require.NoError(t, err)
	defer h.Close()

	_, err = h.Apply(tensor.Tensor{DType: tensor.U8, Shape: tensor.Shape{1}, Data: []byte{1}})
	assert.Error(t, err)
}
