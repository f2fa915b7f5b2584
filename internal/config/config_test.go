package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/omniengine/internal/engine"
	"github.com/joeycumines/omniengine/internal/errs"
	"github.com/joeycumines/omniengine/internal/tensor"
)

const validTOML = `
[model]
backend = "onnx"
device = "cpu"
model_path = "/models/resnet.onnx"
input_names = ["input"]
output_names = ["output"]
input_shapes = [[4, 3, 224, 224]]
output_shapes = [[4, 1000]]

[input]
batch = 4
channels = 3
height = 224
width = 224
dtype = "f32"

[queue]
max_batch = 4
max_wait_ms = 50

[redis]
url = "redis://localhost:6379/0"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "runtime.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Valid(t *testing.T) {
	cfg, err := Load(writeConfig(t, validTOML))
	require.NoError(t, err)
	assert.Equal(t, "onnx", cfg.Model.Backend)
	assert.Equal(t, "results:", cfg.Redis.OutPrefix)
	assert.Equal(t, "inference_queue", cfg.Redis.InQueue)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, errs.ErrConfig)
}

func TestLoad_MalformedTOML(t *testing.T) {
	_, err := Load(writeConfig(t, "not = [valid"))
	assert.ErrorIs(t, err, errs.ErrConfig)
}

func TestLoad_ScriptDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, validTOML))
	require.NoError(t, err)
	assert.Empty(t, cfg.Preprocess.Source)
	assert.Empty(t, cfg.Preprocess.Func)

	withScript := validTOML + `
[preprocess]
source = "function apply(shape, dtype, bytes) { return {shape: shape, dtype: dtype, bytes: bytes}; }"

[postprocess]
source = "function apply(shape, dtype, bytes) { return {shape: shape, dtype: dtype, bytes: bytes}; }"
func = "apply"
`
	cfg, err = Load(writeConfig(t, withScript))
	require.NoError(t, err)
	assert.Equal(t, "apply", cfg.Preprocess.Func)
	assert.Equal(t, "apply", cfg.Postprocess.Func)
}

func TestEngineSpec(t *testing.T) {
	cfg, err := Load(writeConfig(t, validTOML))
	require.NoError(t, err)

	spec := cfg.EngineSpec(2)
	assert.Equal(t, engine.ONNX, spec.Backend)
	assert.Equal(t, engine.CPU, spec.Device)
	assert.Equal(t, 2, spec.DeviceOrdinal)
	assert.Equal(t, []tensor.Shape{{4, 3, 224, 224}}, spec.InputShapes)
	assert.Equal(t, tensor.F32, spec.DType)
}

func TestValidate_Failures(t *testing.T) {
	base := func() Config {
		cfg, err := Load(writeConfig(t, validTOML))
		require.NoError(t, err)
		return cfg
	}

	t.Run("bad backend", func(t *testing.T) {
		cfg := base()
		cfg.Model.Backend = "bogus"
		assert.ErrorIs(t, cfg.Validate(), errs.ErrConfig)
	})

	t.Run("gpu device missing ids", func(t *testing.T) {
		cfg := base()
		cfg.Model.Device = "gpu"
		cfg.Model.GPUIDs = nil
		assert.ErrorIs(t, cfg.Validate(), errs.ErrConfig)
	})

	t.Run("bad device", func(t *testing.T) {
		cfg := base()
		cfg.Model.Device = "tpu"
		assert.ErrorIs(t, cfg.Validate(), errs.ErrConfig)
	})

	t.Run("missing model path", func(t *testing.T) {
		cfg := base()
		cfg.Model.ModelPath = ""
		assert.ErrorIs(t, cfg.Validate(), errs.ErrConfig)
	})

	t.Run("bad input dtype", func(t *testing.T) {
		cfg := base()
		cfg.Input.DType = "bf16"
		assert.ErrorIs(t, cfg.Validate(), errs.ErrConfig)
	})

	t.Run("non-positive input dims", func(t *testing.T) {
		cfg := base()
		cfg.Input.Width = 0
		assert.ErrorIs(t, cfg.Validate(), errs.ErrConfig)
	})

	t.Run("non-positive max_batch", func(t *testing.T) {
		cfg := base()
		cfg.Queue.MaxBatch = 0
		assert.ErrorIs(t, cfg.Validate(), errs.ErrConfig)
	})

	t.Run("negative max_wait_ms", func(t *testing.T) {
		cfg := base()
		cfg.Queue.MaxWaitMS = -1
		assert.ErrorIs(t, cfg.Validate(), errs.ErrConfig)
	})

	t.Run("no input shapes", func(t *testing.T) {
		cfg := base()
		cfg.Model.InputShapes = nil
		assert.ErrorIs(t, cfg.Validate(), errs.ErrConfig)
	})

	t.Run("leading dim mismatch", func(t *testing.T) {
		cfg := base()
		cfg.Model.InputShapes = [][]int{{1, 3, 224, 224}}
		assert.ErrorIs(t, cfg.Validate(), errs.ErrConfig)
	})

	t.Run("non-positive input shape extent", func(t *testing.T) {
		cfg := base()
		cfg.Model.InputShapes = [][]int{{4, 3, 0, 224}}
		assert.ErrorIs(t, cfg.Validate(), errs.ErrConfig)
	})

	t.Run("non-positive output shape extent", func(t *testing.T) {
		cfg := base()
		cfg.Model.OutputShapes = [][]int{{4, -1}}
		assert.ErrorIs(t, cfg.Validate(), errs.ErrConfig)
	})

	t.Run("missing redis url", func(t *testing.T) {
		cfg := base()
		cfg.Redis.URL = ""
		assert.ErrorIs(t, cfg.Validate(), errs.ErrConfig)
	})
}
