// Package config decodes and validates the TOML runtime configuration
// file, via github.com/BurntSushi/toml. Validation is structural and
// happens once, at load, so a malformed config fails fast before any
// worker starts.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/joeycumines/omniengine/internal/engine"
	"github.com/joeycumines/omniengine/internal/errs"
	"github.com/joeycumines/omniengine/internal/tensor"
)

// Model mirrors the [model] table.
type Model struct {
	Backend      string   `toml:"backend"`
	Device       string   `toml:"device"`
	ModelPath    string   `toml:"model_path"`
	GPUIDs       []int    `toml:"gpu_ids"`
	InputNames   []string `toml:"input_names"`
	OutputNames  []string `toml:"output_names"`
	InputShapes  [][]int  `toml:"input_shapes"`
	OutputShapes [][]int  `toml:"output_shapes"`
}

// Input mirrors the [input] table.
type Input struct {
	Batch    int    `toml:"batch"`
	Channels int    `toml:"channels"`
	Height   int    `toml:"height"`
	Width    int    `toml:"width"`
	DType    string `toml:"dtype"`
}

// Queue mirrors the [queue] table.
type Queue struct {
	MaxBatch  int `toml:"max_batch"`
	MaxWaitMS int `toml:"max_wait_ms"`
}

// Redis mirrors the [redis] table.
type Redis struct {
	URL       string `toml:"url"`
	OutPrefix string `toml:"out_prefix"`
	InQueue   string `toml:"in_queue"`
}

// Script mirrors a [preprocess]/[postprocess] table: a custom stage
// loaded into a scripthost.Host. An empty Source leaves the slot
// unconfigured and the Pipeline runs that stage as identity.
type Script struct {
	Source string `toml:"source"`
	Func   string `toml:"func"`
}

// Config is the decoded, validated runtime.toml.
type Config struct {
	Model       Model  `toml:"model"`
	Input       Input  `toml:"input"`
	Queue       Queue  `toml:"queue"`
	Redis       Redis  `toml:"redis"`
	Preprocess  Script `toml:"preprocess"`
	Postprocess Script `toml:"postprocess"`
}

// Load reads and decodes path, applies defaults, and validates the
// result. Returns errs.ErrConfig on any structural problem.
func Load(path string) (Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: decode %s: %v", errs.ErrConfig, path, err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Redis.OutPrefix == "" {
		c.Redis.OutPrefix = "results:"
	}
	if c.Redis.InQueue == "" {
		c.Redis.InQueue = "inference_queue"
	}
	if c.Preprocess.Source != "" && c.Preprocess.Func == "" {
		c.Preprocess.Func = "apply"
	}
	if c.Postprocess.Source != "" && c.Postprocess.Func == "" {
		c.Postprocess.Func = "apply"
	}
}

// Validate checks every structural invariant the runtime configuration
// must satisfy, failing fast before any Engine is loaded.
func (c Config) Validate() error {
	switch engine.Backend(c.Model.Backend) {
	case engine.ONNX, engine.TensorRT, engine.Torch, engine.TensorFlow:
	default:
		return fmt.Errorf("%w: model.backend %q is not one of onnx|tensorrt|torch|tensorflow", errs.ErrConfig, c.Model.Backend)
	}

	switch engine.Device(c.Model.Device) {
	case engine.CPU:
	case engine.GPU:
		if len(c.Model.GPUIDs) == 0 {
			return fmt.Errorf("%w: model.gpu_ids is required when model.device = \"gpu\"", errs.ErrConfig)
		}
	default:
		return fmt.Errorf("%w: model.device %q is not one of cpu|gpu", errs.ErrConfig, c.Model.Device)
	}

	if c.Model.ModelPath == "" {
		return fmt.Errorf("%w: model.model_path is required", errs.ErrConfig)
	}

	if !tensor.DType(c.Input.DType).Valid() {
		return fmt.Errorf("%w: input.dtype %q is not one of f32|f16|u8|i8|i32", errs.ErrConfig, c.Input.DType)
	}
	if c.Input.Batch <= 0 || c.Input.Channels <= 0 || c.Input.Height <= 0 || c.Input.Width <= 0 {
		return fmt.Errorf("%w: input.batch/channels/height/width must all be positive", errs.ErrConfig)
	}

	if c.Queue.MaxBatch <= 0 {
		return fmt.Errorf("%w: queue.max_batch must be positive", errs.ErrConfig)
	}
	if c.Queue.MaxWaitMS < 0 {
		return fmt.Errorf("%w: queue.max_wait_ms must be non-negative", errs.ErrConfig)
	}

	if len(c.Model.InputShapes) == 0 {
		return fmt.Errorf("%w: model.input_shapes must declare at least one input", errs.ErrConfig)
	}
	b := c.Model.InputShapes[0]
	if len(b) == 0 || b[0] != c.Queue.MaxBatch {
		return fmt.Errorf("%w: model.input_shapes[0][0] (%v) must equal queue.max_batch (%d)", errs.ErrConfig, b, c.Queue.MaxBatch)
	}
	for i, shape := range c.Model.InputShapes {
		for j, d := range shape {
			if d <= 0 {
				return fmt.Errorf("%w: model.input_shapes[%d][%d] must be positive, got %d", errs.ErrConfig, i, j, d)
			}
		}
	}
	for i, shape := range c.Model.OutputShapes {
		for j, d := range shape {
			if d <= 0 {
				return fmt.Errorf("%w: model.output_shapes[%d][%d] must be positive, got %d", errs.ErrConfig, i, j, d)
			}
		}
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("%w: redis.url is required", errs.ErrConfig)
	}

	return nil
}

// EngineSpec derives an engine.Spec for a given GPU ordinal (ignored
// when Model.Device is cpu).
func (c Config) EngineSpec(deviceOrdinal int) engine.Spec {
	return engine.Spec{
		Backend:       engine.Backend(c.Model.Backend),
		Device:        engine.Device(c.Model.Device),
		DeviceOrdinal: deviceOrdinal,
		ModelPath:     c.Model.ModelPath,
		InputNames:    c.Model.InputNames,
		OutputNames:   c.Model.OutputNames,
		InputShapes:   toShapes(c.Model.InputShapes),
		OutputShapes:  toShapes(c.Model.OutputShapes),
		DType:         tensor.DType(c.Input.DType),
	}
}

func toShapes(raw [][]int) []tensor.Shape {
	out := make([]tensor.Shape, len(raw))
	for i, s := range raw {
		out[i] = tensor.Shape(s)
	}
	return out
}
