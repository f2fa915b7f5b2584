// Package tensorrtbackend registers the tensorrt backend kind. No
// retrieved example exercises a Go TensorRT binding; see
// internal/engine/unimplemented and DESIGN.md.
package tensorrtbackend

import (
	"github.com/joeycumines/omniengine/internal/engine"
	"github.com/joeycumines/omniengine/internal/engine/unimplemented"
)

func init() {
	engine.Register(engine.TensorRT, unimplemented.Loader(engine.TensorRT))
}
