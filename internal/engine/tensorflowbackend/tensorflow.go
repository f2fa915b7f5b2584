// Package tensorflowbackend registers the tensorflow backend kind. No
// retrieved example exercises a Go TensorFlow binding; see
// internal/engine/unimplemented and DESIGN.md.
package tensorflowbackend

import (
	"github.com/joeycumines/omniengine/internal/engine"
	"github.com/joeycumines/omniengine/internal/engine/unimplemented"
)

func init() {
	engine.Register(engine.TensorFlow, unimplemented.Loader(engine.TensorFlow))
}
