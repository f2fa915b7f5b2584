// Package torchbackend registers the torch backend kind. No retrieved
// example exercises a Go LibTorch binding; see
// internal/engine/unimplemented and DESIGN.md.
package torchbackend

import (
	"github.com/joeycumines/omniengine/internal/engine"
	"github.com/joeycumines/omniengine/internal/engine/unimplemented"
)

func init() {
	engine.Register(engine.Torch, unimplemented.Loader(engine.Torch))
}
