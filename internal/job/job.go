// Package job defines the inference-request value type and the
// fixed-size batch it is grouped into before reaching the engine.
package job

import (
	"time"

	"github.com/google/uuid"

	"github.com/joeycumines/omniengine/internal/tensor"
)

// Job is a single inference request as it flows from ingress through
// dispatch, batching, and the pipeline to result publication.
type Job struct {
	// ID is the opaque unique correlation string from the wire
	// payload. Empty for dummy jobs.
	ID string

	// Input is the job's single input tensor. Multi-input models are a
	// documented future extension point, not yet implemented.
	Input tensor.Tensor

	// SubmittedAt is the monotonic timestamp stamped at ingress, used
	// for latency observability only, never for ordering.
	SubmittedAt time.Time

	// ReplyKey is out_prefix + ID, the key the result must be
	// published at. Empty for dummy jobs.
	ReplyKey string

	// IsDummy is true only for synthetic padding entries added by the
	// Batcher. Dummy jobs never originate from a client, carry no
	// ReplyKey, and must never be published.
	IsDummy bool

	// dummyTag is a synthetic correlation id for dummy jobs, used only
	// in diagnostic logging; it is never part of the wire format and
	// has no bearing on any invariant.
	dummyTag string
}

// NewDummy synthesizes a padding job whose input tensor replicates the
// shape of a real input. Content is undefined (zero-filled).
func NewDummy(shape tensor.Shape, dtype tensor.DType) Job {
	return Job{
		Input:    tensor.Zeros(shape, dtype),
		IsDummy:  true,
		dummyTag: uuid.NewString(),
	}
}

// DummyTag returns the synthetic diagnostic id for a dummy job, or the
// empty string for a real job.
func (j Job) DummyTag() string {
	return j.dummyTag
}

// ReplyKeyFor derives the reply key for a real job id under the
// configured out_prefix.
func ReplyKeyFor(outPrefix, id string) string {
	return outPrefix + id
}

// Result is the outcome of running a non-dummy Job through a Pipeline:
// either an output tensor, or a BackendFault error to be published in
// its place.
type Result struct {
	Job         Job
	Output      tensor.Tensor
	Err         error
	CompletedAt time.Time
	WorkerID    int
}
