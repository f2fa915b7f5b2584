// Package wire implements the self-describing binary payload format
// jobs and results cross the queue boundary in: CBOR-encoded maps,
// via github.com/fxamacker/cbor/v2.
package wire

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/joeycumines/omniengine/internal/errs"
	"github.com/joeycumines/omniengine/internal/job"
	"github.com/joeycumines/omniengine/internal/tensor"
)

// JobPayload is the wire shape of one inbound request, as popped from
// the ingress queue key.
type JobPayload struct {
	ID    string `cbor:"id"`
	Shape []int  `cbor:"shape"`
	DType string `cbor:"dtype"`
	Input []byte `cbor:"input"`
}

// ResultPayload is the wire shape of one completed result, as written
// to out_prefix+id.
type ResultPayload struct {
	ID          string `cbor:"id"`
	Shape       []int  `cbor:"shape,omitempty"`
	DType       string `cbor:"dtype,omitempty"`
	Output      []byte `cbor:"output,omitempty"`
	Error       string `cbor:"error,omitempty"`
	SubmittedAt int64  `cbor:"submitted_at"`
	CompletedAt int64  `cbor:"completed_at"`
	WorkerID    int    `cbor:"worker_id"`
}

// DecodeJob decodes raw ingress bytes into a job.Job. SubmittedAt and
// ReplyKey are not part of the wire payload: DecodeJob derives ReplyKey
// from outPrefix, and the caller stamps SubmittedAt after a successful
// decode.
func DecodeJob(raw []byte, outPrefix string) (job.Job, error) {
	var p JobPayload
	if err := cbor.Unmarshal(raw, &p); err != nil {
		return job.Job{}, fmt.Errorf("%w: %v", errs.ErrIngressDecode, err)
	}
	if p.ID == "" {
		return job.Job{}, fmt.Errorf("%w: missing id", errs.ErrIngressDecode)
	}

	t := tensor.Tensor{DType: tensor.DType(p.DType), Shape: p.Shape, Data: p.Input}
	if err := t.Validate(); err != nil {
		return job.Job{}, fmt.Errorf("%w: %v", errs.ErrIngressDecode, err)
	}

	return job.Job{
		ID:       p.ID,
		Input:    t,
		ReplyKey: job.ReplyKeyFor(outPrefix, p.ID),
	}, nil
}

// EncodeResult encodes a job.Result into the CBOR payload written to
// its ReplyKey. A non-nil Err is encoded as the "error" field with no
// "output"/"shape"/"dtype" fields.
func EncodeResult(r job.Result) ([]byte, error) {
	p := ResultPayload{
		ID:          r.Job.ID,
		SubmittedAt: r.Job.SubmittedAt.UnixMilli(),
		CompletedAt: r.CompletedAt.UnixMilli(),
		WorkerID:    r.WorkerID,
	}
	if r.Err != nil {
		p.Error = r.Err.Error()
	} else {
		p.Shape = r.Output.Shape
		p.DType = string(r.Output.DType)
		p.Output = r.Output.Data
	}

	raw, err := cbor.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrEgressWrite, err)
	}
	return raw, nil
}
