// Package dispatcher assigns inbound jobs to workers by strict
// round-robin, with no failover or load awareness: a stalled worker
// simply backpressures the dispatcher, and eventually ingress itself.
package dispatcher

import (
	"context"
	"sync/atomic"

	"github.com/joeycumines/omniengine/internal/job"
)

// Submitter is the subset of worker.Worker the Dispatcher depends on.
type Submitter interface {
	Submit(ctx context.Context, j job.Job) error
}

// Dispatcher round-robins jobs across a fixed set of Submitters,
// assigned at construction time (one per configured worker/device).
type Dispatcher struct {
	workers []Submitter
	next    atomic.Uint64
}

// New constructs a Dispatcher over workers, in the order they should
// receive jobs. Order is fixed for the process lifetime; workers are
// never added or removed after construction.
func New(workers []Submitter) *Dispatcher {
	return &Dispatcher{workers: workers}
}

// Submit assigns j to the next worker in round-robin order and blocks
// until that worker's Batcher has accepted it. There is no failover:
// if the chosen worker is stalled or shutting down, Submit blocks (or
// returns ctx's error) rather than trying another worker.
func (d *Dispatcher) Submit(ctx context.Context, j job.Job) error {
	i := d.next.Add(1) - 1
	w := d.workers[i%uint64(len(d.workers))]
	return w.Submit(ctx, j)
}

// Len returns the number of workers the Dispatcher was constructed
// with.
func (d *Dispatcher) Len() int {
	return len(d.workers)
}
