// Package queue implements the Redis key-value exchange: ingress
// blocks on a list key for inbound job payloads, egress writes one
// completed result per key under an out_prefix, both via
// github.com/redis/go-redis/v9.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/joeycumines/omniengine/internal/dispatcher"
	"github.com/joeycumines/omniengine/internal/errs"
	"github.com/joeycumines/omniengine/internal/job"
	"github.com/joeycumines/omniengine/internal/telemetry"
	"github.com/joeycumines/omniengine/internal/wire"
)

// Config describes the Redis connection and the key conventions used
// for ingress and egress.
type Config struct {
	URL        string // redis://[:password@]host:port/db
	InKey      string // list key popped via BLPOP
	OutPrefix  string // result keys are OutPrefix + job id
	PopTimeout time.Duration
}

// NewClient parses Config.URL and constructs the shared *redis.Client
// both Ingress and Egress run against.
func NewClient(cfg Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: redis.url: %v", errs.ErrConfig, err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = cfg.PopTimeout + 5*time.Second
	opts.WriteTimeout = 3 * time.Second
	return redis.NewClient(opts), nil
}

// Ingress blocks on Config.InKey, decoding and dispatching one job per
// pop, until ctx is cancelled. A malformed payload is logged and
// dropped; ingress keeps running.
type Ingress struct {
	client *redis.Client
	cfg    Config
	disp   *dispatcher.Dispatcher
	log    *telemetry.Logger
}

// NewIngress constructs an Ingress loop.
func NewIngress(client *redis.Client, cfg Config, disp *dispatcher.Dispatcher, log *telemetry.Logger) *Ingress {
	return &Ingress{client: client, cfg: cfg, disp: disp, log: log}
}

// Run pops and dispatches jobs until ctx is cancelled.
func (in *Ingress) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		res, err := in.client.BLPop(ctx, in.cfg.PopTimeout, in.cfg.InKey).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue // timed out with nothing popped, poll again
			}
			if ctx.Err() != nil {
				return nil
			}
			if in.log != nil {
				in.log.Err().Err(err).Log("ingress pop failed")
			}
			continue
		}

		// BLPop returns [key, value].
		if len(res) != 2 {
			continue
		}

		j, err := wire.DecodeJob([]byte(res[1]), in.cfg.OutPrefix)
		if err != nil {
			if in.log != nil {
				in.log.Err().Err(err).Log("ingress decode failed, dropping payload")
			}
			continue
		}
		j.SubmittedAt = time.Now()

		if err := in.disp.Submit(ctx, j); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if in.log != nil {
				in.log.Err().Err(err).Str("id", j.ID).Log("dispatch failed")
			}
		}
	}
}

// Egress writes one completed job.Result per call to its ReplyKey.
// Dummy jobs are filtered upstream (worker.Worker never publishes
// them); Egress itself refuses to write a Result with an empty
// ReplyKey as a final guard.
type Egress struct {
	client *redis.Client
	log    *telemetry.Logger
}

// NewEgress constructs an Egress publisher.
func NewEgress(client *redis.Client, log *telemetry.Logger) *Egress {
	return &Egress{client: client, log: log}
}

// Publish writes r to its ReplyKey with a single SET, overwriting
// whatever was previously there. Failure is logged and dropped; there
// is no retry.
func (e *Egress) Publish(ctx context.Context, r job.Result) {
	if r.Job.IsDummy || r.Job.ReplyKey == "" {
		return
	}

	raw, err := wire.EncodeResult(r)
	if err != nil {
		if e.log != nil {
			e.log.Err().Err(err).Str("id", r.Job.ID).Log("result encode failed")
		}
		return
	}

	if err := e.client.Set(ctx, r.Job.ReplyKey, raw, 0).Err(); err != nil {
		if e.log != nil {
			e.log.Err().Err(fmt.Errorf("%w: %v", errs.ErrEgressWrite, err)).
				Str("id", r.Job.ID).Str("key", r.Job.ReplyKey).Log("egress write failed")
		}
	}
}
