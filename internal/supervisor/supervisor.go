// Package supervisor wires a loaded Config into workers, a dispatcher,
// and the ingress/egress queue loops, and drives the ordered shutdown
// sequence: stop ingress, let in-flight batches finish, stop egress,
// release every Engine.
package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/joeycumines/go-catrate"

	"github.com/joeycumines/omniengine/internal/config"
	"github.com/joeycumines/omniengine/internal/dispatcher"
	"github.com/joeycumines/omniengine/internal/engine"
	"github.com/joeycumines/omniengine/internal/errs"
	"github.com/joeycumines/omniengine/internal/job"
	"github.com/joeycumines/omniengine/internal/metrics"
	"github.com/joeycumines/omniengine/internal/pipeline"
	"github.com/joeycumines/omniengine/internal/queue"
	"github.com/joeycumines/omniengine/internal/scripthost"
	"github.com/joeycumines/omniengine/internal/telemetry"
	"github.com/joeycumines/omniengine/internal/worker"
)

// Supervisor owns every long-lived resource the runtime starts:
// workers (each with its own Engine), the Dispatcher, and the
// ingress/egress queue loops.
type Supervisor struct {
	cfg     config.Config
	log     *telemetry.Logger
	mets    *metrics.Metrics
	workers []*worker.Worker
	disp    *dispatcher.Dispatcher
	ingress *queue.Ingress
	egress  *queue.Egress

	ingressDone chan struct{}
}

// New loads workers for cfg.Model's device placement (one per
// gpu_ids entry, or a single CPU worker), wires them into a
// Dispatcher, and prepares the Redis ingress/egress loops. No
// background goroutines are started until Run.
func New(cfg config.Config, log *telemetry.Logger, mets *metrics.Metrics) (*Supervisor, error) {
	ordinals := []int{0}
	if engine.Device(cfg.Model.Device) == engine.GPU {
		ordinals = cfg.Model.GPUIDs
	}

	client, err := queue.NewClient(queue.Config{
		URL:        cfg.Redis.URL,
		InKey:      cfg.Redis.InQueue,
		OutPrefix:  cfg.Redis.OutPrefix,
		PopTimeout: time.Second,
	})
	if err != nil {
		return nil, err
	}

	egress := queue.NewEgress(client, telemetry.Component(log, "egress"))

	faultLimiter := catrate.NewLimiter(map[time.Duration]int{
		time.Second: 1,
		time.Minute: 10,
	})

	var workers []*worker.Worker
	var submitters []dispatcher.Submitter
	for idx, ordinal := range ordinals {
		spec := cfg.EngineSpec(ordinal)
		eng, err := engine.Load(spec)
		if err != nil {
			for _, w := range workers {
				_ = w.Shutdown(context.Background())
			}
			return nil, fmt.Errorf("%w: worker %d: %v", errs.ErrEngineLoad, idx, err)
		}

		pre, preHost, err := loadStage(cfg.Preprocess)
		if err != nil {
			for _, w := range workers {
				_ = w.Shutdown(context.Background())
			}
			_ = eng.Close()
			return nil, fmt.Errorf("%w: worker %d: preprocess: %v", errs.ErrConfig, idx, err)
		}
		post, postHost, err := loadStage(cfg.Postprocess)
		if err != nil {
			if preHost != nil {
				_ = preHost.Close()
			}
			for _, w := range workers {
				_ = w.Shutdown(context.Background())
			}
			_ = eng.Close()
			return nil, fmt.Errorf("%w: worker %d: postprocess: %v", errs.ErrConfig, idx, err)
		}

		wlog := telemetry.Worker(log, idx)
		w := worker.New(idx, eng, pre, post, cfg.Queue.MaxBatch, time.Duration(cfg.Queue.MaxWaitMS)*time.Millisecond,
			func(r job.Result) { egress.Publish(context.Background(), r) },
			wlog, mets, faultLimiter)
		if preHost != nil {
			w.RegisterCloser(preHost.Close)
		}
		if postHost != nil {
			w.RegisterCloser(postHost.Close)
		}

		workers = append(workers, w)
		submitters = append(submitters, w)
	}

	disp := dispatcher.New(submitters)
	ingress := queue.NewIngress(client, queue.Config{
		URL:        cfg.Redis.URL,
		InKey:      cfg.Redis.InQueue,
		OutPrefix:  cfg.Redis.OutPrefix,
		PopTimeout: time.Second,
	}, disp, telemetry.Component(log, "ingress"))

	return &Supervisor{
		cfg:         cfg,
		log:         log,
		mets:        mets,
		workers:     workers,
		disp:        disp,
		ingress:     ingress,
		egress:      egress,
		ingressDone: make(chan struct{}),
	}, nil
}

// Run starts the ingress loop and blocks until ctx is cancelled, then
// performs the ordered shutdown: ingress stops first, each worker
// finishes its in-flight batch and releases its Engine, and only then
// does Run return.
func (s *Supervisor) Run(ctx context.Context) error {
	go func() {
		defer close(s.ingressDone)
		if err := s.ingress.Run(ctx); err != nil && s.log != nil {
			s.log.Err().Err(err).Log("ingress loop exited with error")
		}
	}()

	<-ctx.Done()
	<-s.ingressDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace(s.cfg))
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(len(s.workers))
	for _, w := range s.workers {
		w := w
		go func() {
			defer wg.Done()
			if err := w.Shutdown(shutdownCtx); err != nil && s.log != nil {
				s.log.Err().Err(err).Int("worker_id", w.ID).Log("worker shutdown failed")
			}
		}()
	}
	wg.Wait()

	return nil
}

// loadStage compiles a configured Script into its own scripthost.Host,
// one per Worker, since goja.Runtime is not safe for concurrent use.
// An empty Source leaves the stage unconfigured: loadStage returns a
// nil Stage and a nil Host, and the Pipeline runs that slot as
// identity.
func loadStage(s config.Script) (pipeline.Stage, *scripthost.Host, error) {
	if s.Source == "" {
		return nil, nil, nil
	}
	h, err := scripthost.New(s.Source, s.Func)
	if err != nil {
		return nil, nil, err
	}
	return h, h, nil
}

// shutdownGrace bounds graceful shutdown by one flush interval plus a
// fixed allowance for one in-flight inference call to finish.
func shutdownGrace(cfg config.Config) time.Duration {
	return time.Duration(cfg.Queue.MaxWaitMS)*time.Millisecond + 30*time.Second
}
