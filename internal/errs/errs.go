// Package errs defines the typed error kinds that cross component
// boundaries in OmniEngine, and the propagation policy for each.
package errs

import "errors"

// Sentinel error kinds. Wrap with fmt.Errorf("...: %w", Kind) at the
// point of failure so errors.Is/errors.As keep working through layers.
var (
	// ErrConfig is malformed or missing configuration. Fatal at
	// startup only.
	ErrConfig = errors.New("config error")

	// ErrEngineLoad is a backend failing to load its model. Fatal for
	// the worker that hit it; fatal for the supervisor if it happens
	// during startup.
	ErrEngineLoad = errors.New("engine load error")

	// ErrIngressDecode is a malformed job payload at ingress. The
	// single message is logged and dropped; ingress continues.
	ErrIngressDecode = errors.New("ingress decode error")

	// ErrBatch indicates a batch-assembly invariant was violated. This
	// is a programming error and callers should panic, not recover.
	ErrBatch = errors.New("batch invariant violated")

	// ErrBackendFault is an inference call failure. Fatal to the batch
	// that raised it; every real job in that batch gets an error
	// record. The worker continues processing subsequent batches.
	ErrBackendFault = errors.New("backend fault")

	// ErrPipeline is a preprocessor/postprocessor shape or dtype
	// mismatch against the engine's declared spec.
	ErrPipeline = errors.New("pipeline fault")

	// ErrEgressWrite is a result-publication failure. Logged and
	// dropped; not retried.
	ErrEgressWrite = errors.New("egress write error")

	// ErrShutdownRequested signals graceful cancellation.
	ErrShutdownRequested = errors.New("shutdown requested")
)
