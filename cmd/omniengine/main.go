// Command omniengine runs a single inference-serving process: one
// config file, N workers (one per GPU ordinal, or one for CPU), a
// round-robin dispatcher, and Redis ingress/egress loops.
//
// Usage:
//
//	omniengine [config-path]
//
// config-path defaults to the OMNIENGINE_CONFIG environment variable,
// or ./runtime.toml if that is unset.
//
// Exit codes: 0 clean shutdown, 1 config error, 2 engine load failure,
// 3 queue connection failure, 130 on interrupt after graceful
// shutdown.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joeycumines/omniengine/internal/config"
	"github.com/joeycumines/omniengine/internal/errs"
	"github.com/joeycumines/omniengine/internal/metrics"
	"github.com/joeycumines/omniengine/internal/supervisor"
	"github.com/joeycumines/omniengine/internal/telemetry"

	_ "github.com/joeycumines/omniengine/internal/engine/onnxbackend"
	_ "github.com/joeycumines/omniengine/internal/engine/tensorflowbackend"
	_ "github.com/joeycumines/omniengine/internal/engine/tensorrtbackend"
	_ "github.com/joeycumines/omniengine/internal/engine/torchbackend"
)

func main() {
	os.Exit(run())
}

func run() int {
	path := configPath()

	log := telemetry.New(telemetry.Config{Level: os.Getenv("OMNIENGINE_LOG_LEVEL")})

	cfg, err := config.Load(path)
	if err != nil {
		log.Err().Err(err).Str("path", path).Log("failed to load configuration")
		return 1
	}

	mets := metrics.New()
	if addr := os.Getenv("OMNIENGINE_METRICS_ADDR"); addr != "" {
		go func() {
			srv := &http.Server{Addr: addr, Handler: mets.Handler()}
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Err().Err(err).Log("metrics server exited")
			}
		}()
	}

	sup, err := supervisor.New(cfg, log, mets)
	if err != nil {
		log.Err().Err(err).Log("failed to start supervisor")
		if errors.Is(err, errs.ErrConfig) {
			return 1
		}
		if errors.Is(err, errs.ErrEngineLoad) {
			return 2
		}
		return 3
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sup.Run(ctx); err != nil {
		log.Err().Err(err).Log("supervisor exited with error")
		return 1
	}

	if ctx.Err() != nil {
		return 130
	}
	return 0
}

func configPath() string {
	if len(os.Args) > 1 {
		return os.Args[1]
	}
	if p := os.Getenv("OMNIENGINE_CONFIG"); p != "" {
		return p
	}
	return "./runtime.toml"
}
