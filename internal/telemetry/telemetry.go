// Package telemetry constructs the root structured logger and derives
// per-component child loggers from it, on top of logiface, izerolog,
// and rs/zerolog.
package telemetry

import (
	"io"
	"os"
	"time"

	izerolog "github.com/joeycumines/izerolog"
	"github.com/joeycumines/logiface"
	"github.com/rs/zerolog"
)

// Logger is the logiface event type bound throughout this repo.
type Logger = logiface.Logger[*izerolog.Event]

// Config controls root logger construction.
type Config struct {
	// Level is one of trace, debug, info, notice, warning, error,
	// critical, alert, emergency. Defaults to info.
	Level string
	// Pretty writes human-readable console output instead of JSON,
	// intended for local/interactive runs.
	Pretty bool
	// Output defaults to os.Stderr.
	Output io.Writer
}

// New builds the root Logger for the process.
func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	z := zerolog.New(out).With().Timestamp().Logger()

	return logiface.New[*izerolog.Event](
		izerolog.WithZerolog(z),
		logiface.WithLevel[*izerolog.Event](parseLevel(cfg.Level)),
	)
}

func parseLevel(s string) logiface.Level {
	switch s {
	case "trace":
		return logiface.LevelTrace
	case "debug":
		return logiface.LevelDebug
	case "notice":
		return logiface.LevelNotice
	case "warning", "warn":
		return logiface.LevelWarning
	case "error":
		return logiface.LevelError
	case "critical":
		return logiface.LevelCritical
	case "alert":
		return logiface.LevelAlert
	case "emergency":
		return logiface.LevelEmergency
	case "", "info", "informational":
		return logiface.LevelInformational
	default:
		return logiface.LevelInformational
	}
}

// Component derives a child logger tagged with a "component" field,
// the convention every package in this repo uses to identify its log
// lines.
func Component(root *Logger, name string) *Logger {
	return root.Clone().Str("component", name).Logger()
}

// Worker derives a child logger tagged with both "component" and
// "worker_id", for the per-device Worker goroutines.
func Worker(root *Logger, workerID int) *Logger {
	return root.Clone().Str("component", "worker").Int("worker_id", workerID).Logger()
}
