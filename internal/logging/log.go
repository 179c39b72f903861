// Package logging wires up the global structured logger used across the
// worker: one zerolog.Logger, with child loggers scoped per workspace and
// per phase.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global logger instance, initialised by Init.
var Logger zerolog.Logger

// Level is a logging threshold.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config holds logging configuration.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init initializes the global logger. Call once at startup.
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case InfoLevel:
		level = zerolog.InfoLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

// WithWorkspace creates a child logger scoped to one workspace.
func WithWorkspace(workspace string) zerolog.Logger {
	return Logger.With().Str("workspace", workspace).Logger()
}

// WithPhase creates a child logger scoped to one phase name, nested under an
// existing (usually per-workspace) logger.
func WithPhase(base zerolog.Logger, phase string) zerolog.Logger {
	return base.With().Str("phase", phase).Logger()
}

// WithComponent creates a child logger scoped to a named internal component
// (poller, gate, ledger, ...).
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// FileSink opens (creating parent directories as needed) the per-workspace
// log file used when console output is disabled: <dir>/<workspace>.log.
func FileSink(dir, workspace string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(dir+"/"+workspace+".log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}
