// Package logging configures the global zerolog logger for pipeline runs.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs per-request and per-page detail.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs run milestones.
	LevelInfo LogLevel = "info"

	// LevelWarn logs retries and failed pages.
	LevelWarn LogLevel = "warn"

	// LevelError logs failures that end a run.
	LevelError LogLevel = "error"

	// LevelDisabled silences all output.
	LevelDisabled LogLevel = "disabled"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// FromSettings builds a Config from the textual settings of a run.
func FromSettings(level string, pretty bool) Config {
	cfg := DefaultConfig()
	cfg.Level = LogLevel(level)
	cfg.Pretty = pretty
	return cfg
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out}
	}

	logger := zerolog.New(out).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(string(level))) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off", "none":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// WithRun tags a logger with the run ID so all lines of one run correlate.
func WithRun(logger zerolog.Logger, runID string) zerolog.Logger {
	return logger.With().Str("run_id", runID).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Each HTTP attempt (kind, url, attempt)
//   - Page progress (page, fetched, total)
//   - Client-side throttling waits
//
// Info: Normal operation events
//   - Run start and completion with counts
//   - Walk start (count, page size, total pages) and completion
//   - Sink delivery
//
// Warn: Warning conditions that don't stop the run
//   - Retry attempts with backoff
//   - HTTP error responses
//   - Enrichment or page failures before they propagate
//
// Error: Error conditions requiring attention
//   - Retry attempts exhausted
//   - Payloads failing validation (raw payload attached)
//   - Run failure
//
// Context Fields:
//   - run_id: ID of the pipeline run
//   - kind: resource kind (people, species)
//   - url: requested URL
//   - status: HTTP status code
//   - attempt: 1-based attempt number
//   - backoff: wait before the next attempt
//   - error_class: Error classification (client, server, rate_limit, network)
//   - page, total_pages: pagination progress
