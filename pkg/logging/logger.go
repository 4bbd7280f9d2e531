// Package logging provides structured logging configuration using zerolog.
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
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
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

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	var output io.Writer = cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Partition planning (split field, partition count, chunk size)
//   - Cache operations (hit/miss, key, TTL)
//   - Worker lifecycle and per-request flow
//
// Info: Normal operation events
//   - Completed query rounds with document counts and durations
//   - Retrieval progress for long operations
//   - Successful retries
//
// Warn: Warning conditions that don't prevent operation
//   - HTTP 400 soft failures (unsupported parameter combinations)
//   - Retry attempts and retry exhaustion
//   - Cache errors (fallback to direct request)
//   - Rate limit throttling
//
// Error: Error conditions requiring attention
//   - Aborted parallel rounds
//   - Failed requests after retries
//
// Context Fields:
//   - suburl: API route suffix (e.g. "materials/summary")
//   - endpoint: full route path for metrics-aligned logs
//   - split_field: filter field chosen for partitioning
//   - partitions: number of parallel sub-queries
//   - chunk_size: documents per page
//   - total_doc: server-reported matching-document count
//   - error_class: failure classification (client, server, rate_limit, network)
//   - duration: operation duration
