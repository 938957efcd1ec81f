package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config controls how a Logger is built.
type Config struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string

	// Format is the log output format: json or text.
	Format string

	// Output selects the destination: stdout or stderr.
	Output string
}

// Logger wraps slog.Logger with knxnetip-specific defaults.
//
// It provides structured logging with a default "component" field and
// level-based filtering.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Logger struct {
	*slog.Logger
}

// New creates a new Logger with the specified configuration.
//
// It configures:
//   - Output format (JSON for production, text for development)
//   - Log level filtering
//   - Output destination
//
// Parameters:
//   - cfg: Logging configuration
//
// Returns:
//   - *Logger: Configured logger ready for use
func New(cfg Config) *Logger {
	var output io.Writer
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		output = os.Stderr
	default:
		output = os.Stdout
	}

	level := parseLevel(cfg.Level)

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(output, opts)
	default:
		handler = slog.NewJSONHandler(output, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("component", "knxnetip"),
	})

	return &Logger{Logger: slog.New(handler)}
}

// parseLevel converts a string log level to slog.Level.
//
// Supported levels: debug, info, warn, error
// Defaults to info if unrecognised.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a new Logger with additional default attributes.
//
// Parameters:
//   - args: Key-value pairs to add as default attributes
//
// Returns:
//   - *Logger: New logger with added attributes
//
// Example:
//
//	tunnelLogger := logger.With("channel_id", 12)
//	tunnelLogger.Info("connected") // Includes channel_id=12
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default creates a default logger for use when the caller does not supply
// one. It outputs to stdout in JSON format at info level.
//
// Returns:
//   - *Logger: Default logger
func Default() *Logger {
	return New(Config{Level: "info", Format: "json", Output: "stdout"})
}
