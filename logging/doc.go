// Package logging provides structured logging for the knxnetip client and
// its companion tools.
//
// This package wraps Go's standard log/slog package to provide consistent,
// structured logging without pulling in an external logging backend.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Level-based filtering (debug, info, warn, error)
//   - Thread-safe for concurrent use
//
// # Usage
//
//	logger := logging.New(logging.Config{Level: "info", Format: "json"})
//	logger.Info("tunnel connected", "channel_id", channelID)
//	logger.Error("connect failed", "error", err)
package logging
