// Package observability provides the ambient concerns of a riverine
// daemon: structured logging via slog, metrics via Prometheus, and
// tracing via OpenTelemetry. Tracing is opt-in with a no-op
// implementation when disabled.
package observability

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds a text slog logger at the given level ("debug",
// "info", "warn", "error"; anything else means info) writing to stderr.
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// EnrichLogger adds transport context to a logger.
func EnrichLogger(logger *slog.Logger, transport, addr string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("transport", transport),
		slog.String("addr", addr),
	)
}

// LogListenerStart logs an ingestion listener coming up.
func LogListenerStart(logger *slog.Logger, transport, addr string) {
	if logger == nil {
		return
	}
	logger.Info("listener started",
		slog.String("transport", transport),
		slog.String("addr", addr),
	)
}

// LogListenerStop logs an ingestion listener shutting down.
func LogListenerStop(logger *slog.Logger, transport, addr string) {
	if logger == nil {
		return
	}
	logger.Info("listener stopped",
		slog.String("transport", transport),
		slog.String("addr", addr),
	)
}

// LogMalformed logs a payload rejected at the ingestion boundary.
func LogMalformed(logger *slog.Logger, transport string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("malformed payload rejected",
		slog.String("transport", transport),
		slog.String("error", err.Error()),
	)
}

// LogSinkError logs a failed sink delivery (non-fatal).
func LogSinkError(logger *slog.Logger, sink string, batch int, err error) {
	if logger == nil {
		return
	}
	logger.Error("sink delivery failed",
		slog.String("sink", sink),
		slog.Int("batch_size", batch),
		slog.String("error", err.Error()),
	)
}

// LogSinkDrop logs events shed because a sink queue was full.
func LogSinkDrop(logger *slog.Logger, sink string, dropped int) {
	if logger == nil {
		return
	}
	logger.Warn("sink queue full, events dropped",
		slog.String("sink", sink),
		slog.Int("dropped", dropped),
	)
}

// LogForwardReconnect logs a forwarder reconnection attempt.
func LogForwardReconnect(logger *slog.Logger, addr string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("forward connection lost, reconnecting",
		slog.String("addr", addr),
		slog.String("error", err.Error()),
	)
}
