// Package logger builds the shared slog setup for the VeHosts binaries.
// Everything is emitted as JSON lines so service logs stay machine-parseable
// next to the console output relayed from user scripts.
package logger

import (
	"io"
	"log/slog"
	"os"
)

// New returns a JSON logger tagged with the originating service ("api",
// "runner", "migrate"), keeping aggregated streams attributable.
func New(service string, level slog.Level) *slog.Logger {
	return NewWithWriter(os.Stdout, service, level)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, service string, level slog.Level) *slog.Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(h).With("service", service)
}
