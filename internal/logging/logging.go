// Package logging builds the operator-facing structured logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// New returns a JSON slog.Logger tagged with the service name.
func New(service string, level slog.Level, w io.Writer) *slog.Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(h).With("service", service)
}

// TeeFile returns a writer that duplicates log output to stderr and the
// given file, plus a closer for the file handle.
func TeeFile(path string) (io.Writer, func() error, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	return io.MultiWriter(os.Stderr, f), f.Close, nil
}
