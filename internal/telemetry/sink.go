package telemetry

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Sink persists records, one JSON object per line. Implementations must make
// each Write durable before returning; a Write error is fatal to the run.
type Sink interface {
	Write(v any) error
}

// Truncator is implemented by sinks that can be reset at session start.
type Truncator interface {
	Truncate() error
}

// FileSink appends JSON Lines to a file. Writes go straight to the fd, so
// each record is on disk before the next probe fires; a crash loses at most
// the in-flight line.
type FileSink struct {
	path string
	f    *os.File
}

func NewFileSink(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening telemetry output: %w", err)
	}
	return &FileSink{path: path, f: f}, nil
}

// Name returns the output file path.
func (s *FileSink) Name() string { return s.path }

func (s *FileSink) Write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding telemetry record: %w", err)
	}
	if _, err := s.f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing telemetry record: %w", err)
	}
	return nil
}

// Truncate discards all previously written records.
func (s *FileSink) Truncate() error {
	if err := s.f.Truncate(0); err != nil {
		return fmt.Errorf("truncating telemetry output: %w", err)
	}
	if _, err := s.f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewinding telemetry output: %w", err)
	}
	return nil
}

func (s *FileSink) Close() error {
	return s.f.Close()
}

// WriterSink writes JSON Lines to any io.Writer. Used for tests and for
// streaming records to stdout.
type WriterSink struct {
	w io.Writer
}

func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) Write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding telemetry record: %w", err)
	}
	if _, err := s.w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing telemetry record: %w", err)
	}
	return nil
}
