package summary

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Record is one conversation summary. Records are written once per threshold
// crossing and never mutated or read back by the service.
type Record struct {
	CreatedAt time.Time
	SessionID string
	Text      string
}

// Sink appends summary records to some write-only destination.
type Sink interface {
	Write(ctx context.Context, rec Record) error
	Close() error
}

const recordSeparator = "------------------------------------------------------------"

// FileSink appends UTF-8 summary blocks to a single log file.
type FileSink struct {
	mu   sync.Mutex
	path string
}

// NewFileSink creates the log directory up front so the first threshold
// crossing does not fail on a missing path.
func NewFileSink(path string) (*FileSink, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("summaries log path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create summaries log dir: %w", err)
		}
	}
	return &FileSink{path: path}, nil
}

func (s *FileSink) Write(_ context.Context, rec Record) error {
	block := fmt.Sprintf("[%s] session_id=%s\n%s\n%s\n",
		rec.CreatedAt.Format("2006-01-02 15:04:05"),
		rec.SessionID,
		rec.Text,
		recordSeparator,
	)

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open summaries log: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(block); err != nil {
		return fmt.Errorf("append summary record: %w", err)
	}
	return nil
}

func (s *FileSink) Close() error { return nil }

// MultiSink fans one record out to several sinks; the first failure wins but
// every sink still gets the write attempt.
type MultiSink struct {
	sinks []Sink
}

func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) Write(ctx context.Context, rec Record) error {
	var firstErr error
	for _, s := range m.sinks {
		if err := s.Write(ctx, rec); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *MultiSink) Close() error {
	var firstErr error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
