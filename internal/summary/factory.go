package summary

import (
	"context"
	"strings"
)

// NewSink builds the summaries destination: the append-only file always, plus
// a postgres mirror when a database URL is configured.
func NewSink(ctx context.Context, databaseURL, logPath string) (Sink, error) {
	file, err := NewFileSink(logPath)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(databaseURL) == "" {
		return file, nil
	}

	pg, err := NewPostgresSink(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	return NewMultiSink(file, pg), nil
}
