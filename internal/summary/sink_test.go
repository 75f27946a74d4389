package summary

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFileSinkAppendsBlocks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "summaries.log")
	sink, err := NewFileSink(path)
	if err != nil {
		t.Fatalf("NewFileSink error: %v", err)
	}

	at := time.Date(2026, 8, 31, 14, 30, 5, 0, time.UTC)
	recs := []Record{
		{CreatedAt: at, SessionID: "11111_1700000000000_22222", Text: "Summary: first."},
		{CreatedAt: at.Add(time.Minute), SessionID: "11111_1700000000000_22222", Text: "Summary: second."},
	}
	for _, rec := range recs {
		if err := sink.Write(context.Background(), rec); err != nil {
			t.Fatalf("Write error: %v", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	got := string(data)

	want := "[2026-08-31 14:30:05] session_id=11111_1700000000000_22222\n" +
		"Summary: first.\n" +
		strings.Repeat("-", 60) + "\n"
	if !strings.HasPrefix(got, want) {
		t.Fatalf("first block mismatch:\n%q\nwant prefix:\n%q", got, want)
	}
	if strings.Count(got, strings.Repeat("-", 60)) != 2 {
		t.Fatalf("expected two separator lines:\n%q", got)
	}
	if !strings.Contains(got, "Summary: second.") {
		t.Fatalf("second record not appended:\n%q", got)
	}
}

func TestFileSinkCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deep", "nested", "summaries.log")
	if _, err := NewFileSink(path); err != nil {
		t.Fatalf("NewFileSink error: %v", err)
	}
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Fatalf("log directory not created: %v", err)
	}
}

func TestFileSinkRejectsEmptyPath(t *testing.T) {
	if _, err := NewFileSink("   "); err == nil {
		t.Fatalf("empty path accepted")
	}
}

type fakeSink struct {
	writes int
	err    error
}

func (f *fakeSink) Write(context.Context, Record) error {
	f.writes++
	return f.err
}

func (f *fakeSink) Close() error { return f.err }

func TestMultiSinkWritesAllAndKeepsFirstError(t *testing.T) {
	boom := errors.New("boom")
	a := &fakeSink{err: boom}
	b := &fakeSink{}
	multi := NewMultiSink(a, b)

	err := multi.Write(context.Background(), Record{SessionID: "s", Text: "t"})
	if !errors.Is(err, boom) {
		t.Fatalf("first error not returned: %v", err)
	}
	if a.writes != 1 || b.writes != 1 {
		t.Fatalf("not every sink got the write: a=%d b=%d", a.writes, b.writes)
	}
}
