package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/parlachat/parla/internal/session"
	"github.com/parlachat/parla/internal/summary"
)

// summaryInstructions is the fixed prompt for the one-shot summary request.
const summaryInstructions = "Produce a very short summary prefixed with 'Summary:'. Be concise."

// SummaryResult makes the trigger's outcome explicit so the caller visibly
// logs and discards failures instead of relying on swallowed panics or
// ignored errors deep in the turn path.
type SummaryResult struct {
	Fired bool
	Err   error
}

// maybeSummarize runs after a clean commit. It fires only when the total
// committed turn count is an exact multiple of the threshold, summarizes a
// bounded window of trailing turns, and appends one record to the summaries
// sink. Failures never propagate into the turn that triggered them.
func (s *Service) maybeSummarize(ctx context.Context, sessionID string, hist *session.History) SummaryResult {
	total := hist.Len()
	if total == 0 || total%s.summaryThreshold != 0 {
		return SummaryResult{}
	}

	window := hist.Tail(s.summaryWindow)
	lines := make([]string, 0, len(window))
	for _, t := range window {
		lines = append(lines, fmt.Sprintf("%s: %s", strings.ToUpper(string(t.Role)), t.Content))
	}

	text, err := s.adapter.Summarize(ctx, summaryInstructions, strings.Join(lines, "\n"))
	if err != nil {
		return SummaryResult{Fired: true, Err: fmt.Errorf("summarize window: %w", err)}
	}

	rec := summary.Record{
		CreatedAt: time.Now(),
		SessionID: sessionID,
		Text:      text,
	}
	if err := s.summaries.Write(ctx, rec); err != nil {
		return SummaryResult{Fired: true, Err: fmt.Errorf("append summary record: %w", err)}
	}
	return SummaryResult{Fired: true}
}
