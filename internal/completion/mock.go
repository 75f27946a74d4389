package completion

import (
	"context"
	"fmt"
	"strings"
)

// MockAdapter provides deterministic local replies when no completion
// backend is configured. Replies are streamed word by word so the snapshot
// pipeline behaves like the real provider.
type MockAdapter struct{}

func NewMockAdapter() *MockAdapter { return &MockAdapter{} }

func (a *MockAdapter) Name() string { return "mock" }

func (a *MockAdapter) StreamReply(ctx context.Context, req Request, onDelta DeltaHandler) (Reply, error) {
	select {
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	default:
	}

	text := buildMockReply(req)
	var out strings.Builder
	for i, word := range strings.Split(text, " ") {
		delta := word
		if i > 0 {
			delta = " " + word
		}
		out.WriteString(delta)
		if onDelta != nil {
			if err := onDelta(delta); err != nil {
				return Reply{Text: out.String()}, err
			}
		}
	}
	return Reply{Text: out.String()}, nil
}

func (a *MockAdapter) Summarize(_ context.Context, _, text string) (string, error) {
	lines := 0
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			lines++
		}
	}
	return fmt.Sprintf("Summary: %d recent messages exchanged.", lines), nil
}

func buildMockReply(req Request) string {
	base := strings.TrimSpace(req.Input)
	if base == "" {
		base = "I am listening."
	}
	if len(req.History) == 0 {
		return fmt.Sprintf("I heard you: %s", base)
	}
	return fmt.Sprintf("I heard you: %s (turn %d of this conversation)", base, len(req.History)+1)
}
