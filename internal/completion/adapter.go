package completion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/parlachat/parla/internal/session"
)

// Request is the normalized context sent to the completion service for one
// streamed turn: fixed system instructions, the full prior history, and the
// new user input.
type Request struct {
	SessionID string
	System    string
	History   []session.Turn
	Input     string
}

// Reply is the final assistant text after streaming completes. On a
// mid-stream failure Text still carries whatever was emitted before the
// error; already-delivered fragments are never invalidated.
type Reply struct {
	Text string
}

// DeltaHandler receives streaming text fragments in generation order. The
// fragments concatenate losslessly into the final reply text.
type DeltaHandler func(delta string) error

// Adapter bridges the chat service with an external completion provider.
type Adapter interface {
	// Name identifies the resolved backend, e.g. "anthropic" or "mock".
	Name() string
	// StreamReply issues one streaming completion request.
	StreamReply(ctx context.Context, req Request, onDelta DeltaHandler) (Reply, error)
	// Summarize issues one non-streaming request with fixed instructions.
	Summarize(ctx context.Context, instructions, text string) (string, error)
}

// ProviderError carries a stable code and retryability classification for
// diagnostics surfaced to the UI.
type ProviderError struct {
	Code      string
	Retryable bool
	Err       error
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return e.Code
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is a provider error worth retrying.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// Config controls adapter construction.
type Config struct {
	Mode           string
	APIKey         string
	BaseURL        string
	Model          string
	MaxTokens      int
	Temperature    float64
	RequestTimeout time.Duration
}

// NewAdapter selects a provider by mode. "auto" prefers the real Anthropic
// backend when an API key is configured and falls back to the mock.
func NewAdapter(cfg Config) (Adapter, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.APIKey) != "" {
			return NewAnthropicAdapter(cfg), nil
		}
		return NewMockAdapter(), nil
	case "anthropic":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, errors.New("anthropic API key is required for anthropic mode")
		}
		return NewAnthropicAdapter(cfg), nil
	case "mock":
		return NewMockAdapter(), nil
	default:
		return nil, fmt.Errorf("unsupported completion provider mode %q", cfg.Mode)
	}
}
