package completion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/parlachat/parla/internal/reliability"
	"github.com/parlachat/parla/internal/session"
)

const (
	anthropicMaxStreamRetries = 2
	anthropicBackoffBase      = 300 * time.Millisecond
	anthropicBackoffCap       = 3 * time.Second
)

// AnthropicAdapter talks to the Anthropic Messages API through the official
// SDK: one streaming request per turn, one plain request per summary.
type AnthropicAdapter struct {
	model       string
	maxTokens   int
	temperature float64

	client anthropic.Client
}

func NewAnthropicAdapter(cfg Config) *AnthropicAdapter {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
		// Retries are handled here so partially streamed turns are never replayed.
		option.WithMaxRetries(0),
	}
	if baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	return &AnthropicAdapter{
		model:       strings.TrimSpace(cfg.Model),
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
		client:      anthropic.NewClient(opts...),
	}
}

func (a *AnthropicAdapter) Name() string { return "anthropic" }

func (a *AnthropicAdapter) StreamReply(ctx context.Context, req Request, onDelta DeltaHandler) (Reply, error) {
	params := a.newParams(req.System, historyMessages(req.History, req.Input))

	var out strings.Builder
	emitted := false
	attempt := 0
	for {
		err := a.streamOnce(ctx, params, &out, &emitted, onDelta)
		if err == nil {
			return Reply{Text: out.String()}, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Reply{Text: out.String()}, err
		}
		// Only retry when the stream produced nothing visible yet; once a
		// fragment reached the caller the partial reply stands as-is.
		if emitted || !IsRetryable(err) || attempt >= anthropicMaxStreamRetries {
			return Reply{Text: out.String()}, err
		}
		delay := reliability.ExponentialBackoff(attempt, anthropicBackoffBase, anthropicBackoffCap)
		if err := sleepContext(ctx, delay); err != nil {
			return Reply{Text: out.String()}, err
		}
		attempt++
	}
}

func (a *AnthropicAdapter) streamOnce(
	ctx context.Context,
	params anthropic.MessageNewParams,
	out *strings.Builder,
	emitted *bool,
	onDelta DeltaHandler,
) error {
	stream := a.client.Messages.NewStreaming(ctx, params)
	defer func() {
		_ = stream.Close()
	}()

	for stream.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		event := stream.Current()
		variant, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
		if !ok {
			continue
		}
		delta, ok := variant.Delta.AsAny().(anthropic.TextDelta)
		if !ok || delta.Text == "" {
			continue
		}
		out.WriteString(delta.Text)
		*emitted = true
		if onDelta != nil {
			if err := onDelta(delta.Text); err != nil {
				return err
			}
		}
	}

	if err := stream.Err(); err != nil {
		return classifyAnthropicError("stream_failed", err)
	}
	return nil
}

func (a *AnthropicAdapter) Summarize(ctx context.Context, instructions, text string) (string, error) {
	params := a.newParams(instructions, []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(text)),
	})

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return "", classifyAnthropicError("summarize_failed", err)
	}

	var out strings.Builder
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			out.WriteString(tb.Text)
		}
	}
	return strings.TrimSpace(out.String()), nil
}

func (a *AnthropicAdapter) newParams(system string, messages []anthropic.MessageParam) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(a.model),
		MaxTokens:   int64(a.maxTokens),
		Messages:    messages,
		Temperature: anthropic.Float(a.temperature),
	}
	if strings.TrimSpace(system) != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	return params
}

// historyMessages converts committed turns plus the new input into SDK
// messages, skipping empty content the API would reject.
func historyMessages(history []session.Turn, input string) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(history)+1)
	for _, t := range history {
		if t.Content == "" {
			continue
		}
		switch t.Role {
		case session.RoleUser:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(t.Content)))
		case session.RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(t.Content)))
		}
	}
	out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(input)))
	return out
}

func classifyAnthropicError(code string, err error) error {
	retryable := false
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		retryable = reliability.IsRetryableHTTPStatus(apierr.StatusCode)
	}
	return &ProviderError{
		Code:      code,
		Retryable: retryable,
		Err:       fmt.Errorf("anthropic: %w", err),
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
