package app

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/parlachat/parla/internal/chat"
	"github.com/parlachat/parla/internal/completion"
	"github.com/parlachat/parla/internal/config"
	"github.com/parlachat/parla/internal/httpapi"
	"github.com/parlachat/parla/internal/observability"
	"github.com/parlachat/parla/internal/session"
	"github.com/parlachat/parla/internal/summary"
)

// BuildResult holds the fully wired service graph. Tests use it to stand up
// the whole stack without going through main.
type BuildResult struct {
	Config   config.Config
	API      *httpapi.Server
	Store    *session.Store
	Chat     *chat.Service
	Metrics  *observability.Metrics
	Provider string

	// Cleanup should be called on shutdown to release external resources.
	Cleanup func() error
}

// Build wires every component from a loaded config.
func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	summaries, err := summary.NewSink(ctx, cfg.DatabaseURL, cfg.SummariesLogPath)
	if err != nil {
		return nil, fmt.Errorf("summary sink init failed: %w", err)
	}

	adapter, err := completion.NewAdapter(completion.Config{
		Mode:           cfg.CompletionProvider,
		APIKey:         cfg.AnthropicAPIKey,
		BaseURL:        cfg.AnthropicBaseURL,
		Model:          cfg.AnthropicModel,
		MaxTokens:      cfg.CompletionMaxTokens,
		Temperature:    cfg.CompletionTemperature,
		RequestTimeout: cfg.CompletionRequestTimeout,
	})
	if err != nil {
		_ = summaries.Close()
		return nil, fmt.Errorf("completion adapter init failed: %w", err)
	}
	log.Printf("completion provider: %s", adapter.Name())

	// Health and readiness report the resolved backend, not the requested mode.
	cfg.CompletionProvider = adapter.Name()

	store := session.NewStore()
	svc := chat.NewService(store, adapter, summaries, metrics, chat.Options{
		SystemPrompt:     cfg.SystemPrompt,
		SummaryThreshold: cfg.SummaryThreshold,
		SummaryWindow:    cfg.SummaryWindow,
	})

	api := httpapi.New(cfg, store, svc, metrics)

	cleanup := func() error {
		var errs []string
		if err := summaries.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if len(errs) > 0 {
			return fmt.Errorf("%s", strings.Join(errs, "; "))
		}
		return nil
	}

	return &BuildResult{
		Config:   cfg,
		API:      api,
		Store:    store,
		Chat:     svc,
		Metrics:  metrics,
		Provider: adapter.Name(),
		Cleanup:  cleanup,
	}, nil
}
