package app

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/parlachat/parla/internal/config"
)

func TestBuildWiresMockStack(t *testing.T) {
	cfg := config.Config{
		MetricsNamespace:   "app_test_build",
		CompletionProvider: "mock",
		SummariesLogPath:   filepath.Join(t.TempDir(), "summaries.log"),
		SummaryThreshold:   10,
		SummaryWindow:      10,
	}

	built, err := Build(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	t.Cleanup(func() {
		if err := built.Cleanup(); err != nil {
			t.Errorf("Cleanup error: %v", err)
		}
	})

	if built.Provider != "mock" {
		t.Fatalf("Provider = %q", built.Provider)
	}
	if built.Config.CompletionProvider != "mock" {
		t.Fatalf("resolved provider not written back to config: %q", built.Config.CompletionProvider)
	}

	ts := httptest.NewServer(built.API.Router())
	defer ts.Close()

	res, err := ts.Client().Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz error: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != 200 {
		t.Fatalf("healthz status = %d", res.StatusCode)
	}
}

func TestBuildRejectsBadProviderMode(t *testing.T) {
	cfg := config.Config{
		MetricsNamespace:   "app_test_bad_mode",
		CompletionProvider: "gpt",
		SummariesLogPath:   filepath.Join(t.TempDir(), "summaries.log"),
	}
	if _, err := Build(context.Background(), cfg); err == nil {
		t.Fatalf("Build accepted unknown provider mode")
	}
}
