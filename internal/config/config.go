package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultSystemPrompt frames the assistant for every streamed turn.
const DefaultSystemPrompt = "Act like a useful assistant and answer the user questions using the information the user gives to you during the conversation."

// Config contains all runtime settings for the chat service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	CompletionProvider string

	AnthropicAPIKey  string
	AnthropicBaseURL string
	AnthropicModel   string

	CompletionMaxTokens      int
	CompletionTemperature    float64
	CompletionRequestTimeout time.Duration

	SystemPrompt string

	// SummaryThreshold is the number of committed turns between summaries;
	// SummaryWindow is the number of trailing turns included in each one.
	SummaryThreshold int
	SummaryWindow    int
	SummariesLogPath string

	DatabaseURL string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:                 envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:         envOrDefault("APP_METRICS_NAMESPACE", "parla"),
		AllowAnyOrigin:           false,
		CompletionProvider:       envOrDefault("COMPLETION_PROVIDER", "auto"),
		AnthropicAPIKey:          envTrimmed("ANTHROPIC_API_KEY"),
		AnthropicBaseURL:         envTrimmed("ANTHROPIC_BASE_URL"),
		AnthropicModel:           envOrDefault("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
		CompletionMaxTokens:      1024,
		CompletionTemperature:    0.75,
		CompletionRequestTimeout: 30 * time.Second,
		SystemPrompt:             envOrDefault("CHAT_SYSTEM_PROMPT", DefaultSystemPrompt),
		SummaryThreshold:         10,
		SummaryWindow:            10,
		SummariesLogPath:         envOrDefault("SUMMARIES_LOG_PATH", "logs/summaries.log"),
		DatabaseURL:              envTrimmed("DATABASE_URL"),
		ShutdownTimeout:          15 * time.Second,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.CompletionMaxTokens, err = intFromEnv("COMPLETION_MAX_TOKENS", cfg.CompletionMaxTokens)
	if err != nil {
		return Config{}, err
	}
	cfg.CompletionTemperature, err = floatFromEnv("COMPLETION_TEMPERATURE", cfg.CompletionTemperature)
	if err != nil {
		return Config{}, err
	}
	cfg.CompletionRequestTimeout, err = durationFromEnv("COMPLETION_REQUEST_TIMEOUT", cfg.CompletionRequestTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SummaryThreshold, err = intFromEnv("SUMMARY_THRESHOLD", cfg.SummaryThreshold)
	if err != nil {
		return Config{}, err
	}
	cfg.SummaryWindow, err = intFromEnv("SUMMARY_WINDOW", cfg.SummaryWindow)
	if err != nil {
		return Config{}, err
	}

	if cfg.CompletionMaxTokens <= 0 {
		return Config{}, fmt.Errorf("COMPLETION_MAX_TOKENS must be positive")
	}
	if cfg.CompletionTemperature < 0 || cfg.CompletionTemperature > 2 {
		return Config{}, fmt.Errorf("COMPLETION_TEMPERATURE must be within [0, 2]")
	}
	if cfg.CompletionRequestTimeout < time.Second {
		return Config{}, fmt.Errorf("COMPLETION_REQUEST_TIMEOUT must be at least 1s")
	}
	if cfg.SummaryThreshold <= 0 {
		return Config{}, fmt.Errorf("SUMMARY_THRESHOLD must be positive")
	}
	if cfg.SummaryWindow <= 0 {
		return Config{}, fmt.Errorf("SUMMARY_WINDOW must be positive")
	}
	if strings.TrimSpace(cfg.SummariesLogPath) == "" {
		return Config{}, fmt.Errorf("SUMMARIES_LOG_PATH must not be empty")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func envTrimmed(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(envTrimmed(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
