// Package llm puts the remote completion providers behind one interface so
// the analysis pipeline never depends on a concrete SDK.
package llm

import (
	"context"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// CompletionRequest is a single-turn, single-message completion.
type CompletionRequest struct {
	Prompt      string
	Model       string
	MaxTokens   int64
	Temperature float64
}

// Completer performs one completion call and returns the raw text of the
// first choice. An empty string means the provider answered with no content.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// StatusError carries the HTTP status the provider answered with.
type StatusError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %v", e.Provider, e.StatusCode, e.Err)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// Config selects and configures a provider.
type Config struct {
	Provider string
	APIKey   string
	BaseURL  string
}

// New builds the Completer for cfg.Provider.
func New(cfg Config) (Completer, error) {
	switch NormalizeProvider(cfg.Provider) {
	case ProviderOpenAI:
		return NewOpenAICompleter(cfg.APIKey, cfg.BaseURL), nil
	case ProviderAnthropic:
		return NewAnthropicCompleter(cfg.APIKey, cfg.BaseURL), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// NormalizeProvider lower-cases and trims a provider name; empty means openai.
func NormalizeProvider(provider string) string {
	p := strings.ToLower(strings.TrimSpace(provider))
	if p == "" {
		return ProviderOpenAI
	}
	return p
}

// DefaultModel is the model used when none is configured.
func DefaultModel(provider string) string {
	switch NormalizeProvider(provider) {
	case ProviderAnthropic:
		return string(anthropic.ModelClaudeHaiku4_5)
	default:
		return string(openai.ChatModelGPT3_5Turbo)
	}
}
