package textanalysis

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/joelkehle/textanalyzer/internal/llm"
)

const (
	MaxOutputTokens = 1000
	Temperature     = 0.3
)

// upstreamRules are checked in order against the lower-cased provider
// message; the first match wins.
// A typed provider status, when present, is matched before the message.
var upstreamRules = []struct {
	kind     Kind
	message  string
	statuses []int
	needles  []string
}{
	{
		kind:     KindUpstreamQuota,
		message:  MsgQuotaExceeded,
		statuses: []int{http.StatusTooManyRequests},
		needles:  []string{"429", "quota", "billing"},
	},
	{
		kind:     KindUpstreamAuth,
		message:  MsgInvalidAPIKey,
		statuses: []int{http.StatusUnauthorized},
		needles:  []string{"401", "unauthorized", "invalid api key"},
	},
	{
		kind:     KindUpstreamForbidden,
		message:  MsgForbidden,
		statuses: []int{http.StatusForbidden},
		needles:  []string{"403", "forbidden"},
	},
	{
		kind:     KindUpstreamUnavailable,
		message:  MsgUnavailable,
		statuses: []int{http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable},
		needles:  []string{"500", "502", "503"},
	},
}

type AdapterConfig struct {
	APIKey string
	Model  string
}

// Adapter makes the single completion call for an analysis and turns every
// provider failure into a classified Error.
type Adapter struct {
	apiKey    string
	model     string
	completer llm.Completer
}

func NewAdapter(cfg AdapterConfig, completer llm.Completer) *Adapter {
	return &Adapter{
		apiKey:    strings.TrimSpace(cfg.APIKey),
		model:     cfg.Model,
		completer: completer,
	}
}

func (a *Adapter) Model() string {
	return a.model
}

// Complete returns the raw model text. It never retries.
func (a *Adapter) Complete(ctx context.Context, prompt string) (string, error) {
	if a.apiKey == "" {
		return "", newError(KindConfiguration, MsgAPIKeyMissing, nil)
	}
	raw, err := a.completer.Complete(ctx, llm.CompletionRequest{
		Prompt:      prompt,
		Model:       a.model,
		MaxTokens:   MaxOutputTokens,
		Temperature: Temperature,
	})
	if err != nil {
		return "", classifyProviderError(err)
	}
	if strings.TrimSpace(raw) == "" {
		return "", newError(KindUpstreamMalformed, MsgNoResponse, nil)
	}
	return raw, nil
}

func classifyProviderError(err error) *Error {
	var se *llm.StatusError
	if errors.As(err, &se) {
		for _, rule := range upstreamRules {
			if slices.Contains(rule.statuses, se.StatusCode) {
				return newError(rule.kind, rule.message, err)
			}
		}
	}
	msg := strings.ToLower(err.Error())
	for _, rule := range upstreamRules {
		for _, needle := range rule.needles {
			if strings.Contains(msg, needle) {
				return newError(rule.kind, rule.message, err)
			}
		}
	}
	return newError(KindUpstreamGeneric, MsgAnalysisFailed, err)
}
