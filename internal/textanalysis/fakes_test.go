package textanalysis

import (
	"context"
	"sync"

	"github.com/joelkehle/textanalyzer/internal/llm"
)

type fakeCompleter struct {
	mu       sync.Mutex
	reply    string
	err      error
	requests []llm.CompletionRequest
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.CompletionRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.reply, f.err
}

func (f *fakeCompleter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
