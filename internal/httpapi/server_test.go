package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joelkehle/textanalyzer/internal/llm"
	"github.com/joelkehle/textanalyzer/internal/telemetry"
	"github.com/joelkehle/textanalyzer/internal/textanalysis"
)

const sampleText = "This is a sample text for testing the API endpoint functionality."

type fakeCompleter struct {
	reply string
	err   error
	calls int
	texts []string
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.CompletionRequest) (string, error) {
	f.calls++
	f.texts = append(f.texts, req.Prompt)
	return f.reply, f.err
}

type providerErr string

func (e providerErr) Error() string { return string(e) }

type testServer struct {
	handler   http.Handler
	completer *fakeCompleter
	registry  *prometheus.Registry
}

func newServerForTest(t *testing.T, fc *fakeCompleter, development bool) testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)
	adapter := textanalysis.NewAdapter(textanalysis.AdapterConfig{APIKey: "sk-test", Model: "gpt-3.5-turbo"}, metrics.InstrumentCompleter(fc))
	svc := textanalysis.NewService(adapter, textanalysis.WithLogger(logger))
	h := NewServer(svc, Options{
		Development:    development,
		RequestTimeout: 5 * time.Second,
		Logger:         logger,
		Metrics:        metrics,
		Gatherer:       reg,
		Clock: func() time.Time {
			return time.Date(2026, 2, 17, 0, 0, 0, 0, time.UTC)
		},
	})
	return testServer{handler: h, completer: fc, registry: reg}
}

func postJSON(t *testing.T, h http.Handler, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	blob, err := json.Marshal(body)
	require.NoError(t, err)
	return postRaw(t, h, path, string(blob), headers)
}

func postRaw(t *testing.T, h http.Handler, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp), rr.Body.String())
	return resp
}

func TestAnalyzeSuccess(t *testing.T) {
	reply := `{"summary":"This is a test summary of the provided text.","sentiment":"positive","keywords":["test","summary","analysis"]}`
	ts := newServerForTest(t, &fakeCompleter{reply: reply}, false)

	rr := postJSON(t, ts.handler, "/api/analyze", map[string]any{"text": sampleText}, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, reply, rr.Body.String())
	assert.Equal(t, 1, ts.completer.calls)
	assert.Contains(t, ts.completer.texts[0], `"`+sampleText+`"`)
}

func TestAnalyzeSentiments(t *testing.T) {
	for _, sentiment := range []string{"positive", "negative", "neutral"} {
		reply := `{"summary":"Test summary","sentiment":"` + sentiment + `","keywords":["test","keyword","analysis"]}`
		ts := newServerForTest(t, &fakeCompleter{reply: reply}, false)
		rr := postJSON(t, ts.handler, "/api/analyze", map[string]any{"text": "The product arrived on time and works as described."}, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		var res textanalysis.Result
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
		assert.Equal(t, textanalysis.Sentiment(sentiment), res.Sentiment)
	}
}

func TestAnalyzeValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "short", body: `{"text":"Short"}`, want: "Text must be at least 10 characters long"},
		{name: "empty", body: `{"text":""}`, want: "Text cannot be empty"},
		{name: "whitespace", body: `{"text":"   \n\t   "}`, want: "Text cannot be empty"},
		{name: "too long", body: `{"text":"` + strings.Repeat("a", 10001) + `"}`, want: "Text must not exceed 10,000 characters"},
		{name: "missing", body: `{}`, want: "text"},
		{name: "empty body", body: ``, want: "text: Required"},
		{name: "invalid json", body: `invalid json`, want: "Invalid JSON payload"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ts := newServerForTest(t, &fakeCompleter{reply: "unused"}, false)
			rr := postRaw(t, ts.handler, "/api/analyze", tc.body, nil)
			require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
			resp := decodeError(t, rr)
			assert.Contains(t, resp.Error, tc.want)
			assert.Equal(t, "2026-02-17T00:00:00.000Z", resp.Timestamp)
			assert.Empty(t, resp.Stack)
			assert.Zero(t, ts.completer.calls)
		})
	}
}

func TestAnalyzeBodyTooLarge(t *testing.T) {
	ts := newServerForTest(t, &fakeCompleter{reply: "unused"}, false)
	rr := postRaw(t, ts.handler, "/api/analyze", `{"text":"`+strings.Repeat("a", maxBodyBytes)+`"}`, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decodeError(t, rr).Error, "Request body too large")
	assert.Zero(t, ts.completer.calls)
}

func TestAnalyzeUpstreamErrors(t *testing.T) {
	tests := []struct {
		providerMsg string
		want        string
	}{
		{providerMsg: "You exceeded your current quota", want: "OpenAI API quota exceeded"},
		{providerMsg: "401 Unauthorized", want: "Invalid OpenAI API key"},
		{providerMsg: "403 Forbidden", want: "OpenAI API access forbidden."},
		{providerMsg: "503 Service Unavailable", want: "OpenAI API service temporarily unavailable. Please try again later"},
		{providerMsg: "socket hang up", want: "Failed to analyze text with AI service."},
	}
	for _, tc := range tests {
		t.Run(tc.providerMsg, func(t *testing.T) {
			ts := newServerForTest(t, &fakeCompleter{err: providerErr(tc.providerMsg)}, false)
			rr := postJSON(t, ts.handler, "/api/analyze", map[string]any{"text": sampleText}, nil)
			require.Equal(t, http.StatusInternalServerError, rr.Code)
			resp := decodeError(t, rr)
			assert.Equal(t, tc.want, resp.Error)
			assert.NotContains(t, rr.Body.String(), tc.providerMsg)
			assert.Empty(t, resp.Stack)
			assert.Equal(t, 1, ts.completer.calls)
		})
	}
}

func TestAnalyzeFencedReply(t *testing.T) {
	ts := newServerForTest(t, &fakeCompleter{reply: "```json\n{\"summary\":\"x\",\"sentiment\":\"neutral\",\"keywords\":[\"a\",\"b\",\"c\"]}\n```"}, false)
	rr := postJSON(t, ts.handler, "/api/analyze", map[string]any{"text": sampleText}, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"summary":"x","sentiment":"neutral","keywords":["a","b","c"]}`, rr.Body.String())
}

func TestAnalyzeMalformedReply(t *testing.T) {
	ts := newServerForTest(t, &fakeCompleter{reply: `{"summary":"x","sentiment":"meh","keywords":["a"]}`}, false)
	rr := postJSON(t, ts.handler, "/api/analyze", map[string]any{"text": sampleText}, nil)
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Invalid response format from AI service", decodeError(t, rr).Error)
}

func TestDevelopmentModeIncludesStack(t *testing.T) {
	ts := newServerForTest(t, &fakeCompleter{err: providerErr("429 Too Many Requests")}, true)
	rr := postJSON(t, ts.handler, "/api/analyze", map[string]any{"text": sampleText}, nil)
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	resp := decodeError(t, rr)
	assert.Equal(t, "OpenAI API quota exceeded", resp.Error)
	assert.NotEmpty(t, resp.Stack)
}

func TestHealth(t *testing.T) {
	ts := newServerForTest(t, &fakeCompleter{}, false)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"OK","timestamp":"2026-02-17T00:00:00.000Z"}`, rr.Body.String())
}

func TestUnknownRoutes(t *testing.T) {
	ts := newServerForTest(t, &fakeCompleter{}, false)
	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/api/unknown"},
		{http.MethodGet, "/api/analyze"},
		{http.MethodPost, "/health"},
		{http.MethodGet, "/"},
	} {
		req := httptest.NewRequest(tc.method, tc.path, bytes.NewReader(nil))
		rr := httptest.NewRecorder()
		ts.handler.ServeHTTP(rr, req)
		require.Equal(t, http.StatusNotFound, rr.Code, "%s %s", tc.method, tc.path)
		assert.JSONEq(t, `{"error":"Route not found"}`, rr.Body.String())
	}
}

func TestRequestIDPropagation(t *testing.T) {
	ts := newServerForTest(t, &fakeCompleter{}, false)
	rr := postJSON(t, ts.handler, "/api/analyze", map[string]any{"text": "Short"}, map[string]string{"X-Request-ID": "req-123"})
	assert.Equal(t, "req-123", rr.Header().Get("X-Request-ID"))

	rr = postJSON(t, ts.handler, "/api/analyze", map[string]any{"text": "Short"}, nil)
	assert.Len(t, rr.Header().Get("X-Request-ID"), 36)
}

func TestMetricsEndpoint(t *testing.T) {
	reply := `{"summary":"s","sentiment":"neutral","keywords":["a","b","c"]}`
	ts := newServerForTest(t, &fakeCompleter{reply: reply}, false)
	postJSON(t, ts.handler, "/api/analyze", map[string]any{"text": sampleText}, nil)
	postJSON(t, ts.handler, "/api/analyze", map[string]any{"text": "Short"}, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `textanalyzer_http_requests_total{code="200",route="/api/analyze"} 1`)
	assert.Contains(t, body, `textanalyzer_http_requests_total{code="400",route="/api/analyze"} 1`)
	assert.Contains(t, body, `textanalyzer_analysis_failures_total{kind="validation"} 1`)
	assert.Contains(t, body, `textanalyzer_upstream_request_duration_seconds_count{outcome="ok"} 1`)
}

type panickingAnalyzer struct{}

func (panickingAnalyzer) Analyze(context.Context, []byte) (textanalysis.Result, error) {
	panic("boom")
}

func TestPanicIsRecovered(t *testing.T) {
	h := NewServer(panickingAnalyzer{}, Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	rr := postJSON(t, h, "/api/analyze", map[string]any{"text": sampleText}, nil)
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Internal Server Error", decodeError(t, rr).Error)
}
