// Package apiclient talks to a running textanalyzer over HTTP.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/joelkehle/textanalyzer/internal/textanalysis"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
	Timestamp  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("status=%d: %s", e.StatusCode, e.Message)
}

type Health struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient uses a 90s timeout, above the server's default request timeout.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: 90 * time.Second,
		},
	}
}

func (c *Client) DoJSON(ctx context.Context, method, path string, payload []byte, headers map[string]string) ([]byte, int, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, 0, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	blob, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return blob, resp.StatusCode, decodeAPIError(resp.StatusCode, blob)
	}
	return blob, resp.StatusCode, nil
}

func decodeAPIError(status int, blob []byte) *APIError {
	var resp struct {
		Error     string `json:"error"`
		Timestamp string `json:"timestamp"`
	}
	if err := json.Unmarshal(blob, &resp); err != nil || resp.Error == "" {
		return &APIError{StatusCode: status, Message: strings.TrimSpace(string(blob))}
	}
	return &APIError{StatusCode: status, Message: resp.Error, Timestamp: resp.Timestamp}
}

// Analyze posts text to /api/analyze. requestID may be empty.
func (c *Client) Analyze(ctx context.Context, text, requestID string) (textanalysis.Result, error) {
	blob, _ := json.Marshal(textanalysis.Request{Text: text})
	var headers map[string]string
	if requestID != "" {
		headers = map[string]string{"X-Request-ID": requestID}
	}
	out, _, err := c.DoJSON(ctx, http.MethodPost, "/api/analyze", blob, headers)
	if err != nil {
		return textanalysis.Result{}, err
	}
	var res textanalysis.Result
	if err := json.Unmarshal(out, &res); err != nil {
		return textanalysis.Result{}, fmt.Errorf("decode analysis: %w", err)
	}
	return res, nil
}

func (c *Client) Health(ctx context.Context) (Health, error) {
	out, _, err := c.DoJSON(ctx, http.MethodGet, "/health", nil, nil)
	if err != nil {
		return Health{}, err
	}
	var h Health
	if err := json.Unmarshal(out, &h); err != nil {
		return Health{}, fmt.Errorf("decode health: %w", err)
	}
	return h, nil
}
