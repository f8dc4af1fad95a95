package telemetry

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/joelkehle/textanalyzer/internal/llm"
)

const namespace = "textanalyzer"

// Metrics is nil-safe: every method on a nil *Metrics is a no-op.
type Metrics struct {
	requests *prometheus.CounterVec
	failures *prometheus.CounterVec
	upstream *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_failures_total",
			Help:      "Failed analyses by error kind.",
		}, []string{"kind"}),
		upstream: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Latency of completion calls to the LLM provider.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}, []string{"outcome"}),
	}
}

func (m *Metrics) ObserveRequest(route string, status int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

func (m *Metrics) ObserveFailure(kind string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(kind).Inc()
}

// InstrumentCompleter times every completion call made through c.
func (m *Metrics) InstrumentCompleter(c llm.Completer) llm.Completer {
	if m == nil {
		return c
	}
	return &instrumentedCompleter{next: c, upstream: m.upstream}
}

type instrumentedCompleter struct {
	next     llm.Completer
	upstream *prometheus.HistogramVec
}

func (c *instrumentedCompleter) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	start := time.Now()
	out, err := c.next.Complete(ctx, req)
	c.upstream.WithLabelValues(outcome(err)).Observe(time.Since(start).Seconds())
	return out, err
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var se *llm.StatusError
	if errors.As(err, &se) {
		return strconv.Itoa(se.StatusCode)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	return "error"
}
