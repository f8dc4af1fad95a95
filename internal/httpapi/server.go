package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joelkehle/textanalyzer/internal/telemetry"
	"github.com/joelkehle/textanalyzer/internal/textanalysis"
)

const (
	maxBodyBytes    = 1 << 20
	requestIDHeader = "X-Request-ID"
	isoMillis       = "2006-01-02T15:04:05.000Z07:00"

	routeAnalyze  = "/api/analyze"
	routeHealth   = "/health"
	routeMetrics  = "/metrics"
	routeNotFound = "not_found"
)

// Analyzer is the core pipeline as seen by the transport.
type Analyzer interface {
	Analyze(ctx context.Context, body []byte) (textanalysis.Result, error)
}

type Options struct {
	// Development adds stack traces to error bodies.
	Development    bool
	RequestTimeout time.Duration
	Logger         *slog.Logger
	Metrics        *telemetry.Metrics
	// Gatherer enables GET /metrics when set.
	Gatherer prometheus.Gatherer
	Clock    func() time.Time
}

type Server struct {
	analyzer       Analyzer
	development    bool
	requestTimeout time.Duration
	logger         *slog.Logger
	metrics        *telemetry.Metrics
	now            func() time.Time
}

type errorResponse struct {
	Error     string `json:"error"`
	Stack     string `json:"stack,omitempty"`
	Timestamp string `json:"timestamp"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

func NewServer(analyzer Analyzer, opts Options) http.Handler {
	s := &Server{
		analyzer:       analyzer,
		development:    opts.Development,
		requestTimeout: opts.RequestTimeout,
		logger:         opts.Logger,
		metrics:        opts.Metrics,
		now:            opts.Clock,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+routeAnalyze, s.instrument(routeAnalyze, s.handleAnalyze))
	mux.HandleFunc("GET "+routeHealth, s.instrument(routeHealth, s.handleHealth))
	if opts.Gatherer != nil {
		mux.Handle("GET "+routeMetrics, promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}
	mux.HandleFunc("/", s.instrument(routeNotFound, s.handleNotFound))
	return s.withRecovery(withRequestID(mux))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) timestamp() string {
	return s.now().UTC().Format(isoMillis)
}

// writeError renders err as {error, timestamp, stack?}. Unclassified errors
// never leak their text.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := "Internal Server Error"
	kind := "internal"
	stack := fmt.Sprintf("%+v", err)
	if ae, ok := textanalysis.AsError(err); ok {
		status = ae.Status()
		message = ae.Message
		kind = string(ae.Kind)
		stack = ae.StackTrace()
	}

	attrs := []any{"status", status, "kind", kind, "error", message, "request_id", RequestIDFromContext(r.Context())}
	if status >= http.StatusInternalServerError {
		attrs = append(attrs, "stack", stack)
	}
	s.logger.ErrorContext(r.Context(), "request failed", attrs...)
	s.metrics.ObserveFailure(kind)

	resp := errorResponse{Error: message, Timestamp: s.timestamp()}
	if s.development {
		resp.Stack = stack
	}
	writeJSON(w, status, resp)
}

// readBody treats an empty body as {} so the validator reports the missing field.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return []byte("{}"), nil
	}
	blob, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, textanalysis.NewBodyTooLargeError(err)
		}
		return nil, err
	}
	if len(blob) == 0 {
		blob = []byte("{}")
	}
	return blob, nil
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
	}

	blob, err := readBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.analyzer.Analyze(ctx, blob)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "OK", Timestamp: s.timestamp()})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "Route not found"})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		s.metrics.ObserveRequest(route, rec.status)
	}
}

type requestIDKey struct{}

// RequestIDFromContext returns the id assigned by the request-id middleware.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.New().String()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func (s *Server) withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.logger.ErrorContext(r.Context(), "panic serving request",
					"panic", rec, "path", r.URL.Path, "stack", string(debug.Stack()))
				resp := errorResponse{Error: "Internal Server Error", Timestamp: s.timestamp()}
				if s.development {
					resp.Stack = string(debug.Stack())
				}
				writeJSON(w, http.StatusInternalServerError, resp)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
