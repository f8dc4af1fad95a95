package textanalysis

import (
	"context"
	"errors"
	"log/slog"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/joelkehle/textanalyzer/internal/textanalysis"

// Service runs validate -> prompt -> completion -> normalize. It holds no
// per-request state and is safe for concurrent use.
type Service struct {
	adapter *Adapter
	tracer  trace.Tracer
	logger  *slog.Logger
}

type Option func(*Service)

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(adapter *Adapter, opts ...Option) *Service {
	s := &Service{
		adapter: adapter,
		tracer:  otel.Tracer(tracerName),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Analyze validates a raw JSON body of the form {"text": "..."} and runs the
// pipeline on it.
func (s *Service) Analyze(ctx context.Context, body []byte) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "textanalysis.Analyze")
	defer span.End()

	req, err := ParseRequest(body)
	if err != nil {
		recordError(span, err)
		return Result{}, err
	}
	res, err := s.run(ctx, req)
	if err != nil {
		recordError(span, err)
		return Result{}, err
	}
	return res, nil
}

// AnalyzeText is Analyze for callers that already hold the text.
func (s *Service) AnalyzeText(ctx context.Context, text string) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "textanalysis.AnalyzeText")
	defer span.End()

	req, err := ValidateText(text)
	if err != nil {
		recordError(span, err)
		return Result{}, err
	}
	res, err := s.run(ctx, req)
	if err != nil {
		recordError(span, err)
		return Result{}, err
	}
	return res, nil
}

func (s *Service) run(ctx context.Context, req Request) (Result, error) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.Int("text.length", utf8.RuneCountInString(req.Text)))

	prompt := BuildPrompt(req.Text)

	ctx, callSpan := s.tracer.Start(ctx, "llm.Complete", trace.WithAttributes(
		attribute.String("llm.model", s.adapter.Model()),
	))
	raw, err := s.adapter.Complete(ctx, prompt)
	if err != nil {
		recordError(callSpan, err)
		callSpan.End()
		s.logger.ErrorContext(ctx, "llm completion failed", "kind", kindOf(err), "error", errors.Unwrap(err))
		return Result{}, err
	}
	callSpan.End()

	res, err := Normalize(raw)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to parse AI response", "error", errors.Unwrap(err), "content", raw)
		return Result{}, err
	}
	span.SetAttributes(attribute.String("analysis.sentiment", string(res.Sentiment)))
	return res, nil
}

func kindOf(err error) Kind {
	if e, ok := AsError(err); ok {
		return e.Kind
	}
	return ""
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if kind := kindOf(err); kind != "" {
		span.SetAttributes(attribute.String("error.kind", string(kind)))
	}
}
