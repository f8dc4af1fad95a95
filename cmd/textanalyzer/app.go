package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/joelkehle/textanalyzer/internal/apiclient"
	"github.com/joelkehle/textanalyzer/internal/config"
	"github.com/joelkehle/textanalyzer/internal/httpapi"
	"github.com/joelkehle/textanalyzer/internal/llm"
	"github.com/joelkehle/textanalyzer/internal/telemetry"
	"github.com/joelkehle/textanalyzer/internal/textanalysis"
)

func loadConfig(flags *globalFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	return cfg, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}
	if cfg.IsDevelopment() {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func newService(cfg *config.Config, logger *slog.Logger, metrics *telemetry.Metrics) (*textanalysis.Service, error) {
	completer, err := llm.New(llm.Config{
		Provider: cfg.LLM.Provider,
		APIKey:   cfg.LLM.APIKey,
		BaseURL:  cfg.LLM.BaseURL,
	})
	if err != nil {
		return nil, err
	}
	adapter := textanalysis.NewAdapter(textanalysis.AdapterConfig{
		APIKey: cfg.LLM.APIKey,
		Model:  cfg.LLM.Model,
	}, metrics.InstrumentCompleter(completer))
	return textanalysis.NewService(adapter, textanalysis.WithLogger(logger)), nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := newLogger(cfg, os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TracingConfig{
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
	})
	if err != nil {
		log.Fatalf("failed to initialize tracing: %v", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.NewMetrics(reg)

	svc, err := newService(cfg, logger, metrics)
	if err != nil {
		log.Fatalf("failed to initialize llm client: %v", err)
	}
	if strings.TrimSpace(cfg.LLM.APIKey) == "" {
		logger.Warn("no LLM API key configured; analyze requests will fail", "provider", cfg.LLM.Provider)
	}

	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: httpapi.NewServer(svc, httpapi.Options{
			Development:    cfg.IsDevelopment(),
			RequestTimeout: cfg.Server.RequestTimeout,
			Logger:         logger,
			Metrics:        metrics,
			Gatherer:       reg,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("textanalyzer listening", "addr", srv.Addr, "env", cfg.Env,
			"provider", cfg.LLM.Provider, "model", cfg.LLM.Model)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("tracing shutdown", "error", err)
	}
	return nil
}

func readInput(stdin io.Reader, args []string, file string) (string, error) {
	switch {
	case len(args) == 1 && file != "":
		return "", errors.New("pass the text as an argument or with --file, not both")
	case len(args) == 1:
		return args[0], nil
	case file != "":
		blob, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", file, err)
		}
		return string(blob), nil
	default:
		blob, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(blob), nil
	}
}

func analyzeOnce(ctx context.Context, cfg *config.Config, text string, out io.Writer) error {
	logger := newLogger(cfg, os.Stderr)
	svc, err := newService(cfg, logger, nil)
	if err != nil {
		return err
	}
	res, err := svc.AnalyzeText(ctx, text)
	if err != nil {
		return err
	}
	return printResult(out, res)
}

func analyzeRemote(ctx context.Context, baseURL, text string, out io.Writer) error {
	res, err := apiclient.NewClient(baseURL).Analyze(ctx, text, "")
	if err != nil {
		return err
	}
	return printResult(out, res)
}

func printResult(out io.Writer, res textanalysis.Result) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
