package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/extraction-indexer/internal/bootstrap"
	"github.com/kirillkom/extraction-indexer/internal/config"
	"github.com/kirillkom/extraction-indexer/internal/core/domain"
	"github.com/kirillkom/extraction-indexer/internal/observability/logging"
	"github.com/kirillkom/extraction-indexer/internal/observability/metrics"
)

const serviceName = "indexer-worker"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg)
	stop()
	if err != nil {
		slog.Error("worker_failed", "error", err)
		os.Exit(1)
	}
}

// run owns every worker resource; it returns only after they are released.
func run(ctx context.Context, cfg config.Config) error {
	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Service:    serviceName,
		Registerer: workerMetrics.Registerer(),
		Events:     true,
	})
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			slog.Error("app_close_failed", "error", err)
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", workerMetrics.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	err = app.Events.SubscribeExtractionCompleted(ctx, func(handlerCtx context.Context, event domain.ExtractionEvent) domain.IndexResult {
		start := time.Now()
		workerMetrics.StartEvent()
		result := app.Indexer.HandleExtractionEvent(handlerCtx, event)
		workerMetrics.FinishEvent(serviceName, string(event.Kind), string(result.Status), time.Since(start))
		if result.Status == domain.StatusError {
			slog.Error("extraction_event_failed",
				"document_id", event.DocumentID,
				"kind", string(event.Kind),
				"failure", string(result.Failure),
				"error", result.Message,
			)
		}
		return result
	})
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	return nil
}
