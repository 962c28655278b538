package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/kirillkom/extraction-indexer/internal/adapters/http"
	"github.com/kirillkom/extraction-indexer/internal/bootstrap"
	"github.com/kirillkom/extraction-indexer/internal/config"
	"github.com/kirillkom/extraction-indexer/internal/observability/logging"
	"github.com/kirillkom/extraction-indexer/internal/observability/metrics"
)

const serviceName = "indexer-api"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Service:    serviceName,
		Registerer: httpMetrics.Registerer(),
	})
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			slog.Error("app_close_failed", "error", err)
		}
	}()

	router := httpadapter.NewRouter(app.Indexer, app.Indexer, httpadapter.RouterOptions{
		Service:        serviceName,
		Runs:           app.Runs,
		Metrics:        httpMetrics,
		RateLimitRPS:   cfg.APIRateLimitRPS,
		RateLimitBurst: cfg.APIRateLimitBurst,
		MaxBodyBytes:   cfg.APIMaxBodyBytes,
	}).Handler()
	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("api_listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api_shutdown_failed", "error", err)
	}
}
