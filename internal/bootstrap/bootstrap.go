package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/extraction-indexer/internal/config"
	"github.com/kirillkom/extraction-indexer/internal/core/ports"
	"github.com/kirillkom/extraction-indexer/internal/core/usecase"
	"github.com/kirillkom/extraction-indexer/internal/infrastructure/queue/nats"
	"github.com/kirillkom/extraction-indexer/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/extraction-indexer/internal/infrastructure/resilience"
	"github.com/kirillkom/extraction-indexer/internal/infrastructure/search/elasticsearch"
	"github.com/kirillkom/extraction-indexer/internal/infrastructure/search/memory"
	"github.com/kirillkom/extraction-indexer/internal/observability/metrics"
)

type Options struct {
	// Service labels metrics emitted by the indexer.
	Service string
	// Registerer receives the indexing and circuit breaker collectors.
	// Nil disables indexing metrics.
	Registerer prometheus.Registerer
	// Events connects to NATS so the app can consume extraction events.
	Events bool
}

type App struct {
	Config config.Config

	Executor *resilience.Executor
	Backend  ports.SearchBackend
	Indexer  *usecase.IndexExtractionUseCase
	Runs     ports.RunReader
	Events   ports.ExtractionEventSource

	closeOnce sync.Once
	closeFn   func() error
}

func New(ctx context.Context, cfg config.Config, options Options) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var indexing *metrics.IndexingMetrics
	if options.Registerer != nil {
		indexing = metrics.NewIndexingMetrics(options.Service, options.Registerer)
	}

	resilienceCfg := resilience.DefaultConfig()
	resilienceCfg.BreakerEnabled = cfg.BreakerEnabled
	if indexing != nil {
		resilienceCfg.OnStateChange = indexing.ObserveBreakerState
	}
	executor := resilience.NewExecutor(resilienceCfg)

	backend, err := newSearchBackend(cfg, executor)
	if err != nil {
		return nil, fmt.Errorf("init search backend: %w", err)
	}
	closers := []func() error{backend.Close}
	cleanup := func() error {
		var firstErr error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}

	indexerOptions := usecase.IndexerOptions{
		Indices: usecase.DefaultIndices().WithPrefix(cfg.IndexPrefix),
	}
	if indexing != nil {
		indexerOptions.Observer = indexing
	}

	app := &App{
		Config:   cfg,
		Executor: executor,
		Backend:  backend,
	}

	if cfg.JournalEnabled() {
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			_ = cleanup()
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		closers = append(closers, db.Close)
		runs := postgres.NewIndexingRunRepository(db)
		if err := runs.EnsureSchema(ctx); err != nil {
			_ = cleanup()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		indexerOptions.Recorder = runs
		app.Runs = runs
	}

	if options.Events {
		queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: executor,
		})
		if err != nil {
			_ = cleanup()
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		closers = append(closers, func() error {
			queue.Close()
			return nil
		})
		app.Events = queue
	}

	app.Indexer = usecase.NewIndexExtractionUseCase(backend, indexerOptions)
	app.closeFn = cleanup

	slog.Info("app_initialized",
		"search_backend", cfg.SearchBackend,
		"index_prefix", cfg.IndexPrefix,
		"journal_enabled", cfg.JournalEnabled(),
		"events_enabled", options.Events,
	)
	return app, nil
}

func newSearchBackend(cfg config.Config, executor *resilience.Executor) (ports.SearchBackend, error) {
	switch strings.ToLower(cfg.SearchBackend) {
	case config.BackendMemory:
		return memory.New(), nil
	default:
		return elasticsearch.New(elasticsearch.Options{
			Addresses:      cfg.ElasticsearchAddresses(),
			Username:       cfg.ElasticsearchUsername,
			Password:       cfg.ElasticsearchPassword,
			APIKey:         cfg.ElasticsearchAPIKey,
			RequestTimeout: time.Duration(cfg.ElasticsearchTimeoutS) * time.Second,
		}, executor)
	}
}

// Close releases the backend and every other handle. Calling it more than
// once is safe.
func (a *App) Close() error {
	var err error
	a.closeOnce.Do(func() {
		if a.closeFn != nil {
			err = a.closeFn()
		}
	})
	return err
}

var (
	sharedOnce sync.Once
	sharedApp  *App
	sharedErr  error
)

// Shared builds the process-wide App on first use. Later calls return the
// same App (or the same construction error) and ignore their arguments.
func Shared(ctx context.Context, cfg config.Config, options Options) (*App, error) {
	sharedOnce.Do(func() {
		sharedApp, sharedErr = New(ctx, cfg, options)
	})
	return sharedApp, sharedErr
}
