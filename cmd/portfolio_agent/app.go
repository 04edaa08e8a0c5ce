package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jonathan/portfolio-pipeline/internal/config"
	"github.com/jonathan/portfolio-pipeline/internal/db"
	"github.com/jonathan/portfolio-pipeline/internal/extraction"
	"github.com/jonathan/portfolio-pipeline/internal/llm"
	"github.com/jonathan/portfolio-pipeline/internal/metrics"
	"github.com/jonathan/portfolio-pipeline/internal/pipeline"
	"github.com/jonathan/portfolio-pipeline/internal/ratelimit"
	"github.com/jonathan/portfolio-pipeline/internal/redisstore"
	"github.com/jonathan/portfolio-pipeline/internal/sanitize"
	"github.com/jonathan/portfolio-pipeline/internal/server"
)

// app holds the collaborators shared by serve and process
type app struct {
	orchestrator *pipeline.Orchestrator
	gateway      *db.Gateway
	metrics      *metrics.Metrics
	pingers      map[string]server.Pinger

	closers []func()
}

// appOptions selects which optional pieces are assembled
type appOptions struct {
	// WithMetrics registers pipeline metrics on a fresh registry
	WithMetrics bool
	// RateLimit enables per-client admission; batch runs skip it
	RateLimit bool
}

// newApp connects the configured backends and builds the orchestrator. Postgres and Redis are
// optional: without them submissions are not persisted and limiter state stays in memory.
func newApp(ctx context.Context, cfg *config.Config, opts appOptions, logger *slog.Logger) (*app, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable or api_key config is required")
	}

	a := &app{pingers: make(map[string]server.Pinger)}

	llmCfg := llm.DefaultConfig().WithOverrides(map[llm.ModelTier]string{
		llm.TierLite:     cfg.ModelLite,
		llm.TierStandard: cfg.ModelStandard,
		llm.TierAdvanced: cfg.ModelAdvanced,
	})
	client, err := llm.NewClient(ctx, llmCfg, cfg.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	a.closers = append(a.closers, func() { _ = client.Close() })

	var persistence pipeline.PersistenceGateway
	if cfg.DatabaseURL != "" {
		database, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.closers = append(a.closers, database.Close)
		if cfg.Migrate {
			if err := database.Migrate(ctx); err != nil {
				a.Close()
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
		}
		a.gateway = db.NewGateway(database, logger)
		a.pingers["postgres"] = database
		persistence = a.gateway
	}

	var (
		limiterStore ratelimit.Store
		history      sanitize.HistoryStore
	)
	if cfg.RedisURL != "" {
		rc, err := redisstore.NewClient(ctx, redisstore.Config{URL: cfg.RedisURL, Prefix: cfg.RedisPrefix})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = rc.Close() })
		a.pingers["redis"] = rc
		limiterStore = redisstore.NewLimiterStore(rc)
		history = redisstore.NewHistory(rc)
	}

	content := sanitize.New(history, cfg.DuplicateWindow.Std(), logger)
	content.StartCleanup(cfg.DuplicateWindow.Std())
	a.closers = append(a.closers, content.Stop)

	pcfg := pipeline.Config{
		Extractor:         extraction.NewGeminiExtractor(client, logger),
		Analyzer:          extraction.NewGeminiAnalyzer(client, logger),
		Content:           content,
		Persistence:       persistence,
		Logger:            logger,
		ExtractionTimeout: cfg.ExtractionTimeout.Std(),
		AnalysisTimeout:   cfg.AnalysisTimeout.Std(),
	}

	if opts.RateLimit {
		limiter := ratelimit.NewLimiter(ratelimit.LoadConfig(), limiterStore, logger)
		a.closers = append(a.closers, limiter.Stop)
		pcfg.Limiter = limiter
	}

	if opts.WithMetrics {
		a.metrics = metrics.New(prometheus.NewRegistry())
		pcfg.OnRetry = a.metrics.ObserveRetry
		pcfg.OnResult = a.metrics.ObserveResult
	}

	a.orchestrator, err = pipeline.New(pcfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}
	if a.metrics != nil {
		a.orchestrator.AddObserver(a.metrics)
	}
	return a, nil
}

// Close releases backends in reverse order of acquisition
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
