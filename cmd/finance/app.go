package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mp3fbf/finance-analyzer/internal/analysis"
	"github.com/mp3fbf/finance-analyzer/internal/engine"
	"github.com/mp3fbf/finance-analyzer/internal/inference"
	"github.com/mp3fbf/finance-analyzer/internal/llm"
	"github.com/mp3fbf/finance-analyzer/internal/metrics"
	"github.com/mp3fbf/finance-analyzer/internal/normalize"
	"github.com/mp3fbf/finance-analyzer/internal/search"
	"github.com/mp3fbf/finance-analyzer/internal/storage"
)

// app bundles the wired components one command needs.
type app struct {
	storage   *storage.SQLiteStorage
	extractor *analysis.Extractor
	engine    *inference.Engine
	workflow  *engine.Workflow
	validator *engine.Validator
	metrics   *metrics.Collector
	search    *search.Stack
}

// openStorage opens and migrates the configured database.
func openStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(appConfig.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func newExtractor() *analysis.Extractor {
	return analysis.NewExtractor(normalize.New(appConfig.Locale()))
}

// newReviewApp wires storage and the validator only; review commands never
// call the reasoning service.
func newReviewApp(ctx context.Context) (*app, error) {
	store, err := openStorage(ctx)
	if err != nil {
		return nil, err
	}
	m := metrics.New()
	return &app{
		storage:   store,
		extractor: newExtractor(),
		metrics:   m,
		validator: engine.NewValidator(store, engine.Config{Logger: slog.Default(), Metrics: m}),
	}, nil
}

// newDiscoveryApp wires the full discovery stack.
func newDiscoveryApp(ctx context.Context) (*app, error) {
	a, err := newReviewApp(ctx)
	if err != nil {
		return nil, err
	}

	reasoner, err := llm.New(appConfig.LLMClientConfig(), slog.Default())
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.search, err = search.New(ctx, appConfig.SearchStackConfig(slog.Default()))
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to set up web search: %w", err)
	}

	a.engine, err = inference.NewEngine(reasoner, inference.Options{
		Searcher:        a.search,
		Metrics:         a.metrics,
		Logger:          slog.Default(),
		SearchThreshold: appConfig.Discovery.SearchThreshold,
		MaxConcurrency:  appConfig.LLM.MaxConcurrency,
		SearchResults:   appConfig.Search.MaxResults,
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.workflow = engine.NewWorkflow(a.storage, a.extractor, a.engine, engine.Config{
		Logger:           slog.Default(),
		Metrics:          a.metrics,
		ReinferThreshold: appConfig.Discovery.ReinferThreshold,
	})
	return a, nil
}

// Close releases the search stack and database.
func (a *app) Close() error {
	if a.search != nil {
		if err := a.search.Close(); err != nil {
			slog.Warn("Failed to close search stack", "error", err)
		}
	}
	return a.storage.Close()
}
