package app

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/antoniostano/kindred/internal/config"
	"github.com/antoniostano/kindred/internal/httpapi"
	"github.com/antoniostano/kindred/internal/memory"
	"github.com/antoniostano/kindred/internal/observability"
	"github.com/antoniostano/kindred/internal/session"
	"github.com/antoniostano/kindred/internal/summary"
	"github.com/antoniostano/kindred/internal/visit"
)

type BuildResult struct {
	Config    config.Config
	API       *httpapi.Server
	Visits    *visit.Service
	Store     memory.Store
	Metrics   *observability.Metrics
	Providers map[string]string

	// Cleanup should be called on shutdown to release the memory store.
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config, log *zap.Logger) (*BuildResult, error) {
	if log == nil {
		log = zap.NewNop()
	}
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	store, err := memory.NewStore(ctx, memory.Config{
		Kind:        cfg.MemoryStore,
		JSONPath:    cfg.MemoryJSONPath,
		SQLitePath:  cfg.MemorySQLitePath,
		DatabaseURL: cfg.DatabaseURL,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("memory store init failed: %w", err)
	}

	if path := strings.TrimSpace(cfg.RosterPath); path != "" {
		roster, err := memory.LoadRoster(path)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		n, err := roster.Seed(ctx, store)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("roster seed failed: %w", err)
		}
		log.Info("roster seeded", zap.String("path", path), zap.Int("people", n))
	}

	providers, err := resolveProviders(cfg, metrics, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	log.Info("providers resolved",
		zap.String("transcription", providers.detail["transcription"]),
		zap.String("normalization", providers.detail["normalization"]),
		zap.String("summary", providers.detail["summary"]),
		zap.String("face", providers.detail["face"]))

	visits := visit.NewService(visit.Deps{
		Sessions:    session.NewManager(cfg.SessionHistoryLimit, log),
		Transcriber: providers.transcriber,
		Summarizer:  summary.NewEngine(providers.completer, log),
		Updater:     memory.NewUpdater(store, log),
		Metrics:     metrics,
		Logger:      log,
	})

	api := httpapi.New(cfg, httpapi.Deps{
		Visits:    visits,
		People:    store,
		Faces:     providers.faces,
		Metrics:   metrics,
		Logger:    log,
		Providers: providers.detail,
	})

	return &BuildResult{
		Config:    cfg,
		API:       api,
		Visits:    visits,
		Store:     store,
		Metrics:   metrics,
		Providers: providers.detail,
		Cleanup:   store.Close,
	}, nil
}
