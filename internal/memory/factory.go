package memory

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

type Config struct {
	// Kind is auto, json, sqlite or postgres.
	Kind        string
	JSONPath    string
	SQLitePath  string
	DatabaseURL string
}

// NewStore picks a backend. In auto mode a database URL wins, then a SQLite
// path, then the JSON file.
func NewStore(ctx context.Context, cfg Config, log *zap.Logger) (Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	kind := strings.ToLower(strings.TrimSpace(cfg.Kind))
	if kind == "" || kind == "auto" {
		switch {
		case strings.TrimSpace(cfg.DatabaseURL) != "":
			kind = "postgres"
		case strings.TrimSpace(cfg.SQLitePath) != "":
			kind = "sqlite"
		default:
			kind = "json"
		}
	}

	log.Info("memory store selected", zap.String("kind", kind))
	switch kind {
	case "postgres":
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return nil, fmt.Errorf("memory store postgres requires DATABASE_URL")
		}
		return NewPostgresStore(ctx, cfg.DatabaseURL)
	case "sqlite":
		if strings.TrimSpace(cfg.SQLitePath) == "" {
			return nil, fmt.Errorf("memory store sqlite requires MEMORY_SQLITE_PATH")
		}
		return NewSQLiteStore(ctx, cfg.SQLitePath)
	case "json":
		if strings.TrimSpace(cfg.JSONPath) == "" {
			return nil, fmt.Errorf("memory store json requires MEMORY_JSON_PATH")
		}
		return NewJSONStore(cfg.JSONPath, log)
	default:
		return nil, fmt.Errorf("unknown memory store %q", cfg.Kind)
	}
}
