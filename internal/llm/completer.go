// Package llm talks to generative text backends used for memory summaries.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Completer answers a single prompt with text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type Config struct {
	Provider string
	APIKey   string
	BaseURL  string
	Model    string
	Timeout  time.Duration
}

// NewCompleter resolves the configured provider. It returns nil when
// generation is disabled, in which case summaries are always deterministic.
func NewCompleter(cfg Config, log *zap.Logger) (Completer, error) {
	if log == nil {
		log = zap.NewNop()
	}
	mode := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "openai", "groq":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, fmt.Errorf("SUMMARY_API_KEY is required for %s mode", mode)
		}
		return NewBreakerCompleter("summary-llm", NewOpenAIClient(cfg), log), nil
	case "mock":
		return NewMockCompleter(), nil
	case "none", "off":
		return nil, nil
	case "auto":
		if strings.TrimSpace(cfg.APIKey) == "" {
			log.Info("SUMMARY_API_KEY not set; using deterministic summaries")
			return nil, nil
		}
		return NewBreakerCompleter("summary-llm", NewOpenAIClient(cfg), log), nil
	default:
		return nil, fmt.Errorf("invalid SUMMARY_PROVIDER: %q (expected auto|openai|mock|none)", cfg.Provider)
	}
}
