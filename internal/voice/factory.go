package voice

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

type Config struct {
	Provider string
	Local    LocalConfig
	HTTP     HTTPConfig
}

// NewBackend resolves the configured provider. In auto mode it prefers a
// local whisper.cpp install, then an HTTP endpoint, then the mock.
func NewBackend(cfg Config, log *zap.Logger) (Backend, error) {
	if log == nil {
		log = zap.NewNop()
	}
	mode := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "whisper-cli", "local":
		return NewWhisperCLI(cfg.Local)
	case "http":
		if strings.TrimSpace(cfg.HTTP.URL) == "" {
			return nil, fmt.Errorf("TRANSCRIBE_HTTP_URL is required for http mode")
		}
		return NewHTTPBackend(cfg.HTTP), nil
	case "mock":
		return NewMockBackend(), nil
	case "auto":
		b, err := NewWhisperCLI(cfg.Local)
		if err == nil {
			return b, nil
		}
		log.Info("local whisper unavailable", zap.Error(err))
		if strings.TrimSpace(cfg.HTTP.URL) != "" {
			return NewHTTPBackend(cfg.HTTP), nil
		}
		log.Warn("no transcription backend configured; using mock")
		return NewMockBackend(), nil
	default:
		return nil, fmt.Errorf("invalid TRANSCRIBE_PROVIDER: %q (expected auto|whisper-cli|http|mock)", cfg.Provider)
	}
}
