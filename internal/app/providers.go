package app

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/antoniostano/kindred/internal/audio"
	"github.com/antoniostano/kindred/internal/config"
	"github.com/antoniostano/kindred/internal/face"
	"github.com/antoniostano/kindred/internal/llm"
	"github.com/antoniostano/kindred/internal/observability"
	"github.com/antoniostano/kindred/internal/voice"
)

type providerSetup struct {
	transcriber *voice.Transcriber
	completer   llm.Completer
	faces       face.Identifier
	// detail is reported by /readyz and logged on startup.
	detail map[string]string
}

func resolveProviders(cfg config.Config, metrics *observability.Metrics, log *zap.Logger) (providerSetup, error) {
	backend, err := voice.NewBackend(voice.Config{
		Provider: cfg.TranscribeProvider,
		Local: voice.LocalConfig{
			WhisperCLI:       cfg.LocalWhisperCLI,
			WhisperModelPath: cfg.LocalWhisperModelPath,
			WhisperLanguage:  cfg.LocalWhisperLanguage,
			WhisperThreads:   cfg.LocalWhisperThreads,
		},
		HTTP: voice.HTTPConfig{
			URL:     cfg.TranscribeHTTPURL,
			APIKey:  cfg.TranscribeAPIKey,
			Model:   cfg.TranscribeModel,
			Timeout: cfg.TranscribeTimeout,
		},
	}, log)
	if err != nil {
		return providerSetup{}, fmt.Errorf("transcription backend init failed: %w", err)
	}

	normalizer := audio.NewNormalizer(cfg.FFmpegPath, log)
	var transcriber *voice.Transcriber
	if normalizer.Available() {
		transcriber = voice.NewTranscriber(normalizer, backend, log)
	} else {
		transcriber = voice.NewTranscriber(nil, backend, log)
	}
	transcriber.SetObserver(metrics.ObserveTranscription)

	completer, err := llm.NewCompleter(llm.Config{
		Provider: cfg.SummaryProvider,
		APIKey:   cfg.SummaryAPIKey,
		BaseURL:  cfg.SummaryBaseURL,
		Model:    cfg.SummaryModel,
		Timeout:  cfg.SummaryTimeout,
	}, log)
	if err != nil {
		return providerSetup{}, fmt.Errorf("summary provider init failed: %w", err)
	}

	var faces face.Identifier = face.Disabled{}
	faceDetail := "disabled"
	if url := strings.TrimSpace(cfg.FaceServiceURL); url != "" {
		faces = face.NewHTTPClient(face.HTTPConfig{
			URL:       url,
			Threshold: cfg.FaceMatchThreshold,
			Timeout:   cfg.FaceTimeout,
		}, log)
		faceDetail = "http"
	}

	summaryDetail := "deterministic"
	if completer != nil {
		summaryDetail = "generative (" + cfg.SummaryModel + ")"
	}
	normalizeDetail := "passthrough"
	if normalizer.Available() {
		normalizeDetail = "ffmpeg"
	}

	return providerSetup{
		transcriber: transcriber,
		completer:   completer,
		faces:       faces,
		detail: map[string]string{
			"transcription": backend.Name(),
			"normalization": normalizeDetail,
			"summary":       summaryDetail,
			"face":          faceDetail,
		},
	}, nil
}
