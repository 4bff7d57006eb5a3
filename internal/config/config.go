package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the visit memory service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string
	AllowAnyOrigin   bool
	LogDebug         bool
	MaxAudioBytes    int64

	MemoryStore      string
	MemoryJSONPath   string
	MemorySQLitePath string
	DatabaseURL      string
	RosterPath       string

	SessionHistoryLimit int

	TranscribeProvider    string
	LocalWhisperCLI       string
	LocalWhisperModelPath string
	LocalWhisperLanguage  string
	LocalWhisperThreads   int
	TranscribeHTTPURL     string
	TranscribeAPIKey      string
	TranscribeModel       string
	TranscribeTimeout     time.Duration
	FFmpegPath            string

	SummaryProvider string
	SummaryAPIKey   string
	SummaryBaseURL  string
	SummaryModel    string
	SummaryTimeout  time.Duration

	FaceServiceURL     string
	FaceMatchThreshold float64
	FaceTimeout        time.Duration
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "kindred"),
		MaxAudioBytes:    25 << 20,
		ShutdownTimeout:  15 * time.Second,

		MemoryStore:      strings.ToLower(envOrDefault("MEMORY_STORE", "auto")),
		MemoryJSONPath:   envOrDefault("MEMORY_JSON_PATH", "data/memories.json"),
		MemorySQLitePath: stringsTrimSpace("MEMORY_SQLITE_PATH"),
		DatabaseURL:      stringsTrimSpace("DATABASE_URL"),
		RosterPath:       stringsTrimSpace("ROSTER_PATH"),

		SessionHistoryLimit: 50,

		TranscribeProvider: strings.ToLower(envOrDefault("TRANSCRIBE_PROVIDER", "auto")),
		LocalWhisperCLI:    envOrDefault("LOCAL_WHISPER_CLI", "whisper-cli"),
		// base.en is accurate enough for quiet rooms and runs on a laptop CPU.
		LocalWhisperModelPath: envOrDefault("LOCAL_WHISPER_MODEL_PATH", ".models/whisper/ggml-base.en.bin"),
		LocalWhisperLanguage:  envOrDefault("LOCAL_WHISPER_LANGUAGE", "en"),
		// 0 means "auto" (picked based on CPU count).
		LocalWhisperThreads: 0,
		TranscribeHTTPURL:   stringsTrimSpace("TRANSCRIBE_HTTP_URL"),
		TranscribeAPIKey:    stringsTrimSpace("TRANSCRIBE_API_KEY"),
		TranscribeModel:     stringsTrimSpace("TRANSCRIBE_MODEL"),
		TranscribeTimeout:   60 * time.Second,
		FFmpegPath:          envOrDefault("FFMPEG_PATH", "ffmpeg"),

		SummaryProvider: strings.ToLower(envOrDefault("SUMMARY_PROVIDER", "auto")),
		SummaryAPIKey:   stringsTrimSpace("SUMMARY_API_KEY"),
		SummaryBaseURL:  envOrDefault("SUMMARY_BASE_URL", "https://api.groq.com/openai/v1"),
		SummaryModel:    envOrDefault("SUMMARY_MODEL", "llama-3.1-8b-instant"),
		SummaryTimeout:  30 * time.Second,

		FaceServiceURL:     stringsTrimSpace("FACE_SERVICE_URL"),
		FaceMatchThreshold: 0.5,
		FaceTimeout:        10 * time.Second,
	}
	if cfg.SummaryAPIKey == "" {
		cfg.SummaryAPIKey = stringsTrimSpace("GROQ_API_KEY")
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.LogDebug, err = boolFromEnv("APP_LOG_DEBUG", cfg.LogDebug)
	if err != nil {
		return Config{}, err
	}
	maxAudio, err := intFromEnv("APP_MAX_AUDIO_BYTES", int(cfg.MaxAudioBytes))
	if err != nil {
		return Config{}, err
	}
	cfg.MaxAudioBytes = int64(maxAudio)
	cfg.SessionHistoryLimit, err = intFromEnv("SESSION_HISTORY_LIMIT", cfg.SessionHistoryLimit)
	if err != nil {
		return Config{}, err
	}
	cfg.LocalWhisperThreads, err = intFromEnv("LOCAL_WHISPER_THREADS", cfg.LocalWhisperThreads)
	if err != nil {
		return Config{}, err
	}
	cfg.TranscribeTimeout, err = durationFromEnv("TRANSCRIBE_TIMEOUT", cfg.TranscribeTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SummaryTimeout, err = durationFromEnv("SUMMARY_TIMEOUT", cfg.SummaryTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.FaceMatchThreshold, err = floatFromEnv("FACE_MATCH_THRESHOLD", cfg.FaceMatchThreshold)
	if err != nil {
		return Config{}, err
	}
	cfg.FaceTimeout, err = durationFromEnv("FACE_TIMEOUT", cfg.FaceTimeout)
	if err != nil {
		return Config{}, err
	}

	if cfg.MaxAudioBytes < 1024 {
		return Config{}, fmt.Errorf("APP_MAX_AUDIO_BYTES must be at least 1024")
	}
	if cfg.SessionHistoryLimit <= 0 {
		return Config{}, fmt.Errorf("SESSION_HISTORY_LIMIT must be positive")
	}
	if cfg.LocalWhisperThreads < 0 {
		return Config{}, fmt.Errorf("LOCAL_WHISPER_THREADS must be >= 0")
	}
	if cfg.FaceMatchThreshold < 0 || cfg.FaceMatchThreshold > 1 {
		return Config{}, fmt.Errorf("FACE_MATCH_THRESHOLD must be within [0, 1]")
	}
	switch cfg.MemoryStore {
	case "auto", "json", "sqlite", "postgres":
	default:
		return Config{}, fmt.Errorf("MEMORY_STORE must be one of auto, json, sqlite, postgres")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}
