package voice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/antoniostano/kindred/internal/audio"
)

// ErrTranscriptionFailure wraps every backend error surfaced by Transcriber.
var ErrTranscriptionFailure = errors.New("transcription failed")

type normalizer interface {
	Normalize(ctx context.Context, data []byte) (audio.Clip, error)
}

// Transcriber normalizes recorded audio and hands it to a backend. It never
// retries; callers decide what to do with a failed chunk.
type Transcriber struct {
	normalizer normalizer
	backend    Backend
	log        *zap.Logger
	observe    func(backend string, d time.Duration, err error)
}

func NewTranscriber(n normalizer, backend Backend, log *zap.Logger) *Transcriber {
	if log == nil {
		log = zap.NewNop()
	}
	return &Transcriber{normalizer: n, backend: backend, log: log}
}

// SetObserver registers a hook called after every backend call.
func (t *Transcriber) SetObserver(fn func(backend string, d time.Duration, err error)) {
	t.observe = fn
}

func (t *Transcriber) BackendName() string {
	return t.backend.Name()
}

func (t *Transcriber) Transcribe(ctx context.Context, data []byte) (Result, error) {
	if len(data) == 0 {
		return Result{}, fmt.Errorf("%w: empty audio", ErrTranscriptionFailure)
	}

	clip := audio.Clip{Data: data}
	if t.normalizer != nil {
		normalized, err := t.normalizer.Normalize(ctx, data)
		switch {
		case err == nil:
			clip = normalized
		case ctx.Err() != nil:
			return Result{}, fmt.Errorf("%w: %v", ErrTranscriptionFailure, ctx.Err())
		default:
			t.log.Warn("audio normalization failed; sending recorded bytes",
				zap.Int("bytes", len(data)),
				zap.Error(err))
		}
	}

	started := time.Now()
	text, err := t.backend.Transcribe(ctx, clip)
	if t.observe != nil {
		t.observe(t.backend.Name(), time.Since(started), err)
	}
	if err != nil {
		t.log.Warn("transcription backend failed",
			zap.String("backend", t.backend.Name()),
			zap.Error(err))
		return Result{}, fmt.Errorf("%w: %s: %v", ErrTranscriptionFailure, t.backend.Name(), err)
	}
	return Result{
		Text:       strings.TrimSpace(text),
		Duration:   clip.Duration(),
		Normalized: clip.PCM,
	}, nil
}
