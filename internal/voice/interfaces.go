package voice

import (
	"context"

	"github.com/antoniostano/kindred/internal/audio"
)

// Backend turns one clip of speech into plain text. Silence may yield "".
type Backend interface {
	Transcribe(ctx context.Context, clip audio.Clip) (string, error)
	Name() string
}

// Result is the outcome of transcribing one uploaded recording.
type Result struct {
	Text       string  `json:"text"`
	Duration   float64 `json:"duration"`
	Normalized bool    `json:"normalized"`
}
