package voice

import (
	"context"
	"sync"

	"github.com/antoniostano/kindred/internal/audio"
)

// MockBackend is the local fallback used when no speech-to-text is configured.
// It replays scripted lines in order, then repeats the last one.
type MockBackend struct {
	mu    sync.Mutex
	lines []string
	calls int
}

func NewMockBackend(lines ...string) *MockBackend {
	if len(lines) == 0 {
		lines = []string{"simulated voice input"}
	}
	return &MockBackend{lines: lines}
}

func (m *MockBackend) Name() string { return "mock" }

func (m *MockBackend) Transcribe(ctx context.Context, clip audio.Clip) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(clip.Data) == 0 {
		return "", nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i := min(m.calls, len(m.lines)-1)
	m.calls++
	return m.lines[i], nil
}
