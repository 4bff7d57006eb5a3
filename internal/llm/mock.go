package llm

import (
	"context"
	"sync"
)

// MockCompleter gives a deterministic abstract memory when no model is
// reachable. Tests also use it to script replies.
type MockCompleter struct {
	mu    sync.Mutex
	Reply string
	Err   error
	Calls int
}

func NewMockCompleter() *MockCompleter {
	return &MockCompleter{Reply: "Spent some relaxed time together catching up on recent news."}
}

func (m *MockCompleter) Complete(ctx context.Context, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.Err != nil {
		return "", m.Err
	}
	return m.Reply, nil
}
