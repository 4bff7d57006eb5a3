package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIClientComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			return
		}
		assert.Equal(t, "tiny-model", req.Model)
		if assert.Len(t, req.Messages, 1) {
			assert.Equal(t, "user", req.Messages[0].Role)
			assert.Equal(t, "summarize please", req.Messages[0].Content)
		}

		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  Talked about the garden.  "}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(Config{APIKey: "test-key", BaseURL: srv.URL + "/", Model: "tiny-model"})
	got, err := c.Complete(context.Background(), "summarize please")
	require.NoError(t, err)
	assert.Equal(t, "Talked about the garden.", got)
}

func TestOpenAIClientRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(Config{APIKey: "k", BaseURL: srv.URL})
	_, err := c.Complete(context.Background(), "x")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusTooManyRequests, se.Code)
	assert.Equal(t, "slow down", se.Message)
}

func TestOpenAIClientNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := NewOpenAIClient(Config{APIKey: "k", BaseURL: srv.URL}).Complete(context.Background(), "x")
	assert.Error(t, err)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	backend := &MockCompleter{Err: errors.New("unavailable")}
	b := NewBreakerCompleter("test", backend, nil)

	for i := 0; i < 3; i++ {
		_, err := b.Complete(context.Background(), "x")
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	_, err := b.Complete(context.Background(), "x")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, backend.Calls)
}

func TestBreakerIgnoresRequestRejections(t *testing.T) {
	backend := &MockCompleter{Err: &StatusError{Code: 400, Message: "bad prompt"}}
	b := NewBreakerCompleter("rejections", backend, nil)

	for i := 0; i < 5; i++ {
		_, err := b.Complete(context.Background(), "x")
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())
	assert.Equal(t, 5, backend.Calls)
}

func TestBreakerPassesThroughSuccess(t *testing.T) {
	b := NewBreakerCompleter("ok", &MockCompleter{Reply: "fine"}, nil)
	got, err := b.Complete(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "fine", got)
}

func TestNewCompleterModes(t *testing.T) {
	c, err := NewCompleter(Config{Provider: "auto"}, nil)
	require.NoError(t, err)
	assert.Nil(t, c)

	c, err = NewCompleter(Config{Provider: "auto", APIKey: "k"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &BreakerCompleter{}, c)

	c, err = NewCompleter(Config{Provider: "mock"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &MockCompleter{}, c)

	_, err = NewCompleter(Config{Provider: "openai"}, nil)
	assert.Error(t, err)

	_, err = NewCompleter(Config{Provider: "what"}, nil)
	assert.Error(t, err)
}
