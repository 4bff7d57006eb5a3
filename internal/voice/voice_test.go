package voice

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antoniostano/kindred/internal/audio"
)

type stubNormalizer struct {
	clip audio.Clip
	err  error
}

func (s stubNormalizer) Normalize(context.Context, []byte) (audio.Clip, error) {
	return s.clip, s.err
}

type errBackend struct{}

func (errBackend) Name() string { return "broken" }

func (errBackend) Transcribe(context.Context, audio.Clip) (string, error) {
	return "", errors.New("model exploded")
}

type recordingBackend struct {
	got audio.Clip
}

func (r *recordingBackend) Name() string { return "recording" }

func (r *recordingBackend) Transcribe(_ context.Context, clip audio.Clip) (string, error) {
	r.got = clip
	return "  hello there  ", nil
}

func TestTranscriberUsesNormalizedClip(t *testing.T) {
	pcm := make([]byte, audio.SampleRate) // half a second
	b := &recordingBackend{}
	tr := NewTranscriber(stubNormalizer{clip: audio.Clip{Data: pcm, PCM: true, SampleRate: audio.SampleRate}}, b, nil)

	res, err := tr.Transcribe(context.Background(), []byte("webm"))
	require.NoError(t, err)
	assert.Equal(t, "hello there", res.Text)
	assert.True(t, res.Normalized)
	assert.InDelta(t, 0.5, res.Duration, 1e-9)
	assert.True(t, b.got.PCM)
}

func TestTranscriberFallsBackToRawBytes(t *testing.T) {
	b := &recordingBackend{}
	tr := NewTranscriber(stubNormalizer{err: audio.ErrNormalizerUnavailable}, b, nil)

	res, err := tr.Transcribe(context.Background(), []byte("webm-bytes"))
	require.NoError(t, err)
	assert.False(t, res.Normalized)
	assert.Zero(t, res.Duration)
	assert.Equal(t, []byte("webm-bytes"), b.got.Data)
	assert.False(t, b.got.PCM)
}

func TestTranscriberWrapsBackendFailure(t *testing.T) {
	tr := NewTranscriber(nil, errBackend{}, nil)
	_, err := tr.Transcribe(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, ErrTranscriptionFailure)

	_, err = tr.Transcribe(context.Background(), nil)
	assert.ErrorIs(t, err, ErrTranscriptionFailure)
}

func TestHTTPBackendPostsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		assert.Equal(t, "whisper-large-v3", r.FormValue("model"))
		assert.Equal(t, "json", r.FormValue("response_format"))
		f, hdr, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		assert.Equal(t, "audio.wav", hdr.Filename)
		b, _ := io.ReadAll(f)
		assert.Equal(t, "RIFF", string(b[:4]))
		_ = json.NewEncoder(w).Encode(map[string]string{"text": " good morning "})
	}))
	defer srv.Close()

	b := NewHTTPBackend(HTTPConfig{URL: srv.URL, APIKey: "key-1", Model: "whisper-large-v3"})
	text, err := b.Transcribe(context.Background(), audio.Clip{Data: make([]byte, 320), PCM: true, SampleRate: audio.SampleRate})
	require.NoError(t, err)
	assert.Equal(t, "good morning", text)
}

func TestHTTPBackendStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	b := NewHTTPBackend(HTTPConfig{URL: srv.URL})
	_, err := b.Transcribe(context.Background(), audio.Clip{Data: []byte("ogg")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestMockBackendScript(t *testing.T) {
	m := NewMockBackend("one", "two")
	ctx := context.Background()
	clip := audio.Clip{Data: []byte{1}}
	for _, want := range []string{"one", "two", "two"} {
		got, err := m.Transcribe(ctx, clip)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	got, err := m.Transcribe(ctx, audio.Clip{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNewBackendModes(t *testing.T) {
	b, err := NewBackend(Config{Provider: "auto", Local: LocalConfig{WhisperCLI: "/definitely/missing/whisper"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "mock", b.Name())

	b, err = NewBackend(Config{Provider: "auto", Local: LocalConfig{WhisperCLI: "/definitely/missing/whisper"}, HTTP: HTTPConfig{URL: "http://127.0.0.1:1/inference"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "http", b.Name())

	_, err = NewBackend(Config{Provider: "http"}, nil)
	assert.Error(t, err)

	_, err = NewBackend(Config{Provider: "bogus"}, nil)
	assert.Error(t, err)
}
