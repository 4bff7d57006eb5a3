package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// ErrNormalizerUnavailable is returned when no converter can be run.
var ErrNormalizerUnavailable = errors.New("audio normalizer unavailable")

// Clip is audio handed to a transcription backend. When PCM is set Data holds
// PCM16LE mono samples at SampleRate; otherwise it is the caller's original
// container bytes.
type Clip struct {
	Data       []byte
	PCM        bool
	SampleRate int
}

// Duration is zero for clips that were not normalized.
func (c Clip) Duration() float64 {
	if !c.PCM {
		return 0
	}
	return PCMDuration(c.Data, c.SampleRate)
}

// WAV returns a container a backend can read: PCM is wrapped, raw bytes are
// passed through.
func (c Clip) WAV() ([]byte, error) {
	if !c.PCM {
		return c.Data, nil
	}
	return EncodeWAV(c.Data, c.SampleRate)
}

// Normalizer converts arbitrary recorded containers (webm, ogg, mp3, wav) to
// PCM16LE mono 16 kHz using ffmpeg.
type Normalizer struct {
	ffmpegPath string
	log        *zap.Logger
}

func NewNormalizer(ffmpeg string, log *zap.Logger) *Normalizer {
	if log == nil {
		log = zap.NewNop()
	}
	ffmpeg = strings.TrimSpace(ffmpeg)
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	path, err := exec.LookPath(ffmpeg)
	if err != nil {
		log.Warn("ffmpeg not found; audio will be passed to transcription as recorded",
			zap.String("ffmpeg", ffmpeg))
		path = ""
	}
	return &Normalizer{ffmpegPath: path, log: log}
}

func (n *Normalizer) Available() bool {
	return n != nil && n.ffmpegPath != ""
}

// Normalize returns a PCM clip. Canonical 16 kHz mono WAV input is unwrapped
// without spawning ffmpeg.
func (n *Normalizer) Normalize(ctx context.Context, data []byte) (Clip, error) {
	if len(data) == 0 {
		return Clip{}, errors.New("empty audio")
	}
	if pcm, rate, err := DecodePCMWAV(data); err == nil && rate == SampleRate {
		return Clip{Data: pcm, PCM: true, SampleRate: rate}, nil
	}
	if !n.Available() {
		return Clip{}, ErrNormalizerUnavailable
	}

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ac", "1",
		"-ar", strconv.Itoa(SampleRate),
		"pipe:1",
	}
	cmd := exec.CommandContext(ctx, n.ffmpegPath, args...)
	cmd.Stdin = bytes.NewReader(data)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return Clip{}, ctx.Err()
		}
		detail := strings.TrimSpace(stderr.String())
		if len(detail) > 2<<10 {
			detail = detail[len(detail)-(2<<10):]
		}
		if detail == "" {
			detail = err.Error()
		}
		return Clip{}, fmt.Errorf("ffmpeg: %s", detail)
	}
	return Clip{Data: stdout.Bytes(), PCM: true, SampleRate: SampleRate}, nil
}
