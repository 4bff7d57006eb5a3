// Package summary turns a visit transcript into a short memory. A generative
// model is preferred; anything it returns that looks copied or cut off is
// replaced by a deterministic abstraction.
package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/antoniostano/kindred/internal/llm"
)

// ErrSummarizationFailure marks why the generative path was not used. It is
// only ever reported as Result.FallbackReason, never returned.
var ErrSummarizationFailure = errors.New("summarization failed")

// Below this many words a transcript does not replace an existing memory.
const minWordsToReplace = 6

type Source string

const (
	SourceEmpty      Source = "empty"
	SourceKept       Source = "kept_previous"
	SourceGenerative Source = "generative"
	SourceFallback   Source = "fallback"
)

type Request struct {
	Name         string
	Relationship string
	LastSummary  string
	Transcript   string
	VisitCount   int
	LastVisit    string
	// Participants is set for group recordings; the summary is shared.
	Participants []string
}

func (r Request) group() bool { return len(r.Participants) > 1 }

type Result struct {
	Text           string       `json:"summary"`
	Source         Source       `json:"source"`
	Rejection      RejectReason `json:"rejection,omitempty"`
	FallbackReason error        `json:"-"`
}

// Engine runs the summary policy. A nil completer means deterministic only.
type Engine struct {
	completer llm.Completer
	log       *zap.Logger
}

func NewEngine(completer llm.Completer, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{completer: completer, log: log}
}

func (e *Engine) Generative() bool { return e.completer != nil }

// attempt yields a final result, or reports why it passed.
type attempt func(ctx context.Context, req Request) (res Result, ok bool, reason error)

// Summarize always returns non-empty text.
func (e *Engine) Summarize(ctx context.Context, req Request) Result {
	req.Transcript = strings.TrimSpace(req.Transcript)
	req.LastSummary = strings.TrimSpace(req.LastSummary)

	attempts := []attempt{e.emptyTranscript, e.keepPrevious, e.generative, e.deterministic}
	var (
		reason    error
		rejection RejectReason
	)
	for _, try := range attempts {
		res, ok, why := try(ctx, req)
		if why != nil {
			reason = why
			var rej rejectedError
			if errors.As(why, &rej) {
				rejection = rej.reason
			}
		}
		if !ok {
			continue
		}
		res.Text = strings.TrimSpace(res.Text)
		if res.Text == "" {
			res.Text = GenericSummary
		}
		res.FallbackReason = reason
		res.Rejection = rejection
		return res
	}
	return Result{Text: GenericSummary, Source: SourceFallback, FallbackReason: reason}
}

func (e *Engine) emptyTranscript(_ context.Context, req Request) (Result, bool, error) {
	if req.Transcript != "" {
		return Result{}, false, nil
	}
	text := GenericSummary
	if req.group() {
		text = GroupFallback("", req.Participants)
	}
	return Result{Text: text, Source: SourceEmpty}, true, nil
}

func (e *Engine) keepPrevious(_ context.Context, req Request) (Result, bool, error) {
	if req.LastSummary == "" || req.group() || len(strings.Fields(req.Transcript)) >= minWordsToReplace {
		return Result{}, false, nil
	}
	return Result{Text: req.LastSummary, Source: SourceKept}, true, nil
}

type rejectedError struct {
	reason RejectReason
}

func (r rejectedError) Error() string { return "rejected as " + string(r.reason) }

func (e *Engine) generative(ctx context.Context, req Request) (Result, bool, error) {
	if e.completer == nil {
		return Result{}, false, nil
	}
	prompt := buildPrompt(req)
	if req.group() {
		prompt = buildGroupPrompt(req)
	}
	out, err := e.completer.Complete(ctx, prompt)
	if err != nil {
		e.log.Warn("generative summary failed; using fallback", zap.Error(err))
		return Result{}, false, fmt.Errorf("%w: %v", ErrSummarizationFailure, err)
	}
	text := tidy(out)
	if text == "" {
		e.log.Warn("generative summary was empty; using fallback")
		return Result{}, false, fmt.Errorf("%w: empty completion", ErrSummarizationFailure)
	}
	if v := Validate(text, req.Transcript); !v.OK {
		e.log.Info("generative summary rejected; using fallback",
			zap.String("reason", string(v.Reason)),
			zap.Int("run", v.Run),
			zap.Float64("ratio", v.Ratio))
		return Result{}, false, fmt.Errorf("%w: %w", ErrSummarizationFailure, rejectedError{reason: v.Reason})
	}
	return Result{Text: text, Source: SourceGenerative}, true, nil
}

func (e *Engine) deterministic(_ context.Context, req Request) (Result, bool, error) {
	text := Fallback(req.Transcript)
	if req.group() {
		text = GroupFallback(req.Transcript, req.Participants)
	}
	return Result{Text: text, Source: SourceFallback}, true, nil
}

// tidy trims model output to at most four non-empty lines.
func tidy(s string) string {
	return joinLines(strings.Split(strings.TrimSpace(s), "\n"))
}
