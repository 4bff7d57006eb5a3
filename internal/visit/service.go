// Package visit runs the conversation pipeline: a session collects
// transcribed chunks while the microphone is on, and closing it produces one
// summary that is written to the person's memory exactly once.
package visit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/antoniostano/kindred/internal/memory"
	"github.com/antoniostano/kindred/internal/observability"
	"github.com/antoniostano/kindred/internal/redact"
	"github.com/antoniostano/kindred/internal/session"
	"github.com/antoniostano/kindred/internal/summary"
	"github.com/antoniostano/kindred/internal/validation"
	"github.com/antoniostano/kindred/internal/voice"
)

// ErrInvalidInput is returned before any side effect when a person id or
// audio payload is unusable.
var ErrInvalidInput = errors.New("invalid input")

type Transcriber interface {
	Transcribe(ctx context.Context, data []byte) (voice.Result, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, req summary.Request) summary.Result
}

type Deps struct {
	Sessions    *session.Manager
	Transcriber Transcriber
	Summarizer  Summarizer
	Updater     *memory.Updater
	// Metrics may be nil.
	Metrics *observability.Metrics
	Logger  *zap.Logger
}

// Service is built once at startup and shared by every handler.
type Service struct {
	sessions    *session.Manager
	transcriber Transcriber
	summarizer  Summarizer
	updater     *memory.Updater
	metrics     *observability.Metrics
	log         *zap.Logger
}

func NewService(d Deps) *Service {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	sessions := d.Sessions
	if sessions == nil {
		sessions = session.NewManager(0, log)
	}
	return &Service{
		sessions:    sessions,
		transcriber: d.Transcriber,
		summarizer:  d.Summarizer,
		updater:     d.Updater,
		metrics:     d.Metrics,
		log:         log,
	}
}

type ChunkResult struct {
	Text    string           `json:"chunk_text"`
	Session session.Snapshot `json:"session_status"`
}

type EndResult struct {
	Transcript    string           `json:"full_transcript"`
	Summary       string           `json:"summary"`
	SummarySource summary.Source   `json:"summary_source"`
	Record        memory.Record    `json:"updated_record"`
	Session       session.Snapshot `json:"session_metadata"`
}

type OneShotResult struct {
	Transcript    string         `json:"transcript"`
	Summary       string         `json:"summary"`
	SummarySource summary.Source `json:"summary_source"`
	Record        memory.Record  `json:"updated_record"`
}

type GroupResult struct {
	Transcript    string          `json:"transcript"`
	Summary       string          `json:"summary"`
	SummarySource summary.Source  `json:"summary_source"`
	Records       []memory.Record `json:"people"`
	// Pending lists participants whose visit was not written because an
	// earlier write failed. Records holds the ones that were.
	Pending []string `json:"pending,omitempty"`
}

func (s *Service) StartSession(_ context.Context, personID string) (session.Snapshot, error) {
	personID, err := cleanPersonID(personID)
	if err != nil {
		return session.Snapshot{}, err
	}
	snap, err := s.sessions.Start(personID)
	if err != nil {
		s.event("start_conflict")
		return session.Snapshot{}, err
	}
	s.event("started")
	s.syncActive()
	return snap, nil
}

// AddChunk transcribes one recorded segment and appends it to the person's
// open session. A chunk whose transcription fails is dropped.
func (s *Service) AddChunk(ctx context.Context, personID string, raw []byte) (ChunkResult, error) {
	personID, err := cleanPersonID(personID)
	if err != nil {
		return ChunkResult{}, err
	}
	if len(raw) == 0 {
		return ChunkResult{}, fmt.Errorf("%w: empty audio", ErrInvalidInput)
	}
	current, ok := s.sessions.Status(personID)
	if !ok {
		return ChunkResult{}, fmt.Errorf("%w for %s", session.ErrNoActiveSession, personID)
	}

	res, err := s.transcriber.Transcribe(ctx, raw)
	if err != nil {
		s.chunk("failed")
		s.log.Warn("chunk dropped", zap.String("person_id", personID), zap.Error(err))
		return ChunkResult{}, err
	}
	// The session may have ended while the backend was busy.
	snap, err := s.sessions.AddChunk(personID, current.ID, res.Text, res.Duration)
	if err != nil {
		s.chunk("late")
		s.log.Warn("chunk dropped; its session closed during transcription",
			zap.String("person_id", personID),
			zap.String("session_id", current.ID))
		return ChunkResult{}, err
	}
	if res.Text == "" {
		s.chunk("empty")
	} else {
		s.chunk("appended")
	}
	s.log.Debug("chunk transcribed",
		zap.String("person_id", personID),
		zap.Int("chunk", snap.ChunkCount),
		zap.String("text", redact.Preview(res.Text, 80)))
	return ChunkResult{Text: res.Text, Session: snap}, nil
}

// EndSession closes the session, summarizes the whole transcript and
// applies the visit. The session is gone even if the registry write fails.
func (s *Service) EndSession(ctx context.Context, personID string) (EndResult, error) {
	personID, err := cleanPersonID(personID)
	if err != nil {
		return EndResult{}, err
	}
	transcript, snap, err := s.sessions.End(personID)
	if err != nil {
		return EndResult{}, err
	}
	s.event("ended")
	s.syncActive()

	sum, rec, err := s.conclude(ctx, personID, transcript)
	out := EndResult{
		Transcript:    transcript,
		Summary:       sum.Text,
		SummarySource: sum.Source,
		Record:        rec,
		Session:       snap,
	}
	return out, err
}

func (s *Service) SessionStatus(personID string) (session.Snapshot, bool) {
	return s.sessions.Status(strings.TrimSpace(personID))
}

func (s *Service) ActiveSessions() map[string]session.Snapshot {
	return s.sessions.AllActive()
}

func (s *Service) Overview() session.Overview {
	return s.sessions.Overview()
}

func (s *Service) History(personID string) []session.Snapshot {
	return s.sessions.History(strings.TrimSpace(personID))
}

// OneShot handles a whole recording at once: start, one chunk, end. Audio is
// transcribed before the session opens, so a failed transcription leaves no
// trace.
func (s *Service) OneShot(ctx context.Context, personID string, raw []byte) (OneShotResult, error) {
	personID, err := cleanPersonID(personID)
	if err != nil {
		return OneShotResult{}, err
	}
	if len(raw) == 0 {
		return OneShotResult{}, fmt.Errorf("%w: empty audio", ErrInvalidInput)
	}
	res, err := s.transcriber.Transcribe(ctx, raw)
	if err != nil {
		s.chunk("failed")
		return OneShotResult{}, err
	}

	started, err := s.sessions.Start(personID)
	if err != nil {
		s.event("start_conflict")
		return OneShotResult{}, err
	}
	s.event("started")
	if _, err := s.sessions.AddChunk(personID, started.ID, res.Text, res.Duration); err != nil {
		return OneShotResult{}, err
	}
	if res.Text == "" {
		s.chunk("empty")
	} else {
		s.chunk("appended")
	}
	transcript, _, err := s.sessions.End(personID)
	if err != nil {
		return OneShotResult{}, err
	}
	s.event("ended")
	s.syncActive()

	sum, rec, err := s.conclude(ctx, personID, transcript)
	return OneShotResult{
		Transcript:    transcript,
		Summary:       sum.Text,
		SummarySource: sum.Source,
		Record:        rec,
	}, err
}

type groupInput struct {
	PersonIDs []string `validate:"min=1,max=16,dive,required,max=128,excludesall=/\\"`
}

// Group summarizes one recording shared by several people and applies the
// same summary to each of them.
func (s *Service) Group(ctx context.Context, personIDs []string, raw []byte) (GroupResult, error) {
	ids := dedupe(personIDs)
	if err := validation.Struct(groupInput{PersonIDs: ids}); err != nil {
		return GroupResult{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if len(raw) == 0 {
		return GroupResult{}, fmt.Errorf("%w: empty audio", ErrInvalidInput)
	}
	res, err := s.transcriber.Transcribe(ctx, raw)
	if err != nil {
		s.chunk("failed")
		return GroupResult{}, err
	}
	transcript := strings.TrimSpace(res.Text)

	names := make([]string, 0, len(ids))
	var first memory.Record
	for i, id := range ids {
		rec := s.lookup(ctx, id)
		if i == 0 {
			first = rec
		}
		names = append(names, rec.Name)
	}
	req := summary.Request{Transcript: transcript, Participants: names}
	if len(ids) == 1 {
		req = requestFor(first, transcript)
	}
	sum := s.summarize(ctx, req)

	out := GroupResult{Transcript: transcript, Summary: sum.Text, SummarySource: sum.Source}
	for i, id := range ids {
		rec, err := s.apply(ctx, id, sum)
		if err != nil {
			out.Pending = append([]string(nil), ids[i:]...)
			return out, fmt.Errorf("group visit stopped at %s after %d of %d people: %w", id, i, len(ids), err)
		}
		out.Records = append(out.Records, rec)
	}
	return out, nil
}

// conclude summarizes a closed session and records the visit once.
func (s *Service) conclude(ctx context.Context, personID, transcript string) (summary.Result, memory.Record, error) {
	prev := s.lookup(ctx, personID)
	sum := s.summarize(ctx, requestFor(prev, transcript))
	rec, err := s.apply(ctx, personID, sum)
	return sum, rec, err
}

func (s *Service) summarize(ctx context.Context, req summary.Request) summary.Result {
	sum := s.summarizer.Summarize(ctx, req)
	if s.metrics != nil {
		s.metrics.Summaries.WithLabelValues(string(sum.Source)).Inc()
		if sum.Rejection != summary.RejectNone {
			s.metrics.SummaryRejections.WithLabelValues(string(sum.Rejection)).Inc()
		}
	}
	s.log.Debug("summary produced",
		zap.String("source", string(sum.Source)),
		zap.String("summary", redact.Preview(sum.Text, 120)))
	if sum.FallbackReason != nil {
		s.log.Info("summary fell back",
			zap.String("source", string(sum.Source)),
			zap.Error(sum.FallbackReason))
	}
	return sum
}

// apply writes the visit. The placeholder for an empty transcript is not a
// memory, so it never replaces last_summary.
func (s *Service) apply(ctx context.Context, personID string, sum summary.Result) (memory.Record, error) {
	text := sum.Text
	if sum.Source == summary.SourceEmpty {
		text = ""
	}
	rec, err := s.updater.ApplyVisit(ctx, personID, text)
	if err != nil {
		s.log.Error("visit not recorded", zap.String("person_id", personID), zap.Error(err))
		return memory.Record{}, fmt.Errorf("apply visit for %s: %w", personID, err)
	}
	if s.metrics != nil {
		s.metrics.VisitsApplied.Inc()
	}
	return rec, nil
}

func (s *Service) lookup(ctx context.Context, personID string) memory.Record {
	rec, err := s.updater.Lookup(ctx, personID)
	if err != nil {
		s.log.Warn("person lookup failed; summarizing without history",
			zap.String("person_id", personID), zap.Error(err))
		return memory.Record{PersonID: personID, Name: personID}
	}
	return rec
}

func requestFor(rec memory.Record, transcript string) summary.Request {
	return summary.Request{
		Name:         rec.Name,
		Relationship: rec.Relationship,
		LastSummary:  rec.LastSummary,
		Transcript:   transcript,
		VisitCount:   rec.VisitCount,
		LastVisit:    rec.LastVisit,
	}
}

func (s *Service) event(name string) {
	if s.metrics != nil {
		s.metrics.SessionEvents.WithLabelValues(name).Inc()
	}
}

func (s *Service) chunk(result string) {
	if s.metrics != nil {
		s.metrics.Chunks.WithLabelValues(result).Inc()
	}
}

func (s *Service) syncActive() {
	if s.metrics != nil {
		s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	}
}

type personInput struct {
	ID string `validate:"required,max=128,excludesall=/\\"`
}

func cleanPersonID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if err := validation.Struct(personInput{ID: id}); err != nil {
		return "", fmt.Errorf("%w: person %v", ErrInvalidInput, err)
	}
	return id, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
