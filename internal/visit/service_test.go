package visit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antoniostano/kindred/internal/llm"
	"github.com/antoniostano/kindred/internal/memory"
	"github.com/antoniostano/kindred/internal/observability"
	"github.com/antoniostano/kindred/internal/session"
	"github.com/antoniostano/kindred/internal/summary"
	"github.com/antoniostano/kindred/internal/voice"
)

// echoTranscriber returns the audio bytes as text; "FAIL" fails.
type echoTranscriber struct {
	calls atomic.Int32
}

func (e *echoTranscriber) Transcribe(_ context.Context, data []byte) (voice.Result, error) {
	e.calls.Add(1)
	if string(data) == "FAIL" {
		return voice.Result{}, fmt.Errorf("%w: backend down", voice.ErrTranscriptionFailure)
	}
	return voice.Result{Text: strings.TrimSpace(string(data)), Duration: 1.5}, nil
}

type fixture struct {
	svc       *Service
	store     memory.Store
	stt       *echoTranscriber
	completer *llm.MockCompleter
	metrics   *observability.Metrics
}

func newFixture(t *testing.T, withModel bool) *fixture {
	t.Helper()
	store, err := memory.NewSQLiteStore(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	f := &fixture{
		store:   store,
		stt:     &echoTranscriber{},
		metrics: observability.NewMetrics("test"),
	}
	var completer llm.Completer
	if withModel {
		f.completer = &llm.MockCompleter{Reply: "Spent a calm afternoon catching up together."}
		completer = f.completer
	}
	f.svc = NewService(Deps{
		Sessions:    session.NewManager(10, nil),
		Transcriber: f.stt,
		Summarizer:  summary.NewEngine(completer, nil),
		Updater:     memory.NewUpdater(store, nil),
		Metrics:     f.metrics,
	})
	return f
}

func (f *fixture) seed(t *testing.T, id, name, lastSummary string) {
	t.Helper()
	ctx := context.Background()
	_, err := f.store.Ensure(ctx, id, name, "Son")
	require.NoError(t, err)
	if lastSummary != "" {
		_, err = f.store.RecordVisit(ctx, id, "2026-01-12", lastSummary)
		require.NoError(t, err)
	}
}

func (f *fixture) record(t *testing.T, id string) memory.Record {
	t.Helper()
	rec, err := f.store.Get(context.Background(), id)
	require.NoError(t, err)
	return rec
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.seed(t, "jake", "Jake", "")

	snap, err := f.svc.StartSession(ctx, "jake")
	require.NoError(t, err)
	assert.True(t, snap.IsActive)

	for _, chunk := range []string{"a", " ", "b c"} {
		_, err := f.svc.AddChunk(ctx, "jake", []byte(chunk))
		require.NoError(t, err)
	}
	status, ok := f.svc.SessionStatus("jake")
	require.True(t, ok)
	assert.Equal(t, 2, status.ChunkCount)
	assert.InDelta(t, 3.0, status.AudioDuration, 1e-9)

	res, err := f.svc.EndSession(ctx, "jake")
	require.NoError(t, err)
	assert.Equal(t, "a b c", res.Transcript)
	assert.Equal(t, snap.ID, res.Session.ID)
	assert.False(t, res.Session.IsActive)
	assert.Equal(t, 1, res.Record.VisitCount)
	assert.NotEmpty(t, res.Summary)

	_, err = f.svc.EndSession(ctx, "jake")
	require.ErrorIs(t, err, session.ErrNoActiveSession)
	assert.Equal(t, 1, f.record(t, "jake").VisitCount, "a second end never applies a visit")

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.VisitsApplied))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.Chunks.WithLabelValues("appended")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Chunks.WithLabelValues("empty")))
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.ActiveSessions))
	require.Len(t, f.svc.History("jake"), 1)
}

func TestStartSessionConflict(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	_, err := f.svc.StartSession(ctx, "jake")
	require.NoError(t, err)
	_, err = f.svc.StartSession(ctx, "jake")
	require.ErrorIs(t, err, session.ErrSessionConflict)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ActiveSessions))
	assert.Len(t, f.svc.ActiveSessions(), 1)
}

func TestAddChunkWithoutSessionSkipsTranscription(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.svc.AddChunk(context.Background(), "jake", []byte("hello"))
	require.ErrorIs(t, err, session.ErrNoActiveSession)
	assert.Zero(t, f.stt.calls.Load())
}

func TestFailedChunkIsDropped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	_, err := f.svc.StartSession(ctx, "jake")
	require.NoError(t, err)

	_, err = f.svc.AddChunk(ctx, "jake", []byte("before"))
	require.NoError(t, err)
	_, err = f.svc.AddChunk(ctx, "jake", []byte("FAIL"))
	require.ErrorIs(t, err, voice.ErrTranscriptionFailure)
	_, err = f.svc.AddChunk(ctx, "jake", []byte("after"))
	require.NoError(t, err)

	res, err := f.svc.EndSession(ctx, "jake")
	require.NoError(t, err)
	assert.Equal(t, "before after", res.Transcript)
	assert.Equal(t, 2, res.Session.ChunkCount)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Chunks.WithLabelValues("failed")))
}

func TestEmptyTranscriptCountsVisitButKeepsSummary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.seed(t, "jake", "Jake", "Enjoyed gardening")

	_, err := f.svc.StartSession(ctx, "jake")
	require.NoError(t, err)
	_, err = f.svc.AddChunk(ctx, "jake", []byte("   "))
	require.NoError(t, err)

	res, err := f.svc.EndSession(ctx, "jake")
	require.NoError(t, err)
	assert.Equal(t, summary.GenericSummary, res.Summary)
	assert.Equal(t, summary.SourceEmpty, res.SummarySource)
	assert.Equal(t, 2, res.Record.VisitCount)
	assert.Equal(t, "Enjoyed gardening", res.Record.LastSummary)
	assert.Zero(t, f.completer.Calls)
}

func TestEmptyTranscriptLeavesBlankSummaryBlank(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	f.seed(t, "mia", "Mia", "")

	_, err := f.svc.StartSession(ctx, "mia")
	require.NoError(t, err)
	res, err := f.svc.EndSession(ctx, "mia")
	require.NoError(t, err)
	assert.Equal(t, summary.GenericSummary, res.Summary)
	assert.Equal(t, 1, res.Record.VisitCount)
	assert.Empty(t, res.Record.LastSummary)
}

func TestShortTranscriptKeepsPreviousSummary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.seed(t, "jake", "Jake", "Enjoyed gardening")

	res, err := f.svc.OneShot(ctx, "jake", []byte("Hi there yes"))
	require.NoError(t, err)
	assert.Equal(t, "Enjoyed gardening", res.Summary)
	assert.Equal(t, summary.SourceKept, res.SummarySource)
	assert.Equal(t, "Enjoyed gardening", res.Record.LastSummary)
	assert.Equal(t, 2, res.Record.VisitCount)
	assert.Zero(t, f.completer.Calls)
}

func TestShortTranscriptWithoutHistoryIsPersisted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	res, err := f.svc.OneShot(ctx, "newcomer", []byte("Hi there yes"))
	require.NoError(t, err)
	assert.Equal(t, summary.SourceFallback, res.SummarySource)
	assert.Equal(t, summary.GenericSummary, res.Record.LastSummary)
	assert.Equal(t, "newcomer", res.Record.Name)
	assert.Equal(t, 1, res.Record.VisitCount)
}

func TestOneShotUsesGenerativeSummary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.seed(t, "jake", "Jake", "")

	res, err := f.svc.OneShot(ctx, "jake", []byte("We spent the whole afternoon talking about the garden and the new roses."))
	require.NoError(t, err)
	assert.Equal(t, summary.SourceGenerative, res.SummarySource)
	assert.Equal(t, "Spent a calm afternoon catching up together.", res.Record.LastSummary)
	_, active := f.svc.SessionStatus("jake")
	assert.False(t, active)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Summaries.WithLabelValues("generative")))
}

func TestOneShotTranscriptionFailureLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	f.seed(t, "jake", "Jake", "")

	_, err := f.svc.OneShot(ctx, "jake", []byte("FAIL"))
	require.ErrorIs(t, err, voice.ErrTranscriptionFailure)
	_, active := f.svc.SessionStatus("jake")
	assert.False(t, active)
	assert.Zero(t, f.record(t, "jake").VisitCount)
}

func TestOneShotConflictsWithOpenSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	_, err := f.svc.StartSession(ctx, "jake")
	require.NoError(t, err)

	_, err = f.svc.OneShot(ctx, "jake", []byte("hello"))
	require.ErrorIs(t, err, session.ErrSessionConflict)
}

func TestConcurrentEndAppliesVisitOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	f.seed(t, "jake", "Jake", "")
	_, err := f.svc.StartSession(ctx, "jake")
	require.NoError(t, err)
	_, err = f.svc.AddChunk(ctx, "jake", []byte("We are so happy to see you today."))
	require.NoError(t, err)

	var (
		wg  sync.WaitGroup
		won atomic.Int32
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.EndSession(ctx, "jake")
			if err == nil {
				won.Add(1)
				return
			}
			assert.ErrorIs(t, err, session.ErrNoActiveSession)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), won.Load())
	assert.Equal(t, 1, f.record(t, "jake").VisitCount)
}

func TestGroupAppliesSharedSummary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	f.seed(t, "jake", "Jake", "Enjoyed gardening")
	f.seed(t, "mia", "Mia", "")

	res, err := f.svc.Group(ctx, []string{"jake", "mia", "jake"}, []byte("We are planning the wedding for next spring."))
	require.NoError(t, err)
	assert.Equal(t, "Had a conversation with Jake and Mia.\nTalked about plans for the days ahead.", res.Summary)
	require.Len(t, res.Records, 2)
	for _, rec := range res.Records {
		assert.Equal(t, res.Summary, rec.LastSummary)
	}
	assert.Equal(t, 2, f.record(t, "jake").VisitCount)
	assert.Equal(t, 1, f.record(t, "mia").VisitCount)
}

// failingStore refuses visits for one person.
type failingStore struct {
	memory.Store
	failID string
}

func (s failingStore) RecordVisit(ctx context.Context, personID, day, text string) (memory.Record, error) {
	if personID == s.failID {
		return memory.Record{}, errors.New("disk full")
	}
	return s.Store.RecordVisit(ctx, personID, day, text)
}

func TestGroupReportsPartialApply(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	f.seed(t, "jake", "Jake", "")
	f.seed(t, "mia", "Mia", "")
	f.seed(t, "noah", "Noah", "")
	svc := NewService(Deps{
		Sessions:    session.NewManager(10, nil),
		Transcriber: f.stt,
		Summarizer:  summary.NewEngine(nil, nil),
		Updater:     memory.NewUpdater(failingStore{Store: f.store, failID: "mia"}, nil),
	})

	res, err := svc.Group(ctx, []string{"jake", "mia", "noah"}, []byte("We are planning the wedding for next spring."))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stopped at mia after 1 of 3")
	require.Len(t, res.Records, 1)
	assert.Equal(t, "jake", res.Records[0].PersonID)
	assert.Equal(t, []string{"mia", "noah"}, res.Pending)
	assert.NotEmpty(t, res.Summary)

	assert.Equal(t, 1, f.record(t, "jake").VisitCount)
	assert.Equal(t, 0, f.record(t, "mia").VisitCount)
	assert.Equal(t, 0, f.record(t, "noah").VisitCount)
}

func TestChunkFromClosedSessionIsRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	gate := &gatedTranscriber{entered: make(chan struct{}), release: make(chan struct{})}
	svc := NewService(Deps{
		Sessions:    session.NewManager(10, nil),
		Transcriber: gate,
		Summarizer:  summary.NewEngine(nil, nil),
		Updater:     memory.NewUpdater(f.store, nil),
		Metrics:     f.metrics,
	})

	first, err := svc.StartSession(ctx, "jake")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := svc.AddChunk(ctx, "jake", []byte("chunk recorded during visit one"))
		done <- err
	}()
	<-gate.entered

	_, err = svc.EndSession(ctx, "jake")
	require.NoError(t, err)
	second, err := svc.StartSession(ctx, "jake")
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	close(gate.release)
	require.ErrorIs(t, <-done, session.ErrNoActiveSession)

	status, ok := svc.SessionStatus("jake")
	require.True(t, ok)
	assert.Equal(t, second.ID, status.ID)
	assert.Zero(t, status.ChunkCount)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Chunks.WithLabelValues("late")))

	res, err := svc.EndSession(ctx, "jake")
	require.NoError(t, err)
	assert.Empty(t, res.Transcript)
}

// gatedTranscriber blocks until release is closed.
type gatedTranscriber struct {
	entered chan struct{}
	release chan struct{}
}

func (g *gatedTranscriber) Transcribe(_ context.Context, data []byte) (voice.Result, error) {
	close(g.entered)
	<-g.release
	return voice.Result{Text: string(data), Duration: 1}, nil
}

func TestInvalidInput(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	_, err := f.svc.StartSession(ctx, "  ")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.StartSession(ctx, "a/b")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.OneShot(ctx, "jake", nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.Group(ctx, nil, []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.Group(ctx, []string{"jake", ""}, []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.StartSession(ctx, "jake")
	require.NoError(t, err)
	_, err = f.svc.AddChunk(ctx, "jake", nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	assert.Empty(t, f.svc.History("jake"))
	assert.Zero(t, f.stt.calls.Load())
}

func TestApplyFailureIsReported(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	require.NoError(t, f.store.Close())

	_, err := f.svc.StartSession(ctx, "jake")
	require.NoError(t, err)
	res, err := f.svc.EndSession(ctx, "jake")
	require.Error(t, err)
	assert.False(t, errors.Is(err, session.ErrNoActiveSession))
	assert.Equal(t, summary.GenericSummary, res.Summary)
	_, active := f.svc.SessionStatus("jake")
	assert.False(t, active)
}
