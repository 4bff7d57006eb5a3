package session

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerStartAddEnd(t *testing.T) {
	m := NewManager(0, nil)
	started, err := m.Start("jake")
	require.NoError(t, err)
	require.NotEmpty(t, started.ID)
	assert.True(t, started.IsActive)

	for _, chunk := range []string{"a", "", "b c"} {
		_, err := m.AddChunk("jake", started.ID, chunk, 1.5)
		require.NoError(t, err)
	}

	transcript, snap, err := m.End("jake")
	require.NoError(t, err)
	assert.Equal(t, "a b c", transcript)
	assert.Equal(t, started.ID, snap.ID)
	assert.Equal(t, 2, snap.ChunkCount)
	assert.Equal(t, len("a b c"), snap.TranscriptLength)
	assert.InDelta(t, 3.0, snap.AudioDuration, 1e-9)
	assert.False(t, snap.IsActive)
	require.NotNil(t, snap.EndedAt)
}

func TestManagerChunksAreTrimmed(t *testing.T) {
	m := NewManager(0, nil)
	started, err := m.Start("p1")
	require.NoError(t, err)
	_, err = m.AddChunk("p1", started.ID, "  hello there \n", 0)
	require.NoError(t, err)
	snap, err := m.AddChunk("p1", started.ID, "   \t", 2)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.ChunkCount)
	assert.Zero(t, snap.AudioDuration)

	transcript, _, err := m.End("p1")
	require.NoError(t, err)
	assert.Equal(t, "hello there", transcript)
}

func TestManagerStartConflict(t *testing.T) {
	m := NewManager(0, nil)
	_, err := m.Start("p1")
	require.NoError(t, err)
	_, err = m.Start("p1")
	assert.ErrorIs(t, err, ErrSessionConflict)

	_, err = m.Start("p2")
	assert.NoError(t, err)
}

func TestManagerEndTwice(t *testing.T) {
	m := NewManager(0, nil)
	_, err := m.Start("p1")
	require.NoError(t, err)

	_, _, err = m.End("p1")
	require.NoError(t, err)
	_, _, err = m.End("p1")
	assert.ErrorIs(t, err, ErrNoActiveSession)
}

func TestManagerAddChunkWithoutSession(t *testing.T) {
	m := NewManager(0, nil)
	_, err := m.AddChunk("nobody", "", "hi", 0)
	assert.ErrorIs(t, err, ErrNoActiveSession)

	first, err := m.Start("p1")
	require.NoError(t, err)
	_, _, err = m.End("p1")
	require.NoError(t, err)
	_, err = m.AddChunk("p1", first.ID, "late", 0)
	assert.ErrorIs(t, err, ErrNoActiveSession)
}

func TestManagerChunkForClosedSessionSkipsNewOne(t *testing.T) {
	m := NewManager(0, nil)
	first, err := m.Start("p1")
	require.NoError(t, err)
	_, _, err = m.End("p1")
	require.NoError(t, err)
	second, err := m.Start("p1")
	require.NoError(t, err)

	_, err = m.AddChunk("p1", first.ID, "from the first visit", 1)
	require.ErrorIs(t, err, ErrNoActiveSession)

	snap, ok := m.Status("p1")
	require.True(t, ok)
	assert.Equal(t, second.ID, snap.ID)
	assert.Zero(t, snap.ChunkCount)
}

func TestManagerNewSessionGetsNewID(t *testing.T) {
	m := NewManager(0, nil)
	first, err := m.Start("p1")
	require.NoError(t, err)
	_, _, err = m.End("p1")
	require.NoError(t, err)
	second, err := m.Start("p1")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestManagerConcurrentStartExactlyOneWins(t *testing.T) {
	m := NewManager(0, nil)
	const workers = 64

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := m.Start("same-person")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrSessionConflict):
				conflicts++
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, conflicts)
	assert.Equal(t, 1, m.ActiveCount())
}

func TestManagerStatusAndHistory(t *testing.T) {
	m := NewManager(2, nil)
	_, ok := m.Status("p1")
	assert.False(t, ok)

	for i := 0; i < 3; i++ {
		_, err := m.Start("p1")
		require.NoError(t, err)
		snap, ok := m.Status("p1")
		require.True(t, ok)
		assert.True(t, snap.IsActive)
		_, _, err = m.End("p1")
		require.NoError(t, err)
	}
	_, err := m.Start("p2")
	require.NoError(t, err)

	assert.Len(t, m.History("p1"), 2)
	active := m.AllActive()
	assert.Len(t, active, 1)
	assert.Contains(t, active, "p2")

	ov := m.Overview()
	assert.Equal(t, 2, ov.TotalHistory)
	assert.Len(t, ov.ActiveSessions, 1)
}
