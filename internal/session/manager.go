package session

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrSessionConflict = errors.New("session already active")
	ErrNoActiveSession = errors.New("no active session")
)

const defaultHistoryLimit = 50

// Manager owns the active conversation sessions, at most one per person,
// and the per-person history of closed ones.
type Manager struct {
	mu           sync.RWMutex
	active       map[string]*conversation
	history      map[string][]Snapshot
	historyLimit int
	now          func() time.Time
	log          *zap.Logger
}

type conversation struct {
	id        string
	personID  string
	createdAt time.Time
	chunks    []string
	duration  float64
	length    int
}

func NewManager(historyLimit int, log *zap.Logger) *Manager {
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		active:       make(map[string]*conversation),
		history:      make(map[string][]Snapshot),
		historyLimit: historyLimit,
		now:          func() time.Time { return time.Now().UTC() },
		log:          log,
	}
}

// Start opens a session for personID. A second Start before End fails with
// ErrSessionConflict, also when both calls race.
func (m *Manager) Start(personID string) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.active[personID]; ok {
		return Snapshot{}, fmt.Errorf("%w for %s: %s", ErrSessionConflict, personID, existing.id)
	}
	c := &conversation{
		id:        uuid.NewString(),
		personID:  personID,
		createdAt: m.now(),
	}
	m.active[personID] = c
	m.log.Info("session started",
		zap.String("person_id", personID),
		zap.String("session_id", c.id))
	return c.snapshot(true, nil), nil
}

// AddChunk appends text to the person's active session, which must be
// sessionID. A chunk recorded for a session that has since ended fails with
// ErrNoActiveSession even if a new session was started meanwhile. Blank text
// is ignored and does not count as a chunk.
func (m *Manager) AddChunk(personID, sessionID, text string, duration float64) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.active[personID]
	if !ok {
		return Snapshot{}, fmt.Errorf("%w for %s", ErrNoActiveSession, personID)
	}
	if c.id != sessionID {
		return Snapshot{}, fmt.Errorf("%w for %s: session %s is closed", ErrNoActiveSession, personID, sessionID)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		m.log.Debug("empty chunk ignored",
			zap.String("person_id", personID),
			zap.String("session_id", c.id))
		return c.snapshot(true, nil), nil
	}
	if duration < 0 {
		duration = 0
	}
	if len(c.chunks) > 0 {
		c.length++
	}
	c.chunks = append(c.chunks, text)
	c.length += len(text)
	c.duration += duration
	m.log.Debug("chunk appended",
		zap.String("person_id", personID),
		zap.String("session_id", c.id),
		zap.Int("chunk_count", len(c.chunks)),
		zap.Int("chars", len(text)))
	return c.snapshot(true, nil), nil
}

// End closes the person's active session and returns the joined transcript.
// The session moves to history; a second End fails with ErrNoActiveSession.
func (m *Manager) End(personID string) (string, Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.active[personID]
	if !ok {
		return "", Snapshot{}, fmt.Errorf("%w for %s", ErrNoActiveSession, personID)
	}
	delete(m.active, personID)

	endedAt := m.now()
	snap := c.snapshot(false, &endedAt)
	hist := append(m.history[personID], snap)
	if len(hist) > m.historyLimit {
		hist = hist[len(hist)-m.historyLimit:]
	}
	m.history[personID] = hist

	m.log.Info("session ended",
		zap.String("person_id", personID),
		zap.String("session_id", c.id),
		zap.Int("chunk_count", len(c.chunks)),
		zap.Int("transcript_length", c.length),
		zap.Float64("audio_duration", c.duration))
	return c.transcript(), snap, nil
}

// Status returns the active session of personID, if any.
func (m *Manager) Status(personID string) (Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.active[personID]
	if !ok {
		return Snapshot{}, false
	}
	return c.snapshot(true, nil), true
}

// AllActive maps person ids to their active session.
func (m *Manager) AllActive() map[string]Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Snapshot, len(m.active))
	for personID, c := range m.active {
		out[personID] = c.snapshot(true, nil)
	}
	return out
}

func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active)
}

// History returns closed sessions for personID, oldest first.
func (m *Manager) History(personID string) []Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	hist := m.history[personID]
	out := make([]Snapshot, len(hist))
	copy(out, hist)
	return out
}

// Overview reports every active session plus the number of closed ones.
func (m *Manager) Overview() Overview {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ov := Overview{
		ActiveSessions: make(map[string]Snapshot, len(m.active)),
		Timestamp:      m.now(),
	}
	for personID, c := range m.active {
		ov.ActiveSessions[personID] = c.snapshot(true, nil)
	}
	for _, hist := range m.history {
		ov.TotalHistory += len(hist)
	}
	return ov
}

func (c *conversation) transcript() string {
	return strings.Join(c.chunks, " ")
}

func (c *conversation) snapshot(active bool, endedAt *time.Time) Snapshot {
	return Snapshot{
		ID:               c.id,
		PersonID:         c.personID,
		IsActive:         active,
		ChunkCount:       len(c.chunks),
		TranscriptLength: c.length,
		AudioDuration:    c.duration,
		CreatedAt:        c.createdAt,
		EndedAt:          endedAt,
	}
}
