package session

import "time"

// Snapshot is a read-only copy of a conversation session.
type Snapshot struct {
	ID               string     `json:"session_id"`
	PersonID         string     `json:"person_id"`
	IsActive         bool       `json:"is_active"`
	ChunkCount       int        `json:"chunk_count"`
	TranscriptLength int        `json:"transcript_length"`
	AudioDuration    float64    `json:"audio_duration"`
	CreatedAt        time.Time  `json:"created_at"`
	EndedAt          *time.Time `json:"ended_at"`
}

// Overview summarizes the manager state.
type Overview struct {
	ActiveSessions map[string]Snapshot `json:"active_sessions"`
	TotalHistory   int                 `json:"total_history"`
	Timestamp      time.Time           `json:"timestamp"`
}
