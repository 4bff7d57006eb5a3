package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// fileEntry is the on-disk shape of one person, keyed by id in the mapping.
type fileEntry struct {
	Name         string  `json:"name"`
	Relationship string  `json:"relationship"`
	VisitCount   int     `json:"visit_count"`
	LastVisit    *string `json:"last_visit"`
	LastSummary  string  `json:"last_summary"`
}

// JSONStore keeps the registry as a single JSON object and rewrites the
// whole file on every change.
type JSONStore struct {
	mu   sync.RWMutex
	path string
	data map[string]fileEntry
	log  *zap.Logger
}

func NewJSONStore(path string, log *zap.Logger) (*JSONStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s := &JSONStore{path: path, data: make(map[string]fileEntry), log: log}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := s.persist(); err != nil {
			return nil, err
		}
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read memory file: %w", err)
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		// Keep the unreadable file; the next write replaces path.
		aside := path + ".corrupt-" + time.Now().UTC().Format("20060102T150405")
		if rerr := os.Rename(path, aside); rerr != nil {
			return nil, fmt.Errorf("memory file %s unreadable (%v) and could not be moved aside: %w", path, err, rerr)
		}
		log.Warn("memory file unreadable; moved aside and starting empty",
			zap.String("path", path),
			zap.String("moved_to", aside),
			zap.Error(err))
		s.data = make(map[string]fileEntry)
		if err := s.persist(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *JSONStore) Get(_ context.Context, personID string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[personID]
	if !ok {
		return Record{}, ErrNotFound
	}
	return e.record(personID), nil
}

func (s *JSONStore) Ensure(_ context.Context, personID, name, relationship string) (Record, error) {
	fresh, err := NewRecord(personID, name, relationship)
	if err != nil {
		return Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[fresh.PersonID]
	if !ok {
		e = fileEntry{Name: fresh.Name, Relationship: fresh.Relationship}
	} else {
		if e.Name == "" {
			e.Name = fresh.Name
		}
		if e.Relationship == "" {
			e.Relationship = fresh.Relationship
		}
	}
	if err := s.put(fresh.PersonID, e); err != nil {
		return Record{}, err
	}
	return e.record(fresh.PersonID), nil
}

func (s *JSONStore) List(_ context.Context) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0, len(s.data))
	for id, e := range s.data {
		out = append(out, e.record(id))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PersonID < out[j].PersonID })
	return out, nil
}

func (s *JSONStore) RecordVisit(_ context.Context, personID, day, summary string) (Record, error) {
	if strings.TrimSpace(personID) == "" {
		return Record{}, errors.New("person id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[personID]
	if !ok {
		e = fileEntry{Name: personID}
	}
	e.VisitCount++
	e.LastVisit = &day
	if summary != "" {
		e.LastSummary = summary
	}
	if err := s.put(personID, e); err != nil {
		return Record{}, err
	}
	return e.record(personID), nil
}

func (s *JSONStore) Close() error { return nil }

// put installs e and persists; the previous entry is restored on failure.
// Callers hold s.mu.
func (s *JSONStore) put(personID string, e fileEntry) error {
	prev, had := s.data[personID]
	s.data[personID] = e
	if err := s.persist(); err != nil {
		if had {
			s.data[personID] = prev
		} else {
			delete(s.data, personID)
		}
		return err
	}
	return nil
}

func (s *JSONStore) persist() error {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create memory dir: %w", err)
		}
	}
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode memory file: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write memory file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace memory file: %w", err)
	}
	return nil
}

func (e fileEntry) record(personID string) Record {
	r := Record{
		PersonID:     personID,
		Name:         e.Name,
		Relationship: e.Relationship,
		VisitCount:   e.VisitCount,
		LastSummary:  e.LastSummary,
	}
	if e.LastVisit != nil {
		r.LastVisit = *e.LastVisit
	}
	return r
}
