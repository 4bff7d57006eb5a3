package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the registry in a single-file SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens path (":memory:" works for tests) and creates the
// people table.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection serializes writers and keeps :memory: databases alive.
	db.SetMaxOpenConns(1)

	stmts := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		`CREATE TABLE IF NOT EXISTS people (
			person_id    TEXT PRIMARY KEY,
			name         TEXT NOT NULL,
			relationship TEXT NOT NULL DEFAULT '',
			visit_count  INTEGER NOT NULL DEFAULT 0,
			last_visit   TEXT,
			last_summary TEXT NOT NULL DEFAULT ''
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init sqlite on %q: %w", stmt, err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteColumns = `person_id, name, relationship, visit_count, last_visit, last_summary`

func (s *SQLiteStore) Get(ctx context.Context, personID string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteColumns+` FROM people WHERE person_id = ?`, personID)
	r, err := scanSQLite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("get person: %w", err)
	}
	return r, nil
}

func (s *SQLiteStore) Ensure(ctx context.Context, personID, name, relationship string) (Record, error) {
	fresh, err := NewRecord(personID, name, relationship)
	if err != nil {
		return Record{}, err
	}
	row := s.db.QueryRowContext(ctx,
		`INSERT INTO people (person_id, name, relationship) VALUES (?, ?, ?)
		 ON CONFLICT(person_id) DO UPDATE SET
			name = CASE WHEN people.name = '' THEN excluded.name ELSE people.name END,
			relationship = CASE WHEN people.relationship = '' THEN excluded.relationship ELSE people.relationship END
		 RETURNING `+sqliteColumns,
		fresh.PersonID, fresh.Name, fresh.Relationship,
	)
	r, err := scanSQLite(row)
	if err != nil {
		return Record{}, fmt.Errorf("ensure person: %w", err)
	}
	return r, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sqliteColumns+` FROM people ORDER BY person_id`)
	if err != nil {
		return nil, fmt.Errorf("list people: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanSQLite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan person row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate people rows: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) RecordVisit(ctx context.Context, personID, day, summary string) (Record, error) {
	if personID == "" {
		return Record{}, errors.New("person id is required")
	}
	row := s.db.QueryRowContext(ctx,
		`INSERT INTO people (person_id, name, visit_count, last_visit, last_summary) VALUES (?, ?, 1, ?, ?)
		 ON CONFLICT(person_id) DO UPDATE SET
			visit_count = people.visit_count + 1,
			last_visit = excluded.last_visit,
			last_summary = CASE WHEN excluded.last_summary <> '' THEN excluded.last_summary ELSE people.last_summary END
		 RETURNING `+sqliteColumns,
		personID, personID, day, summary,
	)
	r, err := scanSQLite(row)
	if err != nil {
		return Record{}, fmt.Errorf("record visit: %w", err)
	}
	return r, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLite(row rowScanner) (Record, error) {
	var (
		r         Record
		lastVisit sql.NullString
	)
	if err := row.Scan(&r.PersonID, &r.Name, &r.Relationship, &r.VisitCount, &lastVisit, &r.LastSummary); err != nil {
		return Record{}, err
	}
	r.LastVisit = lastVisit.String
	return r, nil
}
