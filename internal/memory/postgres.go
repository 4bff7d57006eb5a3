package memory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists the person registry in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS people (
			person_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			relationship TEXT NOT NULL DEFAULT '',
			visit_count INTEGER NOT NULL DEFAULT 0,
			last_visit TEXT,
			last_summary TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

const pgColumns = `person_id, name, relationship, visit_count, last_visit, last_summary`

func (s *PostgresStore) Get(ctx context.Context, personID string) (Record, error) {
	r, err := scanPostgres(s.pool.QueryRow(ctx, `SELECT `+pgColumns+` FROM people WHERE person_id=$1`, personID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("get person: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) Ensure(ctx context.Context, personID, name, relationship string) (Record, error) {
	fresh, err := NewRecord(personID, name, relationship)
	if err != nil {
		return Record{}, err
	}
	r, err := scanPostgres(s.pool.QueryRow(ctx,
		`INSERT INTO people (person_id, name, relationship) VALUES ($1, $2, $3)
		 ON CONFLICT (person_id) DO UPDATE SET
			name = CASE WHEN people.name = '' THEN EXCLUDED.name ELSE people.name END,
			relationship = CASE WHEN people.relationship = '' THEN EXCLUDED.relationship ELSE people.relationship END,
			updated_at = now()
		 RETURNING `+pgColumns,
		fresh.PersonID,
		fresh.Name,
		fresh.Relationship,
	))
	if err != nil {
		return Record{}, fmt.Errorf("ensure person: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+pgColumns+` FROM people ORDER BY person_id`)
	if err != nil {
		return nil, fmt.Errorf("query people: %w", err)
	}
	defer rows.Close()

	var items []Record
	for rows.Next() {
		r, err := scanPostgres(rows)
		if err != nil {
			return nil, fmt.Errorf("scan person row: %w", err)
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate people rows: %w", err)
	}
	return items, nil
}

// RecordVisit is a single upsert, so concurrent visits never lose a count.
func (s *PostgresStore) RecordVisit(ctx context.Context, personID, day, summary string) (Record, error) {
	if personID == "" {
		return Record{}, errors.New("person id is required")
	}
	r, err := scanPostgres(s.pool.QueryRow(ctx,
		`INSERT INTO people (person_id, name, visit_count, last_visit, last_summary) VALUES ($1, $1, 1, $2, $3)
		 ON CONFLICT (person_id) DO UPDATE SET
			visit_count = people.visit_count + 1,
			last_visit = EXCLUDED.last_visit,
			last_summary = CASE WHEN EXCLUDED.last_summary <> '' THEN EXCLUDED.last_summary ELSE people.last_summary END,
			updated_at = now()
		 RETURNING `+pgColumns,
		personID,
		day,
		summary,
	))
	if err != nil {
		return Record{}, fmt.Errorf("record visit: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanPostgres(row pgx.Row) (Record, error) {
	var (
		r         Record
		lastVisit *string
	)
	if err := row.Scan(&r.PersonID, &r.Name, &r.Relationship, &r.VisitCount, &lastVisit, &r.LastSummary); err != nil {
		return Record{}, err
	}
	if lastVisit != nil {
		r.LastVisit = *lastVisit
	}
	return r, nil
}
