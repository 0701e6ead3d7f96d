// Package store keeps completed responses in a SQLite database so a batch
// can be resolved against responses collected by another process.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/agentic-research/subreq/api"
	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("response not found")

const schema = `
CREATE TABLE IF NOT EXISTS responses (
	seq INTEGER PRIMARY KEY,
	id TEXT NOT NULL,
	headers JSON,
	body BLOB
);
CREATE INDEX IF NOT EXISTS idx_responses_id ON responses(id);
`

// Store is a response table. Rows come back in insertion order.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Put appends responses in one transaction. Each row is keyed by the
// response's Identifier.
func (s *Store) Put(ctx context.Context, resps ...api.Response) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }() // no-op after commit

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO responses (id, headers, body) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }() // safe to ignore

	for _, r := range resps {
		id := r.Identifier()
		if id == "" {
			return fmt.Errorf("response without id or %s header", api.ContentIDHeader)
		}
		var headers any
		if len(r.Headers) > 0 {
			raw, err := json.Marshal(r.Headers)
			if err != nil {
				return fmt.Errorf("encode headers for %s: %w", id, err)
			}
			headers = string(raw)
		}
		body := r.Body
		if body == nil {
			body = []byte{}
		}
		if _, err := stmt.ExecContext(ctx, id, headers, body); err != nil {
			return fmt.Errorf("insert %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// Stream calls fn for each stored response in insertion order. Only one row
// is materialized at a time.
func (s *Store) Stream(ctx context.Context, fn func(api.Response) error) error {
	rows, err := s.db.QueryContext(ctx, "SELECT id, headers, body FROM responses ORDER BY seq")
	if err != nil {
		return fmt.Errorf("query responses: %w", err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	for rows.Next() {
		r, err := scan(rows)
		if err != nil {
			return err
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	return rows.Err()
}

// All loads every stored response.
func (s *Store) All(ctx context.Context) ([]api.Response, error) {
	var out []api.Response
	err := s.Stream(ctx, func(r api.Response) error {
		out = append(out, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns the earliest response stored under id.
func (s *Store) Get(ctx context.Context, id string) (api.Response, error) {
	row := s.db.QueryRowContext(ctx, "SELECT id, headers, body FROM responses WHERE id = ? ORDER BY seq LIMIT 1", id)
	r, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return api.Response{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return r, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(sc scanner) (api.Response, error) {
	var (
		r       api.Response
		headers sql.NullString
		body    []byte
	)
	if err := sc.Scan(&r.ID, &headers, &body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("scan row: %w", err)
	}
	if headers.Valid && headers.String != "" {
		if err := json.Unmarshal([]byte(headers.String), &r.Headers); err != nil {
			return r, fmt.Errorf("parse headers of %s: %w", r.ID, err)
		}
	}
	r.Body = body
	return r, nil
}
