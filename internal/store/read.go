package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a query id is unknown.
var ErrNotFound = errors.New("query not found")

// ListQueries returns the most recent questions, newest first.
// Ordering is deterministic: ORDER BY created_at DESC, id DESC COLLATE BINARY.
// A non-positive limit returns every question.
//
// Returns an empty slice (not nil) if nothing has been recorded.
func (s *Store) ListQueries(ctx context.Context, limit int) ([]Query, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, question, status, attempts, sql, error, layer_count, created_at
		FROM queries
		ORDER BY created_at DESC, id COLLATE BINARY DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	queries := []Query{}
	for rows.Next() {
		q, err := scanQuery(rows)
		if err != nil {
			return nil, err
		}
		queries = append(queries, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return queries, nil
}

// GetQuery returns one question with its attempts in order.
func (s *Store) GetQuery(ctx context.Context, id string) (Query, []Attempt, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, question, status, attempts, sql, error, layer_count, created_at
		FROM queries
		WHERE id = ?
	`, id)
	q, err := scanQuery(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Query{}, nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Query{}, nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, plan, sql, error
		FROM attempts
		WHERE query_id = ?
		ORDER BY seq ASC
	`, id)
	if err != nil {
		return Query{}, nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	attempts := []Attempt{}
	for rows.Next() {
		var a Attempt
		if err := rows.Scan(&a.Seq, &a.Plan, &a.SQL, &a.Error); err != nil {
			return Query{}, nil, fmt.Errorf("scan attempt: %w", err)
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return Query{}, nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return q, attempts, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuery(r rowScanner) (Query, error) {
	var q Query
	var created int64
	err := r.Scan(&q.ID, &q.Question, &q.Status, &q.Attempts, &q.SQL, &q.Error, &q.LayerCount, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Query{}, err
	}
	if err != nil {
		return Query{}, fmt.Errorf("scan query: %w", err)
	}
	q.CreatedAt = time.UnixMilli(created).UTC()
	return q, nil
}
