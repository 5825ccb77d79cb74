package store

import (
	"context"
	"fmt"
	"time"
)

// Query status values.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Query is one recorded question.
type Query struct {
	ID         string    `json:"id"`
	Question   string    `json:"question"`
	Status     string    `json:"status"`
	Attempts   int       `json:"attempts"`
	SQL        string    `json:"sql"`
	Error      string    `json:"error,omitempty"`
	LayerCount int       `json:"layer_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// Attempt is one generate-compile-execute round of a question.
type Attempt struct {
	Seq   int    `json:"seq"`
	Plan  string `json:"plan"`
	SQL   string `json:"sql"`
	Error string `json:"error,omitempty"`
}

// RecordQuery inserts a question and its attempts in one transaction.
// Uses ON CONFLICT DO NOTHING for idempotency - recording the same id twice
// keeps the first record.
//
// Attempts are numbered from 1 in the order given; their Seq fields are
// ignored.
func (s *Store) RecordQuery(ctx context.Context, q Query, attempts []Attempt) error {
	if q.ID == "" {
		return fmt.Errorf("record query: id is required")
	}
	switch q.Status {
	case StatusOK, StatusFailed:
	default:
		return fmt.Errorf("record query: invalid status %q", q.Status)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record query: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO queries
		(id, question, status, attempts, sql, error, layer_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		q.ID,
		q.Question,
		q.Status,
		len(attempts),
		q.SQL,
		q.Error,
		q.LayerCount,
		q.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record query: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// Already recorded.
		return nil
	}

	for i, a := range attempts {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO attempts (query_id, seq, plan, sql, error)
			VALUES (?, ?, ?, ?, ?)
		`,
			q.ID,
			i+1,
			canonicalPlan(a.Plan),
			a.SQL,
			a.Error,
		)
		if err != nil {
			return fmt.Errorf("record attempt %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record query: commit: %w", err)
	}
	return nil
}
