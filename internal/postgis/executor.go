package postgis

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Result is a materialized result set.
type Result struct {
	Columns []string
	Rows    [][]any
}

// Executor runs statements on pooled connections. It is safe for concurrent
// use.
type Executor struct {
	pool *pgxpool.Pool
}

// NewExecutor creates an Executor over a pool the caller owns.
func NewExecutor(pool *pgxpool.Pool) *Executor {
	return &Executor{pool: pool}
}

// Execute runs one parameterized query and reads every row. Values are
// normalized with Normalize.
func (e *Executor) Execute(ctx context.Context, query string, args []any) (*Result, error) {
	conn, err := e.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, &ExecError{Err: err}
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	res := &Result{
		Columns: make([]string, len(fields)),
		Rows:    [][]any{},
	}
	for i, f := range fields {
		res.Columns[i] = f.Name
	}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, &ExecError{Err: err}
		}
		for i, v := range values {
			values[i] = Normalize(v)
		}
		res.Rows = append(res.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, &ExecError{Err: err}
	}
	return res, nil
}

// Ping checks that a connection can be acquired and used.
func (e *Executor) Ping(ctx context.Context) error {
	return e.pool.Ping(ctx)
}

// ExecError is a failure reported while running a statement. Its message is
// what the database said, without driver decoration, so it can be fed back
// into generation.
type ExecError struct {
	Err error
}

func (e *ExecError) Error() string {
	var pgErr *pgconn.PgError
	if errors.As(e.Err, &pgErr) {
		msg := pgErr.Message
		if pgErr.Detail != "" {
			msg += ": " + pgErr.Detail
		}
		return fmt.Sprintf("%s (SQLSTATE %s)", msg, pgErr.Code)
	}
	return e.Err.Error()
}

func (e *ExecError) Unwrap() error {
	return e.Err
}
