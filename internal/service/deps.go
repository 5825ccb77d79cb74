package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/geoff/internal/postgis"
	"github.com/roach88/geoff/internal/store"
)

// Executor runs one parameterized statement. Implemented by
// postgis.Executor; each call acquires and releases its own connection.
type Executor interface {
	Execute(ctx context.Context, query string, args []any) (*postgis.Result, error)
	Ping(ctx context.Context) error
}

// Generator turns a prompt into raw model text. Implemented by llm.Client.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// History records answered questions. Implemented by store.Store.
type History interface {
	RecordQuery(ctx context.Context, q store.Query, attempts []store.Attempt) error
}

// Clock supplies timestamps for history records.
type Clock interface {
	Now() time.Time
}

// IDGenerator supplies history record ids.
type IDGenerator interface {
	NewID() string
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// UUIDv7 generates time-sortable UUIDv7 ids.
//
// Thread-safety: UUIDv7 is stateless and safe for concurrent use.
type UUIDv7 struct{}

// NewID returns a new hyphenated UUIDv7.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7) NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}
