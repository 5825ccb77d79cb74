package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/geoff/internal/postgis"
)

// Call is one recorded FakeExecutor invocation.
type Call struct {
	Query string
	Args  []any
}

// FakeExecutor answers queries from canned results keyed by the exact query
// text. Unknown queries fail, which surfaces compiler drift in tests.
//
// Thread-safety: FakeExecutor is safe for concurrent use via internal mutex.
type FakeExecutor struct {
	mu      sync.Mutex
	results map[string]*postgis.Result
	errs    map[string]error
	calls   []Call
	// Fallback, when set, answers queries with no canned entry.
	Fallback *postgis.Result
}

// NewFakeExecutor creates an executor with no canned results.
func NewFakeExecutor() *FakeExecutor {
	return &FakeExecutor{
		results: map[string]*postgis.Result{},
		errs:    map[string]error{},
	}
}

// On registers the result for a query.
func (f *FakeExecutor) On(query string, columns []string, rows ...[]any) *FakeExecutor {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rows == nil {
		rows = [][]any{}
	}
	f.results[query] = &postgis.Result{Columns: columns, Rows: rows}
	return f
}

// Fail registers an error for a query.
func (f *FakeExecutor) Fail(query string, err error) *FakeExecutor {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[query] = err
	return f
}

// Execute implements the service executor.
func (f *FakeExecutor) Execute(ctx context.Context, query string, args []any) (*postgis.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Query: query, Args: args})

	if err, ok := f.errs[query]; ok {
		return nil, err
	}
	if res, ok := f.results[query]; ok {
		return res, nil
	}
	if f.Fallback != nil {
		return f.Fallback, nil
	}
	return nil, fmt.Errorf("unexpected query: %s", query)
}

// Ping always succeeds.
func (f *FakeExecutor) Ping(context.Context) error {
	return nil
}

// Calls returns the recorded calls in arrival order.
func (f *FakeExecutor) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}
