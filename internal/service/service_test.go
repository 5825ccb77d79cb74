package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/roach88/geoff/internal/catalog"
	"github.com/roach88/geoff/internal/plan"
	"github.com/roach88/geoff/internal/store"
	"github.com/roach88/geoff/internal/testutil"
)

const (
	firePlan = `{"action": "select", "groups": [{"source_tables": [{
		"table": "fire_stations",
		"columns": ["station_no", "address", "year_built", "geometry"],
		"filters": [{"column": "year_built", "operator": "<", "value": 1980}]
	}]}]}`

	fireSQL   = "SELECT fire_stations.station_no, fire_stations.address, fire_stations.year_built, ST_AsGeoJSON(fire_stations.geometry) AS geometry FROM fire_stations WHERE year_built < 1980;"
	fireQuery = "SELECT fire_stations.station_no, fire_stations.address, fire_stations.year_built, ST_AsGeoJSON(fire_stations.geometry) AS geometry FROM fire_stations WHERE year_built < $1;"

	badPlan = `{"action": "select", "groups": [{"source_tables": [{
		"table": "fire_stations", "columns": ["nope"], "filters": []
	}]}]}`

	twoGroupsPlan = `{"action": "select", "groups": [
		{"source_tables": [{"table": "parks", "columns": ["name"], "filters": []}]},
		{"source_tables": [{"table": "schools", "columns": ["name"], "filters": []}]}
	]}`

	point = `{"type":"Point","coordinates":[-79.4,43.7]}`
)

var fireColumns = []string{"station_no", "address", "year_built", "geometry"}

type failingHistory struct{}

func (failingHistory) RecordQuery(context.Context, store.Query, []store.Attempt) error {
	return errors.New("disk full")
}

func newTestService(t *testing.T, exec Executor, opts ...Option) *Service {
	t.Helper()
	base := []Option{
		WithIDs(testutil.NewSequenceIDs("q")),
		WithClock(testutil.NewDeterministicClock()),
	}
	s, err := New(catalog.Default(), exec, append(base, opts...)...)
	require.NoError(t, err)
	return s
}

func openHistory(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestAsk_FirstAttempt(t *testing.T) {
	exec := testutil.NewFakeExecutor().
		On(fireQuery, fireColumns, []any{"12", "1 Main St", int64(1975), point})
	gen := testutil.NewScriptedGenerator("Here you go:\n```json\n" + firePlan + "\n```")
	hist := openHistory(t)
	s := newTestService(t, exec, WithGenerator(gen), WithHistory(hist))

	resp, err := s.Ask(context.Background(), "Which fire stations were built before 1980?")
	require.NoError(t, err)

	assert.False(t, resp.Failed())
	assert.Equal(t, "q-1", resp.ID)
	assert.Equal(t, fireSQL, resp.SQL)
	assert.Equal(t, 1, resp.Attempts)
	require.Len(t, resp.Layers, 1)
	layer := resp.Layers[0]
	assert.Equal(t, "geometry", layer.Name)
	assert.Equal(t, "fire_stations", layer.Source)
	assert.Equal(t, []string{"station_no", "address", "year_built"}, layer.Columns)
	require.Len(t, layer.GeoJSON.Features, 1)
	assert.Equal(t, "12", layer.GeoJSON.Features[0].Properties["station_no"])

	calls := exec.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, []any{int64(1980)}, calls[0].Args)

	require.Len(t, gen.Prompts(), 1)
	assert.Contains(t, gen.Prompts()[0], "Table: fire_stations")
	assert.NotContains(t, gen.Prompts()[0], "Previous Attempt")

	q, attempts, err := hist.GetQuery(context.Background(), "q-1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusOK, q.Status)
	assert.Equal(t, 1, q.LayerCount)
	assert.True(t, testutil.DefaultEpoch.Equal(q.CreatedAt))
	require.Len(t, attempts, 1)
	assert.Equal(t, fireSQL, attempts[0].SQL)
	assert.Empty(t, attempts[0].Error)
}

func TestAsk_RetriesInvalidPlanWithFeedback(t *testing.T) {
	exec := testutil.NewFakeExecutor().On(fireQuery, fireColumns)
	gen := testutil.NewScriptedGenerator(badPlan, firePlan)
	s := newTestService(t, exec, WithGenerator(gen))

	resp, err := s.Ask(context.Background(), "old fire stations")
	require.NoError(t, err)

	assert.False(t, resp.Failed())
	assert.Equal(t, 2, resp.Attempts)
	require.Len(t, gen.Prompts(), 2)
	assert.Contains(t, gen.Prompts()[1], "*Previous Attempt*")
	assert.Contains(t, gen.Prompts()[1], `"nope"`)
	assert.Contains(t, gen.Prompts()[1], "Error: ")
}

func TestAsk_ExhaustedAfterExecutionFailures(t *testing.T) {
	exec := testutil.NewFakeExecutor().Fail(fireQuery, errors.New(`column "year_built" does not exist`))
	gen := testutil.NewScriptedGenerator(firePlan)
	hist := openHistory(t)
	s := newTestService(t, exec, WithGenerator(gen), WithHistory(hist), WithRetries(2))

	resp, err := s.Ask(context.Background(), "fire stations before 1980")
	require.NoError(t, err)

	assert.True(t, resp.Failed())
	assert.Equal(t, CodeExhausted, resp.Code)
	assert.Equal(t, fireSQL, resp.SQL)
	assert.Equal(t, `column "year_built" does not exist`, resp.Error)
	assert.Equal(t, 3, resp.Attempts)
	assert.Empty(t, resp.Layers)
	assert.Equal(t, CodeExhausted, CodeOf(resp.Err()))

	require.Len(t, gen.Prompts(), 3)
	assert.Contains(t, gen.Prompts()[1], "    Output: "+fireSQL+"\n")
	assert.Contains(t, gen.Prompts()[2], `    Error: column "year_built" does not exist`)

	q, attempts, err := hist.GetQuery(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, q.Status)
	assert.Equal(t, 3, q.Attempts)
	assert.Len(t, attempts, 3)
}

func TestAsk_NoPlanInOutput(t *testing.T) {
	gen := testutil.NewScriptedGenerator("SELECT * FROM parks;")
	s := newTestService(t, testutil.NewFakeExecutor(), WithGenerator(gen), WithRetries(1))

	resp, err := s.Ask(context.Background(), "parks")
	require.NoError(t, err)

	assert.Equal(t, CodeExhausted, resp.Code)
	assert.Empty(t, resp.SQL)
	assert.Contains(t, resp.Error, "no JSON plan")
	require.Len(t, gen.Prompts(), 2)
	assert.Contains(t, gen.Prompts()[1], "Output: SELECT * FROM parks;")
}

func TestAsk_GeneratorUnavailable(t *testing.T) {
	gen := testutil.NewFailingGenerator(errors.New("connection refused"))
	s := newTestService(t, testutil.NewFakeExecutor(), WithGenerator(gen))

	_, err := s.Ask(context.Background(), "parks")
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
	assert.Len(t, gen.Prompts(), 1)
}

func TestAsk_Canceled(t *testing.T) {
	gen := testutil.NewScriptedGenerator(firePlan)
	s := newTestService(t, testutil.NewFakeExecutor(), WithGenerator(gen))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Ask(ctx, "parks")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAsk_RejectedInputs(t *testing.T) {
	s := newTestService(t, testutil.NewFakeExecutor())

	_, err := s.Ask(context.Background(), "parks")
	assert.True(t, IsUnavailable(err))

	_, err = s.Ask(context.Background(), "   ")
	assert.True(t, IsPlanError(err))
}

func TestAsk_HistoryFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	exec := testutil.NewFakeExecutor().On(fireQuery, fireColumns)
	gen := testutil.NewScriptedGenerator(firePlan)
	s := newTestService(t, exec,
		WithGenerator(gen),
		WithHistory(failingHistory{}),
		WithLogger(zap.New(core)),
	)

	resp, err := s.Ask(context.Background(), "fire stations")
	require.NoError(t, err)
	assert.False(t, resp.Failed())
	assert.Equal(t, 1, logs.FilterMessage("failed to record query").Len())
}

func TestRunPlan_LayersFollowStatementOrder(t *testing.T) {
	exec := testutil.NewFakeExecutor().
		On("SELECT parks.name FROM parks;", []string{"name"}, []any{"High Park"}).
		On("SELECT schools.name FROM schools;", []string{"name"}, []any{"Jarvis CI"}, []any{"Malvern CI"})
	s := newTestService(t, exec, WithParallelism(2))

	resp, err := s.RunPlan(context.Background(), []byte(twoGroupsPlan))
	require.NoError(t, err)

	assert.Equal(t, "SELECT parks.name FROM parks;\nSELECT schools.name FROM schools;", resp.SQL)
	require.Len(t, resp.Layers, 2)
	assert.Equal(t, "parks", resp.Layers[0].Name)
	assert.Len(t, resp.Layers[0].Rows, 1)
	assert.Equal(t, "schools", resp.Layers[1].Name)
	assert.Len(t, resp.Layers[1].Rows, 2)
	assert.Len(t, exec.Calls(), 2)
}

func TestRunPlan_InvalidPlan(t *testing.T) {
	exec := testutil.NewFakeExecutor()
	s := newTestService(t, exec)

	for _, raw := range []string{`{"groups": []}`, badPlan, `not json`} {
		_, err := s.RunPlan(context.Background(), []byte(raw))
		assert.True(t, IsPlanError(err), raw)
	}
	assert.Empty(t, exec.Calls())
}

func TestRunPlan_ExecutionFailure(t *testing.T) {
	exec := testutil.NewFakeExecutor().Fail(fireQuery, errors.New(`relation "fire_stations" does not exist`))
	s := newTestService(t, exec)

	resp, err := s.RunPlan(context.Background(), []byte(firePlan))
	require.NoError(t, err)
	assert.Equal(t, CodeExecution, resp.Code)
	assert.Equal(t, fireSQL, resp.SQL)
	assert.Equal(t, `relation "fire_stations" does not exist`, resp.Error)
	assert.Len(t, exec.Calls(), 1)
}

func TestCompile_CachedByFingerprint(t *testing.T) {
	s := newTestService(t, testutil.NewFakeExecutor())

	first, err := s.Compile([]byte(firePlan))
	require.NoError(t, err)
	reordered := strings.Replace(firePlan, `"action": "select", `, "", 1)
	reordered = strings.TrimSuffix(reordered, "}") + `, "action": "select"}`
	second, err := s.Compile([]byte(reordered))
	require.NoError(t, err)

	require.Len(t, second, 1)
	assert.Same(t, &first[0], &second[0])

	uncached := newTestService(t, testutil.NewFakeExecutor(), WithCacheSize(0))
	a, err := uncached.Compile([]byte(firePlan))
	require.NoError(t, err)
	b, err := uncached.Compile([]byte(firePlan))
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.NotSame(t, &a[0], &b[0])
}

func TestCompile_StrictnessFollowsOption(t *testing.T) {
	strict := newTestService(t, testutil.NewFakeExecutor())
	_, err := strict.Compile([]byte(badPlan))
	assert.True(t, IsPlanError(err))

	lax := newTestService(t, testutil.NewFakeExecutor(), WithStrict(false))
	stmts, err := lax.Compile([]byte(badPlan))
	require.NoError(t, err)
	assert.Equal(t, "SELECT fire_stations.nope FROM fire_stations;", stmts[0].SQL)
}

func TestCompile_SchemaCheckedBeforeParse(t *testing.T) {
	s := newTestService(t, testutil.NewFakeExecutor())

	_, err := s.Compile([]byte(`{"groups": [{"source_tables": [{"table": "parks"}]}]}`))
	require.Error(t, err)
	assert.True(t, IsPlanError(err))
	var pe *plan.PlanError
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, pe.Field, "action")

	_, err = s.Compile([]byte(`{"action": "select", "groups": [{"source_tables": [{"table": "parks", "filters": [{"operator": "="}]}]}]}`))
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, pe.Field, "filters")
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, testutil.NewFakeExecutor())
	assert.ErrorContains(t, err, "catalog is required")

	_, err = New(catalog.Default(), nil)
	assert.ErrorContains(t, err, "executor is required")

	_, err = New(catalog.Default(), testutil.NewFakeExecutor(), WithRetries(-1))
	assert.ErrorContains(t, err, "retries")

	_, err = New(catalog.Default(), testutil.NewFakeExecutor(), WithParallelism(0))
	assert.ErrorContains(t, err, "parallelism")
}

func TestErrorCodes(t *testing.T) {
	err := newError(CodeExecution, errors.New("boom"))
	assert.Equal(t, "E_EXECUTION: boom", err.Error())
	assert.Equal(t, CodeExecution, CodeOf(err))
	assert.Equal(t, Code(""), CodeOf(errors.New("plain")))
	assert.Equal(t, "boom", errors.Unwrap(err).Error())
}
