package harness

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario("testdata/scenarios/" + name + ".yaml")
	require.NoError(t, err)
	return s
}

func TestRun_FireStations(t *testing.T) {
	result, err := Run(loadTestScenario(t, "fire_stations_before_1980"))
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Statements, 1)
	assert.Equal(t, "fire_stations", result.Statements[0].Layer)
	require.Len(t, result.Layers, 1)
	assert.Len(t, result.Layers[0].GeoJSON.Features, 2)
	assert.Nil(t, result.CompileError)
	assert.Empty(t, result.ExecutionError)
}

func TestRun_ExistsRelation(t *testing.T) {
	result, err := Run(loadTestScenario(t, "bike_lanes_near_private_schools"))
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Layers, 2)
	assert.Equal(t, "bike_lanes", result.Layers[0].Source)
	assert.Equal(t, "schools", result.Layers[1].Source)
}

func TestRun_ExpectedCompileError(t *testing.T) {
	result, err := Run(loadTestScenario(t, "unknown_table"))
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.NotNil(t, result.CompileError)
	assert.Equal(t, "groups[0].source_tables[0].table", result.CompileError.Field)
	assert.Empty(t, result.Statements)
}

func TestRun_ExpectedExecutionError(t *testing.T) {
	result, err := Run(loadTestScenario(t, "missing_relation"))
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, `relation "parks" does not exist`, result.ExecutionError)
	assert.Empty(t, result.Layers)
}

func TestRun_UnexpectedCompileError(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: n
description: d
plan: '{"action": "select", "groups": [{"source_tables": [{"table": "casinos", "columns": ["name"]}]}]}'
assertions:
  - type: statement_count
    count: 1
`))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "compile failed")
}

func TestRun_LaxCompilation(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: n
description: d
strict: false
plan: '{"action": "select", "groups": [{"source_tables": [{"table": "casinos", "columns": ["name"]}]}]}'
assertions:
  - type: sql_contains
    text: "FROM casinos"
`))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_UncannedStatementsGetEmptyResults(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: n
description: d
plan: '{"action": "select", "groups": [{"source_tables": [{"table": "parks", "columns": ["name"]}]}]}'
assertions:
  - type: layer
    layer: 0
    name: parks
    rows: 0
`))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_TooManyResults(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: n
description: d
plan: '{"action": "select", "groups": [{"source_tables": [{"table": "parks", "columns": ["name"]}]}]}'
results:
  - columns: [name]
  - columns: [name]
assertions:
  - type: statement_count
    count: 1
`))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "2 results for 1 statements")
}

func TestRunFS_CatalogFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/cat/tables.yaml", []byte(`
tables:
  - name: casinos
    columns:
      - {name: name, type: text}
`), 0o644))

	s, err := ParseScenario([]byte(`
name: n
description: d
catalog: /cat/tables.yaml
plan: '{"action": "select", "groups": [{"source_tables": [{"table": "casinos", "columns": ["name"]}]}]}'
assertions:
  - type: statement_count
    count: 1
`))
	require.NoError(t, err)

	result, err := RunFS(fs, s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRunFS_MissingCatalog(t *testing.T) {
	s, err := ParseScenario([]byte(minimalScenario + "catalog: /nope.yaml\n"))
	require.NoError(t, err)

	_, err = RunFS(afero.NewMemMapFs(), s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load catalog")
}
