package cli

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile_Text(t *testing.T) {
	opts := testRoot(t, "text", map[string]string{"plan.json": firePlan})

	out, _, err := execute(NewCompileCommand(opts), "plan.json")
	require.NoError(t, err)
	assert.Equal(t, "-- [0] layer: fire_stations\n"+fireSQL+"\n", out)
}

func TestCompile_ExecForm(t *testing.T) {
	opts := testRoot(t, "text", map[string]string{"plan.json": firePlan})

	out, _, err := execute(NewCompileCommand(opts), "--exec-form", "plan.json")
	require.NoError(t, err)
	assert.Equal(t, "-- [0] layer: fire_stations\n"+fireQuery+"\n-- $1 = 1980\n", out)
}

func TestCompile_Stdin(t *testing.T) {
	opts := testRoot(t, "text", nil)
	cmd := NewCompileCommand(opts)
	cmd.SetIn(strings.NewReader(firePlan))

	out, _, err := execute(cmd, "-")
	require.NoError(t, err)
	assert.Contains(t, out, fireSQL)
}

func TestCompile_JSON(t *testing.T) {
	opts := testRoot(t, "json", map[string]string{"plan.json": firePlan})

	out, _, err := execute(NewCompileCommand(opts), "plan.json")
	require.NoError(t, err)

	var resp struct {
		Status string            `json:"status"`
		Data   CompilationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Statements, 1)
	st := resp.Data.Statements[0]
	assert.Equal(t, fireSQL, st.SQL)
	assert.Equal(t, fireQuery, st.Query)
	assert.Equal(t, []any{float64(1980)}, st.Args)
	assert.Equal(t, "fire_stations", st.Layer)
}

func TestCompile_MultipleStatements(t *testing.T) {
	plan := `{"action": "select", "groups": [
		{"source_tables": [{"table": "parks", "columns": ["name"]}]},
		{"source_tables": [{"table": "schools", "columns": ["name"]}]}
	]}`
	opts := testRoot(t, "text", map[string]string{"plan.json": plan})

	out, _, err := execute(NewCompileCommand(opts), "plan.json")
	require.NoError(t, err)
	assert.Equal(t,
		"-- [0] layer: parks\nSELECT parks.name FROM parks;\n\n-- [1] layer: schools\nSELECT schools.name FROM schools;\n",
		out)
}

func TestCompile_UnknownTable(t *testing.T) {
	opts := testRoot(t, "json", map[string]string{"plan.json": casinoPlan})

	out, _, err := execute(NewCompileCommand(opts), "plan.json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, IsReported(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_PLAN_INVALID", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, `unknown table "casinos"`)
	assert.Equal(t, map[string]any{"field": "groups[0].source_tables[0].table"}, resp.Error.Details)
}

func TestCompile_Lax(t *testing.T) {
	opts := testRoot(t, "text", map[string]string{"plan.json": casinoPlan})

	out, _, err := execute(NewCompileCommand(opts), "--lax", "plan.json")
	require.NoError(t, err)
	assert.Contains(t, out, "SELECT casinos.name FROM casinos;")
}

func TestCompile_StrictOffInConfig(t *testing.T) {
	opts := testRoot(t, "text", map[string]string{
		"plan.json":  casinoPlan,
		"geoff.yaml": "query:\n  strict: false\n",
	})

	_, _, err := execute(NewCompileCommand(opts), "plan.json")
	require.NoError(t, err)
}

func TestCompile_CatalogFile(t *testing.T) {
	opts := testRoot(t, "text", map[string]string{
		"plan.json":   casinoPlan,
		"geoff.yaml":  "catalog:\n  source: file\n  file: tables.yaml\n",
		"tables.yaml": "tables:\n  - name: casinos\n    columns:\n      - {name: name, type: text}\n",
	})

	out, _, err := execute(NewCompileCommand(opts), "plan.json")
	require.NoError(t, err)
	assert.Contains(t, out, "FROM casinos;")
}

func TestCompile_MissingFile(t *testing.T) {
	opts := testRoot(t, "text", nil)

	out, _, err := execute(NewCompileCommand(opts), "missing.json")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E_READ]")
}

func TestCompile_MalformedPlan(t *testing.T) {
	opts := testRoot(t, "text", map[string]string{"plan.json": `{"groups": []}`})

	out, _, err := execute(NewCompileCommand(opts), "plan.json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E_PLAN_INVALID]")
}

func TestCompile_MissingArgs(t *testing.T) {
	_, _, err := execute(NewCompileCommand(testRoot(t, "text", nil)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}
