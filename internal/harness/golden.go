package harness

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot renders a scenario result as stable text for golden comparison.
//
//	-- scenario: <name>
//	-- [0] layer: <hint>
//	<display SQL>
//	<parameterized query>
//	-- $1 = <arg>
//	-- layers
//	[0] <name> (source <hint>): <n> features, <m> rows, columns [...]
//
// Compile and execution errors replace the sections they prevent.
func Snapshot(scenarioName string, result *Result) []byte {
	var buf strings.Builder

	fmt.Fprintf(&buf, "-- scenario: %s\n", scenarioName)

	if result.CompileError != nil {
		fmt.Fprintf(&buf, "-- compile error: %s: %s\n", result.CompileError.Field, result.CompileError.Message)
		return []byte(buf.String())
	}

	for i, st := range result.Statements {
		fmt.Fprintf(&buf, "-- [%d] layer: %s\n", i, st.Layer)
		fmt.Fprintf(&buf, "%s\n", st.SQL)
		fmt.Fprintf(&buf, "%s\n", st.Query)
		for n, arg := range st.Args {
			fmt.Fprintf(&buf, "-- $%d = %#v\n", n+1, arg)
		}
	}

	if result.ExecutionError != "" {
		fmt.Fprintf(&buf, "-- execution error: %s\n", result.ExecutionError)
		return []byte(buf.String())
	}

	buf.WriteString("-- layers\n")
	for i, l := range result.Layers {
		fmt.Fprintf(&buf, "[%d] %s (source %s): %d features, %d rows, columns %v\n",
			i, l.Name, l.Source, featureCount(l), len(l.Rows), l.Columns)
	}
	return []byte(buf.String())
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if the scenario cannot be run. A snapshot mismatch fails t.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an existing result's snapshot against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, Snapshot(scenarioName, result))
}
