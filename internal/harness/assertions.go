package harness

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/roach88/geoff/internal/layers"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	// Statements are the compiled display SQL, for context.
	Statements []string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Statements) > 0 {
		fmt.Fprintf(&buf, "\nStatements:\n")
		for i, sql := range e.Statements {
			fmt.Fprintf(&buf, "  [%d] %s\n", i, sql)
		}
	}

	return buf.String()
}

// EvaluateAssertions checks every assertion against the result and returns
// the failure messages in assertion order.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(result, a); err != nil {
			if ae, ok := err.(*AssertionError); ok {
				ae.Statements = displaySQL(result)
			}
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluateAssertion(r *Result, a Assertion) error {
	switch a.Type {
	case AssertStatementCount:
		return assertCount(a.Type, "statements", len(r.Statements), a.Count)
	case AssertLayerCount:
		return assertCount(a.Type, "layers", len(r.Layers), a.Count)
	case AssertSQLContains:
		return assertContains(r, a, func(i int) string { return r.Statements[i].SQL })
	case AssertQueryContains:
		return assertContains(r, a, func(i int) string { return r.Statements[i].Query })
	case AssertArgs:
		return assertArgs(r, a)
	case AssertLayer:
		return assertLayer(r, a)
	case AssertFeatureProps:
		return assertFeatureProperties(r, a)
	case AssertCompileError:
		return assertCompileError(r, a)
	case AssertExecutionError:
		return assertExecutionError(r, a)
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
}

func assertCount(kind, noun string, got, want int) error {
	if got == want {
		return nil
	}
	return &AssertionError{
		Type:     kind,
		Expected: fmt.Sprintf("%d %s", want, noun),
		Actual:   fmt.Sprintf("%d %s", got, noun),
	}
}

func assertContains(r *Result, a Assertion, text func(int) string) error {
	if a.Statement >= len(r.Statements) {
		return missingStatement(r, a)
	}
	got := text(a.Statement)
	if strings.Contains(got, a.Text) {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("statement %d to contain %q", a.Statement, a.Text),
		Actual:   got,
	}
}

func assertArgs(r *Result, a Assertion) error {
	if a.Statement >= len(r.Statements) {
		return missingStatement(r, a)
	}
	got := r.Statements[a.Statement].Args
	if got == nil {
		got = []any{}
	}
	if matchValue(got, a.Args) {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("statement %d args %v", a.Statement, a.Args),
		Actual:   fmt.Sprintf("%v", got),
	}
}

func assertLayer(r *Result, a Assertion) error {
	if a.Layer >= len(r.Layers) {
		return missingLayer(r, a)
	}
	l := r.Layers[a.Layer]

	var diffs []string
	if a.Name != "" && l.Name != a.Name {
		diffs = append(diffs, fmt.Sprintf("name %q, want %q", l.Name, a.Name))
	}
	if a.Source != "" && l.Source != a.Source {
		diffs = append(diffs, fmt.Sprintf("source %q, want %q", l.Source, a.Source))
	}
	if a.Columns != nil && !reflect.DeepEqual(nonNil(l.Columns), a.Columns) {
		diffs = append(diffs, fmt.Sprintf("columns %v, want %v", l.Columns, a.Columns))
	}
	if n := featureCount(l); a.Features != nil && n != *a.Features {
		diffs = append(diffs, fmt.Sprintf("%d features, want %d", n, *a.Features))
	}
	if a.Rows != nil && len(l.Rows) != *a.Rows {
		diffs = append(diffs, fmt.Sprintf("%d rows, want %d", len(l.Rows), *a.Rows))
	}
	if len(diffs) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("layer %d to match", a.Layer),
		Actual:   strings.Join(diffs, "; "),
	}
}

func assertFeatureProperties(r *Result, a Assertion) error {
	if a.Layer >= len(r.Layers) {
		return missingLayer(r, a)
	}
	l := r.Layers[a.Layer]
	if a.Feature >= featureCount(l) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("layer %d to have feature %d", a.Layer, a.Feature),
			Actual:   fmt.Sprintf("%d features", featureCount(l)),
		}
	}

	props := l.GeoJSON.Features[a.Feature].Properties
	for _, key := range sortedKeys(a.Properties) {
		got, ok := props[key]
		if !ok {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("property %q", key),
				Actual:   fmt.Sprintf("missing; properties are %v", map[string]any(props)),
			}
		}
		if !matchValue(got, a.Properties[key]) {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("property %q = %v", key, a.Properties[key]),
				Actual:   fmt.Sprintf("%v", got),
			}
		}
	}
	return nil
}

func assertCompileError(r *Result, a Assertion) error {
	if r.CompileError == nil {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("compile error on %q containing %q", a.Field, a.Text),
			Actual:   fmt.Sprintf("compiled to %d statements", len(r.Statements)),
		}
	}
	if a.Field != "" && r.CompileError.Field != a.Field {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("error on field %q", a.Field),
			Actual:   fmt.Sprintf("field %q: %s", r.CompileError.Field, r.CompileError.Message),
		}
	}
	if !strings.Contains(r.CompileError.Message, a.Text) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("error containing %q", a.Text),
			Actual:   r.CompileError.Message,
		}
	}
	return nil
}

func assertExecutionError(r *Result, a Assertion) error {
	if r.ExecutionError == "" || !strings.Contains(r.ExecutionError, a.Text) {
		actual := r.ExecutionError
		if actual == "" {
			actual = "no execution error"
		}
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("execution error containing %q", a.Text),
			Actual:   actual,
		}
	}
	return nil
}

func missingStatement(r *Result, a Assertion) error {
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("statement %d", a.Statement),
		Actual:   fmt.Sprintf("%d statements", len(r.Statements)),
	}
}

func missingLayer(r *Result, a Assertion) error {
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("layer %d", a.Layer),
		Actual:   fmt.Sprintf("%d layers", len(r.Layers)),
	}
}

func featureCount(l layers.Layer) int {
	if l.GeoJSON == nil {
		return 0
	}
	return len(l.GeoJSON.Features)
}

func displaySQL(r *Result) []string {
	out := make([]string, len(r.Statements))
	for i, st := range r.Statements {
		out[i] = st.SQL
	}
	return out
}

// matchValue compares values by their JSON form, so YAML ints match the
// int64 and float64 values produced by compilation and conversion.
func matchValue(got, want any) bool {
	g, err := jsonForm(got)
	if err != nil {
		return false
	}
	w, err := jsonForm(want)
	if err != nil {
		return false
	}
	return reflect.DeepEqual(g, w)
}

func jsonForm(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
