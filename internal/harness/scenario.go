package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines one plan test.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Catalog is an optional catalog YAML file. Relative paths resolve
	// against the scenario file's directory. Empty uses the embedded
	// default catalog.
	Catalog string `yaml:"catalog,omitempty"`

	// Strict enforces the catalog as an identifier allow-list.
	// Defaults to true when omitted.
	Strict *bool `yaml:"strict,omitempty"`

	// Plan is the plan JSON under test.
	Plan string `yaml:"plan"`

	// Results are the canned result sets, one per statement in order.
	Results []CannedResult `yaml:"results,omitempty"`

	// Assertions validate the statements and layers.
	Assertions []Assertion `yaml:"assertions"`
}

// CannedResult is what the database would return for one statement.
// Error, when set, makes the statement fail instead.
type CannedResult struct {
	Columns []string `yaml:"columns,omitempty"`
	Rows    [][]any  `yaml:"rows,omitempty"`
	Error   string   `yaml:"error,omitempty"`
}

// Assertion validates compiled statements or converted layers.
type Assertion struct {
	// Type selects the check; see the package documentation.
	Type string `yaml:"type"`

	// Statement indexes the compiled statements (sql_contains,
	// query_contains, args).
	Statement int `yaml:"statement,omitempty"`

	// Layer indexes the converted layers (layer, feature_properties).
	Layer int `yaml:"layer,omitempty"`

	// Feature indexes a layer's features (feature_properties).
	Feature int `yaml:"feature,omitempty"`

	// Count is the expected number of statements or layers.
	Count int `yaml:"count,omitempty"`

	// Text is the expected substring (sql_contains, query_contains,
	// compile_error, execution_error).
	Text string `yaml:"text,omitempty"`

	// Field is the expected error field path (compile_error).
	Field string `yaml:"field,omitempty"`

	// Args are the expected statement arguments (args).
	Args []any `yaml:"args,omitempty"`

	// Name, Source and Columns are the expected layer shape (layer).
	Name    string   `yaml:"name,omitempty"`
	Source  string   `yaml:"source,omitempty"`
	Columns []string `yaml:"columns,omitempty"`

	// Features and Rows are the expected layer sizes (layer). Nil skips
	// the check.
	Features *int `yaml:"features,omitempty"`
	Rows     *int `yaml:"rows,omitempty"`

	// Properties are expected feature properties, subset match
	// (feature_properties).
	Properties map[string]any `yaml:"properties,omitempty"`
}

// Assertion types.
const (
	AssertStatementCount = "statement_count"
	AssertSQLContains    = "sql_contains"
	AssertQueryContains  = "query_contains"
	AssertArgs           = "args"
	AssertLayerCount     = "layer_count"
	AssertLayer          = "layer"
	AssertFeatureProps   = "feature_properties"
	AssertCompileError   = "compile_error"
	AssertExecutionError = "execution_error"
)

// IsStrict reports whether the scenario compiles against the allow-list.
func (s *Scenario) IsStrict() bool {
	return s.Strict == nil || *s.Strict
}

// expectsFailure reports whether the scenario asserts on an error of the
// given type.
func (s *Scenario) expectsFailure(kind string) bool {
	for _, a := range s.Assertions {
		if a.Type == kind {
			return true
		}
	}
	return false
}

// LoadScenario reads and validates a scenario file. A relative catalog path
// is resolved against the scenario file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	if scenario.Catalog != "" && !filepath.IsAbs(scenario.Catalog) {
		scenario.Catalog = filepath.Join(filepath.Dir(path), scenario.Catalog)
	}
	return scenario, nil
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Plan == "" {
		return fmt.Errorf("plan is required")
	}
	if !json.Valid([]byte(s.Plan)) {
		return fmt.Errorf("plan is not valid JSON")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, r := range s.Results {
		if r.Error != "" && (len(r.Columns) > 0 || len(r.Rows) > 0) {
			return fmt.Errorf("results[%d]: error excludes columns and rows", i)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}

	if s.expectsFailure(AssertCompileError) && s.expectsFailure(AssertExecutionError) {
		return fmt.Errorf("compile_error and execution_error cannot both be asserted")
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Statement < 0 || a.Layer < 0 || a.Feature < 0 || a.Count < 0 {
		return fmt.Errorf("assertions[%d]: indexes and counts must be non-negative", index)
	}

	switch a.Type {
	case AssertStatementCount, AssertLayerCount:
	case AssertSQLContains, AssertQueryContains, AssertExecutionError:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for %s", index, a.Type)
		}
	case AssertCompileError:
		if a.Text == "" && a.Field == "" {
			return fmt.Errorf("assertions[%d]: text or field is required for compile_error", index)
		}
	case AssertArgs:
		if a.Args == nil {
			return fmt.Errorf("assertions[%d]: args is required for args (use [] for none)", index)
		}
	case AssertLayer:
		if a.Name == "" && a.Source == "" && a.Columns == nil && a.Features == nil && a.Rows == nil {
			return fmt.Errorf("assertions[%d]: layer needs at least one expectation", index)
		}
	case AssertFeatureProps:
		if len(a.Properties) == 0 {
			return fmt.Errorf("assertions[%d]: properties is required for feature_properties", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
