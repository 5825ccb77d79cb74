package harness

import (
	"github.com/roach88/geoff/internal/layers"
	"github.com/roach88/geoff/internal/querysql"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	Pass bool `json:"pass"`

	// Statements are the compiled statements; empty when compilation failed.
	Statements []querysql.Statement `json:"statements"`

	// Layers are the converted layers; empty when compilation or execution
	// failed.
	Layers []layers.Layer `json:"layers"`

	// CompileError is set when the plan did not compile.
	CompileError *Failure `json:"compile_error,omitempty"`

	// ExecutionError is set when a statement's canned result was an error.
	ExecutionError string `json:"execution_error,omitempty"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// Failure is a structural plan error with the path of the offending field.
type Failure struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:       true,
		Statements: []querysql.Statement{},
		Layers:     []layers.Layer{},
		Errors:     []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
