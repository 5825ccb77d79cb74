package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/geoff/internal/plan"
	"github.com/roach88/geoff/internal/queryir"
	"github.com/roach88/geoff/internal/querysql"
)

// ValidationError is one problem found in a plan file.
type ValidationError struct {
	Stage   string `json:"stage"` // "read", "schema", "parse" or "compile"
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// FileValidation is the outcome for one plan file.
type FileValidation struct {
	File       string           `json:"file"`
	Valid      bool             `json:"valid"`
	Statements int              `json:"statements"`
	Error      *ValidationError `json:"error,omitempty"`

	// Warnings flag layer queries that compile but will render poorly.
	Warnings []string `json:"warnings,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid bool             `json:"valid"`
	Files []FileValidation `json:"files"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var lax bool

	cmd := &cobra.Command{
		Use:   "validate <plan.json>...",
		Short: "Check plans without running them",
		Long: `Check plan files against the plan schema and compile them.

Each file is checked in three stages: the structural schema, plan parsing
and compilation against the catalog. The first failing stage is reported
with the path of the offending field. Layer queries that compile but are
likely to render poorly on a map are listed as warnings.

Exit codes:
  0 - All plans valid
  1 - One or more plans invalid
  2 - Command error (bad config, etc.)`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, lax, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&lax, "lax", false, "do not check tables and columns against the catalog")

	return cmd
}

func runValidate(opts *RootOptions, lax bool, files []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	compiler, err := opts.compiler(lax)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, err.Error(), nil)
	}

	result := ValidationResult{Valid: true, Files: make([]FileValidation, 0, len(files))}
	for _, file := range files {
		formatter.VerboseLog("Validating %s", file)
		fv := validateFile(opts, compiler, file)
		if !fv.Valid {
			result.Valid = false
		}
		result.Files = append(result.Files, fv)
	}

	if formatter.Format == "json" {
		if result.Valid {
			return formatter.Success(result)
		}
		_ = formatter.Error(ErrCodeValidation, fmt.Sprintf("%d of %d plan(s) invalid", invalidCount(result), len(files)), result)
		return NewExitError(ExitFailure, "validation failed")
	}

	return outputValidateText(formatter, result)
}

// validateFile runs the schema, parse and compile stages on one file.
func validateFile(opts *RootOptions, compiler *querysql.Compiler, file string) FileValidation {
	fv := FileValidation{File: file}

	raw, err := readPlan(opts.fs(), file, nil)
	if err != nil {
		fv.Error = &ValidationError{Stage: "read", Message: err.Error()}
		return fv
	}
	if err := plan.CheckSchema(raw); err != nil {
		fv.Error = validationError("schema", err)
		return fv
	}
	p, err := plan.Parse(raw)
	if err != nil {
		fv.Error = validationError("parse", err)
		return fv
	}
	stmts, err := compiler.Compile(p)
	if err != nil {
		fv.Error = validationError("compile", err)
		return fv
	}

	fv.Valid = true
	fv.Statements = len(stmts)
	fv.Warnings = layerWarnings(p)
	return fv
}

// layerWarnings runs the advisory query checks over a layers-form plan.
func layerWarnings(p *plan.Plan) []string {
	var out []string
	for i, l := range p.Layers {
		res := queryir.Validate(l.Query)
		for _, w := range res.Warnings {
			out = append(out, fmt.Sprintf("layers[%d].%s", i, w))
		}
	}
	return out
}

func validationError(stage string, err error) *ValidationError {
	var pe *plan.PlanError
	if errors.As(err, &pe) {
		return &ValidationError{Stage: stage, Field: pe.Field, Message: pe.Message}
	}
	var ce *querysql.CompileError
	if errors.As(err, &ce) {
		return &ValidationError{Stage: stage, Field: ce.Field, Message: ce.Message}
	}
	return &ValidationError{Stage: stage, Message: err.Error()}
}

func invalidCount(r ValidationResult) int {
	n := 0
	for _, f := range r.Files {
		if !f.Valid {
			n++
		}
	}
	return n
}

// outputValidateText outputs the validation result as text.
func outputValidateText(formatter *OutputFormatter, result ValidationResult) error {
	w := formatter.Writer
	for _, f := range result.Files {
		if f.Valid {
			fmt.Fprintf(w, "✓ %s (%d statement(s))\n", f.File, f.Statements)
			for _, warning := range f.Warnings {
				fmt.Fprintf(w, "  warning: %s\n", warning)
			}
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", f.File)
		if f.Error.Field != "" {
			fmt.Fprintf(w, "  %s: %s: %s\n", f.Error.Stage, f.Error.Field, f.Error.Message)
		} else {
			fmt.Fprintf(w, "  %s: %s\n", f.Error.Stage, f.Error.Message)
		}
	}

	if !result.Valid {
		fmt.Fprintf(w, "\n%d of %d plan(s) invalid\n", invalidCount(result), len(result.Files))
		return NewExitError(ExitFailure, "validation failed")
	}
	fmt.Fprintln(w, "\n✓ All plans valid")
	return nil
}
