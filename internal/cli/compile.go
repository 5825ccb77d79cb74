package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/roach88/geoff/internal/plan"
	"github.com/roach88/geoff/internal/querysql"
	"github.com/roach88/geoff/internal/service"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	ExecForm bool // print $n queries and arguments instead of display SQL
	Lax      bool // skip the catalog allow-list
}

// CompilationResult holds the statements a plan compiled to.
type CompilationResult struct {
	Statements []querysql.Statement `json:"statements"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <plan.json|->",
		Short: "Compile a plan to SQL",
		Long: `Compile a JSON query plan to SQL statements without running them.

Each statement is printed with the layer it feeds. By default the display
SQL is shown, with literals inlined; --exec-form shows the parameterized
query and its arguments as they are sent to PostGIS.

Use "-" to read the plan from stdin.

Examples:
  geoff compile plan.json
  geoff compile --exec-form plan.json
  cat plan.json | geoff compile - --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.ExecForm, "exec-form", false, "print parameterized queries and arguments")
	cmd.Flags().BoolVar(&opts.Lax, "lax", false, "do not check tables and columns against the catalog")

	return cmd
}

func runCompile(opts *CompileOptions, source string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	raw, err := readPlan(opts.fs(), source, cmd.InOrStdin())
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeRead, err.Error(), nil)
	}
	formatter.VerboseLog("Read %d byte plan from %s", len(raw), source)

	compiler, err := opts.compiler(opts.Lax)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, err.Error(), nil)
	}

	stmts, err := compilePlan(compiler, raw)
	if err != nil {
		return outputPlanError(formatter, err)
	}

	if formatter.Format == "json" {
		return formatter.Success(CompilationResult{Statements: stmts})
	}
	writeStatements(formatter.Writer, stmts, opts.ExecForm)
	return nil
}

// compiler builds a compiler over the configured catalog.
func (o *RootOptions) compiler(lax bool) (*querysql.Compiler, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	if lax || !cfg.Query.Strict {
		return querysql.NewCompiler(), nil
	}
	cat, err := o.fileCatalog(cfg)
	if err != nil {
		return nil, err
	}
	return querysql.NewCompiler(querysql.WithAllowlist(cat)), nil
}

// compilePlan parses and compiles raw plan JSON.
func compilePlan(c *querysql.Compiler, raw []byte) ([]querysql.Statement, error) {
	p, err := plan.Parse(raw)
	if err != nil {
		return nil, err
	}
	return c.Compile(p)
}

// readPlan reads a plan file, or stdin when source is "-".
func readPlan(fs afero.Fs, source string, stdin io.Reader) ([]byte, error) {
	if source == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return data, nil
	}
	data, err := afero.ReadFile(fs, source)
	if err != nil {
		return nil, fmt.Errorf("reading plan file: %w", err)
	}
	return data, nil
}

// writeStatements prints statements one block per statement.
func writeStatements(w io.Writer, stmts []querysql.Statement, execForm bool) {
	for i, st := range stmts {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "-- [%d] layer: %s\n", i, st.Layer)
		if !execForm {
			fmt.Fprintln(w, st.SQL)
			continue
		}
		fmt.Fprintln(w, st.Query)
		for n, arg := range st.Args {
			fmt.Fprintf(w, "-- $%d = %#v\n", n+1, arg)
		}
	}
}

// planFailure is the details payload of a plan error.
type planFailure struct {
	Field string `json:"field,omitempty"`
}

// outputPlanError reports a parse or compile failure. Plan errors are
// failures (exit 1); anything else is a command error.
func outputPlanError(formatter *OutputFormatter, err error) error {
	var pe *plan.PlanError
	if errors.As(err, &pe) {
		return formatter.Fail(ExitFailure, string(service.CodePlanInvalid), err.Error(), planFailure{Field: pe.Field})
	}
	var ce *querysql.CompileError
	if errors.As(err, &ce) {
		return formatter.Fail(ExitFailure, string(service.CodePlanInvalid), err.Error(), planFailure{Field: ce.Field})
	}
	return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
}
