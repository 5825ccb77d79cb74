package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/geoff/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // rewrite golden files from the current output
	Filter string // glob matched against scenario file names
}

// ScenarioResult is the outcome of one scenario file.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult summarizes a test run.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenario.yaml|dir>",
		Short: "Run plan scenarios",
		Long: `Run plan scenarios offline.

Each scenario compiles a plan, feeds canned result sets to its statements
and checks assertions on the SQL and the resulting layers. When a golden
file exists at <dir>/golden/<name>.golden the snapshot must match it too.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  geoff test ./scenarios
  geoff test ./scenarios --filter "fire_*"
  geoff test ./scenarios --update
  geoff test ./scenarios/fire_stations.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, target string, cmd *cobra.Command) error {
	files, err := scenarioFiles(target, opts.Filter)
	if err != nil {
		return err
	}

	r := scenarioRunner{
		update: opts.Update,
		w:      cmd.OutOrStdout(),
		text:   opts.Format != "json",
	}
	result := TestResult{Scenarios: []ScenarioResult{}, Total: len(files)}

	if len(files) == 0 && r.text {
		fmt.Fprintln(r.w, "No scenarios found.")
		return nil
	}

	for _, file := range files {
		res := r.run(file)
		result.Scenarios = append(result.Scenarios, res)
		if res.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if r.text {
		return writeTestSummary(r.w, result)
	}
	return writeTestJSON(r.w, result)
}

// scenarioFiles resolves target to the scenario files to run. A directory
// is walked for .yaml and .yml files, skipping golden/ directories; a file
// is run as given regardless of the filter.
func scenarioFiles(target, filter string) ([]string, error) {
	info, err := os.Stat(target)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("scenario path not found: %s", target))
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to stat scenario path", err)
	}
	if !info.IsDir() {
		return []string{target}, nil
	}

	var files []string
	err = filepath.WalkDir(target, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != target && d.Name() == "golden" {
				return filepath.SkipDir
			}
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			ok, err := filepath.Match(filter, strings.TrimSuffix(d.Name(), ext))
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !ok {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}
	return files, nil
}

// scenarioRunner runs scenario files, printing a line per scenario in text
// mode.
type scenarioRunner struct {
	update bool
	w      io.Writer
	text   bool
}

func (r scenarioRunner) run(file string) ScenarioResult {
	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return r.report(filepath.Base(file), "", []string{fmt.Sprintf("failed to load scenario: %v", err)})
	}

	result, err := harness.Run(scenario)
	if err != nil {
		return r.report(scenario.Name, "", []string{fmt.Sprintf("execution failed: %v", err)})
	}

	snapshot := harness.Snapshot(scenario.Name, result)
	golden := goldenFilePath(file)
	errs := result.Errors

	if r.update {
		if err := writeGoldenFile(golden, snapshot); err != nil {
			errs = append(errs, fmt.Sprintf("failed to update golden file: %v", err))
		}
		return r.report(scenario.Name, " (golden updated)", errs)
	}

	want, err := os.ReadFile(golden)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// assertions only
	case err != nil:
		errs = append(errs, fmt.Sprintf("failed to read golden file: %v", err))
	case !bytes.Equal(want, snapshot):
		errs = append(errs, "snapshot does not match golden file (run with --update to regenerate)")
	}
	return r.report(scenario.Name, "", errs)
}

func (r scenarioRunner) report(name, note string, errs []string) ScenarioResult {
	res := ScenarioResult{Name: name, Pass: len(errs) == 0, Errors: errs}
	if !r.text {
		return res
	}
	if res.Pass {
		fmt.Fprintf(r.w, "✓ %s%s\n", name, note)
		return res
	}
	fmt.Fprintf(r.w, "✗ %s\n", name)
	for _, e := range errs {
		fmt.Fprintf(r.w, "  %s\n", e)
	}
	return res
}

// goldenFilePath maps dir/name.yaml to dir/golden/name.golden.
func goldenFilePath(scenarioFile string) string {
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(scenarioFile), "golden", name+".golden")
}

func writeGoldenFile(path string, snapshot []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, snapshot, 0o644)
}

func failedScenarios(result TestResult) error {
	if result.Failed == 0 {
		return nil
	}
	return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
}

func writeTestJSON(w io.Writer, result TestResult) error {
	resp := CLIResponse{Status: "ok", Data: result}
	failed := failedScenarios(result)
	if failed != nil {
		resp.Status = "error"
		resp.Error = &CLIError{Code: ErrCodeTestFailed, Message: fmt.Sprintf("%d scenario(s) failed", result.Failed)}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return err
	}
	return failed
}

func writeTestSummary(w io.Writer, result TestResult) error {
	fmt.Fprintf(w, "\nTest Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	if err := failedScenarios(result); err != nil {
		return err
	}
	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
