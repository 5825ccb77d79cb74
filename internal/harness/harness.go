package harness

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/afero"

	"github.com/roach88/geoff/internal/catalog"
	"github.com/roach88/geoff/internal/plan"
	"github.com/roach88/geoff/internal/querysql"
	"github.com/roach88/geoff/internal/service"
	"github.com/roach88/geoff/internal/testutil"
)

// Run executes a scenario and returns the result.
//
// The plan goes through the same compile, execute and convert path as a
// served request, with the database replaced by the scenario's canned
// results. An error is returned only when the scenario itself cannot be
// set up; plan and assertion failures are reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	return RunFS(afero.NewOsFs(), scenario)
}

// RunFS is Run reading the scenario's catalog file from fs.
func RunFS(fs afero.Fs, scenario *Scenario) (*Result, error) {
	cat := catalog.Default()
	if scenario.Catalog != "" {
		loaded, err := catalog.LoadFile(fs, scenario.Catalog)
		if err != nil {
			return nil, fmt.Errorf("failed to load catalog: %w", err)
		}
		cat = loaded
	}

	exec := testutil.NewFakeExecutor()
	svc, err := service.New(cat, exec, service.WithStrict(scenario.IsStrict()))
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}

	ctx := context.Background()
	result := NewResult()
	raw := []byte(scenario.Plan)

	stmts, err := svc.Compile(raw)
	if err != nil {
		result.CompileError = failureOf(err)
		if !scenario.expectsFailure(AssertCompileError) {
			result.AddError(fmt.Sprintf("compile failed: %s", result.CompileError.Message))
		}
		evaluate(scenario, result)
		return result, nil
	}
	result.Statements = stmts

	if len(scenario.Results) > len(stmts) {
		result.AddError(fmt.Sprintf("scenario has %d results for %d statements", len(scenario.Results), len(stmts)))
	}
	for i, st := range stmts {
		if i >= len(scenario.Results) {
			exec.On(st.Query, nil)
			continue
		}
		canned := scenario.Results[i]
		if canned.Error != "" {
			exec.Fail(st.Query, errors.New(canned.Error))
			continue
		}
		exec.On(st.Query, canned.Columns, canned.Rows...)
	}

	resp, err := svc.RunPlan(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to run plan: %w", err)
	}
	if resp.Failed() {
		result.ExecutionError = resp.Error
		if !scenario.expectsFailure(AssertExecutionError) {
			result.AddError(fmt.Sprintf("execution failed: %s", resp.Error))
		}
	} else {
		result.Layers = resp.Layers
	}

	evaluate(scenario, result)
	return result, nil
}

// failureOf extracts the field path and message of a plan or compile error.
func failureOf(err error) *Failure {
	var pe *plan.PlanError
	if errors.As(err, &pe) {
		return &Failure{Field: pe.Field, Message: pe.Message}
	}
	var ce *querysql.CompileError
	if errors.As(err, &ce) {
		return &Failure{Field: ce.Field, Message: ce.Message}
	}
	return &Failure{Message: err.Error()}
}

func evaluate(scenario *Scenario, result *Result) {
	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
}
