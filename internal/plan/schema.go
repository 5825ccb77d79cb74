package plan

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaCUE string

// schemaChecker holds the compiled #Plan definition. cue.Context is not safe
// for concurrent use, so checks are serialized.
type schemaChecker struct {
	mu   sync.Mutex
	ctx  *cue.Context
	plan cue.Value
	err  error
}

var (
	checker     *schemaChecker
	checkerOnce sync.Once
)

func loadChecker() *schemaChecker {
	checkerOnce.Do(func() {
		c := &schemaChecker{ctx: cuecontext.New()}
		schema := c.ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
		if err := schema.Err(); err != nil {
			c.err = fmt.Errorf("compile plan schema: %w", err)
		} else {
			c.plan = schema.LookupPath(cue.ParsePath("#Plan"))
		}
		checker = c
	})
	return checker
}

// CheckSchema validates raw plan JSON against the embedded CUE schema.
// The first violation is returned as a *PlanError whose Field is the
// dotted CUE path (list indices appear as path elements).
func CheckSchema(raw []byte) error {
	c := loadChecker()
	if c.err != nil {
		return c.err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	data := c.ctx.CompileBytes(raw, cue.Filename("plan.json"))
	if err := data.Err(); err != nil {
		return &PlanError{Message: fmt.Sprintf("malformed JSON: %v", err)}
	}

	v := c.plan.Unify(data)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err)
	}
	return nil
}

// formatCUEError converts the first CUE error into a PlanError.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &PlanError{Message: err.Error()}
	}

	first := errs[0]
	format, args := first.Msg()
	path := first.Path()
	for len(path) > 0 && strings.HasPrefix(path[0], "#") {
		path = path[1:]
	}
	return &PlanError{
		Field:   strings.Join(path, "."),
		Message: fmt.Sprintf(format, args...),
	}
}
