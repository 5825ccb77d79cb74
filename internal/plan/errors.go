package plan

import (
	"errors"
	"fmt"
)

// PlanError is a structural defect in a plan.
// Field is the JSON path of the offending value, e.g.
// "groups[0].source_tables[1].filters[0].value".
type PlanError struct {
	Field   string
	Message string
}

func (e *PlanError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid plan: %s", e.Message)
	}
	return fmt.Sprintf("invalid plan: %s: %s", e.Field, e.Message)
}

// IsPlanError reports whether err (or any error it wraps) is a *PlanError.
func IsPlanError(err error) bool {
	var pe *PlanError
	return errors.As(err, &pe)
}

func errorf(field, format string, args ...any) *PlanError {
	return &PlanError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// join builds a child path: join("groups[0]", "source_tables") is
// "groups[0].source_tables".
func join(parent, child string) string {
	if parent == "" {
		return child
	}
	return parent + "." + child
}

func index(parent string, i int) string {
	return fmt.Sprintf("%s[%d]", parent, i)
}
