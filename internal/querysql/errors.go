package querysql

import (
	"errors"
	"fmt"
)

// CompileError is a plan defect found while generating SQL.
// Field is the JSON path of the offending value.
type CompileError struct {
	Field   string
	Message string
}

func (e *CompileError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("compile: %s", e.Message)
	}
	return fmt.Sprintf("compile: %s: %s", e.Field, e.Message)
}

// IsCompileError reports whether err (or any error it wraps) is a
// *CompileError.
func IsCompileError(err error) bool {
	var ce *CompileError
	return errors.As(err, &ce)
}

func errorf(field, format string, args ...any) *CompileError {
	return &CompileError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func join(parent, child string) string {
	if parent == "" {
		return child
	}
	return parent + "." + child
}

func index(parent string, i int) string {
	return fmt.Sprintf("%s[%d]", parent, i)
}
