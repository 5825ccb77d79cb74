package service

import (
	"errors"
	"fmt"
)

// Code categorizes service errors.
type Code string

const (
	// CodePlanInvalid means a plan failed to parse or compile.
	CodePlanInvalid Code = "E_PLAN_INVALID"

	// CodeGeneration means the model output held no usable plan.
	CodeGeneration Code = "E_GENERATION"

	// CodeExecution means the database rejected a statement.
	CodeExecution Code = "E_EXECUTION"

	// CodeExhausted means every attempt at a question failed.
	CodeExhausted Code = "E_EXHAUSTED"

	// CodeUnavailable means a collaborator (model or database) could not be
	// reached.
	CodeUnavailable Code = "E_UNAVAILABLE"
)

// Error is a categorized service failure.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code Code, err error) *Error {
	return &Error{Code: code, Message: err.Error(), Err: err}
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsPlanError reports whether err is an invalid-plan failure.
func IsPlanError(err error) bool {
	return CodeOf(err) == CodePlanInvalid
}

// IsUnavailable reports whether err is a collaborator outage.
func IsUnavailable(err error) bool {
	return CodeOf(err) == CodeUnavailable
}
