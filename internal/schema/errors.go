package schema

import (
	"fmt"
	"strings"
)

// ViolationError reports a candidate that is not valid JSON or does not
// satisfy the contract. It is recoverable: callers re-draft while the
// attempt budget lasts.
type ViolationError struct {
	Contract string
	Errors   []FieldError
	Cause    error
}

// FieldError is a single validation failure at a specific field path.
type FieldError struct {
	Field   string
	Message string
}

func (e *ViolationError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("candidate violates %s contract", e.Contract))
	if e.Cause != nil {
		sb.WriteString(fmt.Sprintf(": %v", e.Cause))
	}
	for i, fe := range e.Errors {
		sb.WriteString(fmt.Sprintf("\n  %d. %s: %s", i+1, fe.Field, fe.Message))
	}
	return sb.String()
}

func (e *ViolationError) Unwrap() error {
	return e.Cause
}

// CompileError reports a contract whose declared shape cannot be rendered
// into a JSON Schema document. This is a programming error, not a model
// output problem.
type CompileError struct {
	Contract string
	Message  string
	Cause    error
}

func (e *CompileError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to compile %s contract: %s: %v", e.Contract, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to compile %s contract: %s", e.Contract, e.Message)
}

func (e *CompileError) Unwrap() error {
	return e.Cause
}
