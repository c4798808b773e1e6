// Package aerrors declares the error-kind taxonomy shared by the
// registry, CRUD executor, and pipeline (spec §7).
package aerrors

import (
	"errors"
	"fmt"
)

// Sentinel kinds. Use errors.Is against these, or errors.As against the
// detail-carrying structs below when you need the extra fields.
var (
	ErrUnknownRef      = errors.New("unknown ref")
	ErrUnsafeDelete     = errors.New("unsafe delete: empty filters on user-owned table")
	ErrInvalidFilter    = errors.New("invalid filter")
	ErrSchemaMismatch   = errors.New("llm output failed structured validation")
	ErrToolCapExceeded  = errors.New("tool call cap exceeded for step")
	ErrBlockedStep      = errors.New("step blocked")
	ErrActionMismatch   = errors.New("requested action does not match executed actions")
	ErrAdapterFailure   = errors.New("database adapter failure")
	ErrCancelled        = errors.New("turn cancelled")
)

// UnknownRefError carries the offending ref string.
type UnknownRefError struct {
	Ref string
}

func (e *UnknownRefError) Error() string { return fmt.Sprintf("unknown ref %q", e.Ref) }
func (e *UnknownRefError) Unwrap() error { return ErrUnknownRef }

// UnsafeDeleteError carries the table the delete was attempted against.
type UnsafeDeleteError struct {
	Table string
}

func (e *UnsafeDeleteError) Error() string {
	return fmt.Sprintf("refusing delete on %q: filters resolved empty", e.Table)
}
func (e *UnsafeDeleteError) Unwrap() error { return ErrUnsafeDelete }

// InvalidFilterError carries the operator and/or field that could not be
// applied.
type InvalidFilterError struct {
	Field string
	Op    string
	Msg   string
}

func (e *InvalidFilterError) Error() string {
	return fmt.Sprintf("invalid filter %s %s: %s", e.Field, e.Op, e.Msg)
}
func (e *InvalidFilterError) Unwrap() error { return ErrInvalidFilter }

// SchemaMismatchError carries the validation failure after retries were
// exhausted.
type SchemaMismatchError struct {
	Node    string
	Retries int
	Cause   error
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("%s: structured output invalid after %d retries: %v", e.Node, e.Retries, e.Cause)
}
func (e *SchemaMismatchError) Unwrap() error { return ErrSchemaMismatch }

// ToolCapExceededError is recoverable: Act maps it into a structured step
// result and forces step completion rather than failing the turn.
type ToolCapExceededError struct {
	StepIndex int
	Calls     int
}

func (e *ToolCapExceededError) Error() string {
	return fmt.Sprintf("step %d exceeded %d tool calls", e.StepIndex, e.Calls)
}
func (e *ToolCapExceededError) Unwrap() error { return ErrToolCapExceeded }

// BlockedStepError carries the domain-extensible reason code the LLM
// emitted for a `blocked` ActDecision.
type BlockedStepError struct {
	ReasonCode    string
	Details       string
	SuggestedNext string
}

func (e *BlockedStepError) Error() string {
	return fmt.Sprintf("step blocked: %s: %s", e.ReasonCode, e.Details)
}
func (e *BlockedStepError) Unwrap() error { return ErrBlockedStep }

// ActionMismatchError records that the user requested one verb (e.g.
// write) but the executed plan only performed another (e.g. read).
type ActionMismatchError struct {
	Requested string
	Executed  []string
}

func (e *ActionMismatchError) Error() string {
	return fmt.Sprintf("user requested %q, only executed %v", e.Requested, e.Executed)
}
func (e *ActionMismatchError) Unwrap() error { return ErrActionMismatch }

// AdapterFailureError wraps whatever the underlying database/sql driver
// (or fake adapter) returned.
type AdapterFailureError struct {
	Op    string
	Table string
	Cause error
}

func (e *AdapterFailureError) Error() string {
	return fmt.Sprintf("adapter %s on %q failed: %v", e.Op, e.Table, e.Cause)
}
func (e *AdapterFailureError) Unwrap() error { return ErrAdapterFailure }

// IsRecoverable reports whether the node encountering err should map it
// into a structured result and continue (true) or abort the turn (false).
// Only ToolCapExceeded and BlockedStep are recoverable per spec §7.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrToolCapExceeded) || errors.Is(err, ErrBlockedStep)
}
