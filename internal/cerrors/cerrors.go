// Package cerrors classifies failures of a chaos cycle so the engine
// can decide between retrying, re-prompting, and aborting.
package cerrors

import (
	"errors"
	"fmt"
)

// Kind labels a failure class.
type Kind string

const (
	// TransientInfra covers cluster and provider hiccups worth retrying
	// with backoff (API timeouts, rate limits, connection resets).
	TransientInfra Kind = "transient_infra"

	// ValidationFail means a generated artifact ran but did not do what
	// was asked (probe crashed, dry-run rejected). Re-prompt with the
	// failure in history.
	ValidationFail Kind = "validation_fail"

	// SchemaFail means a response or manifest could not even be decoded.
	SchemaFail Kind = "schema_fail"

	// BudgetExceeded means a retry cap was exhausted.
	BudgetExceeded Kind = "budget_exceeded"

	// WorkflowDeadline means the chaos workflow ended without running
	// every planned task.
	WorkflowDeadline Kind = "workflow_deadline"

	// DeployFail means the reconfigured manifests could not be deployed.
	DeployFail Kind = "deploy_fail"

	// UserCancel means the surrounding context was cancelled.
	UserCancel Kind = "user_cancel"

	// Internal is a programming error, never retried.
	Internal Kind = "internal"
)

// Error carries a Kind alongside the wrapped cause.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with the given kind. A nil err yields a bare kinded error.
func New(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// Newf builds a kinded error from a format string. The %w verb works.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf reports the kind of err, or Internal when err carries none.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return Internal
}

// Is reports whether err carries the given kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Kind == kind
}

// Retryable reports whether the engine should retry the operation that
// produced err rather than give up.
func Retryable(err error) bool {
	switch KindOf(err) {
	case TransientInfra, ValidationFail, SchemaFail:
		return true
	}
	return false
}
