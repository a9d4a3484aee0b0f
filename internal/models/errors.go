package models

import (
	"errors"
	"fmt"
)

// The error taxonomy drives control flow across the engine:
//
//   - ConfigurationError: invalid definition. Returned synchronously to the
//     caller, never recorded as a run, never retried.
//   - NotFoundError: missing task, execution, or executor. Synchronous.
//   - ExecutionError: a run failed. Recorded on the execution row and
//     consumed by the retry loop, not propagated to the trigger caller.
//   - TerminationError: a run was cancelled. Forces TERMINATED, no retry.

// ConfigurationError reports an invalid task or workflow definition.
type ConfigurationError struct {
	msg string
}

func NewConfigurationError(format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{msg: fmt.Sprintf(format, args...)}
}

func (e *ConfigurationError) Error() string { return e.msg }

func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// NotFoundError reports a reference to something that does not exist.
type NotFoundError struct {
	Resource string
	Key      string
}

func NewNotFoundError(resource string, key interface{}) *NotFoundError {
	return &NotFoundError{Resource: resource, Key: fmt.Sprint(key)}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.Key)
}

func IsNotFoundError(err error) bool {
	var ne *NotFoundError
	return errors.As(err, &ne)
}

// ExecutionError reports a failed run. The cause, when present, is
// reachable through errors.Unwrap.
type ExecutionError struct {
	msg   string
	cause error
}

func NewExecutionError(format string, args ...interface{}) *ExecutionError {
	return &ExecutionError{msg: fmt.Sprintf(format, args...)}
}

// WrapExecutionError classifies an arbitrary error as an execution failure
// while preserving it as the cause.
func WrapExecutionError(err error, context string) *ExecutionError {
	if context == "" {
		return &ExecutionError{msg: err.Error(), cause: err}
	}
	return &ExecutionError{msg: fmt.Sprintf("%s: %v", context, err), cause: err}
}

func (e *ExecutionError) Error() string { return e.msg }
func (e *ExecutionError) Unwrap() error { return e.cause }

func IsExecutionError(err error) bool {
	var ee *ExecutionError
	return errors.As(err, &ee)
}

// TerminationError reports a run that was cancelled from outside.
type TerminationError struct {
	msg string
}

func NewTerminationError(format string, args ...interface{}) *TerminationError {
	return &TerminationError{msg: fmt.Sprintf(format, args...)}
}

func (e *TerminationError) Error() string { return e.msg }

func IsTerminationError(err error) bool {
	var te *TerminationError
	return errors.As(err, &te)
}
