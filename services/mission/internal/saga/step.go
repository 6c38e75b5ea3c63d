// Package saga runs ordered, compensatable workflows. Steps share one mutable
// context value, are included lazily, retried up to a per-step limit and, when
// a mandatory step fails, the steps that already succeeded are compensated in
// reverse order.
package saga

import (
	"context"
	"fmt"
	"time"
)

// Step is one unit of work in a saga. C is the shared context type, normally a
// pointer so steps can record what they did for later steps and compensation.
type Step[C any] interface {
	Name() string
	// ShouldInclude is evaluated right before the step would run.
	ShouldInclude(sc C) bool
	Mandatory() bool
	MaxRetries() int
	RetryDelay() time.Duration
	Execute(ctx context.Context, sc C) StepResult
	// Compensate is only called after a successful Execute in the same run.
	Compensate(ctx context.Context, sc C) StepResult
}

// StepResult is the binary outcome of Execute or Compensate.
type StepResult struct {
	ok      bool
	message string
}

// Success returns a successful result.
func Success(message string) StepResult {
	return StepResult{ok: true, message: message}
}

// Successf formats a successful result.
func Successf(format string, args ...any) StepResult {
	return Success(fmt.Sprintf(format, args...))
}

// Failure returns a failed result carrying a human readable reason.
func Failure(message string) StepResult {
	return StepResult{ok: false, message: message}
}

// Failuref formats a failed result.
func Failuref(format string, args ...any) StepResult {
	return Failure(fmt.Sprintf(format, args...))
}

// OK reports whether the step succeeded.
func (r StepResult) OK() bool { return r.ok }

// Message returns the result message.
func (r StepResult) Message() string { return r.message }

// Base carries the static policy of a step. Concrete steps embed it and
// override ShouldInclude or Compensate when they need to.
type Base[C any] struct {
	StepName string
	Optional bool
	Retries  int
	Delay    time.Duration
}

// Name returns the step name.
func (b Base[C]) Name() string { return b.StepName }

// ShouldInclude includes the step unconditionally.
func (b Base[C]) ShouldInclude(C) bool { return true }

// Mandatory reports whether a terminal failure aborts the saga.
func (b Base[C]) Mandatory() bool { return !b.Optional }

// MaxRetries returns the number of retries after the first attempt.
func (b Base[C]) MaxRetries() int {
	if b.Retries < 0 {
		return 0
	}
	return b.Retries
}

// RetryDelay returns the fixed wait between attempts.
func (b Base[C]) RetryDelay() time.Duration { return b.Delay }

// Compensate does nothing and succeeds.
func (b Base[C]) Compensate(context.Context, C) StepResult {
	return Success("nothing to compensate")
}

// Result is the outcome of a saga run.
type Result[C any] struct {
	Success bool
	// Context is the shared context after the run, possibly partially mutated.
	Context C
	Message string
	// Completed lists the steps that succeeded, in execution order.
	Completed []string
	// FailedStep is the mandatory step that aborted the run, if any.
	FailedStep string
	// OptionalFailures lists optional steps that failed without aborting.
	OptionalFailures []string
	// CompensationFailures lists steps whose compensation failed.
	CompensationFailures []string
}
