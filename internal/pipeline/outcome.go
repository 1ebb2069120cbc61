package pipeline

import (
	"errors"
	"fmt"

	"github.com/adrian-goe/gladvent/internal/crash"
	"github.com/adrian-goe/gladvent/internal/task"
)

// PartStatus is the tag of a PartOutcome.
type PartStatus int

const (
	Succeeded PartStatus = iota
	Undefined
	Failed
)

func (s PartStatus) String() string {
	switch s {
	case Succeeded:
		return "succeeded"
	case Undefined:
		return "undefined"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// PartOutcome is the result of one solve routine.
type PartOutcome struct {
	Status     PartStatus
	Value      any              // set when Succeeded
	Diagnostic crash.Diagnostic // set when Failed
}

// Success builds a Succeeded outcome.
func Success(v any) PartOutcome { return PartOutcome{Status: Succeeded, Value: v} }

// NotDefined builds an Undefined outcome.
func NotDefined() PartOutcome { return PartOutcome{Status: Undefined} }

// Failure builds a Failed outcome.
func Failure(d crash.Diagnostic) PartOutcome { return PartOutcome{Status: Failed, Diagnostic: d} }

// Outcome is the result of running one task. Err is nil when both parts were
// attempted (Completed); otherwise the task was Aborted before any part ran
// and Pt1/Pt2 are meaningless.
type Outcome struct {
	ID  task.ID
	Pt1 PartOutcome
	Pt2 PartOutcome
	Err *RunError
}

// Completed reports whether the task got as far as running its parts.
func (o Outcome) Completed() bool { return o.Err == nil }

// Aborted builds an aborted outcome.
func Aborted(id task.ID, err *RunError) Outcome { return Outcome{ID: id, Err: err} }

// RunErrorKind classifies why a task was aborted.
type RunErrorKind int

const (
	ResolveFailed RunErrorKind = iota
	Unregistered
	ReadInputFailed
	ParseFailed
	TimedOut
	Other
)

func (k RunErrorKind) String() string {
	switch k {
	case ResolveFailed:
		return "resolve_failed"
	case Unregistered:
		return "unregistered"
	case ReadInputFailed:
		return "read_input_failed"
	case ParseFailed:
		return "parse_failed"
	case TimedOut:
		return "timed_out"
	default:
		return "other"
	}
}

// RunError is a task-level failure: nothing past the failing stage ran.
type RunError struct {
	Kind RunErrorKind
	ID   task.ID
	// Path is the input file for ReadInputFailed.
	Path string
	// Diagnostic is the decoded parse crash for ParseFailed.
	Diagnostic *crash.Diagnostic
	Err        error
}

func (e *RunError) Error() string {
	summary := e.summary()
	switch {
	case e.Err == nil:
		return summary
	case summary == "":
		return e.Err.Error()
	default:
		return summary + ": " + e.Err.Error()
	}
}

func (e *RunError) Unwrap() error { return e.Err }

func (e *RunError) summary() string {
	switch e.Kind {
	case ResolveFailed:
		return "failed to resolve task functions"
	case Unregistered:
		if e.Err == nil {
			return e.ID.Key() + " is not registered"
		}
	case ReadInputFailed:
		if e.Err == nil {
			return "failed to read input file " + e.Path
		}
	case ParseFailed:
		return "failed to parse input"
	case TimedOut:
		if e.Err == nil {
			return "timed out"
		}
	}
	return ""
}

// diagnosticError carries a decoded crash as the innermost layer of a
// RunError.
type diagnosticError struct {
	d crash.Diagnostic
}

func (e diagnosticError) Error() string { return e.d.String() }

func newParseFailed(id task.ID, d crash.Diagnostic) *RunError {
	return &RunError{Kind: ParseFailed, ID: id, Diagnostic: &d, Err: diagnosticError{d}}
}

// NewTimedOut is the placeholder for a task abandoned at the batch deadline.
func NewTimedOut(id task.ID, after fmt.Stringer) *RunError {
	return &RunError{Kind: TimedOut, ID: id, Err: fmt.Errorf("timed out after %s", after)}
}

// NewOther wraps an unexpected failure.
func NewOther(id task.ID, reason string) *RunError {
	return &RunError{Kind: Other, ID: id, Err: errors.New(reason)}
}
