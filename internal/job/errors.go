package job

import (
	"errors"
	"fmt"
)

var (
	ErrCreationFailed   = errors.New("job creation failed")
	ErrSubmissionFailed = errors.New("job submission failed")
	ErrExecutionFailed  = errors.New("job execution failed")
	ErrTimeout          = errors.New("job timed out")
	ErrEmptyResult      = errors.New("job returned an empty result")
)

// Error is a terminal driver failure. It matches exactly one of the sentinel
// errors above and, when present, wraps the underlying cause so retry errors
// stay reachable through errors.As.
type Error struct {
	Kind   error
	State  State
	Reason string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Reason != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Reason)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// ReasonOf returns the remote-reported reason of an execution failure.
func ReasonOf(err error) string {
	var jerr *Error
	if errors.As(err, &jerr) {
		return jerr.Reason
	}
	return ""
}

func failure(kind error, state State, reason string, cause error) *Error {
	return &Error{Kind: kind, State: state, Reason: reason, Err: cause}
}
