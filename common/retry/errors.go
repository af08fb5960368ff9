package retry

import (
	"errors"
	"fmt"
)

var (
	ErrTransientExhausted = errors.New("transient failure, attempts exhausted")
	ErrPermanent          = errors.New("permanent failure")
)

type Kind string

const (
	KindTransientExhausted Kind = "transient_exhausted"
	KindPermanent          Kind = "permanent"
)

// Error is the only failure the executor returns besides a cancelled context.
// It keeps the detail of the last attempt: either the HTTP status and body, or
// the network error code.
type Error struct {
	Kind       Kind
	Target     string
	StatusCode int // zero for network failures
	Body       string
	Code       string // network error code, empty for HTTP failures
	Attempts   int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s after %d attempt(s): status %d: %s",
			e.Target, e.Kind, e.Attempts, e.StatusCode, truncateBody(e.Body))
	}
	return fmt.Sprintf("%s: %s after %d attempt(s): %s: %v", e.Target, e.Kind, e.Attempts, e.Code, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrTransientExhausted:
		return e.Kind == KindTransientExhausted
	case ErrPermanent:
		return e.Kind == KindPermanent
	}
	return false
}

// StatusOf returns the HTTP status carried by a retry error, or zero.
func StatusOf(err error) int {
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr.StatusCode
	}
	return 0
}

func truncateBody(body string) string {
	const max = 512
	if len(body) <= max {
		return body
	}
	return body[:max] + "..."
}
