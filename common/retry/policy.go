package retry

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"
)

// Policy bounds how often and how patiently a request is retried.
type Policy struct {
	MaxAttempts int           // total calls, including the first
	BaseDelay   time.Duration // delay after the first failed attempt; grows linearly
	MaxDelay    time.Duration // cap on any single delay
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    5 * time.Second,
	}
}

// Backoff returns the delay to wait after the given 1-based attempt failed:
// min(BaseDelay*attempt, MaxDelay).
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := p.BaseDelay * time.Duration(attempt)
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	if delay < 0 {
		delay = p.MaxDelay
	}
	return delay
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	if p.MaxDelay > 0 && p.BaseDelay > p.MaxDelay {
		p.BaseDelay = p.MaxDelay
	}
	return p
}

// RetryableStatus reports whether a response status is worth retrying unchanged.
// 401 and 403 are never retryable; neither is any other 4xx besides 429.
func RetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// Network error codes surfaced on *Error.Code.
const (
	CodeConnReset   = "ECONNRESET"
	CodeConnRefused = "ECONNREFUSED"
	CodeBrokenPipe  = "EPIPE"
	CodeTimeout     = "ETIMEDOUT"
	CodeEOF         = "EOF"
	CodeNetwork     = "ENETWORK"
)

// ClassifyNetworkError maps a transport error to a stable code and whether a
// retry could help. Only resets, refusals, broken pipes, truncated reads and
// timeouts are retryable.
func ClassifyNetworkError(err error) (code string, retryable bool) {
	switch {
	case errors.Is(err, syscall.ECONNRESET):
		return CodeConnReset, true
	case errors.Is(err, syscall.ECONNREFUSED):
		return CodeConnRefused, true
	case errors.Is(err, syscall.EPIPE):
		return CodeBrokenPipe, true
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return CodeEOF, true
	case errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CodeTimeout, true
	}

	return CodeNetwork, false
}
