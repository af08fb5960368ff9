package retry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"bothelp.app/voiceover/internal/metrics"
)

const maxResponseBody = 32 << 20

// Request describes one logical call. Body is replayed byte-for-byte on every
// attempt; the caller is responsible for the call being safe to repeat.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
	Target string // short name for logs and metrics, e.g. "assistant.create_thread"
}

// NewJSONRequest encodes v as the request body and sets the JSON content type.
func NewJSONRequest(method, url, target string, v any) (Request, error) {
	req := Request{
		Method: method,
		URL:    url,
		Target: target,
		Header: http.Header{},
	}
	if v != nil {
		body, err := json.Marshal(v)
		if err != nil {
			return Request{}, fmt.Errorf("encoding %s request: %w", target, err)
		}
		req.Body = body
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Attempts   int
}

// DecodeJSON unmarshals the response body into v.
func (r *Response) DecodeJSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// Executor issues HTTP requests and retries transient failures under a Policy.
type Executor struct {
	client *retryablehttp.Client
	policy Policy
	logger *slog.Logger
}

type attemptKey struct{}

type attemptState struct {
	target  string
	count   int
	bodyErr error // read failure of the latest attempt's response body
}

// buffer reads the response body into memory so a connection dropped mid-body
// is seen by the retry decision rather than after it.
func (s *attemptState) buffer(resp *http.Response) error {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(data))
	s.bodyErr = err
	return err
}

// NewExecutor builds an executor. httpClient may be nil, in which case a client
// with a 30s per-attempt timeout is used.
func NewExecutor(policy Policy, httpClient *http.Client, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	policy = policy.normalized()

	e := &Executor{policy: policy, logger: logger}

	client := retryablehttp.NewClient()
	client.HTTPClient = httpClient
	client.Logger = nil
	client.RetryMax = policy.MaxAttempts - 1
	client.RetryWaitMin = policy.BaseDelay
	client.RetryWaitMax = policy.MaxDelay
	client.CheckRetry = e.checkRetry
	client.Backoff = func(_, _ time.Duration, attemptNum int, _ *http.Response) time.Duration {
		// attemptNum counts retries from zero; the attempt that just failed is attemptNum+1
		return policy.Backoff(attemptNum + 1)
	}
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	e.client = client

	return e
}

func (e *Executor) Policy() Policy {
	return e.policy
}

// Do runs req until it succeeds, fails permanently, or exhausts the attempt
// budget. Any non-2xx outcome is returned as *Error; a cancelled ctx is
// returned wrapped so errors.Is(err, context.Canceled) holds.
func (e *Executor) Do(ctx context.Context, req Request) (*Response, error) {
	target := req.Target
	state := &attemptState{target: target}
	ctx = context.WithValue(ctx, attemptKey{}, state)

	var body any
	if req.Body != nil {
		body = req.Body
	}
	rreq, err := retryablehttp.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, &Error{Kind: KindPermanent, Target: target, Code: CodeNetwork, Err: stripURL(err)}
	}
	for key, values := range req.Header {
		for _, v := range values {
			rreq.Header.Add(key, v)
		}
	}

	resp, doErr := e.client.Do(rreq)
	if doErr != nil {
		if resp != nil {
			resp.Body.Close()
		}
		if ctx.Err() != nil {
			metrics.HTTPCalls.WithLabelValues(target, "cancelled").Inc()
			return nil, fmt.Errorf("%s: %w", target, ctx.Err())
		}
		code, retryable := ClassifyNetworkError(doErr)
		kind := KindPermanent
		if retryable {
			kind = KindTransientExhausted
		}
		rerr := &Error{Kind: kind, Target: target, Code: code, Attempts: state.count, Err: stripURL(doErr)}
		e.logFailure(ctx, rerr)
		return nil, rerr
	}
	defer resp.Body.Close()

	if state.bodyErr != nil {
		if ctx.Err() != nil {
			metrics.HTTPCalls.WithLabelValues(target, "cancelled").Inc()
			return nil, fmt.Errorf("%s: %w", target, ctx.Err())
		}
		code, retryable := ClassifyNetworkError(state.bodyErr)
		kind := KindPermanent
		if retryable {
			// a retryable read failure only comes back once the budget is spent
			kind = KindTransientExhausted
		}
		rerr := &Error{Kind: kind, Target: target, StatusCode: resp.StatusCode, Code: code, Attempts: state.count, Err: stripURL(state.bodyErr)}
		e.logFailure(ctx, rerr)
		return nil, rerr
	}

	// already buffered by checkRetry
	data, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		metrics.HTTPCalls.WithLabelValues(target, "ok").Inc()
		return &Response{
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			Body:       data,
			Attempts:   state.count,
		}, nil
	}

	kind := KindPermanent
	if RetryableStatus(resp.StatusCode) {
		// the client only hands back a retryable status once the budget is spent
		kind = KindTransientExhausted
	}
	rerr := &Error{
		Kind:       kind,
		Target:     target,
		StatusCode: resp.StatusCode,
		Body:       string(bytes.TrimSpace(data)),
		Attempts:   state.count,
		Err:        fmt.Errorf("unexpected status %d", resp.StatusCode),
	}
	e.logFailure(ctx, rerr)
	return nil, rerr
}

func (e *Executor) checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	state, _ := ctx.Value(attemptKey{}).(*attemptState)
	if state == nil {
		state = &attemptState{}
	}
	state.count++
	state.bodyErr = nil

	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		code, retryable := ClassifyNetworkError(err)
		if retryable {
			metrics.HTTPAttempts.WithLabelValues(state.target, "retryable").Inc()
			e.logger.WarnContext(ctx, "http attempt failed with transient network error",
				"target", state.target,
				"attempt", state.count,
				"max_attempts", e.policy.MaxAttempts,
				"code", code,
				"error", stripURL(err))
			return true, nil
		}
		metrics.HTTPAttempts.WithLabelValues(state.target, "permanent").Inc()
		return false, nil
	}

	if readErr := state.buffer(resp); readErr != nil {
		if ctx.Err() != nil {
			return false, nil
		}
		code, retryable := ClassifyNetworkError(readErr)
		if retryable {
			metrics.HTTPAttempts.WithLabelValues(state.target, "retryable").Inc()
			e.logger.WarnContext(ctx, "http attempt failed while reading response body",
				"target", state.target,
				"attempt", state.count,
				"max_attempts", e.policy.MaxAttempts,
				"status_code", resp.StatusCode,
				"code", code,
				"error", stripURL(readErr))
			return true, nil
		}
		metrics.HTTPAttempts.WithLabelValues(state.target, "permanent").Inc()
		return false, nil
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		metrics.HTTPAttempts.WithLabelValues(state.target, "ok").Inc()
		return false, nil
	case RetryableStatus(resp.StatusCode):
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		metrics.HTTPAttempts.WithLabelValues(state.target, "retryable").Inc()
		e.logger.WarnContext(ctx, "http attempt failed with transient status",
			"target", state.target,
			"attempt", state.count,
			"max_attempts", e.policy.MaxAttempts,
			"status_code", resp.StatusCode)
		return true, nil
	default:
		metrics.HTTPAttempts.WithLabelValues(state.target, "permanent").Inc()
		return false, nil
	}
}

func (e *Executor) logFailure(ctx context.Context, rerr *Error) {
	metrics.HTTPCalls.WithLabelValues(rerr.Target, string(rerr.Kind)).Inc()
	e.logger.ErrorContext(ctx, "http call failed",
		"target", rerr.Target,
		"kind", rerr.Kind,
		"attempts", rerr.Attempts,
		"status_code", rerr.StatusCode,
		"code", rerr.Code,
		"body", truncateBody(rerr.Body))
}

// stripURL drops the request URL from transport errors; some URLs carry credentials.
func stripURL(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return fmt.Errorf("%s: %w", uerr.Op, uerr.Err)
	}
	return err
}
