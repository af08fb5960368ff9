package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"bothelp.app/voiceover/common/retry"
	"bothelp.app/voiceover/internal/http/dto"
	"bothelp.app/voiceover/internal/job"
	"bothelp.app/voiceover/internal/service"
)

const (
	KindBadInput = "bad_input"
	KindUpstream = "upstream"
	KindTimeout  = "timeout"
	KindInternal = "internal"
)

// mapError turns a generation failure into its HTTP status and error body.
func mapError(err error) (int, dto.ErrorBody) {
	transient := errors.Is(err, retry.ErrTransientExhausted)

	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, dto.ErrorBody{Code: "invalid_input", Kind: KindBadInput, Message: err.Error()}
	case errors.Is(err, job.ErrTimeout):
		return http.StatusGatewayTimeout, dto.ErrorBody{Code: "job_timeout", Kind: KindTimeout, Message: jobMessage(err), Retryable: true}
	case errors.Is(err, job.ErrCreationFailed):
		return http.StatusBadGateway, dto.ErrorBody{Code: "creation_failed", Kind: KindUpstream, Message: jobMessage(err), Retryable: transient}
	case errors.Is(err, job.ErrSubmissionFailed):
		return http.StatusBadGateway, dto.ErrorBody{Code: "submission_failed", Kind: KindUpstream, Message: jobMessage(err), Retryable: transient}
	case errors.Is(err, job.ErrEmptyResult):
		return http.StatusBadGateway, dto.ErrorBody{Code: "empty_result", Kind: KindUpstream, Message: jobMessage(err)}
	case errors.Is(err, job.ErrExecutionFailed):
		return http.StatusBadGateway, dto.ErrorBody{Code: "execution_failed", Kind: KindUpstream, Message: jobMessage(err), Retryable: transient}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout, dto.ErrorBody{Code: "request_cancelled", Kind: KindTimeout, Message: "request cancelled before completion", Retryable: true}
	default:
		return http.StatusInternalServerError, dto.ErrorBody{Code: "internal_error", Kind: KindInternal, Message: "internal server error"}
	}
}

// jobMessage keeps the failure kind and remote reason but not upstream bodies.
func jobMessage(err error) string {
	var jerr *job.Error
	if !errors.As(err, &jerr) {
		return err.Error()
	}
	msg := jerr.Kind.Error()
	if jerr.Reason != "" {
		msg += ": " + jerr.Reason
	}
	if status := retry.StatusOf(err); status != 0 {
		msg += fmt.Sprintf(" (upstream status %d)", status)
	}
	return msg
}
