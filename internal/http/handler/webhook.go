package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"bothelp.app/voiceover/common/logger"
	"bothelp.app/voiceover/internal/http/dto"
	"bothelp.app/voiceover/internal/http/middleware"
	"bothelp.app/voiceover/internal/service"
)

const maxLoggedBody = 2048

type WebhookHandler struct {
	service service.VoiceoverService
}

func NewWebhookHandler(service service.VoiceoverService) *WebhookHandler {
	return &WebhookHandler{service: service}
}

func (h *WebhookHandler) Handle(c *gin.Context) {
	ctx := c.Request.Context()
	requestID := middleware.RequestID(c)

	body, err := c.GetRawData()
	if err != nil {
		h.fail(c, requestID, http.StatusBadRequest, dto.ErrorBody{Code: "invalid_body", Kind: KindBadInput, Message: "could not read request body"})
		return
	}
	slog.DebugContext(ctx, "webhook received", "body", logger.Truncate(string(body), maxLoggedBody))

	hook, err := dto.ParseWebhook(body)
	if err != nil {
		slog.WarnContext(ctx, "invalid webhook payload", "error", err)
		h.fail(c, requestID, http.StatusBadRequest, dto.ErrorBody{Code: "invalid_payload", Kind: KindBadInput, Message: err.Error()})
		return
	}
	if hook.Destination != "" {
		ctx = logger.WithLogFields(ctx, logger.LogFields{Destination: logger.Ptr(hook.Destination)})
	}

	result, err := h.service.Generate(ctx, service.GenerateParams{
		RequestID:   requestID,
		Destination: hook.Destination,
		Text:        hook.Text,
		Answers:     hook.Answers,
	})
	if err != nil {
		status, errBody := mapError(err)
		if status >= http.StatusInternalServerError {
			slog.ErrorContext(ctx, "voiceover generation failed", "error", err, "code", errBody.Code)
		} else {
			slog.WarnContext(ctx, "voiceover request rejected", "error", err, "code", errBody.Code)
		}
		h.fail(c, requestID, status, errBody)
		return
	}

	slog.InfoContext(ctx, "voiceover generated",
		"job_id", result.JobID,
		"polls", result.Polls,
		"text_length", len(result.Text))

	c.JSON(http.StatusOK, dto.WebhookResponse{
		Success:   true,
		RequestID: strconv.FormatInt(requestID, 10),
		Text:      result.Text,
		JobID:     result.JobID,
		RunID:     result.RunID,
	})
}

// MethodNotAllowed answers non-POST calls on the webhook path.
func (h *WebhookHandler) MethodNotAllowed(c *gin.Context) {
	c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
}

func (h *WebhookHandler) Schema(c *gin.Context) {
	c.JSON(http.StatusOK, dto.WebhookSchema())
}

func (h *WebhookHandler) fail(c *gin.Context, requestID int64, status int, body dto.ErrorBody) {
	c.JSON(status, dto.ErrorResponse{
		Success:   false,
		RequestID: strconv.FormatInt(requestID, 10),
		Error:     body,
	})
}
