package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"bothelp.app/voiceover/common/logger"
	"bothelp.app/voiceover/internal/http/dto"
	"bothelp.app/voiceover/internal/metrics"
)

const (
	requestIDKey    = "request_id"
	RequestIDHeader = "X-Request-Id"
)

// RequestFields assigns a request ID and attaches request-scoped log fields.
func RequestFields(newID func() int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := newID()
		c.Set(requestIDKey, requestID)
		c.Header(RequestIDHeader, strconv.FormatInt(requestID, 10))

		ctx := logger.WithLogFields(c.Request.Context(), logger.LogFields{
			RequestID: &requestID,
			Component: "voiceover.http",
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequestID returns the ID set by RequestFields, or 0.
func RequestID(c *gin.Context) int64 {
	return c.GetInt64(requestIDKey)
}

// Recovery turns a handler panic into a 500 in the webhook error shape.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				slog.ErrorContext(c.Request.Context(), "panic recovered",
					"panic", fmt.Sprint(r),
					"path", c.Request.URL.Path,
					"stack", string(debug.Stack()))
				c.AbortWithStatusJSON(http.StatusInternalServerError, dto.ErrorResponse{
					Success:   false,
					RequestID: formatID(RequestID(c)),
					Error: dto.ErrorBody{
						Code:    "internal_error",
						Kind:    "internal",
						Message: "internal server error",
					},
				})
			}
		}()
		c.Next()
	}
}

// Logger logs each request once it has been served.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		switch {
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		}

		slog.Log(c.Request.Context(), level, "http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP())
	}
}

// Metrics records request count and latency by route pattern.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
	}
}

func formatID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}
