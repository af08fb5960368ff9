package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"bothelp.app/voiceover/common/retry"
)

// MaxMessageLength is the bot API limit for a text message, in UTF-16 code units.
const MaxMessageLength = 4096

// MaxCaptionLength is the bot API limit for media captions.
const MaxCaptionLength = 1024

// ErrBotAPI is matched by every error the bot API reports with ok=false.
var ErrBotAPI = errors.New("telegram bot api error")

type APIError struct {
	Method      string
	ErrorCode   int
	Description string
	Err         error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.ErrorCode, e.Description)
}

func (e *APIError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrBotAPI}
	}
	return []error{ErrBotAPI, e.Err}
}

type Config struct {
	BotToken string
	BaseURL  string
}

type Client struct {
	exec    *retry.Executor
	cfg     Config
	breaker *gobreaker.CircuitBreaker
}

func NewClient(exec *retry.Executor, cfg Config) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.telegram.org"
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "telegram",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// a rejected message (bad chat id, blocked bot) says nothing about the API's health
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			status := retry.StatusOf(err)
			return status >= 400 && status < 500 && status != http.StatusTooManyRequests
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &Client{exec: exec, cfg: cfg, breaker: breaker}
}

// SendMessage sends plain text. The text must already fit MaxMessageLength.
func (c *Client) SendMessage(ctx context.Context, chatID, text string) error {
	req, err := retry.NewJSONRequest(http.MethodPost, c.methodURL("sendMessage"), "telegram.send_message", sendMessageRequest{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		return err
	}
	return c.do(ctx, "sendMessage", req)
}

// SendVoice uploads an OGG/Opus voice note.
func (c *Client) SendVoice(ctx context.Context, chatID string, audio []byte, caption string) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("chat_id", chatID); err != nil {
		return fmt.Errorf("building voice upload: %w", err)
	}
	if caption != "" {
		if err := w.WriteField("caption", caption); err != nil {
			return fmt.Errorf("building voice upload: %w", err)
		}
	}
	part, err := w.CreateFormFile("voice", "voice.ogg")
	if err != nil {
		return fmt.Errorf("building voice upload: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return fmt.Errorf("building voice upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("building voice upload: %w", err)
	}

	req := retry.Request{
		Method: http.MethodPost,
		URL:    c.methodURL("sendVoice"),
		Target: "telegram.send_voice",
		Header: http.Header{"Content-Type": []string{w.FormDataContentType()}},
		Body:   buf.Bytes(),
	}
	return c.do(ctx, "sendVoice", req)
}

func (c *Client) do(ctx context.Context, method string, req retry.Request) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.exec.Do(ctx, req)
		if err != nil {
			return nil, err
		}
		var out apiResponse
		if err := resp.DecodeJSON(&out); err != nil {
			return nil, fmt.Errorf("telegram %s: %w", method, err)
		}
		if !out.OK {
			return nil, &APIError{Method: method, ErrorCode: out.ErrorCode, Description: out.Description}
		}
		return nil, nil
	})
	if err == nil {
		return nil
	}

	var rerr *retry.Error
	if errors.As(err, &rerr) && rerr.Body != "" {
		var out apiResponse
		if json.Unmarshal([]byte(rerr.Body), &out) == nil && out.Description != "" {
			return &APIError{Method: method, ErrorCode: out.ErrorCode, Description: out.Description, Err: err}
		}
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	return err
}

// methodURL embeds the token; it must never be logged.
func (c *Client) methodURL(method string) string {
	return c.cfg.BaseURL + "/bot" + c.cfg.BotToken + "/" + method
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}
