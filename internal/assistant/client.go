package assistant

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"bothelp.app/voiceover/common/retry"
	"bothelp.app/voiceover/internal/job"
)

type Config struct {
	APIKey      string
	BaseURL     string // e.g. https://api.openai.com/v1
	AssistantID string
}

// Client runs assistant threads as remote jobs: a thread is the job, a run of
// the configured assistant on that thread is the run.
type Client struct {
	exec *retry.Executor
	cfg  Config
}

var _ job.RemoteJobAPI = (*Client)(nil)

func NewClient(exec *retry.Executor, cfg Config) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	return &Client{exec: exec, cfg: cfg}
}

func (c *Client) CreateJob(ctx context.Context) (job.JobHandle, error) {
	var thread threadObject
	if err := c.call(ctx, http.MethodPost, "/threads", "assistant.create_thread", struct{}{}, &thread); err != nil {
		return "", err
	}
	return job.JobHandle(thread.ID), nil
}

func (c *Client) Submit(ctx context.Context, jobID job.JobHandle, content string) error {
	body := createMessageRequest{Role: "user", Content: content}
	var msg messageObject
	return c.call(ctx, http.MethodPost, "/threads/"+url.PathEscape(string(jobID))+"/messages", "assistant.create_message", body, &msg)
}

func (c *Client) Start(ctx context.Context, jobID job.JobHandle) (job.RunHandle, error) {
	body := createRunRequest{AssistantID: c.cfg.AssistantID}
	var run runObject
	if err := c.call(ctx, http.MethodPost, "/threads/"+url.PathEscape(string(jobID))+"/runs", "assistant.create_run", body, &run); err != nil {
		return "", err
	}
	return job.RunHandle(run.ID), nil
}

func (c *Client) Status(ctx context.Context, jobID job.JobHandle, runID job.RunHandle) (job.StatusReport, error) {
	path := "/threads/" + url.PathEscape(string(jobID)) + "/runs/" + url.PathEscape(string(runID))
	var run runObject
	if err := c.call(ctx, http.MethodGet, path, "assistant.get_run", nil, &run); err != nil {
		return job.StatusReport{}, err
	}
	return run.report(), nil
}

// Result returns the text of the newest assistant message produced by the run.
// An empty string means the run produced no text content.
func (c *Client) Result(ctx context.Context, jobID job.JobHandle, runID job.RunHandle) (string, error) {
	q := url.Values{}
	q.Set("order", "desc")
	q.Set("limit", "20")
	if runID != "" {
		q.Set("run_id", string(runID))
	}
	path := "/threads/" + url.PathEscape(string(jobID)) + "/messages?" + q.Encode()

	var list messageList
	if err := c.call(ctx, http.MethodGet, path, "assistant.list_messages", nil, &list); err != nil {
		return "", err
	}

	for _, msg := range list.Data {
		if msg.Role != "assistant" {
			continue
		}
		return msg.text(), nil
	}
	return "", nil
}

func (c *Client) call(ctx context.Context, method, path, target string, body, out any) error {
	req, err := retry.NewJSONRequest(method, c.cfg.BaseURL+path, target, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("OpenAI-Beta", "assistants=v2")

	resp, err := c.exec.Do(ctx, req)
	if err != nil {
		return err
	}
	if err := resp.DecodeJSON(out); err != nil {
		return fmt.Errorf("%s: %w", target, err)
	}
	return nil
}

// MapRunStatus normalizes a remote run status.
// Terminal remote failures (failed, cancelled, expired, incomplete) map to
// StatusFailed; states the driver cannot act on, like requires_action, are unknown.
func MapRunStatus(raw string) job.RunStatus {
	switch raw {
	case "queued":
		return job.StatusPending
	case "in_progress":
		return job.StatusRunning
	case "completed":
		return job.StatusCompleted
	case "failed", "cancelled", "cancelling", "expired", "incomplete":
		return job.StatusFailed
	default:
		return job.StatusUnknown
	}
}
