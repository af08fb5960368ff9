package assistant

import (
	"strings"

	"bothelp.app/voiceover/internal/job"
)

type threadObject struct {
	ID string `json:"id"`
}

type createMessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type createRunRequest struct {
	AssistantID string `json:"assistant_id"`
}

type runObject struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	LastError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_error"`
	IncompleteDetails *struct {
		Reason string `json:"reason"`
	} `json:"incomplete_details"`
}

func (r runObject) report() job.StatusReport {
	status := MapRunStatus(r.Status)
	switch status {
	case job.StatusFailed:
		return job.StatusReport{Status: status, Reason: r.failureReason()}
	case job.StatusUnknown:
		return job.StatusReport{Status: status, Reason: r.Status}
	default:
		return job.StatusReport{Status: status}
	}
}

func (r runObject) failureReason() string {
	if r.LastError != nil && r.LastError.Message != "" {
		return r.LastError.Message
	}
	if r.IncompleteDetails != nil && r.IncompleteDetails.Reason != "" {
		return r.IncompleteDetails.Reason
	}
	return "run " + r.Status
}

type messageList struct {
	Data []messageObject `json:"data"`
}

type messageObject struct {
	ID      string           `json:"id"`
	Role    string           `json:"role"`
	Content []messageContent `json:"content"`
}

type messageContent struct {
	Type string `json:"type"`
	Text *struct {
		Value string `json:"value"`
	} `json:"text"`
}

func (m messageObject) text() string {
	var parts []string
	for _, c := range m.Content {
		if c.Type == "text" && c.Text != nil && c.Text.Value != "" {
			parts = append(parts, c.Text.Value)
		}
	}
	return strings.Join(parts, "\n")
}
