package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/invopop/jsonschema"
)

// WebhookRequest lists the fields the webhook reads from the automation
// platform's payload. Every other scalar top-level field is kept as a
// template answer.
type WebhookRequest struct {
	ChatID        ChatID          `json:"chat_id" jsonschema:"required,description=Messaging destination of the generated text"`
	VoiceoverTest string          `json:"voiceover_test,omitempty" jsonschema:"description=Collected answer used as the text; takes precedence over message.text and text"`
	Message       *WebhookMessage `json:"message,omitempty" jsonschema:"description=Last message of the conversation"`
	Text          string          `json:"text,omitempty" jsonschema:"description=Fallback text"`
}

type WebhookMessage struct {
	Text string `json:"text,omitempty"`
}

// ChatID accepts both the string and the numeric form platforms send.
type ChatID string

func (c *ChatID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = ChatID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("chat_id must be a string or a number")
	}
	if _, err := n.Int64(); err != nil {
		return fmt.Errorf("chat_id must be an integer, got %s", n)
	}
	*c = ChatID(n.String())
	return nil
}

func (ChatID) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Description: "Messaging destination of the generated text",
		OneOf: []*jsonschema.Schema{
			{Type: "string"},
			{Type: "integer"},
		},
	}
}

// Webhook is a parsed webhook payload.
type Webhook struct {
	Destination string
	Text        string
	Answers     map[string]string
}

// ParseWebhook decodes a raw webhook body. Missing destination or text is
// left empty for the caller to reject.
func ParseWebhook(body []byte) (*Webhook, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("request body is empty")
	}

	var req WebhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}

	return &Webhook{
		Destination: string(req.ChatID),
		Text:        req.ResolveText(),
		Answers:     answers(raw),
	}, nil
}

// ResolveText picks voiceover_test, then message.text, then text.
func (r WebhookRequest) ResolveText() string {
	candidates := []string{r.VoiceoverTest}
	if r.Message != nil {
		candidates = append(candidates, r.Message.Text)
	}
	candidates = append(candidates, r.Text)

	for _, c := range candidates {
		if strings.TrimSpace(c) != "" {
			return c
		}
	}
	return ""
}

func answers(raw map[string]any) map[string]string {
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			out[k] = val
		case json.Number:
			out[k] = val.String()
		case bool:
			out[k] = strconv.FormatBool(val)
		}
	}
	return out
}

// WebhookSchema describes the accepted payload.
func WebhookSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
		DoNotReference:            true,
	}
	return reflector.Reflect(&WebhookRequest{})
}

type WebhookResponse struct {
	Success   bool   `json:"success"`
	RequestID string `json:"request_id"`
	Text      string `json:"text"`
	JobID     string `json:"job_id"`
	RunID     string `json:"run_id"`
}

type ErrorBody struct {
	Code      string `json:"code"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

type ErrorResponse struct {
	Success   bool      `json:"success"`
	RequestID string    `json:"request_id"`
	Error     ErrorBody `json:"error"`
}
