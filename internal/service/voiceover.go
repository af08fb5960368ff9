package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"time"

	"bothelp.app/voiceover/internal/delivery"
	"bothelp.app/voiceover/internal/job"
	"bothelp.app/voiceover/internal/prompt"
)

var ErrInvalidInput = errors.New("invalid input")

// JobRunner runs one remote generation job.
type JobRunner interface {
	Run(ctx context.Context, input string, timeout time.Duration) (*job.Result, error)
}

// Deliverer hands generated text to the user without waiting for it.
type Deliverer interface {
	Deliver(ctx context.Context, d delivery.Delivery)
}

type GenerateParams struct {
	RequestID   int64
	Destination string
	Text        string
	Answers     map[string]string
}

type GenerateResult struct {
	Text    string
	JobID   string
	RunID   string
	Polls   int
	Elapsed time.Duration
}

type VoiceoverConfig struct {
	Template    string
	Placeholder string
	Timeout     time.Duration // zero uses the driver default
}

type VoiceoverService interface {
	Generate(ctx context.Context, params GenerateParams) (*GenerateResult, error)
}

type voiceoverService struct {
	runner JobRunner
	sink   Deliverer
	cfg    VoiceoverConfig
	logger *slog.Logger
}

func NewVoiceoverService(runner JobRunner, sink Deliverer, cfg VoiceoverConfig, logger *slog.Logger) VoiceoverService {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Template == "" {
		cfg.Template = prompt.DefaultTemplate
	}
	if cfg.Placeholder == "" {
		cfg.Placeholder = prompt.DefaultPlaceholder
	}
	return &voiceoverService{
		runner: runner,
		sink:   sink,
		cfg:    cfg,
		logger: logger,
	}
}

// Generate renders the prompt, runs the generation job and starts delivery of
// its text. The returned result does not depend on the delivery outcome.
func (s *voiceoverService) Generate(ctx context.Context, params GenerateParams) (*GenerateResult, error) {
	destination := strings.TrimSpace(params.Destination)
	if destination == "" {
		return nil, fmt.Errorf("%w: destination is required", ErrInvalidInput)
	}
	if strings.TrimSpace(params.Text) == "" {
		return nil, fmt.Errorf("%w: text is required", ErrInvalidInput)
	}

	mapping := make(map[string]string, len(params.Answers)+1)
	maps.Copy(mapping, params.Answers)
	mapping["text"] = params.Text

	input := prompt.Render(s.cfg.Template, mapping, s.cfg.Placeholder)
	if strings.TrimSpace(input) == "" {
		return nil, fmt.Errorf("%w: rendered prompt is empty", ErrInvalidInput)
	}

	s.logger.DebugContext(ctx, "prompt rendered",
		"answers", len(params.Answers),
		"input_length", len(input))

	res, err := s.runner.Run(ctx, input, s.cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("generating text: %w", err)
	}

	s.sink.Deliver(ctx, delivery.Delivery{
		Destination: destination,
		Text:        res.Text,
		RequestID:   params.RequestID,
		JobID:       string(res.JobID),
		RunID:       string(res.RunID),
	})

	return &GenerateResult{
		Text:    res.Text,
		JobID:   string(res.JobID),
		RunID:   string(res.RunID),
		Polls:   res.Polls,
		Elapsed: res.Elapsed,
	}, nil
}
