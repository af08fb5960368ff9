package llm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type openaiSpeech struct {
	client openai.Client
	model  string
	voice  string
	format string
}

func newOpenAISpeech(cfg SpeechConfig) *openaiSpeech {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		baseURL := cfg.BaseURL
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	model := cfg.Model
	if model == "" {
		model = "tts-1"
	}
	voice := cfg.Voice
	if voice == "" {
		voice = "alloy"
	}
	format := cfg.Format
	if format == "" {
		format = FormatOpus
	}

	return &openaiSpeech{
		client: openai.NewClient(opts...),
		model:  model,
		voice:  voice,
		format: format,
	}
}

func (s *openaiSpeech) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("speech input is empty")
	}

	start := time.Now()
	resp, err := s.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Input:          clampInput(text),
		Model:          openai.SpeechModel(s.model),
		Voice:          openai.AudioSpeechNewParamsVoice(s.voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormat(s.format),
	})
	if err != nil {
		return nil, fmt.Errorf("openai speech (retryable=%t): %w", IsRetryable(ctx, err), err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading speech audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("openai speech: empty audio")
	}

	slog.DebugContext(ctx, "speech synthesized",
		"model", s.model,
		"voice", s.voice,
		"duration_ms", time.Since(start).Milliseconds(),
		"audio_bytes", len(audio))

	return audio, nil
}
