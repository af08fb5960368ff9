package llm

import (
	"context"
	"fmt"
	"unicode/utf8"
)

// MaxSpeechInput is the longest text the speech endpoint accepts, in characters.
const MaxSpeechInput = 4096

// Speech format values accepted by the speech endpoint. Opus in an OGG
// container is what chat clients play as a voice note.
const (
	FormatOpus = "opus"
	FormatMP3  = "mp3"
)

// SpeechConfig holds text-to-speech client configuration.
type SpeechConfig struct {
	APIKey     string // Required: API key for the provider
	BaseURL    string // Optional: custom API endpoint
	Model      string // e.g. "tts-1", "gpt-4o-mini-tts"
	Voice      string // e.g. "alloy", "nova"
	Format     string // "opus" (default) or "mp3"
	MaxRetries int    // SDK-level retries for transient failures
}

// Synthesizer turns text into encoded audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// NewSynthesizer creates the OpenAI-backed Synthesizer.
func NewSynthesizer(cfg SpeechConfig) (Synthesizer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	return newOpenAISpeech(cfg), nil
}

// clampInput cuts text to MaxSpeechInput characters without splitting a rune.
func clampInput(text string) string {
	if utf8.RuneCountInString(text) <= MaxSpeechInput {
		return text
	}
	n := 0
	for i := range text {
		if n == MaxSpeechInput {
			return text[:i]
		}
		n++
	}
	return text
}
