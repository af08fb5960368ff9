package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/openai/openai-go"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"bothelp.app/voiceover/common/llm"
)

type speechRequest struct {
	Input          string `json:"input"`
	Model          string `json:"model"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

var _ = Describe("Synthesizer", func() {
	var (
		server   *httptest.Server
		mu       sync.Mutex
		received []speechRequest
		auth     string
		status   int
		audio    []byte
	)

	BeforeEach(func() {
		received = nil
		status = http.StatusOK
		audio = []byte("OggS-fake-audio")

		mux := http.NewServeMux()
		mux.HandleFunc("POST /audio/speech", func(w http.ResponseWriter, r *http.Request) {
			var req speechRequest
			_ = json.NewDecoder(r.Body).Decode(&req)

			mu.Lock()
			received = append(received, req)
			auth = r.Header.Get("Authorization")
			code, body := status, audio
			mu.Unlock()

			if code != http.StatusOK {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(code)
				_, _ = w.Write([]byte(`{"error":{"message":"bad voice","type":"invalid_request_error"}}`))
				return
			}
			w.Header().Set("Content-Type", "audio/ogg")
			_, _ = w.Write(body)
		})
		server = httptest.NewServer(mux)
	})

	AfterEach(func() {
		server.Close()
	})

	newSynth := func(cfg llm.SpeechConfig) llm.Synthesizer {
		cfg.APIKey = "sk-test"
		cfg.BaseURL = server.URL
		s, err := llm.NewSynthesizer(cfg)
		Expect(err).NotTo(HaveOccurred())
		return s
	}

	It("requires an API key", func() {
		_, err := llm.NewSynthesizer(llm.SpeechConfig{})
		Expect(err).To(HaveOccurred())
	})

	It("returns the audio bytes", func() {
		out, err := newSynth(llm.SpeechConfig{}).Synthesize(context.Background(), "hello there")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal([]byte("OggS-fake-audio")))

		mu.Lock()
		defer mu.Unlock()
		Expect(auth).To(Equal("Bearer sk-test"))
		Expect(received).To(HaveLen(1))
		Expect(received[0].Input).To(Equal("hello there"))
		Expect(received[0].Model).To(Equal("tts-1"))
		Expect(received[0].Voice).To(Equal("alloy"))
		Expect(received[0].ResponseFormat).To(Equal("opus"))
	})

	It("passes configured model, voice and format", func() {
		_, err := newSynth(llm.SpeechConfig{Model: "gpt-4o-mini-tts", Voice: "nova", Format: llm.FormatMP3}).
			Synthesize(context.Background(), "hi")
		Expect(err).NotTo(HaveOccurred())

		mu.Lock()
		defer mu.Unlock()
		Expect(received[0].Model).To(Equal("gpt-4o-mini-tts"))
		Expect(received[0].Voice).To(Equal("nova"))
		Expect(received[0].ResponseFormat).To(Equal("mp3"))
	})

	It("clamps long input to the endpoint limit", func() {
		long := strings.Repeat("й", llm.MaxSpeechInput+50)
		_, err := newSynth(llm.SpeechConfig{}).Synthesize(context.Background(), long)
		Expect(err).NotTo(HaveOccurred())

		mu.Lock()
		defer mu.Unlock()
		Expect(utf8.RuneCountInString(received[0].Input)).To(Equal(llm.MaxSpeechInput))
		Expect(utf8.ValidString(received[0].Input)).To(BeTrue())
	})

	It("rejects blank input without calling the API", func() {
		_, err := newSynth(llm.SpeechConfig{}).Synthesize(context.Background(), "   ")
		Expect(err).To(HaveOccurred())

		mu.Lock()
		defer mu.Unlock()
		Expect(received).To(BeEmpty())
	})

	It("fails on empty audio", func() {
		mu.Lock()
		audio = nil
		mu.Unlock()

		_, err := newSynth(llm.SpeechConfig{}).Synthesize(context.Background(), "hi")
		Expect(err).To(MatchError(ContainSubstring("empty audio")))
	})

	It("surfaces API errors", func() {
		mu.Lock()
		status = http.StatusBadRequest
		mu.Unlock()

		_, err := newSynth(llm.SpeechConfig{}).Synthesize(context.Background(), "hi")
		Expect(err).To(HaveOccurred())

		var apiErr *openai.Error
		Expect(errors.As(err, &apiErr)).To(BeTrue())
		Expect(apiErr.StatusCode).To(Equal(http.StatusBadRequest))
		Expect(llm.IsRetryable(context.Background(), err)).To(BeFalse())
	})
})

var _ = Describe("IsRetryable", func() {
	ctx := context.Background()

	DescribeTable("classifies API errors by status",
		func(status int, want bool) {
			Expect(llm.IsRetryable(ctx, &openai.Error{StatusCode: status})).To(Equal(want))
		},
		Entry("rate limited", 429, true),
		Entry("server error", 500, true),
		Entry("bad gateway", 502, true),
		Entry("bad request", 400, false),
		Entry("unauthorized", 401, false),
		Entry("not found", 404, false),
	)

	It("is false for nil", func() {
		Expect(llm.IsRetryable(ctx, nil)).To(BeFalse())
	})

	It("is false for context errors", func() {
		Expect(llm.IsRetryable(ctx, context.Canceled)).To(BeFalse())
		Expect(llm.IsRetryable(ctx, context.DeadlineExceeded)).To(BeFalse())
	})

	It("treats other errors as network failures", func() {
		Expect(llm.IsRetryable(ctx, errors.New("connection reset by peer"))).To(BeTrue())
	})
})
