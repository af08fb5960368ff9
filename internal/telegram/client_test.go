package telegram_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"bothelp.app/voiceover/common/retry"
	"bothelp.app/voiceover/internal/telegram"
)

var _ = Describe("Client", func() {
	var (
		ctx      context.Context
		mu       sync.Mutex
		paths    []string
		received map[string]string
		voice    []byte
		status   int
		reply    string
		client   *telegram.Client
	)

	respondWith := func(code int, body string) {
		mu.Lock()
		defer mu.Unlock()
		status = code
		reply = body
	}

	calls := func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), paths...)
	}

	BeforeEach(func() {
		ctx = context.Background()
		paths = nil
		received = map[string]string{}
		voice = nil
		status = http.StatusOK
		reply = `{"ok":true,"result":{"message_id":1}}`

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			defer mu.Unlock()
			paths = append(paths, r.URL.Path)
			if r.Header.Get("Content-Type") == "application/json" {
				_ = json.NewDecoder(r.Body).Decode(&received)
			} else if err := r.ParseMultipartForm(1 << 20); err == nil {
				received["chat_id"] = r.FormValue("chat_id")
				received["caption"] = r.FormValue("caption")
				if f, _, err := r.FormFile("voice"); err == nil {
					voice, _ = io.ReadAll(f)
				}
			}
			w.WriteHeader(status)
			_, _ = w.Write([]byte(reply))
		}))
		DeferCleanup(srv.Close)

		exec := retry.NewExecutor(retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}, nil, nil)
		client = telegram.NewClient(exec, telegram.Config{BotToken: "123:abc", BaseURL: srv.URL})
	})

	It("sends text messages to the bot method URL", func() {
		Expect(client.SendMessage(ctx, "1001", "Hello")).To(Succeed())

		Expect(calls()).To(Equal([]string{"/bot123:abc/sendMessage"}))
		Expect(received).To(Equal(map[string]string{"chat_id": "1001", "text": "Hello"}))
	})

	It("uploads voice notes as multipart", func() {
		Expect(client.SendVoice(ctx, "1001", []byte("OggS-audio"), "caption")).To(Succeed())

		Expect(calls()).To(Equal([]string{"/bot123:abc/sendVoice"}))
		Expect(received["chat_id"]).To(Equal("1001"))
		Expect(received["caption"]).To(Equal("caption"))
		Expect(voice).To(Equal([]byte("OggS-audio")))
	})

	It("returns the bot API description for rejected messages", func() {
		respondWith(http.StatusBadRequest, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`)

		err := client.SendMessage(ctx, "42", "Hello")

		Expect(errors.Is(err, telegram.ErrBotAPI)).To(BeTrue())
		Expect(errors.Is(err, retry.ErrPermanent)).To(BeTrue())
		var apiErr *telegram.APIError
		Expect(errors.As(err, &apiErr)).To(BeTrue())
		Expect(apiErr.Description).To(Equal("Bad Request: chat not found"))
		Expect(calls()).To(HaveLen(1))
	})

	It("treats ok=false in a 200 response as an error", func() {
		respondWith(http.StatusOK, `{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`)

		err := client.SendMessage(ctx, "42", "Hello")

		Expect(errors.Is(err, telegram.ErrBotAPI)).To(BeTrue())
	})

	It("opens the breaker after repeated server failures", func() {
		respondWith(http.StatusBadGateway, `{"ok":false,"error_code":502,"description":"Bad Gateway"}`)

		for i := 0; i < 5; i++ {
			Expect(client.SendMessage(ctx, "42", "Hello")).NotTo(Succeed())
		}
		before := len(calls())

		err := client.SendMessage(ctx, "42", "Hello")

		Expect(err).To(MatchError(ContainSubstring("circuit breaker is open")))
		Expect(calls()).To(HaveLen(before))
	})

	It("does not trip the breaker on client errors", func() {
		respondWith(http.StatusBadRequest, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`)

		for i := 0; i < 6; i++ {
			Expect(client.SendMessage(ctx, "42", "Hello")).NotTo(Succeed())
		}

		Expect(calls()).To(HaveLen(6))
	})
})
