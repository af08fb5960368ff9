package dto_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"bothelp.app/voiceover/internal/http/dto"
)

var _ = Describe("ParseWebhook", func() {
	It("reads destination, text and answers", func() {
		hook, err := dto.ParseWebhook([]byte(`{
			"chat_id": 123456789,
			"voiceover_test": "my story",
			"name": "Anna",
			"age": 31,
			"subscribed": true,
			"tags": ["a", "b"],
			"message": {"text": "ignored"}
		}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(hook.Destination).To(Equal("123456789"))
		Expect(hook.Text).To(Equal("my story"))
		Expect(hook.Answers).To(HaveKeyWithValue("name", "Anna"))
		Expect(hook.Answers).To(HaveKeyWithValue("age", "31"))
		Expect(hook.Answers).To(HaveKeyWithValue("subscribed", "true"))
		Expect(hook.Answers).To(HaveKeyWithValue("chat_id", "123456789"))
		Expect(hook.Answers).NotTo(HaveKey("tags"))
		Expect(hook.Answers).NotTo(HaveKey("message"))
	})

	It("keeps large numeric chat ids exact", func() {
		hook, err := dto.ParseWebhook([]byte(`{"chat_id": -1001234567890123, "text": "x"}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(hook.Destination).To(Equal("-1001234567890123"))
	})

	It("accepts a string chat id", func() {
		hook, err := dto.ParseWebhook([]byte(`{"chat_id": " 42 ", "text": "x"}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(hook.Destination).To(Equal("42"))
	})

	It("leaves a missing chat id empty", func() {
		hook, err := dto.ParseWebhook([]byte(`{"text": "x"}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(hook.Destination).To(BeEmpty())
	})

	DescribeTable("rejects malformed payloads",
		func(body string) {
			_, err := dto.ParseWebhook([]byte(body))
			Expect(err).To(HaveOccurred())
		},
		Entry("empty body", ""),
		Entry("not json", "chat_id=1"),
		Entry("array", `[1,2]`),
		Entry("fractional chat id", `{"chat_id": 1.5}`),
		Entry("object chat id", `{"chat_id": {"id": 1}}`),
	)
})

var _ = Describe("ResolveText", func() {
	DescribeTable("picks the first non-blank candidate",
		func(body, want string) {
			var req dto.WebhookRequest
			Expect(json.Unmarshal([]byte(body), &req)).To(Succeed())
			Expect(req.ResolveText()).To(Equal(want))
		},
		Entry("voiceover_test first", `{"voiceover_test":"a","message":{"text":"b"},"text":"c"}`, "a"),
		Entry("message text second", `{"message":{"text":"b"},"text":"c"}`, "b"),
		Entry("blank voiceover_test skipped", `{"voiceover_test":"  ","message":{"text":"b"}}`, "b"),
		Entry("text last", `{"text":"c"}`, "c"),
		Entry("nothing", `{}`, ""),
	)
})

var _ = Describe("WebhookSchema", func() {
	It("describes the read fields", func() {
		raw, err := json.Marshal(dto.WebhookSchema())
		Expect(err).NotTo(HaveOccurred())

		var schema map[string]any
		Expect(json.Unmarshal(raw, &schema)).To(Succeed())
		Expect(schema["required"]).To(ContainElement("chat_id"))

		props, ok := schema["properties"].(map[string]any)
		Expect(ok).To(BeTrue())
		Expect(props).To(HaveKey("chat_id"))
		Expect(props).To(HaveKey("voiceover_test"))
		Expect(props).To(HaveKey("message"))
		Expect(props).To(HaveKey("text"))

		chatID := props["chat_id"].(map[string]any)
		Expect(chatID["oneOf"]).To(HaveLen(2))
	})
})
