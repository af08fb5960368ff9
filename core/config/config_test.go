package config_test

import (
	"errors"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"bothelp.app/voiceover/core/config"
)

var _ = Describe("Load", func() {
	BeforeEach(func() {
		// production skips .env loading so the test only sees what it sets
		GinkgoT().Setenv("VOICEOVER_ENV", "production")
		for _, key := range []string{"OPENAI_API_KEY", "OPENAI_ASSISTANT_ID", "TELEGRAM_BOT_TOKEN", "JOB_TIMEOUT", "RETRY_MAX_ATTEMPTS"} {
			GinkgoT().Setenv(key, "")
			Expect(os.Unsetenv(key)).To(Succeed())
		}
	})

	It("fails fast listing every missing key", func() {
		_, err := config.Load()

		Expect(errors.Is(err, config.ErrConfigurationMissing)).To(BeTrue())
		var missing *config.MissingError
		Expect(errors.As(err, &missing)).To(BeTrue())
		Expect(missing.Keys).To(ConsistOf("OPENAI_API_KEY", "OPENAI_ASSISTANT_ID", "TELEGRAM_BOT_TOKEN"))
	})

	It("reports only the keys that are absent", func() {
		GinkgoT().Setenv("OPENAI_API_KEY", "sk-test")
		GinkgoT().Setenv("OPENAI_ASSISTANT_ID", "asst_1")

		_, err := config.Load()

		var missing *config.MissingError
		Expect(errors.As(err, &missing)).To(BeTrue())
		Expect(missing.Keys).To(Equal([]string{"TELEGRAM_BOT_TOKEN"}))
	})

	Context("when required keys are set", func() {
		BeforeEach(func() {
			GinkgoT().Setenv("OPENAI_API_KEY", "sk-test")
			GinkgoT().Setenv("OPENAI_ASSISTANT_ID", "asst_1")
			GinkgoT().Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
		})

		It("applies defaults", func() {
			cfg, err := config.Load()

			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.IsProduction()).To(BeTrue())
			Expect(cfg.Retry.MaxAttempts).To(Equal(3))
			Expect(cfg.Job.Timeout).To(Equal(60 * time.Second))
			Expect(cfg.Job.MaxPollInterval).To(Equal(3 * time.Second))
			Expect(cfg.Job.PollMultiplier).To(Equal(1.1))
			Expect(cfg.Telegram.MaxMessageLength).To(Equal(4096))
			Expect(cfg.Redis.Enabled()).To(BeFalse())
			Expect(cfg.Redis.Stream).To(Equal("voiceover_deliveries"))
			Expect(cfg.Redis.StreamMaxLen).To(Equal(int64(10000)))
		})

		It("parses durations and numbers from the environment", func() {
			GinkgoT().Setenv("JOB_TIMEOUT", "90s")
			GinkgoT().Setenv("RETRY_MAX_ATTEMPTS", "5")

			cfg, err := config.Load()

			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Job.Timeout).To(Equal(90 * time.Second))
			Expect(cfg.Retry.MaxAttempts).To(Equal(5))
		})

		It("rejects a zero attempt budget", func() {
			GinkgoT().Setenv("RETRY_MAX_ATTEMPTS", "0")

			_, err := config.Load()

			Expect(err).To(MatchError(ContainSubstring("RETRY_MAX_ATTEMPTS")))
			Expect(errors.Is(err, config.ErrConfigurationMissing)).To(BeFalse())
		})
	})
})
