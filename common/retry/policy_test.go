package retry_test

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"bothelp.app/voiceover/common/retry"
)

var _ = Describe("Policy", func() {
	Describe("Backoff", func() {
		It("grows linearly with the attempt number", func() {
			p := retry.Policy{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: 10 * time.Second}

			Expect(p.Backoff(1)).To(Equal(1 * time.Second))
			Expect(p.Backoff(2)).To(Equal(2 * time.Second))
			Expect(p.Backoff(3)).To(Equal(3 * time.Second))
		})

		It("is capped", func() {
			p := retry.Policy{MaxAttempts: 5, BaseDelay: 2 * time.Second, MaxDelay: 5 * time.Second}

			Expect(p.Backoff(3)).To(Equal(5 * time.Second))
			Expect(p.Backoff(100)).To(Equal(5 * time.Second))
		})

		It("treats attempts below one as the first attempt", func() {
			p := retry.DefaultPolicy()
			Expect(p.Backoff(0)).To(Equal(p.BaseDelay))
		})

		DescribeTable("never decreases and never exceeds the cap",
			func(base, maxDelay time.Duration) {
				p := retry.Policy{MaxAttempts: 50, BaseDelay: base, MaxDelay: maxDelay}
				prev := time.Duration(0)
				for attempt := 1; attempt <= 50; attempt++ {
					d := p.Backoff(attempt)
					Expect(d).To(BeNumerically(">=", prev), fmt.Sprintf("attempt %d", attempt))
					Expect(d).To(BeNumerically("<=", maxDelay), fmt.Sprintf("attempt %d", attempt))
					prev = d
				}
			},
			Entry("default", time.Second, 5*time.Second),
			Entry("base equals cap", 3*time.Second, 3*time.Second),
			Entry("tiny base", time.Millisecond, 7*time.Millisecond),
			Entry("large cap", 250*time.Millisecond, time.Minute),
		)
	})

	DescribeTable("RetryableStatus",
		func(code int, expected bool) {
			Expect(retry.RetryableStatus(code)).To(Equal(expected))
		},
		Entry("429", 429, true),
		Entry("500", 500, true),
		Entry("503", 503, true),
		Entry("400", 400, false),
		Entry("401", 401, false),
		Entry("403", 403, false),
		Entry("404", 404, false),
		Entry("409", 409, false),
	)

	DescribeTable("ClassifyNetworkError",
		func(err error, code string, retryable bool) {
			gotCode, gotRetryable := retry.ClassifyNetworkError(err)
			Expect(gotCode).To(Equal(code))
			Expect(gotRetryable).To(Equal(retryable))
		},
		Entry("connection reset", &net.OpError{Op: "read", Err: syscall.ECONNRESET}, retry.CodeConnReset, true),
		Entry("connection refused", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, retry.CodeConnRefused, true),
		Entry("unexpected EOF", fmt.Errorf("reading: %w", io.ErrUnexpectedEOF), retry.CodeEOF, true),
		Entry("timeout", timeoutError{}, retry.CodeTimeout, true),
		Entry("anything else", errors.New("unsupported protocol scheme"), retry.CodeNetwork, false),
	)
})

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }
