package id_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"bothelp.app/voiceover/common/id"
)

var _ = Describe("Snowflake IDs", func() {
	BeforeEach(func() {
		Expect(id.Init(1)).To(Succeed())
	})

	It("generates increasing unique IDs", func() {
		a := id.New()
		b := id.New()
		Expect(a).NotTo(BeZero())
		Expect(b).To(BeNumerically(">", a))
	})

	It("generates non-empty base36 IDs", func() {
		Expect(id.NewBase36()).NotTo(BeEmpty())
	})
})
