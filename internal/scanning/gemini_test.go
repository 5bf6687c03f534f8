package scanning

import (
	"context"

	"github.com/google/generative-ai-go/genai"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Gemini ExtractReceipt", func() {
	var (
		gemini  *Gemini
		budgets []int32
		data    *ReceiptData
		err     error
	)

	BeforeEach(func() {
		gemini = &Gemini{modelName: "test-model"}
		budgets = nil
	})

	JustBeforeEach(func() {
		data, err = gemini.ExtractReceipt([]byte("fake png bytes"), "image/png")
	})

	When("every attempt hits the output-token ceiling", func() {
		BeforeEach(func() {
			gemini.generate = func(ctx context.Context, pngData []byte, budget int32) (string, genai.FinishReason, error) {
				budgets = append(budgets, budget)
				return "", genai.FinishReasonMaxTokens, nil
			}
		})

		It("should return a too-complex error", func() {
			Expect(err).To(MatchError(ErrTooComplex))
			Expect(data).To(BeNil())
		})

		It("should double the budget up to the cap before giving up", func() {
			Expect(budgets).To(Equal([]int32{2048, 4096, 8192}))
		})
	})

	When("a retry at a larger budget succeeds", func() {
		BeforeEach(func() {
			gemini.generate = func(ctx context.Context, pngData []byte, budget int32) (string, genai.FinishReason, error) {
				budgets = append(budgets, budget)
				if budget < 4096 {
					return "", genai.FinishReasonMaxTokens, nil
				}
				return `{"store_name": "Safeway", "date": "2024-02-01", "items": [{"name": "Milk", "price": 3.49}], "subtotal": 3.49, "tax": 0.0, "total": 3.49}`, genai.FinishReasonStop, nil
			}
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should parse the retried response", func() {
			Expect(data.StoreName).To(Equal("Safeway"))
			Expect(data.Items).To(HaveLen(1))
		})

		It("should stop retrying once generation completes", func() {
			Expect(budgets).To(Equal([]int32{2048, 4096}))
		})
	})

	When("generation stops for an abnormal reason", func() {
		BeforeEach(func() {
			gemini.generate = func(ctx context.Context, pngData []byte, budget int32) (string, genai.FinishReason, error) {
				return "", genai.FinishReasonSafety, nil
			}
		})

		It("should return a blocked error", func() {
			Expect(err).To(MatchError(ErrBlocked))
			Expect(data).To(BeNil())
		})
	})
})
