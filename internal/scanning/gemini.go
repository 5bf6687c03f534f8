package scanning

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	maxExtractAttempts = 3
	maxTokenBudget     = 8192
	extractTimeout     = 120 * time.Second
)

// generateFunc runs one model request under an output-token budget and
// reports the response text and finish reason.
type generateFunc func(ctx context.Context, pngData []byte, budget int32) (string, genai.FinishReason, error)

// Gemini implements the Extractor interface using Google Gemini.
type Gemini struct {
	client    *genai.Client
	modelName string
	generate  generateFunc
}

// NewGemini creates a new Gemini extractor.
func NewGemini(apiKey string, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: %w: api key is required", ErrNotConfigured)
	}
	if modelName == "" {
		modelName = "gemini-2.5-pro"
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	g := &Gemini{
		client:    client,
		modelName: modelName,
	}
	g.generate = g.generateContent
	return g, nil
}

// tokenBudgetForSize picks the initial output-token ceiling from the
// PNG byte size. Larger photos tend to be denser receipts, where a
// small ceiling guarantees a truncated-JSON retry.
func tokenBudgetForSize(size int) int32 {
	switch {
	case size < 100*1024:
		return 2048
	case size < 300*1024:
		return 4096
	case size < 600*1024:
		return 6144
	default:
		return maxTokenBudget
	}
}

// ExtractReceipt analyzes a receipt image and extracts its line items
// and totals. When generation stops for hitting the output-token
// ceiling, the budget is doubled (capped at 8192) and the request
// retried; a receipt that still overflows the largest budget is
// reported as too complex rather than returned truncated.
func (g *Gemini) ExtractReceipt(imageData []byte, contentType string) (*ReceiptData, error) {
	ctx, cancel := context.WithTimeout(context.Background(), extractTimeout)
	defer cancel()

	pngData, _, _, err := prepareImageData(imageData, contentType)
	if err != nil {
		return nil, err
	}

	budget := tokenBudgetForSize(len(pngData))

	for attempt := 1; attempt <= maxExtractAttempts; attempt++ {
		text, finish, err := g.generate(ctx, pngData, budget)
		if err != nil {
			return nil, err
		}

		switch finish {
		case genai.FinishReasonStop, genai.FinishReasonUnspecified:
			data, err := parseReceiptJSON(text)
			if err != nil {
				return nil, fmt.Errorf("parsing receipt data: %w", err)
			}
			return data, nil
		case genai.FinishReasonMaxTokens:
			if budget >= maxTokenBudget {
				return nil, fmt.Errorf("%w: output exceeded %d tokens", ErrTooComplex, maxTokenBudget)
			}
			next := budget * 2
			if next > maxTokenBudget {
				next = maxTokenBudget
			}
			slog.Debug("extraction hit token ceiling, retrying",
				"attempt", attempt, "budget", budget, "next", next)
			budget = next
		default:
			return nil, fmt.Errorf("%w: finish reason %s", ErrBlocked, finish)
		}
	}

	return nil, fmt.Errorf("%w: output exceeded %d tokens after %d attempts", ErrTooComplex, maxTokenBudget, maxExtractAttempts)
}

// generateContent runs one request against a fresh model configured
// with the given output-token budget and low-variance sampling.
func (g *Gemini) generateContent(ctx context.Context, pngData []byte, budget int32) (string, genai.FinishReason, error) {
	model := g.client.GenerativeModel(g.modelName)
	model.SetTemperature(0.1)
	model.SetTopP(0.1)
	model.SetTopK(1)
	model.SetMaxOutputTokens(budget)

	// genai.ImageData expects the format suffix, not the full MIME
	// type. prepareImageData already normalized everything to PNG.
	resp, err := model.GenerateContent(ctx,
		genai.ImageData("png", pngData),
		genai.Text(receiptScanPrompt),
	)
	if err != nil {
		return "", genai.FinishReasonUnspecified, fmt.Errorf("generating content: %w", err)
	}

	if len(resp.Candidates) == 0 {
		return "", genai.FinishReasonUnspecified, fmt.Errorf("%w: no candidates in response", ErrBlocked)
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		// MaxTokens can truncate before any text is emitted; keep the
		// finish reason so the caller can grow the budget and retry.
		if candidate.FinishReason == genai.FinishReasonMaxTokens {
			return "", candidate.FinishReason, nil
		}
		return "", genai.FinishReasonUnspecified, fmt.Errorf("%w: empty response", ErrBlocked)
	}

	var responseText strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}

	return strings.TrimSpace(responseText.String()), candidate.FinishReason, nil
}

// Close closes the Gemini client.
func (g *Gemini) Close() error {
	return g.client.Close()
}
