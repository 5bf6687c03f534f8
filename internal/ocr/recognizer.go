// Package ocr extracts text from receipt images with the Tesseract
// engine, trying several preprocessed variants of the same photo and
// keeping the best-scoring result.
package ocr

import (
	"fmt"
	"math"

	"github.com/otiai10/gosseract/v2"

	"github.com/tabsplit/tabsplit/internal/textparse"
)

const (
	// minTextLength discards trials too short to be a receipt.
	minTextLength = 30
	// minConfidence is the floor for a successful recognition.
	minConfidence = 15.0

	// Early-exit thresholds: a trial this good ends the loop so easy
	// images never pay for the remaining trials.
	earlyExitConfidence = 70.0
	earlyExitPriceCount = 3
	earlyExitTextLength = 100
)

// Variant is one candidate buffer for a trial, PNG-encoded.
type Variant struct {
	Label string
	PNG   []byte
}

// Result is the outcome of recognition across all trials. Success false
// means the text is unusable and the caller must fall back or ask for a
// better photo; it is not a partial result.
type Result struct {
	Text       string
	Confidence float64
	Success    bool
}

// ProgressFunc receives advisory completion percentages. Reported
// values never decrease.
type ProgressFunc func(pct int)

// Recognize runs Tesseract over each variant in order and returns the
// best-scoring text. Trials run sequentially on purpose: a strong early
// trial short-circuits the rest.
func Recognize(variants []Variant, onProgress ProgressFunc) (Result, error) {
	if len(variants) == 0 {
		return Result{}, fmt.Errorf("no image variants to recognize")
	}

	progress := monotonic(onProgress)
	progress(0)

	var best Result
	bestScore := -1.0
	for i, v := range variants {
		text, confidence, err := runTrial(v.PNG)
		progress((i + 1) * 100 / len(variants))
		if err != nil {
			// A failed trial costs one candidate, not the whole scan.
			continue
		}
		if len(text) < minTextLength {
			continue
		}

		prices := textparse.CountPriceTokens(text)
		if score := scoreTrial(text, confidence, prices); score > bestScore {
			bestScore = score
			best = Result{Text: text, Confidence: confidence}
		}

		if confidence > earlyExitConfidence && prices >= earlyExitPriceCount && len(text) >= earlyExitTextLength {
			break
		}
	}

	progress(100)
	best.Success = len(best.Text) >= minTextLength && best.Confidence >= minConfidence
	return best, nil
}

// runTrial performs one Tesseract pass and derives a 0-100 confidence
// from the mean word confidence.
func runTrial(png []byte) (string, float64, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage("eng"); err != nil {
		return "", 0, fmt.Errorf("setting language: %w", err)
	}
	if err := client.SetImageFromBytes(png); err != nil {
		return "", 0, fmt.Errorf("setting image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", 0, fmt.Errorf("running ocr: %w", err)
	}

	var confidence float64
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err == nil && len(boxes) > 0 {
		var sum float64
		for _, box := range boxes {
			sum += box.Confidence
		}
		confidence = sum / float64(len(boxes))
	}

	return text, confidence, nil
}

// scoreTrial ranks a trial by confidence weighted toward long,
// price-rich text. Length enters under a square root so a verbose but
// low-confidence read cannot swamp a precise one, and each plausible
// price doubles down on receipt-shaped output.
func scoreTrial(text string, confidence float64, priceCount int) float64 {
	return confidence * math.Sqrt(float64(len(text))) * (1 + 2*float64(priceCount))
}

// monotonic wraps a progress callback so reported percentages never go
// backwards, and tolerates a nil callback.
func monotonic(fn ProgressFunc) ProgressFunc {
	last := -1
	return func(pct int) {
		if fn == nil {
			return
		}
		if pct < last {
			return
		}
		last = pct
		fn(pct)
	}
}
