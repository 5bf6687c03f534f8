package scanning

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"log/slog"

	"github.com/tabsplit/tabsplit/internal/ocr"
	"github.com/tabsplit/tabsplit/internal/preprocess"
	"github.com/tabsplit/tabsplit/internal/textparse"
)

// LocalOCR implements the Extractor interface with Tesseract and the
// rule-based text parser. It needs no API key or network, at the cost
// of lower accuracy on crumpled or dim photos.
type LocalOCR struct {
	maxDimension int
	onProgress   ocr.ProgressFunc
}

// NewLocalOCR creates a local OCR extractor. onProgress may be nil.
func NewLocalOCR(onProgress ocr.ProgressFunc) *LocalOCR {
	return &LocalOCR{
		maxDimension: preprocess.DefaultMaxDimension,
		onProgress:   onProgress,
	}
}

// ExtractReceipt preprocesses the image into OCR-friendly variants,
// recognizes the best one, and parses the text into structured data.
func (l *LocalOCR) ExtractReceipt(imageData []byte, contentType string) (*ReceiptData, error) {
	pngData, _, _, err := prepareImageData(imageData, contentType)
	if err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(pngData))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	variants, err := buildVariants(img, l.maxDimension)
	if err != nil {
		return nil, err
	}

	result, err := ocr.Recognize(variants, l.onProgress)
	if err != nil {
		return nil, fmt.Errorf("recognizing text: %w", err)
	}
	if !result.Success {
		return nil, fmt.Errorf("%w: confidence %.1f", ErrLowQuality, result.Confidence)
	}

	parsed := textparse.Parse(result.Text)
	slog.Debug("local extraction complete",
		"store", parsed.StoreName, "items", len(parsed.Items), "confidence", result.Confidence)

	return toReceiptData(parsed), nil
}

// buildVariants produces the trial buffers in descending order of
// expected quality: stretched grayscale first, the untouched scaled
// image second, and last the binarized variant that rescues
// low-contrast photos.
func buildVariants(img image.Image, maxDim int) ([]ocr.Variant, error) {
	scaled := preprocess.Scale(img, maxDim)

	gray := preprocess.Enhance(scaled, preprocess.EnhanceOptions{SkipThreshold: true})
	grayPNG, err := encodePNG(gray)
	if err != nil {
		return nil, err
	}

	scaledPNG, err := encodePNG(scaled)
	if err != nil {
		return nil, err
	}

	binary := preprocess.Enhance(scaled, preprocess.EnhanceOptions{})
	binaryPNG, err := encodePNG(binary)
	if err != nil {
		return nil, err
	}

	return []ocr.Variant{
		{Label: "enhanced", PNG: grayPNG},
		{Label: "scaled", PNG: scaledPNG},
		{Label: "threshold", PNG: binaryPNG},
	}, nil
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// toReceiptData converts parsed cents to the dollar-valued wire shape
// shared with the vision extractors.
func toReceiptData(parsed textparse.Result) *ReceiptData {
	data := &ReceiptData{
		StoreName: parsed.StoreName,
		Items:     make([]LineItem, 0, len(parsed.Items)),
		Tax:       dollars(parsed.Totals.Tax),
	}
	for _, item := range parsed.Items {
		data.Items = append(data.Items, LineItem{
			Name:  item.Name,
			Price: dollars(item.Price),
		})
	}
	if parsed.Totals.SubtotalFound {
		v := dollars(parsed.Totals.Subtotal)
		data.Subtotal = &v
	}
	if parsed.Totals.TotalFound {
		v := dollars(parsed.Totals.Total)
		data.Total = &v
	}
	return data
}

func dollars(cents int64) float64 {
	return float64(cents) / 100
}

// Close is a no-op; Tesseract clients are created per trial.
func (l *LocalOCR) Close() error {
	return nil
}
