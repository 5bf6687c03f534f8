package scanning

import (
	"errors"
	"fmt"
	"log/slog"
)

// Fallback chains two extractors: the secondary runs only when the
// primary fails. The usual pairing is a vision model backed by local
// OCR, so a missing API key or a blocked generation still yields a
// usable scan.
type Fallback struct {
	primary   Extractor
	secondary Extractor
}

// NewFallback creates a fallback extractor.
func NewFallback(primary, secondary Extractor) *Fallback {
	return &Fallback{primary: primary, secondary: secondary}
}

// ExtractReceipt tries the primary extractor and, on any failure, the
// secondary. When both fail the primary's error is returned with the
// secondary's attached, so errors.Is still matches either cause.
func (f *Fallback) ExtractReceipt(imageData []byte, contentType string) (*ReceiptData, error) {
	data, primaryErr := f.primary.ExtractReceipt(imageData, contentType)
	if primaryErr == nil {
		return data, nil
	}

	slog.Warn("primary extractor failed, falling back", "error", primaryErr)

	data, secondaryErr := f.secondary.ExtractReceipt(imageData, contentType)
	if secondaryErr == nil {
		return data, nil
	}

	return nil, fmt.Errorf("all extractors failed: %w (fallback: %w)", primaryErr, secondaryErr)
}

// Close closes both extractors.
func (f *Fallback) Close() error {
	return errors.Join(f.primary.Close(), f.secondary.Close())
}
