package scanning

import "errors"

// Extraction failure taxonomy. Callers branch on these with errors.Is:
// ErrNotConfigured and ErrLowQuality invite a fallback or manual entry,
// ErrTooComplex and ErrBlocked are final for the attempted image.
var (
	// ErrNotConfigured means the extractor has no usable backend (for
	// example, no API key). Fail fast so the caller can fall back.
	ErrNotConfigured = errors.New("extractor not configured")

	// ErrTooComplex means the model's output kept exceeding the largest
	// allowed token budget; partial JSON is never returned instead.
	ErrTooComplex = errors.New("receipt too complex to extract")

	// ErrBlocked means generation stopped abnormally (safety filter,
	// empty response). Retrying cannot change the outcome.
	ErrBlocked = errors.New("extraction blocked")

	// ErrLowQuality means OCR ran but the text failed the quality bar.
	// A better photo is the fix, not a retry.
	ErrLowQuality = errors.New("image quality too low for recognition")
)

// LineItem is one extracted receipt line. Prices are dollars as
// returned by the model; the service layer converts to cents.
type LineItem struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// ReceiptData is the structured result of one extraction. Subtotal and
// Total are pointers because their absence from the receipt is
// meaningful: the reconciler derives missing values from item data.
type ReceiptData struct {
	StoreName string     `json:"store_name"`
	Date      string     `json:"date"` // ISO 8601
	Items     []LineItem `json:"items"`
	Subtotal  *float64   `json:"subtotal"`
	Tax       float64    `json:"tax"`
	Total     *float64   `json:"total"`
}

// Extractor turns a receipt image into structured data.
type Extractor interface {
	// ExtractReceipt analyzes a receipt image (or PDF) and extracts its
	// line items and totals.
	ExtractReceipt(imageData []byte, contentType string) (*ReceiptData, error)
	// Close releases backend resources.
	Close() error
}
