package scanning

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tabsplit/tabsplit/internal/textparse"
)

// parseReceiptJSON parses the JSON response from a vision model.
func parseReceiptJSON(text string) (*ReceiptData, error) {
	// Remove markdown code blocks if present
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	// Find the JSON object boundaries - look for first { and last }
	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}

	text = text[startIdx : endIdx+1]

	var data ReceiptData
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	// A missing items key means the model did not follow the schema at
	// all; an empty array is a legitimate "nothing readable" answer.
	if data.Items == nil {
		return nil, fmt.Errorf("response missing items array")
	}

	data.Date = normalizeDate(data.Date)

	data.StoreName = textparse.NormalizeStoreName(strings.TrimSpace(data.StoreName))
	if data.StoreName == "" {
		data.StoreName = "Unknown Store"
	}

	for i := range data.Items {
		data.Items[i].Name = strings.TrimSpace(data.Items[i].Name)
	}

	// Note: prices stay float64 dollars here (for JSON unmarshaling).
	// They are converted to int cents in the service layer.

	return &data, nil
}

// normalizeDate coerces common receipt date formats to ISO 8601,
// falling back to today when the value is missing or unparseable.
func normalizeDate(s string) string {
	if s == "" {
		return time.Now().Format("2006-01-02")
	}
	if d, err := time.Parse("2006-01-02", s); err == nil {
		return d.Format("2006-01-02")
	}
	formats := []string{
		"2006/01/02",
		"01/02/2006",
		"01/02/06",
		"02-01-2006",
	}
	for _, format := range formats {
		if d, err := time.Parse(format, s); err == nil {
			return d.Format("2006-01-02")
		}
	}
	return time.Now().Format("2006-01-02")
}
