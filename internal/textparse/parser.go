package textparse

import (
	"regexp"
	"strings"
)

// Item is one extracted receipt line: a name and a price in cents.
type Item struct {
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

// Result is the output of parsing raw receipt text.
type Result struct {
	StoreName string `json:"store_name"`
	Items     []Item `json:"items"`
	Totals    Totals `json:"totals"`
}

// Parse converts raw OCR text into structured receipt data. The store is
// detected from the whole text first, then the matching layout grammar
// extracts item lines; unknown layouts fall back to the generic grammar.
// Unparsable lines are skipped, never fatal.
func Parse(text string) Result {
	lines := strings.Split(text, "\n")
	store := DetectStore(text)

	var items []Item
	switch store {
	case StoreWalmart:
		items = parseWalmart(lines)
	case StoreCostco:
		items = parseCostco(lines)
	default:
		items = scanLines(lines, cleanGenericName)
	}

	return Result{
		StoreName: string(store),
		Items:     items,
		Totals:    ExtractTotals(lines),
	}
}

const (
	minItemNameLen     = 3
	maxCarryForwardLen = 32
)

// scanLines is the shared top-to-bottom item scan. Lines rejected by the
// skip classifier are discarded; for the rest, the rightmost price on
// the line is authoritative and the preceding text becomes the name.
//
// Multi-line items: a short price-less line is carried forward, and when
// the next priced line's own leading text is too short to be a complete
// name the carried line is prepended. The carried line is consumed
// either way so it can never surface twice.
func scanLines(lines []string, clean func(string) string) []Item {
	var items []Item
	pending := ""
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if shouldSkip(line) {
			pending = ""
			continue
		}

		m, ok := rightmostPrice(line)
		if !ok {
			name := clean(line)
			if len(name) >= 2 && len(name) <= maxCarryForwardLen && !isNonItemName(name) {
				pending = name
			} else {
				pending = ""
			}
			continue
		}

		name := clean(line[:m.start])
		if len(name) < minItemNameLen && pending != "" {
			name = strings.TrimSpace(pending + " " + name)
		}
		pending = ""
		if len(name) < minItemNameLen || isNonItemName(name) {
			continue
		}
		items = append(items, Item{Name: name, Price: m.cents})
	}
	return items
}

var (
	upcCodeRe      = regexp.MustCompile(`\b\d{10,14}\b`)
	leadingQtyRe   = regexp.MustCompile(`^\d{1,2}\s*[xX@]?\s+`)
	trailingFlagRe = regexp.MustCompile(`\s+[A-Z]$`)
	nameNoiseRe    = regexp.MustCompile(`[^A-Za-z0-9&'%./\- ]+`)
	multiSpaceRe   = regexp.MustCompile(`\s{2,}`)
)

// cleanGenericName strips barcodes, tax letters, leading quantity tokens
// and stray symbols from the text preceding a price.
func cleanGenericName(s string) string {
	s = upcCodeRe.ReplaceAllString(s, "")
	s = leadingQtyRe.ReplaceAllString(strings.TrimSpace(s), "")
	s = nameNoiseRe.ReplaceAllString(s, " ")
	s = multiSpaceRe.ReplaceAllString(s, " ")
	s = trailingFlagRe.ReplaceAllString(strings.TrimSpace(s), "")
	return strings.TrimSpace(s)
}
