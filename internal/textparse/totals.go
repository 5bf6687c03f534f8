package textparse

import "regexp"

// MismatchToleranceCents is the slack allowed between a declared total
// and the sum of extracted item prices before the result is flagged.
// It covers rounding noise, not misread items.
const MismatchToleranceCents = 5

var (
	subtotalLineRe = regexp.MustCompile(`(?i)\bSUB\s*[-.]?\s*TOTAL\b`)
	taxLineRe      = regexp.MustCompile(`(?i)\b(?:SALES\s+)?(?:TAX(?:\s*\d*)?|HST|GST|PST)\b`)
	totalLineRe    = regexp.MustCompile(`(?i)(?:^|\s)[*]{0,4}\s*(?:GRAND\s+)?TOTAL\b|\bAMOUNT\s+DUE\b|\bBALANCE\s+DUE\b`)
	// "TOTAL SAVINGS 4.50" is a marketing line, not the amount due.
	savingsLineRe = regexp.MustCompile(`(?i)\b(SAVINGS|SAVED|ITEMS\s+SOLD)\b`)
)

// Totals carries the labeled amounts found on a receipt. Found flags
// distinguish "absent from the receipt" from a genuine zero.
type Totals struct {
	Subtotal      int64 `json:"subtotal"`
	SubtotalFound bool  `json:"subtotal_found"`
	Tax           int64 `json:"tax"`
	Total         int64 `json:"total"`
	TotalFound    bool  `json:"total_found"`
}

// ExtractTotals scans lines for labeled subtotal, tax, and total
// amounts. The last occurrence of each label wins, since receipts that
// repeat a label (running totals, reprints) put the authoritative value
// lowest on the page.
func ExtractTotals(lines []string) Totals {
	var t Totals
	for _, line := range lines {
		amount, ok := ParseCents(line)
		if !ok {
			continue
		}
		switch {
		case subtotalLineRe.MatchString(line):
			t.Subtotal = amount
			t.SubtotalFound = true
		case taxLineRe.MatchString(line):
			t.Tax = amount
		case totalLineRe.MatchString(line) && !savingsLineRe.MatchString(line):
			t.Total = amount
			t.TotalFound = true
		}
	}
	return t
}

// Reconciled is the finalized totals block with mismatch flags. Flags
// are warnings for the caller to surface; extraction still succeeds.
type Reconciled struct {
	Subtotal         int64 `json:"subtotal"`
	Tax              int64 `json:"tax"`
	Total            int64 `json:"total"`
	SubtotalMismatch bool  `json:"subtotal_mismatch"`
	TotalMismatch    bool  `json:"total_mismatch"`
}

// Reconcile derives any totals the receipt did not declare and compares
// the declared ones against the summed item prices. A missing subtotal
// becomes the item sum; a missing total becomes subtotal plus tax, so a
// usable result always comes out of item data alone.
func Reconcile(items []Item, t Totals) Reconciled {
	var itemSum int64
	for _, it := range items {
		itemSum += it.Price
	}

	r := Reconciled{Subtotal: t.Subtotal, Tax: t.Tax, Total: t.Total}
	if !t.SubtotalFound {
		r.Subtotal = itemSum
	} else {
		r.SubtotalMismatch = abs(itemSum-t.Subtotal) > MismatchToleranceCents
	}
	if !t.TotalFound {
		r.Total = r.Subtotal + r.Tax
	} else {
		r.TotalMismatch = abs((itemSum+r.Tax)-t.Total) > MismatchToleranceCents
	}
	return r
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
