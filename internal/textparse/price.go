package textparse

import (
	"regexp"
	"strconv"
	"strings"
)

// Price patterns, most specific first. Each must capture dollars and
// cents as separate groups so amounts parse straight to integer cents
// without a float round-trip.
var (
	currencyPriceRe = regexp.MustCompile(`[$]\s?(\d{1,4})\.(\d{2})`)
	// Trailing tax letter: "3.48 X", "2.50N". Walmart and Kroger mark
	// taxable lines this way.
	taxLetterPriceRe = regexp.MustCompile(`(\d{1,4})\.(\d{2})\s?[A-Z]\b`)
	plainPriceRe     = regexp.MustCompile(`(\d{1,4})\.(\d{2})`)
	// OCR often reads the decimal point as a space: "MILK 3 48".
	spacedPriceRe = regexp.MustCompile(`(\d{1,4})\s(\d{2})\s*$`)

	priceTokenRe = regexp.MustCompile(`[$]?\d{1,4}\.\d{2}`)
)

type priceMatch struct {
	start, end int
	cents      int64
}

// rightmostPrice finds the last plausible price on a line. Rightmost
// wins because calculation lines ("2 @ 1.50  3.00") put the final
// computed amount last.
func rightmostPrice(line string) (priceMatch, bool) {
	best := priceMatch{start: -1}
	for _, re := range []*regexp.Regexp{currencyPriceRe, taxLetterPriceRe, plainPriceRe, spacedPriceRe} {
		for _, idx := range re.FindAllStringSubmatchIndex(line, -1) {
			if idx[0] <= best.start {
				continue
			}
			dollars, err1 := strconv.ParseInt(line[idx[2]:idx[3]], 10, 64)
			cents, err2 := strconv.ParseInt(line[idx[4]:idx[5]], 10, 64)
			if err1 != nil || err2 != nil {
				continue
			}
			best = priceMatch{start: idx[0], end: idx[1], cents: dollars*100 + cents}
		}
	}
	if best.start < 0 {
		return priceMatch{}, false
	}
	return best, true
}

// CountPriceTokens counts currency-amount substrings in text. The OCR
// trial scorer uses this to prefer results rich in plausible prices.
func CountPriceTokens(text string) int {
	return len(priceTokenRe.FindAllString(text, -1))
}

// ParseCents converts a textual dollar amount ("3.99", "$1,234.50",
// "3 99") to integer cents. Returns false when no amount is present.
func ParseCents(s string) (int64, bool) {
	s = strings.ReplaceAll(s, ",", "")
	if m, ok := rightmostPrice(s); ok {
		return m.cents, true
	}
	return 0, false
}
