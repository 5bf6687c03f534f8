package textparse

import "regexp"

// Store is a canonical retailer name used to pick a layout-specific
// line grammar.
type Store string

const (
	StoreUnknown    Store = ""
	StoreWalmart    Store = "Walmart"
	StoreCostco     Store = "Costco"
	StoreTarget     Store = "Target"
	StoreKroger     Store = "Kroger"
	StoreSafeway    Store = "Safeway"
	StoreWalgreens  Store = "Walgreens"
	StoreCVS        Store = "CVS Pharmacy"
	StoreTraderJoes Store = "Trader Joe's"
	StoreAldi       Store = "Aldi"
	StoreWholeFoods Store = "Whole Foods"
)

// storePatterns maps receipt-text fingerprints to canonical store names.
// Order matters: the first match wins. Patterns tolerate the separators
// and dropped characters OCR tends to introduce ("WAL*MART", "WAL MART").
var storePatterns = []struct {
	re    *regexp.Regexp
	store Store
}{
	{regexp.MustCompile(`(?i)wal[\s\-*]?mart`), StoreWalmart},
	{regexp.MustCompile(`(?i)costco|wholesale\s+whse`), StoreCostco},
	{regexp.MustCompile(`(?i)\btarget\b`), StoreTarget},
	{regexp.MustCompile(`(?i)\bkroger\b`), StoreKroger},
	{regexp.MustCompile(`(?i)\bsafeway\b`), StoreSafeway},
	{regexp.MustCompile(`(?i)walgreens`), StoreWalgreens},
	{regexp.MustCompile(`(?i)\bcvs\b`), StoreCVS},
	{regexp.MustCompile(`(?i)trader\s*joe`), StoreTraderJoes},
	{regexp.MustCompile(`(?i)\baldi\b`), StoreAldi},
	{regexp.MustCompile(`(?i)whole\s*foods`), StoreWholeFoods},
}

// DetectStore classifies receipt text by retailer. Returns StoreUnknown
// when no fingerprint matches.
func DetectStore(text string) Store {
	for _, p := range storePatterns {
		if p.re.MatchString(text) {
			return p.store
		}
	}
	return StoreUnknown
}

// NormalizeStoreName maps a free-form store name (as returned by a
// vision model or typed by a user) onto its canonical form. Unmatched
// names pass through unchanged.
func NormalizeStoreName(name string) string {
	if s := DetectStore(name); s != StoreUnknown {
		return string(s)
	}
	return name
}
