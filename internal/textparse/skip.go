package textparse

import (
	"regexp"
	"strings"
)

// The skip classifier is a fixed pipeline of small predicates, each
// responsible for one family of non-item lines. Keeping them separate
// keeps each heuristic testable on its own.

var (
	separatorRe = regexp.MustCompile(`^[\s\-=_*.#]+$`)
	dateRe      = regexp.MustCompile(`\b\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b|\b\d{4}[/-]\d{1,2}[/-]\d{1,2}\b`)
	timeRe      = regexp.MustCompile(`\b\d{1,2}:\d{2}(:\d{2})?\s*(AM|PM|am|pm)?\b`)
	// No \b after "#": both sides of the boundary would be non-word
	// characters on lines like "ST# 02536", so it could never match.
	registerRe = regexp.MustCompile(`(?i)\b(ST|OP|TE|TR|STORE)\s*#|\b(TRN|REG\s*#?\d|CASHIER|OPERATOR|LANE|TERMINAL|MEMBER\s*#?|MGR)\b`)
	paymentRe  = regexp.MustCompile(`(?i)\b(VISA|MASTERCARD|M/C|AMEX|DISCOVER|DEBIT|CREDIT|CASH|CHANGE|TEND(ER)?(ED)?|ACCOUNT|APPROVED|AUTH|CHIP|CONTACTLESS|EFT|PAYMENT|BALANCE\s+DUE|AMT\s+PAID|REF\s*#)\b`)
	phoneRe    = regexp.MustCompile(`\(\d{3}\)\s*\d{3}[\s-]?\d{4}|\b\d{3}-\d{3}-\d{4}\b`)
	barcodeRe  = regexp.MustCompile(`^[\s\d]{11,}$`)
	digitsRe   = regexp.MustCompile(`^\d+$`)
	// Weight or quantity calculation artifacts such as
	// "2.38 lb @ 1.0 lb /1.12  2.67" or "3 @ 2.99". These end in a
	// computed amount but are never items themselves.
	weightCalcRe = regexp.MustCompile(`(?i)^\s*\d+(\.\d+)?\s*(lb|lbs|oz|kg|g|ea|x)?\s*@\s*\$?\d`)
	greetingRe   = regexp.MustCompile(`(?i)(THANK\s*YOU|HAVE\s+A|WELCOME|RETURN\s+POLICY|SAVE\s+MONEY|LIVE\s+BETTER|www\.|\.com\b|SURVEY|RECEIPT\s+ID)`)
)

// summaryRe recognizes total-summary lines. These run before item
// extraction so an "ambiguous" line is always classified as a summary,
// never an item.
var summaryRe = regexp.MustCompile(`(?i)^\W*(SUB\s*[-.]?\s*TOTAL|TOTAL|GRAND\s+TOTAL|TAX|HST|GST|PST|AMOUNT\s+DUE|BALANCE)\b`)

// nonItemKeywords rejects extracted names that are really labels.
var nonItemKeywords = map[string]bool{
	"SUBTOTAL": true, "TOTAL": true, "TAX": true, "QTY": true,
	"CHANGE": true, "CASH": true, "DEBIT": true, "CREDIT": true,
	"BALANCE": true, "SAVINGS": true, "COUPON": true, "VOID": true,
	"ITEM": true, "ITEMS": true, "PRICE": true, "AMOUNT": true,
}

func isSeparator(line string) bool { return separatorRe.MatchString(line) }

func isDateOrTimeOnly(line string) bool {
	stripped := dateRe.ReplaceAllString(line, "")
	stripped = timeRe.ReplaceAllString(stripped, "")
	return strings.TrimSpace(stripped) != strings.TrimSpace(line) &&
		len(strings.TrimFunc(stripped, func(r rune) bool {
			return r == ' ' || r == '\t' || r == '#' || r == ':' || r == '-'
		})) < 3
}

func isRegisterMetadata(line string) bool { return registerRe.MatchString(line) }

func isPaymentLine(line string) bool { return paymentRe.MatchString(line) }

func isBarcodeOnly(line string) bool {
	return digitsRe.MatchString(strings.TrimSpace(line)) || barcodeRe.MatchString(line)
}

func isWeightCalculation(line string) bool { return weightCalcRe.MatchString(line) }

func isGreetingOrBoilerplate(line string) bool {
	return greetingRe.MatchString(line) || phoneRe.MatchString(line)
}

func isSummaryLine(line string) bool { return summaryRe.MatchString(line) }

// shouldSkip reports whether a line can be discarded before item
// extraction. The predicates run in a fixed order; summary lines are
// handled separately by the totals extractor, so they are skipped here
// too.
func shouldSkip(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return true
	}
	for _, pred := range []func(string) bool{
		isSeparator,
		isSummaryLine,
		isBarcodeOnly,
		isDateOrTimeOnly,
		isRegisterMetadata,
		isPaymentLine,
		isWeightCalculation,
		isGreetingOrBoilerplate,
	} {
		if pred(trimmed) {
			return true
		}
	}
	return false
}

func isNonItemName(name string) bool {
	return nonItemKeywords[strings.ToUpper(strings.TrimSpace(name))]
}
