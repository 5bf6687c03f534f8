package textparse

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

// Costco item lines lead with a 4-7 digit item number, sometimes behind
// an "E" tax-exemption marker:
//
//	E 96716 ORG SPINACH      3.99
//	1204136 KS WATER 40CT    4.49
//
// Instant-savings discounts appear as their own line with a trailing
// minus and must be folded into the item directly above them:
//
//	294721 /1204136          3.00-
var (
	costcoItemNumRe   = regexp.MustCompile(`^E?\s*\d{4,7}\s+`)
	costcoDiscountRe  = regexp.MustCompile(`\d{1,4}\.\d{2}\s*-\s*$`)
	costcoRefLineRe   = regexp.MustCompile(`/\s*\d{4,}`)
	costcoItemsSoldRe = regexp.MustCompile(`(?i)TOTAL\s+NUMBER\s+OF\s+ITEMS\s+SOLD\s*=?\s*(\d+)`)
)

func parseCostco(lines []string) []Item {
	var items []Item
	expected := -1
	pending := ""
	for _, raw := range lines {
		line := strings.TrimSpace(raw)

		if m := costcoItemsSoldRe.FindStringSubmatch(line); m != nil {
			expected, _ = strconv.Atoi(m[1])
			pending = ""
			continue
		}

		// Discounts run before the skip classifier: a "/1204136 3.00-"
		// line would otherwise be mistaken for register noise, and the
		// amount must come off the preceding item rather than becoming
		// an item of its own.
		if costcoDiscountRe.MatchString(line) || (costcoRefLineRe.MatchString(line) && strings.HasSuffix(line, "-")) {
			if m, ok := rightmostPrice(line); ok && len(items) > 0 {
				items[len(items)-1].Price -= m.cents
				if items[len(items)-1].Price < 0 {
					items[len(items)-1].Price = 0
				}
			}
			pending = ""
			continue
		}

		if shouldSkip(line) {
			pending = ""
			continue
		}

		m, ok := rightmostPrice(line)
		if !ok {
			name := cleanCostcoName(line)
			if len(name) >= 2 && len(name) <= maxCarryForwardLen && !isNonItemName(name) {
				pending = name
			} else {
				pending = ""
			}
			continue
		}

		name := cleanCostcoName(line[:m.start])
		if len(name) < minItemNameLen && pending != "" {
			name = strings.TrimSpace(pending + " " + name)
		}
		pending = ""
		if len(name) < minItemNameLen || isNonItemName(name) {
			continue
		}
		items = append(items, Item{Name: name, Price: m.cents})
	}

	// The items-sold marker is a consistency check only; OCR dropping a
	// line should not fail the whole parse.
	if expected >= 0 && expected != len(items) {
		slog.Debug("costco item count mismatch", "expected", expected, "parsed", len(items))
	}
	return items
}

func cleanCostcoName(s string) string {
	s = costcoItemNumRe.ReplaceAllString(strings.TrimSpace(s), "")
	return cleanGenericName(s)
}
