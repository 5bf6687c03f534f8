package textparse

import (
	"regexp"
	"strings"
)

// Walmart item lines carry a 12-digit UPC between the name and the
// price, and a single-letter tax flag next to the amount:
//
//	GV WHL MILK 007874235186 F   3.48
//	BANANAS     000000004011 X   1.24
//
// The generic scan handles the shape; the Walmart cleaner strips the
// UPC and flag residue plus the weighted-produce prefixes the generic
// cleaner keeps.
var walmartVoidRe = regexp.MustCompile(`(?i)\bVOID(ED)?\b`)

func parseWalmart(lines []string) []Item {
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		// A voided entry and the line it voids both vanish.
		if walmartVoidRe.MatchString(line) {
			if len(kept) > 0 {
				kept = kept[:len(kept)-1]
			}
			continue
		}
		kept = append(kept, line)
	}
	return scanLines(kept, cleanWalmartName)
}

var walmartWeightPrefixRe = regexp.MustCompile(`(?i)^(WT|LB)\s+`)

func cleanWalmartName(s string) string {
	s = walmartWeightPrefixRe.ReplaceAllString(strings.TrimSpace(s), "")
	return cleanGenericName(s)
}
