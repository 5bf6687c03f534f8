package splitting

import "math"

// RuleKind identifies how an item's price is divided among participants.
type RuleKind string

const (
	// Equal divides the item price evenly among the assigned participants.
	Equal RuleKind = "equal"
	// Percent divides the item price by declared percentage shares.
	Percent RuleKind = "percent"
	// Fixed credits declared amounts directly, splitting any shortfall evenly.
	Fixed RuleKind = "fixed"
)

// Share is one participant's stake in a percent or fixed split.
type Share struct {
	ParticipantID string  `json:"participant_id"`
	Percent       float64 `json:"percent,omitempty"`
	Amount        int64   `json:"amount,omitempty"` // Amount in cents, fixed splits only
}

// Rule describes how a single item is split. Kind selects the variant:
// Equal uses Participants, Percent and Fixed use Shares.
type Rule struct {
	Kind         RuleKind `json:"kind"`
	Participants []string `json:"participants,omitempty"`
	Shares       []Share  `json:"shares,omitempty"`
}

// Item is a priced line with its split rule.
type Item struct {
	Name  string `json:"name"`
	Price int64  `json:"price"` // Amount in cents
	Rule  Rule   `json:"rule"`
}

// ParticipantTotal is one participant's owed amount in cents.
type ParticipantTotal struct {
	ParticipantID string `json:"participant_id"`
	Amount        int64  `json:"amount"`
}

// Summary is the derived per-participant ledger for a bill. The sum of
// all participant amounts always equals GrandTotal exactly.
type Summary struct {
	GrandTotal int64              `json:"grand_total"`
	Totals     []ParticipantTotal `json:"totals"`
}

// ComputeSummary allocates every item's price across the roster according
// to each item's rule, splits tax evenly across the whole roster, and
// rounds each participant's total to whole cents. Rounding error versus
// the grand total is corrected by crediting the residual cent(s) to the
// participant with the largest fractional remainder, so the summary
// always balances to the cent.
//
// The computation is pure: it reads nothing but its arguments and never
// fails. Malformed rules (no shares, percentages summing to zero, ids
// missing from the roster) degrade to an even split across the roster
// rather than dropping money.
func ComputeSummary(items []Item, roster []string, tax int64) Summary {
	raw := make(map[string]float64, len(roster))
	for _, id := range roster {
		raw[id] = 0
	}

	var grandTotal int64
	for _, item := range items {
		grandTotal += item.Price
		allocateItem(raw, item, roster)
	}

	grandTotal += tax
	if len(roster) > 0 && tax != 0 {
		perHead := float64(tax) / float64(len(roster))
		for _, id := range roster {
			raw[id] += perHead
		}
	}

	totals := make([]ParticipantTotal, 0, len(roster))
	var roundedSum int64
	largestFraction := -1.0
	largestIdx := -1
	for i, id := range roster {
		amount := raw[id]
		rounded := int64(math.Round(amount))
		roundedSum += rounded
		if frac := amount - math.Floor(amount); frac > largestFraction {
			largestFraction = frac
			largestIdx = i
		}
		totals = append(totals, ParticipantTotal{ParticipantID: id, Amount: rounded})
	}

	// Greedy largest-remainder correction keeps the ledger penny-exact.
	if residual := grandTotal - roundedSum; residual != 0 && largestIdx >= 0 {
		totals[largestIdx].Amount += residual
	}

	return Summary{GrandTotal: grandTotal, Totals: totals}
}

// allocateItem adds one item's price to the running raw totals, in cents.
// Shares naming ids outside the roster are dropped before normalization
// so the full price always lands on roster members.
func allocateItem(raw map[string]float64, item Item, roster []string) {
	switch item.Rule.Kind {
	case Percent:
		shares := rosterShares(raw, item.Rule.Shares)
		var declared float64
		for _, s := range shares {
			declared += s.Percent
		}
		if declared <= 0 {
			splitEvenly(raw, float64(item.Price), equalSet(raw, item.Rule.Participants, roster))
			return
		}
		// Rescale against the declared sum so 90 or 110 still divides the
		// whole price while preserving relative weights.
		for _, s := range shares {
			raw[s.ParticipantID] += float64(item.Price) * s.Percent / declared
		}
	case Fixed:
		shares := rosterShares(raw, item.Rule.Shares)
		if len(shares) == 0 {
			splitEvenly(raw, float64(item.Price), equalSet(raw, item.Rule.Participants, roster))
			return
		}
		var declared int64
		for _, s := range shares {
			declared += s.Amount
		}
		// Any shortfall is spread evenly across the item's shares, never
		// dropped. An oversubscribed item distributes the negative
		// remainder the same way; rejecting that is the caller's job.
		remainder := float64(item.Price-declared) / float64(len(shares))
		for _, s := range shares {
			raw[s.ParticipantID] += float64(s.Amount) + remainder
		}
	case Equal:
		splitEvenly(raw, float64(item.Price), equalSet(raw, item.Rule.Participants, roster))
	default:
		// Unknown rule kinds still have to account for the full price or
		// the summary cannot balance.
		splitEvenly(raw, float64(item.Price), roster)
	}
}

func splitEvenly(raw map[string]float64, price float64, ids []string) {
	if len(ids) == 0 {
		return
	}
	perHead := price / float64(len(ids))
	for _, id := range ids {
		raw[id] += perHead
	}
}

// rosterShares keeps only shares whose participant is on the roster.
func rosterShares(raw map[string]float64, shares []Share) []Share {
	kept := make([]Share, 0, len(shares))
	for _, s := range shares {
		if _, ok := raw[s.ParticipantID]; ok {
			kept = append(kept, s)
		}
	}
	return kept
}

// equalSet resolves the participant list for an even split, falling back
// to the whole roster when the rule names nobody valid.
func equalSet(raw map[string]float64, ids, roster []string) []string {
	kept := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := raw[id]; ok {
			kept = append(kept, id)
		}
	}
	if len(kept) == 0 {
		return roster
	}
	return kept
}
