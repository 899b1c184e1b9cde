package discount

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-checkout/internal/store"
)

// BulkTier grants Rate off once the cart holds at least MinQuantity units.
type BulkTier struct {
	MinQuantity int             `json:"minQuantity"`
	Rate        decimal.Decimal `json:"rate"`
}

// DefaultBulkTiers returns the stock tier table.
func DefaultBulkTiers() []BulkTier {
	return []BulkTier{
		{MinQuantity: 0, Rate: decimal.Zero},
		{MinQuantity: 5, Rate: decimal.RequireFromString("0.02")},
		{MinQuantity: 10, Rate: decimal.RequireFromString("0.05")},
	}
}

// NormalizeTiers returns a copy of tiers sorted by threshold with a zero-rate
// fallback at threshold 0 added when missing.
func NormalizeTiers(tiers []BulkTier) []BulkTier {
	out := make([]BulkTier, 0, len(tiers)+1)
	hasFloor := false
	for _, t := range tiers {
		if t.MinQuantity < 0 {
			continue
		}
		if t.MinQuantity == 0 {
			hasFloor = true
		}
		out = append(out, t)
	}
	if !hasFloor {
		out = append(out, BulkTier{MinQuantity: 0, Rate: decimal.Zero})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].MinQuantity < out[j].MinQuantity })
	return out
}

// SelectBulkTier picks the qualifying tier with the highest threshold.
func SelectBulkTier(tiers []BulkTier, totalQuantity int) BulkTier {
	best := BulkTier{Rate: decimal.Zero}
	found := false
	for _, t := range tiers {
		if totalQuantity < t.MinQuantity {
			continue
		}
		if !found || t.MinQuantity > best.MinQuantity {
			best = t
			found = true
		}
	}
	return best
}

// TotalQuantity sums line quantities.
func TotalQuantity(lines []store.Line) int {
	total := 0
	for _, l := range lines {
		total += l.Quantity
	}
	return total
}

// Bulk returns the bulk discount on running and the tier that produced it.
func Bulk(running decimal.Decimal, tiers []BulkTier, totalQuantity int) (decimal.Decimal, BulkTier) {
	tier := SelectBulkTier(NormalizeTiers(tiers), totalQuantity)
	return running.Mul(tier.Rate), tier
}
