package discount

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-checkout/internal/store"
)

var membershipRates = map[store.Tier]decimal.Decimal{
	store.TierSuspended: decimal.Zero,
	store.TierBronze:    decimal.RequireFromString("0.03"),
	store.TierSilver:    decimal.RequireFromString("0.07"),
	store.TierGold:      decimal.RequireFromString("0.15"),
}

// MembershipRate returns the discount rate of tier. Unknown tiers earn nothing.
func MembershipRate(tier store.Tier) decimal.Decimal {
	if rate, ok := membershipRates[tier]; ok {
		return rate
	}
	return decimal.Zero
}

// Membership returns the membership discount on running.
func Membership(running decimal.Decimal, tier store.Tier) decimal.Decimal {
	return running.Mul(MembershipRate(tier))
}
