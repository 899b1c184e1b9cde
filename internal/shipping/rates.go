// Package shipping prices delivery methods and books shipments for orders.
package shipping

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-checkout/internal/store"
)

// ErrInvalidMethod is returned for an unknown shipping method key.
var ErrInvalidMethod = errors.New("shipping: invalid shipping method")

// Method keys.
const (
	MethodStandard  = "standard"
	MethodExpress   = "express"
	MethodOvernight = "overnight"
)

type rateFunc func(weight decimal.Decimal, tier store.Tier, subtotal decimal.Decimal) decimal.Decimal

var (
	freeStandardThreshold = decimal.NewFromInt(50)
	half                  = decimal.RequireFromString("0.5")
)

var methods = map[string]rateFunc{
	MethodStandard: func(w decimal.Decimal, _ store.Tier, subtotal decimal.Decimal) decimal.Decimal {
		if subtotal.LessThan(freeStandardThreshold) {
			return decimal.NewFromInt(5).Add(w.Mul(decimal.RequireFromString("0.2")))
		}
		return decimal.Zero
	},
	MethodExpress: func(w decimal.Decimal, tier store.Tier, _ decimal.Decimal) decimal.Decimal {
		cost := decimal.NewFromInt(25).Add(w.Mul(half))
		if tier == store.TierGold {
			cost = cost.Mul(half)
		}
		return cost
	},
	MethodOvernight: func(w decimal.Decimal, _ store.Tier, _ decimal.Decimal) decimal.Decimal {
		return decimal.NewFromInt(50).Add(w)
	},
}

// Methods lists the supported method keys.
func Methods() []string {
	out := make([]string, 0, len(methods))
	for k := range methods {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Cost prices method for a parcel of weight going to a customer of tier whose
// discounted subtotal is subtotal.
func Cost(method string, weight decimal.Decimal, tier store.Tier, subtotal decimal.Decimal) (decimal.Decimal, error) {
	fn, ok := methods[strings.ToLower(strings.TrimSpace(method))]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidMethod, method)
	}
	return fn(weight, tier, subtotal), nil
}
