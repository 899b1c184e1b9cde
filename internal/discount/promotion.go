package discount

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-checkout/internal/store"
)

var hundred = decimal.NewFromInt(100)

// CheckPromotion reports why p cannot apply to a cart with the given running
// price and line categories, or nil when it can.
func CheckPromotion(p store.Promotion, now time.Time, running decimal.Decimal, categories []string) error {
	if !now.Before(p.ValidUntil) {
		return ErrPromotionExpired
	}
	if running.LessThan(p.MinPurchase) {
		return ErrBelowMinimumPurchase
	}
	if p.Category == store.PromotionCategoryAll {
		return nil
	}
	for _, c := range categories {
		if c == p.Category {
			return nil
		}
	}
	return ErrCategoryMismatch
}

// Promotion returns running × percent/100.
func Promotion(running, percent decimal.Decimal) decimal.Decimal {
	return running.Mul(percent).Div(hundred)
}
