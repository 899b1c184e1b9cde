package discount

import "github.com/shopspring/decimal"

// MinRedeemablePoints is the smallest balance that can be redeemed.
const MinRedeemablePoints = 100

var (
	loyaltyCapRate = decimal.RequireFromString("0.10")
	pointValue     = decimal.RequireFromString("0.01")
)

// Loyalty returns the loyalty discount on running for a balance of points
// together with the points it consumes (100 points per dollar, rounded down).
func Loyalty(running decimal.Decimal, points int) (decimal.Decimal, int, error) {
	if points < MinRedeemablePoints {
		return decimal.Zero, 0, ErrNotEnoughPoints
	}
	discount := decimal.Min(running.Mul(loyaltyCapRate), decimal.NewFromInt(int64(points)).Mul(pointValue))
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	spent := int(discount.Mul(hundred).Floor().IntPart())
	return discount, spent, nil
}
