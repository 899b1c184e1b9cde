// Package discount holds the four pricing strategies as static tables and pure
// functions. Each strategy reports why it did not apply through a sentinel so
// callers can tell a no-op from a discount.
package discount

import "errors"

var (
	// ErrNoPromotionCode means the checkout carried no promotion code.
	ErrNoPromotionCode = errors.New("discount: no promotion code")
	// ErrPromotionNotFound means the code does not resolve to a promotion.
	ErrPromotionNotFound = errors.New("discount: promotion not found")
	// ErrPromotionExpired means the promotion's validity window has closed.
	ErrPromotionExpired = errors.New("discount: promotion expired")
	// ErrBelowMinimumPurchase means the running price is under the promotion minimum.
	ErrBelowMinimumPurchase = errors.New("discount: below minimum purchase")
	// ErrCategoryMismatch means no cart line matches the promotion category.
	ErrCategoryMismatch = errors.New("discount: category mismatch")
	// ErrNotEnoughPoints means the loyalty balance is below the redemption floor.
	ErrNotEnoughPoints = errors.New("discount: not enough loyalty points")
)
