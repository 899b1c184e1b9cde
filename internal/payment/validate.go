// Package payment validates the payment details supplied with a checkout.
package payment

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrRejected is wrapped by every RejectedError.
var ErrRejected = errors.New("payment rejected")

// RejectedError carries the human-readable rejection reason.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string { return "payment rejected: " + e.Reason }

// Unwrap returns ErrRejected.
func (e *RejectedError) Unwrap() error { return ErrRejected }

// Rejection reasons.
const (
	ReasonInvalidInfo        = "Payment failed - invalid payment info"
	ReasonInsufficientAmount = "Insufficient payment amount"
	ReasonInvalidCard        = "Invalid card number"
	ReasonPayPalEmail        = "PayPal email required"
	ReasonUnknownType        = "Unknown payment type"
)

// Method types.
const (
	TypeCreditCard = "credit_card"
	TypePayPal     = "paypal"
)

// Info is the payment payload attached to a checkout. Valid is the upstream
// processor's verdict.
type Info struct {
	Type       string          `json:"type"`
	CardNumber string          `json:"cardNumber,omitempty"`
	Email      string          `json:"email,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	Valid      bool            `json:"valid"`
}

type methodCheck func(Info) string

var methods = map[string]methodCheck{
	TypeCreditCard: func(info Info) string {
		if len(strings.TrimSpace(info.CardNumber)) < 16 {
			return ReasonInvalidCard
		}
		return ""
	},
	TypePayPal: func(info Info) string {
		if strings.TrimSpace(info.Email) == "" {
			return ReasonPayPalEmail
		}
		return ""
	},
}

// Validate accepts info as payment of total or returns a *RejectedError.
func Validate(info Info, total decimal.Decimal) error {
	if !info.Valid {
		return &RejectedError{Reason: ReasonInvalidInfo}
	}
	if info.Amount.LessThan(total.Round(2)) {
		return &RejectedError{Reason: ReasonInsufficientAmount}
	}
	check, ok := methods[info.Type]
	if !ok {
		return &RejectedError{Reason: ReasonUnknownType}
	}
	if reason := check(info); reason != "" {
		return &RejectedError{Reason: reason}
	}
	return nil
}

// Validator adapts Validate to an interface so callers can substitute a
// remote processor.
type Validator interface {
	Validate(info Info, total decimal.Decimal) error
}

// StaticValidator applies the built-in rules.
type StaticValidator struct{}

// Validate implements Validator.
func (StaticValidator) Validate(info Info, total decimal.Decimal) error { return Validate(info, total) }
