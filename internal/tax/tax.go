// Package tax selects a sales-tax rate from a customer address.
package tax

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Region is a state whose code, when present in an address, selects Rate.
type Region struct {
	Code string
	Rate decimal.Decimal
}

// DefaultRate applies when no region matches.
var DefaultRate = decimal.RequireFromString("0.08")

// regions are checked in order; the first code contained in the address wins.
var regions = []Region{
	{Code: "CA", Rate: decimal.RequireFromString("0.0725")},
	{Code: "NY", Rate: decimal.RequireFromString("0.04")},
	{Code: "TX", Rate: decimal.RequireFromString("0.0625")},
}

// Regions returns the region table in match order.
func Regions() []Region {
	return append([]Region(nil), regions...)
}

// RateFor returns the tax rate for address.
func RateFor(address string) decimal.Decimal {
	for _, r := range regions {
		if strings.Contains(address, r.Code) {
			return r.Rate
		}
	}
	return DefaultRate
}

// Calculate returns the tax owed on amount for a customer at address.
func Calculate(amount decimal.Decimal, address string) decimal.Decimal {
	return amount.Mul(RateFor(address))
}
