package domain

import (
	"math"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits kept for every monetary value.
const Scale = 4

// DefaultTaxRate is applied when no rate is configured.
var DefaultTaxRate = decimal.RequireFromString("0.18")

// MaxAmount is the largest accepted order amount.
var MaxAmount = decimal.RequireFromString("999999.9999")

// ParseAmount converts a client supplied number into a fixed-point amount.
func ParseAmount(v float64) (decimal.Decimal, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Decimal{}, &ValidationError{Field: "amount", Reason: "must be a finite number"}
	}
	amount := decimal.NewFromFloat(v).Round(Scale)
	if err := CheckAmount(amount); err != nil {
		return decimal.Decimal{}, err
	}
	return amount, nil
}

// CheckAmount requires 0 < amount <= MaxAmount. amount must already be
// rounded to Scale.
func CheckAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return &ValidationError{Field: "amount", Reason: "must be greater than 0"}
	}
	if amount.GreaterThan(MaxAmount) {
		return &ValidationError{Field: "amount", Reason: "must not exceed " + MaxAmount.StringFixed(Scale)}
	}
	return nil
}

// ComputeCharges derives tax and total from amount.
//
//	tax   = round(amount * rate, 4)
//	total = round(amount + tax, 4)
func ComputeCharges(amount, rate decimal.Decimal) (tax, total decimal.Decimal) {
	tax = amount.Mul(rate).Round(Scale)
	total = amount.Add(tax).Round(Scale)
	return tax, total
}
