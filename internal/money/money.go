// Package money holds the decimal helpers used for currency amounts and
// percentage rates. Amounts are kept at currency precision (two places).
package money

import "github.com/shopspring/decimal"

// Places is the currency precision every stored amount is rounded to.
const Places = 2

var hundred = decimal.NewFromInt(100)

// Round rounds an amount to currency precision, half away from zero.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// Percent converts a percentage (10 for 10%) into a rate (0.1).
func Percent(p decimal.Decimal) decimal.Decimal {
	return p.Div(hundred)
}

// ApplyRate returns amount * rate rounded to currency precision.
func ApplyRate(amount, rate decimal.Decimal) decimal.Decimal {
	return Round(amount.Mul(rate))
}

// AddRate returns amount * (1 + rate) rounded to currency precision.
func AddRate(amount, rate decimal.Decimal) decimal.Decimal {
	return Round(amount.Mul(decimal.NewFromInt(1).Add(rate)))
}

// RemoveRate back-computes the net amount from a gross amount: gross / (1 + rate).
func RemoveRate(gross, rate decimal.Decimal) decimal.Decimal {
	return Round(gross.DivRound(decimal.NewFromInt(1).Add(rate), Places+8))
}

// Min returns the smaller of a and b.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// NonNegative clamps d at zero.
func NonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
