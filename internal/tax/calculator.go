// Package tax computes per-line tax on a discount-adjusted basis.
package tax

import (
	"github.com/shopspring/decimal"

	"github.com/fjod/go_cart/cart-service/internal/money"
)

// shareScale is the intermediate precision used while splitting a discount.
const shareScale = 16

// Line is one priced cart line as seen by the calculator.
type Line struct {
	LineTotal decimal.Decimal // tax-exclusive, before discount
	Rate      decimal.Decimal // 0.1 for 10%
	// Gross is the tax-inclusive line when prices include tax. Its tax is
	// then Gross - LineTotal, scaled down with the discount.
	Gross decimal.Decimal
}

// LineTax is the calculator output for one line.
type LineTax struct {
	Discount    decimal.Decimal
	TaxableBase decimal.Decimal
	Tax         decimal.Decimal
	// FullTax is the tax on the undiscounted line total.
	FullTax decimal.Decimal
}

type Result struct {
	Lines    []LineTax
	SubTotal decimal.Decimal
	Discount decimal.Decimal
	Tax      decimal.Decimal
	FullTax  decimal.Decimal
}

type Calculator struct{}

// Calculate spreads discount over lines in proportion to each line's share
// of the sub-total and taxes what is left. Shares are taken as differences
// of the rounded cumulative split, so they add up to the (clamped) discount
// exactly and no share exceeds its own line total.
func (Calculator) Calculate(lines []Line, discount decimal.Decimal) Result {
	res := Result{
		Lines:    make([]LineTax, len(lines)),
		SubTotal: decimal.Zero,
		Discount: decimal.Zero,
		Tax:      decimal.Zero,
		FullTax:  decimal.Zero,
	}
	for i := range res.Lines {
		res.Lines[i] = LineTax{Discount: decimal.Zero, TaxableBase: decimal.Zero, Tax: decimal.Zero, FullTax: decimal.Zero}
	}

	for _, l := range lines {
		res.SubTotal = res.SubTotal.Add(l.LineTotal)
	}
	if !res.SubTotal.IsPositive() {
		return res
	}

	discount = money.Round(money.Min(money.NonNegative(discount), res.SubTotal))
	res.Discount = discount

	cumulative := decimal.Zero
	allocated := decimal.Zero
	for i, l := range lines {
		share := decimal.Zero
		if l.LineTotal.IsPositive() {
			cumulative = cumulative.Add(l.LineTotal)
			upTo := money.Round(discount.Mul(cumulative).DivRound(res.SubTotal, shareScale))
			share = upTo.Sub(allocated)
			allocated = upTo
		}

		base := money.NonNegative(l.LineTotal.Sub(share))
		lt := LineTax{
			Discount:    share,
			TaxableBase: base,
			Tax:         money.ApplyRate(base, l.Rate),
			FullTax:     money.ApplyRate(l.LineTotal, l.Rate),
		}
		if l.Gross.IsPositive() {
			lt.FullTax = money.NonNegative(l.Gross.Sub(l.LineTotal))
			lt.Tax = lt.FullTax
			if share.IsPositive() {
				lt.Tax = money.Round(lt.FullTax.Mul(base).DivRound(l.LineTotal, shareScale))
			}
		}
		res.Lines[i] = lt
		res.Tax = res.Tax.Add(lt.Tax)
		res.FullTax = res.FullTax.Add(lt.FullTax)
	}

	return res
}
