package domain

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fjod/go_cart/cart-service/internal/money"
)

// CartItem is one product line of a cart.
type CartItem struct {
	UUID      string
	ProductID int64
	SKU       string
	Name      string
	Qty       int

	// CatalogPrice is the configured unit price the line was built from,
	// before it is split into net and gross under the tax convention.
	CatalogPrice        decimal.Decimal
	ProductPrice        decimal.Decimal // unit, tax-exclusive
	ProductPriceInclTax decimal.Decimal // unit, tax-inclusive
	TaxRate             decimal.Decimal
	LineTotal           decimal.Decimal // tax-exclusive line, before discount
	DiscountAmount      decimal.Decimal // share of the cart discount
	TaxAmount           decimal.Decimal
}

func newCartItem(productID int64, qty int) (*CartItem, error) {
	if qty < 1 {
		return nil, errors.Wrapf(ErrInvalidQuantity, "got %d", qty)
	}
	return &CartItem{
		UUID:      uuid.NewString(),
		ProductID: productID,
		Qty:       qty,
	}, nil
}

// Build recomputes the line's prices and totals from its quantity, the
// product and the tax convention. TaxAmount is set to the undiscounted line
// tax; the cart overwrites it once the discount is known.
func (i *CartItem) Build(p *Product, convention TaxConvention, now time.Time) error {
	if i.Qty < 1 {
		return errors.Wrapf(ErrInvalidQuantity, "item %s has quantity %d", i.UUID, i.Qty)
	}
	if p == nil || p.ID != i.ProductID {
		return errors.Wrapf(ErrUnknownProduct, "product %d", i.ProductID)
	}

	price := money.Round(p.EffectivePrice(now))
	rate := p.TaxRate

	i.SKU = p.SKU
	i.Name = p.Name
	i.CatalogPrice = price
	i.TaxRate = rate

	qty := decimal.NewFromInt(int64(i.Qty))
	switch convention {
	case TaxInclusive:
		// The net line is split off the gross line, not built from the
		// rounded unit price, so net plus tax is exactly price * qty.
		i.ProductPriceInclTax = price
		i.ProductPrice = money.RemoveRate(price, rate)
		gross := price.Mul(qty)
		i.LineTotal = money.RemoveRate(gross, rate)
		i.TaxAmount = gross.Sub(i.LineTotal)
	default:
		i.ProductPrice = price
		i.ProductPriceInclTax = money.AddRate(price, rate)
		i.LineTotal = price.Mul(qty)
		i.TaxAmount = money.ApplyRate(i.LineTotal, rate)
	}

	i.DiscountAmount = decimal.Zero
	return nil
}

// GrossTotal is the tax-inclusive line as configured, or zero when prices
// exclude tax.
func (i *CartItem) GrossTotal(convention TaxConvention) decimal.Decimal {
	if convention != TaxInclusive {
		return decimal.Zero
	}
	return i.ProductPriceInclTax.Mul(decimal.NewFromInt(int64(i.Qty)))
}
