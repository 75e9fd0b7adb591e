package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Product is the catalog view the pricing engine needs. It is owned by the
// catalog, never by the cart.
type Product struct {
	ID           int64
	SKU          string
	Name         string
	Price        decimal.Decimal
	SpecialPrice decimal.NullDecimal
	SpecialFrom  *time.Time
	SpecialTo    *time.Time
	TaxClass     string
	TaxRate      decimal.Decimal // 0.1 for 10%
}

// Catalog resolves products. Implementations return ErrUnknownProduct
// (possibly wrapped) when id does not exist.
type Catalog interface {
	GetProduct(ctx context.Context, id int64) (*Product, error)
}

// EffectivePrice is the configured price at now: the special price when it is
// set, active and lower than the base price, the base price otherwise.
func (p *Product) EffectivePrice(now time.Time) decimal.Decimal {
	if !p.SpecialPrice.Valid || !p.SpecialPrice.Decimal.LessThan(p.Price) {
		return p.Price
	}
	if p.SpecialFrom != nil && now.Before(*p.SpecialFrom) {
		return p.Price
	}
	if p.SpecialTo != nil && now.After(*p.SpecialTo) {
		return p.Price
	}
	return p.SpecialPrice.Decimal
}
