package domain

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/fjod/go_cart/cart-service/internal/discount"
)

// SnapshotItem is the exported form of a CartItem.
type SnapshotItem struct {
	UUID                string          `json:"uuid"`
	ProductID           int64           `json:"product_id"`
	ProductSKU          string          `json:"product_sku"`
	ProductName         string          `json:"product_name"`
	Qty                 int             `json:"qty"`
	CatalogPrice        decimal.Decimal `json:"catalog_price"`
	ProductPrice        decimal.Decimal `json:"product_price"`
	ProductPriceInclTax decimal.Decimal `json:"product_price_incl_tax"`
	TaxRate             decimal.Decimal `json:"tax_rate"`
	LineTotal           decimal.Decimal `json:"line_total"`
	DiscountAmount      decimal.Decimal `json:"discount_amount"`
	TaxAmount           decimal.Decimal `json:"tax_amount"`
}

// Snapshot is a plain copy of every cart field. It is what the order
// collaborator consumes and what the repository and cache persist.
type Snapshot struct {
	ID                   string          `json:"id"`
	UserID               string          `json:"user_id"`
	Status               Status          `json:"status"`
	TaxConvention        TaxConvention   `json:"tax_convention"`
	Items                []SnapshotItem  `json:"items"`
	Coupon               string          `json:"coupon,omitempty"`
	CouponType           discount.Type   `json:"coupon_type,omitempty"`
	CouponValue          decimal.Decimal `json:"coupon_value"`
	ShippingAddress      *Address        `json:"shipping_address,omitempty"`
	BillingAddress       *Address        `json:"billing_address,omitempty"`
	ShippingMethodCode   string          `json:"shipping_method_code,omitempty"`
	SubTotal             decimal.Decimal `json:"sub_total"`
	SubTotalInclTax      decimal.Decimal `json:"sub_total_incl_tax"`
	SubTotalWithDiscount decimal.Decimal `json:"sub_total_with_discount"`
	DiscountAmount       decimal.Decimal `json:"discount_amount"`
	TaxAmount            decimal.Decimal `json:"tax_amount"`
	GrandTotal           decimal.Decimal `json:"grand_total"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// Export returns a snapshot of the current state. It never recomputes.
func (c *Cart) Export() Snapshot {
	s := c.state
	snap := Snapshot{
		ID:                   c.id,
		UserID:               c.userID,
		Status:               s.status,
		TaxConvention:        s.convention,
		Items:                make([]SnapshotItem, len(s.items)),
		CouponValue:          decimal.Zero,
		ShippingMethodCode:   s.shippingMethodCode,
		SubTotal:             s.totals.SubTotal,
		SubTotalInclTax:      s.totals.SubTotalInclTax,
		SubTotalWithDiscount: s.totals.SubTotalWithDiscount,
		DiscountAmount:       s.totals.DiscountAmount,
		TaxAmount:            s.totals.TaxAmount,
		GrandTotal:           s.totals.GrandTotal,
		CreatedAt:            s.createdAt,
		UpdatedAt:            s.updatedAt,
	}
	for i, it := range s.items {
		snap.Items[i] = SnapshotItem{
			UUID:                it.UUID,
			ProductID:           it.ProductID,
			ProductSKU:          it.SKU,
			ProductName:         it.Name,
			Qty:                 it.Qty,
			CatalogPrice:        it.CatalogPrice,
			ProductPrice:        it.ProductPrice,
			ProductPriceInclTax: it.ProductPriceInclTax,
			TaxRate:             it.TaxRate,
			LineTotal:           it.LineTotal,
			DiscountAmount:      it.DiscountAmount,
			TaxAmount:           it.TaxAmount,
		}
	}
	if s.coupon != nil {
		snap.Coupon = s.coupon.Code
		snap.CouponType = s.coupon.Policy.Type()
		snap.CouponValue = s.coupon.Policy.Value()
	}
	if s.shippingAddress != nil {
		a := *s.shippingAddress
		snap.ShippingAddress = &a
	}
	if s.billingAddress != nil {
		a := *s.billingAddress
		snap.BillingAddress = &a
	}
	return snap
}

// Restore rehydrates a cart from a snapshot. Totals are taken as stored;
// the next mutation or Build recomputes them against the catalog.
func Restore(snap Snapshot, pricing Pricing) (*Cart, error) {
	convention := snap.TaxConvention
	if convention == "" {
		convention = TaxExclusive
	}
	state := cartState{
		status:             snap.Status,
		convention:         convention,
		items:              make([]*CartItem, len(snap.Items)),
		shippingMethodCode: snap.ShippingMethodCode,
		totals: Totals{
			SubTotal:             snap.SubTotal,
			SubTotalInclTax:      snap.SubTotalInclTax,
			SubTotalWithDiscount: snap.SubTotalWithDiscount,
			DiscountAmount:       snap.DiscountAmount,
			TaxAmount:            snap.TaxAmount,
			GrandTotal:           snap.GrandTotal,
		},
		createdAt: snap.CreatedAt,
		updatedAt: snap.UpdatedAt,
	}
	for i, it := range snap.Items {
		if it.Qty < 1 {
			return nil, errors.Wrapf(ErrInvalidQuantity, "restore item %s with quantity %d", it.UUID, it.Qty)
		}
		state.items[i] = &CartItem{
			UUID:                it.UUID,
			ProductID:           it.ProductID,
			SKU:                 it.ProductSKU,
			Name:                it.ProductName,
			Qty:                 it.Qty,
			CatalogPrice:        it.CatalogPrice,
			ProductPrice:        it.ProductPrice,
			ProductPriceInclTax: it.ProductPriceInclTax,
			TaxRate:             it.TaxRate,
			LineTotal:           it.LineTotal,
			DiscountAmount:      it.DiscountAmount,
			TaxAmount:           it.TaxAmount,
		}
	}
	if snap.Coupon != "" {
		policy, err := discount.NewPolicy(snap.CouponType, snap.CouponValue)
		if err != nil {
			return nil, errors.Wrapf(err, "restore coupon %q", snap.Coupon)
		}
		state.coupon = &AppliedCoupon{Code: snap.Coupon, Policy: policy}
	}
	if snap.ShippingAddress != nil {
		a := *snap.ShippingAddress
		state.shippingAddress = &a
	}
	if snap.BillingAddress != nil {
		a := *snap.BillingAddress
		state.billingAddress = &a
	}
	return &Cart{id: snap.ID, userID: snap.UserID, state: state, pricing: pricing}, nil
}
