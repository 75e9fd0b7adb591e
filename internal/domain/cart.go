// Package domain holds the cart aggregate and its pricing pipeline.
//
// Every mutation runs against a copy of the cart state and then rebuilds it
// in a fixed order: items, sub-total, discount, discount-adjusted tax,
// aggregates. The copy replaces the live state only when the whole pipeline
// succeeds, so a failed mutation leaves the cart exactly as it was.
package domain

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fjod/go_cart/cart-service/internal/discount"
	"github.com/fjod/go_cart/cart-service/internal/money"
	"github.com/fjod/go_cart/cart-service/internal/tax"
)

// Pricing bundles the collaborators a cart needs to rebuild itself.
type Pricing struct {
	Catalog   Catalog
	Discounts *discount.Resolver
	Tax       tax.Calculator
	Now       func() time.Time
}

func (p Pricing) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// Totals are the cart-level derived amounts.
type Totals struct {
	SubTotal             decimal.Decimal
	SubTotalInclTax      decimal.Decimal
	SubTotalWithDiscount decimal.Decimal
	DiscountAmount       decimal.Decimal
	TaxAmount            decimal.Decimal
	GrandTotal           decimal.Decimal
}

func zeroTotals() Totals {
	return Totals{
		SubTotal:             decimal.Zero,
		SubTotalInclTax:      decimal.Zero,
		SubTotalWithDiscount: decimal.Zero,
		DiscountAmount:       decimal.Zero,
		TaxAmount:            decimal.Zero,
		GrandTotal:           decimal.Zero,
	}
}

// AppliedCoupon is a recognized coupon code with the policy it resolved to.
type AppliedCoupon struct {
	Code   string
	Policy discount.Policy
}

type cartState struct {
	status             Status
	convention         TaxConvention
	items              []*CartItem
	coupon             *AppliedCoupon
	shippingAddress    *Address
	billingAddress     *Address
	shippingMethodCode string
	totals             Totals
	createdAt          time.Time
	updatedAt          time.Time
}

func (s cartState) clone() cartState {
	next := s
	next.items = make([]*CartItem, len(s.items))
	for i, it := range s.items {
		cp := *it
		next.items[i] = &cp
	}
	if s.coupon != nil {
		c := *s.coupon
		next.coupon = &c
	}
	if s.shippingAddress != nil {
		a := *s.shippingAddress
		next.shippingAddress = &a
	}
	if s.billingAddress != nil {
		a := *s.billingAddress
		next.billingAddress = &a
	}
	return next
}

func (s cartState) indexOf(itemUUID string) int {
	for i, it := range s.items {
		if it.UUID == itemUUID {
			return i
		}
	}
	return -1
}

func (s cartState) indexOfProduct(productID int64) int {
	for i, it := range s.items {
		if it.ProductID == productID {
			return i
		}
	}
	return -1
}

// Cart is the root pricing aggregate of one shopping session. It is owned
// by a single caller at a time and does no locking of its own.
type Cart struct {
	id      string
	userID  string
	state   cartState
	pricing Pricing
}

// NewCart returns an empty cart whose totals are all zero.
func NewCart(userID string, status Status, convention TaxConvention, pricing Pricing) *Cart {
	now := pricing.now()
	if convention == "" {
		convention = TaxExclusive
	}
	return &Cart{
		id:     uuid.NewString(),
		userID: userID,
		state: cartState{
			status:     status,
			convention: convention,
			totals:     zeroTotals(),
			createdAt:  now,
			updatedAt:  now,
		},
		pricing: pricing,
	}
}

func (c *Cart) ID() string                   { return c.id }
func (c *Cart) UserID() string               { return c.userID }
func (c *Cart) Status() Status               { return c.state.status }
func (c *Cart) TaxConvention() TaxConvention { return c.state.convention }
func (c *Cart) Totals() Totals               { return c.state.totals }
func (c *Cart) ShippingMethodCode() string   { return c.state.shippingMethodCode }
func (c *Cart) Len() int                     { return len(c.state.items) }

// Coupon returns the active coupon code, or "" when none is applied.
func (c *Cart) Coupon() string {
	if c.state.coupon == nil {
		return ""
	}
	return c.state.coupon.Code
}

// Items returns copies of the cart lines in insertion order.
func (c *Cart) Items() []CartItem {
	out := make([]CartItem, len(c.state.items))
	for i, it := range c.state.items {
		out[i] = *it
	}
	return out
}

// Item returns a copy of the line with the given uuid.
func (c *Cart) Item(itemUUID string) (CartItem, bool) {
	idx := c.state.indexOf(itemUUID)
	if idx < 0 {
		return CartItem{}, false
	}
	return *c.state.items[idx], true
}

// AddItem adds qty of a product. A product already in the cart has its
// quantity increased instead of getting a second line.
func (c *Cart) AddItem(ctx context.Context, productID int64, qty int) (CartItem, error) {
	if qty < 1 {
		return CartItem{}, errors.Wrapf(ErrInvalidQuantity, "got %d", qty)
	}

	var itemUUID string
	err := c.mutate(ctx, func(s *cartState) error {
		if idx := s.indexOfProduct(productID); idx >= 0 {
			s.items[idx].Qty += qty
			itemUUID = s.items[idx].UUID
			return nil
		}
		item, err := newCartItem(productID, qty)
		if err != nil {
			return err
		}
		s.items = append(s.items, item)
		itemUUID = item.UUID
		return nil
	})
	if err != nil {
		return CartItem{}, err
	}

	item, _ := c.Item(itemUUID)
	return item, nil
}

// RemoveItem deletes the line with the given uuid.
func (c *Cart) RemoveItem(ctx context.Context, itemUUID string) error {
	return c.mutate(ctx, func(s *cartState) error {
		idx := s.indexOf(itemUUID)
		if idx < 0 {
			return errors.Wrapf(ErrItemNotFound, "item %s", itemUUID)
		}
		s.items = append(s.items[:idx], s.items[idx+1:]...)
		return nil
	})
}

// UpdateItemQty moves a line's quantity by delta in the given direction.
// Decreasing to exactly zero removes the line, in which case the returned
// bool is false. Decreasing below zero fails with ErrInvalidQuantity.
func (c *Cart) UpdateItemQty(ctx context.Context, itemUUID string, delta int, dir Direction) (CartItem, bool, error) {
	if delta < 1 {
		return CartItem{}, false, errors.Wrapf(ErrInvalidQuantity, "delta %d", delta)
	}
	if dir != Increase && dir != Decrease {
		return CartItem{}, false, errors.Wrapf(ErrInvalidDirection, "got %q", dir)
	}

	removed := false
	err := c.mutate(ctx, func(s *cartState) error {
		idx := s.indexOf(itemUUID)
		if idx < 0 {
			return errors.Wrapf(ErrItemNotFound, "item %s", itemUUID)
		}
		item := s.items[idx]
		qty := item.Qty + delta
		if dir == Decrease {
			qty = item.Qty - delta
		}
		switch {
		case qty == 0:
			s.items = append(s.items[:idx], s.items[idx+1:]...)
			removed = true
		case qty < 0:
			return errors.Wrapf(ErrInvalidQuantity, "item %s would have quantity %d", itemUUID, qty)
		default:
			item.Qty = qty
		}
		return nil
	})
	if err != nil {
		return CartItem{}, false, err
	}
	if removed {
		return CartItem{}, false, nil
	}

	item, _ := c.Item(itemUUID)
	return item, true, nil
}

// Clear removes every line. The coupon stays attached and resolves to zero.
func (c *Cart) Clear(ctx context.Context) error {
	return c.mutate(ctx, func(s *cartState) error {
		s.items = nil
		return nil
	})
}

// SetCoupon applies a coupon code, replacing any previous one. An
// unrecognized code changes nothing and reports false. An empty code
// removes the current coupon.
func (c *Cart) SetCoupon(ctx context.Context, code string) (bool, error) {
	if c.state.status.IsReadOnly() {
		return false, ErrCartReadOnly
	}
	code = discount.NormalizeCode(code)
	if code == "" {
		return false, c.RemoveCoupon(ctx)
	}

	res, err := c.pricing.Discounts.Resolve(ctx, code, c.state.totals.SubTotal)
	if err != nil {
		return false, err
	}
	if !res.Recognized {
		return false, nil
	}

	err = c.mutate(ctx, func(s *cartState) error {
		s.coupon = &AppliedCoupon{Code: res.Code, Policy: res.Policy}
		return nil
	})
	return err == nil, err
}

// RemoveCoupon drops the active coupon, if any.
func (c *Cart) RemoveCoupon(ctx context.Context) error {
	return c.mutate(ctx, func(s *cartState) error {
		s.coupon = nil
		return nil
	})
}

// SetTaxConvention switches between tax-inclusive and tax-exclusive prices
// and rebuilds every line against the new convention.
func (c *Cart) SetTaxConvention(ctx context.Context, convention TaxConvention) error {
	if convention != TaxInclusive && convention != TaxExclusive {
		return errors.Wrapf(ErrInvalidTaxMode, "got %q", convention)
	}
	return c.mutate(ctx, func(s *cartState) error {
		s.convention = convention
		return nil
	})
}

// SetShippingAddress records the shipping address. Totals are untouched.
func (c *Cart) SetShippingAddress(a Address) error {
	return c.annotate(func(s *cartState) { s.shippingAddress = &a })
}

// SetBillingAddress records the billing address. Totals are untouched.
func (c *Cart) SetBillingAddress(a Address) error {
	return c.annotate(func(s *cartState) { s.billingAddress = &a })
}

// SetShippingMethod records the shipping method code. Totals are untouched.
func (c *Cart) SetShippingMethod(code string) error {
	return c.annotate(func(s *cartState) { s.shippingMethodCode = code })
}

// SetStatus stores the workflow status. It is accepted on read-only carts
// because the status belongs to the checkout workflow, not to pricing.
func (c *Cart) SetStatus(status Status) {
	c.state.status = status
	c.state.updatedAt = c.pricing.now()
}

// MarkConverted freezes the cart once it has been turned into an order.
func (c *Cart) MarkConverted() {
	c.SetStatus(StatusConverted)
}

// Build runs the full pricing pipeline without any other change.
func (c *Cart) Build(ctx context.Context) error {
	next := c.state.clone()
	if err := c.rebuild(ctx, &next); err != nil {
		return err
	}
	c.state = next
	return nil
}

func (c *Cart) annotate(fn func(s *cartState)) error {
	if c.state.status.IsReadOnly() {
		return ErrCartReadOnly
	}
	fn(&c.state)
	c.state.updatedAt = c.pricing.now()
	return nil
}

func (c *Cart) mutate(ctx context.Context, fn func(s *cartState) error) error {
	if c.state.status.IsReadOnly() {
		return ErrCartReadOnly
	}
	next := c.state.clone()
	if err := fn(&next); err != nil {
		return err
	}
	if err := c.rebuild(ctx, &next); err != nil {
		return err
	}
	next.updatedAt = c.pricing.now()
	c.state = next
	return nil
}

func (c *Cart) rebuild(ctx context.Context, s *cartState) error {
	now := c.pricing.now()

	// 1. items
	products := make(map[int64]*Product, len(s.items))
	for _, it := range s.items {
		p, ok := products[it.ProductID]
		if !ok {
			var err error
			p, err = c.lookup(ctx, it.ProductID)
			if err != nil {
				return errors.Wrapf(err, "item %s", it.UUID)
			}
			products[it.ProductID] = p
		}
		if err := it.Build(p, s.convention, now); err != nil {
			return err
		}
	}

	// 2. sub-total
	lines := make([]tax.Line, len(s.items))
	subTotal := decimal.Zero
	for i, it := range s.items {
		subTotal = subTotal.Add(it.LineTotal)
		lines[i] = tax.Line{LineTotal: it.LineTotal, Gross: it.GrossTotal(s.convention), Rate: it.TaxRate}
	}

	// 3. discount
	discountAmount := decimal.Zero
	if s.coupon != nil {
		discountAmount = discount.Amount(s.coupon.Policy, subTotal)
	}

	// 4-5. discount-adjusted tax
	res := c.pricing.Tax.Calculate(lines, discountAmount)
	for i, it := range s.items {
		it.DiscountAmount = res.Lines[i].Discount
		it.TaxAmount = res.Lines[i].Tax
	}

	// 6. aggregates
	withDiscount := subTotal.Sub(res.Discount)
	s.totals = Totals{
		SubTotal:             subTotal,
		SubTotalInclTax:      subTotal.Add(res.FullTax),
		SubTotalWithDiscount: withDiscount,
		DiscountAmount:       res.Discount,
		TaxAmount:            res.Tax,
		GrandTotal:           money.NonNegative(withDiscount.Add(res.Tax)),
	}
	return nil
}

func (c *Cart) lookup(ctx context.Context, productID int64) (*Product, error) {
	if c.pricing.Catalog == nil {
		return nil, errors.Wrapf(ErrUnknownProduct, "product %d: no catalog", productID)
	}
	p, err := c.pricing.Catalog.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, ErrUnknownProduct) {
			return nil, err
		}
		return nil, errors.Wrapf(err, "resolve product %d", productID)
	}
	if p == nil {
		return nil, errors.Wrapf(ErrUnknownProduct, "product %d", productID)
	}
	return p, nil
}
