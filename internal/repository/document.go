package repository

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/fjod/go_cart/cart-service/internal/discount"
	"github.com/fjod/go_cart/cart-service/internal/domain"
)

// Amounts are stored as Decimal128 so they stay exact and sortable in Mongo.

type itemDocument struct {
	UUID                string               `bson:"uuid"`
	ProductID           int64                `bson:"product_id"`
	ProductSKU          string               `bson:"product_sku"`
	ProductName         string               `bson:"product_name"`
	Qty                 int                  `bson:"qty"`
	CatalogPrice        primitive.Decimal128 `bson:"catalog_price"`
	ProductPrice        primitive.Decimal128 `bson:"product_price"`
	ProductPriceInclTax primitive.Decimal128 `bson:"product_price_incl_tax"`
	TaxRate             primitive.Decimal128 `bson:"tax_rate"`
	LineTotal           primitive.Decimal128 `bson:"line_total"`
	DiscountAmount      primitive.Decimal128 `bson:"discount_amount"`
	TaxAmount           primitive.Decimal128 `bson:"tax_amount"`
}

type cartDocument struct {
	CartID               string               `bson:"cart_id"`
	UserID               string               `bson:"user_id"`
	Status               string               `bson:"status"`
	TaxConvention        string               `bson:"tax_convention"`
	Items                []itemDocument       `bson:"items"`
	Coupon               string               `bson:"coupon,omitempty"`
	CouponType           string               `bson:"coupon_type,omitempty"`
	CouponValue          primitive.Decimal128 `bson:"coupon_value"`
	ShippingAddress      *domain.Address      `bson:"shipping_address,omitempty"`
	BillingAddress       *domain.Address      `bson:"billing_address,omitempty"`
	ShippingMethodCode   string               `bson:"shipping_method_code,omitempty"`
	SubTotal             primitive.Decimal128 `bson:"sub_total"`
	SubTotalInclTax      primitive.Decimal128 `bson:"sub_total_incl_tax"`
	SubTotalWithDiscount primitive.Decimal128 `bson:"sub_total_with_discount"`
	DiscountAmount       primitive.Decimal128 `bson:"discount_amount"`
	TaxAmount            primitive.Decimal128 `bson:"tax_amount"`
	GrandTotal           primitive.Decimal128 `bson:"grand_total"`
	CreatedAt            time.Time            `bson:"created_at"`
	UpdatedAt            time.Time            `bson:"updated_at"`
	Outbox               *outboxDocument      `bson:"outbox,omitempty"`
}

// outboxDocument marks a checkout that has not reached the broker yet. The
// event payload is the cart document it is embedded in.
type outboxDocument struct {
	EventID    string    `bson:"event_id"`
	OccurredAt time.Time `bson:"occurred_at"`
}

func (d cartDocument) checkoutEvent() (domain.CheckoutEvent, error) {
	if d.Outbox == nil {
		return domain.CheckoutEvent{}, errors.Errorf("cart %s has no pending checkout", d.CartID)
	}
	snap, err := d.snapshot()
	if err != nil {
		return domain.CheckoutEvent{}, err
	}
	return domain.CheckoutEvent{
		EventID:    d.Outbox.EventID,
		OccurredAt: d.Outbox.OccurredAt,
		Cart:       snap,
	}, nil
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, errors.Wrapf(err, "encode amount %s", d)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "decode amount %s", v)
	}
	return d, nil
}

// codec collects the first conversion error so the field mappings below stay flat.
type codec struct {
	err error
}

func (c *codec) enc(d decimal.Decimal) primitive.Decimal128 {
	if c.err != nil {
		return primitive.Decimal128{}
	}
	v, err := toDecimal128(d)
	c.err = err
	return v
}

func (c *codec) dec(v primitive.Decimal128) decimal.Decimal {
	if c.err != nil {
		return decimal.Zero
	}
	d, err := fromDecimal128(v)
	c.err = err
	return d
}

func newCartDocument(s domain.Snapshot) (cartDocument, error) {
	var c codec
	doc := cartDocument{
		CartID:               s.ID,
		UserID:               s.UserID,
		Status:               string(s.Status),
		TaxConvention:        string(s.TaxConvention),
		Items:                make([]itemDocument, len(s.Items)),
		Coupon:               s.Coupon,
		CouponType:           string(s.CouponType),
		CouponValue:          c.enc(s.CouponValue),
		ShippingAddress:      s.ShippingAddress,
		BillingAddress:       s.BillingAddress,
		ShippingMethodCode:   s.ShippingMethodCode,
		SubTotal:             c.enc(s.SubTotal),
		SubTotalInclTax:      c.enc(s.SubTotalInclTax),
		SubTotalWithDiscount: c.enc(s.SubTotalWithDiscount),
		DiscountAmount:       c.enc(s.DiscountAmount),
		TaxAmount:            c.enc(s.TaxAmount),
		GrandTotal:           c.enc(s.GrandTotal),
		CreatedAt:            s.CreatedAt,
		UpdatedAt:            s.UpdatedAt,
	}
	for i, it := range s.Items {
		doc.Items[i] = itemDocument{
			UUID:                it.UUID,
			ProductID:           it.ProductID,
			ProductSKU:          it.ProductSKU,
			ProductName:         it.ProductName,
			Qty:                 it.Qty,
			CatalogPrice:        c.enc(it.CatalogPrice),
			ProductPrice:        c.enc(it.ProductPrice),
			ProductPriceInclTax: c.enc(it.ProductPriceInclTax),
			TaxRate:             c.enc(it.TaxRate),
			LineTotal:           c.enc(it.LineTotal),
			DiscountAmount:      c.enc(it.DiscountAmount),
			TaxAmount:           c.enc(it.TaxAmount),
		}
	}
	if c.err != nil {
		return cartDocument{}, errors.Wrapf(c.err, "cart %s", s.ID)
	}
	return doc, nil
}

func (d cartDocument) snapshot() (domain.Snapshot, error) {
	var c codec
	s := domain.Snapshot{
		ID:                   d.CartID,
		UserID:               d.UserID,
		Status:               domain.Status(d.Status),
		TaxConvention:        domain.TaxConvention(d.TaxConvention),
		Items:                make([]domain.SnapshotItem, len(d.Items)),
		Coupon:               d.Coupon,
		CouponType:           discount.Type(d.CouponType),
		CouponValue:          c.dec(d.CouponValue),
		ShippingAddress:      d.ShippingAddress,
		BillingAddress:       d.BillingAddress,
		ShippingMethodCode:   d.ShippingMethodCode,
		SubTotal:             c.dec(d.SubTotal),
		SubTotalInclTax:      c.dec(d.SubTotalInclTax),
		SubTotalWithDiscount: c.dec(d.SubTotalWithDiscount),
		DiscountAmount:       c.dec(d.DiscountAmount),
		TaxAmount:            c.dec(d.TaxAmount),
		GrandTotal:           c.dec(d.GrandTotal),
		CreatedAt:            d.CreatedAt,
		UpdatedAt:            d.UpdatedAt,
	}
	for i, it := range d.Items {
		s.Items[i] = domain.SnapshotItem{
			UUID:                it.UUID,
			ProductID:           it.ProductID,
			ProductSKU:          it.ProductSKU,
			ProductName:         it.ProductName,
			Qty:                 it.Qty,
			CatalogPrice:        c.dec(it.CatalogPrice),
			ProductPrice:        c.dec(it.ProductPrice),
			ProductPriceInclTax: c.dec(it.ProductPriceInclTax),
			TaxRate:             c.dec(it.TaxRate),
			LineTotal:           c.dec(it.LineTotal),
			DiscountAmount:      c.dec(it.DiscountAmount),
			TaxAmount:           c.dec(it.TaxAmount),
		}
	}
	if c.err != nil {
		return domain.Snapshot{}, errors.Wrapf(c.err, "cart %s", d.CartID)
	}
	return s, nil
}
