package discount

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/fjod/go_cart/cart-service/internal/money"
)

// Type enumerates the supported coupon discount shapes.
type Type string

const (
	// TypePercentage takes a percentage off the whole sub-total.
	TypePercentage Type = "percentage"
	// TypeFixed takes a fixed amount off the whole sub-total, capped at the sub-total.
	TypeFixed Type = "fixed"
)

// ErrInvalidRule is returned when a coupon rule cannot be turned into a policy.
var ErrInvalidRule = errors.New("invalid discount rule")

// Policy computes the discount a coupon grants against a sub-total.
type Policy interface {
	Type() Type
	Value() decimal.Decimal
	// Discount returns the raw discount for subTotal, before clamping.
	Discount(subTotal decimal.Decimal) decimal.Decimal
}

// Percentage is a percentage-of-subtotal discount. Rate is expressed in
// percent, so 10 means ten percent off.
type Percentage struct {
	Rate decimal.Decimal
}

func (p Percentage) Type() Type             { return TypePercentage }
func (p Percentage) Value() decimal.Decimal { return p.Rate }

func (p Percentage) Discount(subTotal decimal.Decimal) decimal.Decimal {
	return money.ApplyRate(subTotal, money.Percent(p.Rate))
}

// FixedAmount takes Amount currency units off the order.
type FixedAmount struct {
	Amount decimal.Decimal
}

func (f FixedAmount) Type() Type             { return TypeFixed }
func (f FixedAmount) Value() decimal.Decimal { return f.Amount }

func (f FixedAmount) Discount(decimal.Decimal) decimal.Decimal {
	return money.Round(f.Amount)
}

var hundred = decimal.NewFromInt(100)

// NewPolicy validates a (type, value) pair and returns the matching policy.
func NewPolicy(t Type, value decimal.Decimal) (Policy, error) {
	switch t {
	case TypePercentage:
		if value.IsNegative() || value.GreaterThan(hundred) {
			return nil, errors.Wrapf(ErrInvalidRule, "percentage must be 0-100, got %s", value)
		}
		return Percentage{Rate: value}, nil
	case TypeFixed:
		if value.IsNegative() {
			return nil, errors.Wrapf(ErrInvalidRule, "fixed discount cannot be negative, got %s", value)
		}
		return FixedAmount{Amount: value}, nil
	default:
		return nil, errors.Wrapf(ErrInvalidRule, "unknown coupon type %q", t)
	}
}

// Clamp bounds a raw discount to [0, subTotal] at currency precision.
func Clamp(amount, subTotal decimal.Decimal) decimal.Decimal {
	return money.Round(money.Min(money.NonNegative(amount), money.NonNegative(subTotal)))
}
