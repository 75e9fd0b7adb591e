// Package discount resolves coupon codes into bounded discount amounts.
package discount

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrCouponNotFound is returned by a Store when a code is unknown or inactive.
var ErrCouponNotFound = errors.New("coupon not found")

// Rule is a coupon as held by the promotion store.
type Rule struct {
	Code        string
	Type        Type
	Value       decimal.Decimal
	Description string
}

// Store looks up coupon rules by code.
type Store interface {
	FindByCode(ctx context.Context, code string) (*Rule, error)
}

// Result is the outcome of resolving a coupon against a sub-total.
type Result struct {
	Code       string
	Policy     Policy
	Amount     decimal.Decimal
	Recognized bool
}

type Resolver struct {
	store Store
}

func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve looks the code up and computes its discount against subTotal.
// An unknown code is not an error: the result comes back with Recognized
// unset and a zero amount. Store failures other than not-found propagate.
func (r *Resolver) Resolve(ctx context.Context, code string, subTotal decimal.Decimal) (Result, error) {
	code = NormalizeCode(code)
	if code == "" || r == nil || r.store == nil {
		return Result{Code: code, Amount: decimal.Zero}, nil
	}

	rule, err := r.store.FindByCode(ctx, code)
	if errors.Is(err, ErrCouponNotFound) {
		return Result{Code: code, Amount: decimal.Zero}, nil
	}
	if err != nil {
		return Result{}, errors.Wrapf(err, "find coupon %q", code)
	}

	policy, err := NewPolicy(rule.Type, rule.Value)
	if err != nil {
		return Result{}, errors.Wrapf(err, "coupon %q", code)
	}

	return Result{
		Code:       code,
		Policy:     policy,
		Amount:     Amount(policy, subTotal),
		Recognized: true,
	}, nil
}

// Amount applies policy to subTotal and clamps the result so that it never
// exceeds the sub-total. A nil policy yields zero.
func Amount(policy Policy, subTotal decimal.Decimal) decimal.Decimal {
	if policy == nil {
		return decimal.Zero
	}
	return Clamp(policy.Discount(subTotal), subTotal)
}

// NormalizeCode trims and upper-cases a coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
