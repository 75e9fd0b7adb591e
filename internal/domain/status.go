package domain

import (
	"strings"

	"github.com/go-faster/errors"
)

// Status is the lifecycle flag owned by the checkout workflow.
type Status string

const (
	StatusActive    Status = "active"
	StatusConverted Status = "converted"
)

// IsReadOnly reports whether a cart in this status rejects mutations.
func (s Status) IsReadOnly() bool {
	return s == StatusConverted
}

func (s Status) String() string {
	return string(s)
}

func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusActive:
		return StatusActive, nil
	case StatusConverted:
		return StatusConverted, nil
	}
	return "", errors.Wrapf(ErrInvalidStatus, "got %q", s)
}

// TaxConvention says whether configured prices already contain tax.
type TaxConvention string

const (
	TaxExclusive TaxConvention = "exclusive"
	TaxInclusive TaxConvention = "inclusive"
)

// ConventionFor maps the catalog's price_including_tax flag to a convention.
func ConventionFor(priceIncludingTax bool) TaxConvention {
	if priceIncludingTax {
		return TaxInclusive
	}
	return TaxExclusive
}

func ParseTaxConvention(s string) (TaxConvention, error) {
	switch TaxConvention(strings.ToLower(strings.TrimSpace(s))) {
	case TaxExclusive:
		return TaxExclusive, nil
	case TaxInclusive:
		return TaxInclusive, nil
	}
	return "", errors.Wrapf(ErrInvalidTaxMode, "got %q", s)
}

// Direction is the sign of a quantity update.
type Direction string

const (
	Increase Direction = "increase"
	Decrease Direction = "decrease"
)

func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case Increase:
		return Increase, nil
	case Decrease:
		return Decrease, nil
	}
	return "", errors.Wrapf(ErrInvalidDirection, "got %q", s)
}
