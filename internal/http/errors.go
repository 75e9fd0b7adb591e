package http

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/sony/gobreaker/v2"

	"github.com/fjod/go_cart/cart-service/internal/discount"
	"github.com/fjod/go_cart/cart-service/internal/domain"
	"github.com/fjod/go_cart/cart-service/internal/repository"
	"github.com/fjod/go_cart/cart-service/internal/service"
)

// mapError converts a service error into an HTTP status and a stable error code.
func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidQuantity):
		return http.StatusBadRequest, "invalid_quantity"
	case errors.Is(err, domain.ErrInvalidDirection):
		return http.StatusBadRequest, "invalid_direction"
	case errors.Is(err, domain.ErrInvalidTaxMode):
		return http.StatusBadRequest, "invalid_tax_convention"
	case errors.Is(err, domain.ErrInvalidStatus):
		return http.StatusBadRequest, "invalid_status"
	case errors.Is(err, domain.ErrItemNotFound):
		return http.StatusNotFound, "item_not_found"
	case errors.Is(err, repository.ErrCartNotFound):
		return http.StatusNotFound, "cart_not_found"
	case errors.Is(err, domain.ErrUnknownProduct):
		return http.StatusUnprocessableEntity, "unknown_product"
	case errors.Is(err, discount.ErrInvalidRule):
		return http.StatusUnprocessableEntity, "invalid_coupon_rule"
	case errors.Is(err, service.ErrEmptyCart):
		return http.StatusUnprocessableEntity, "empty_cart"
	case errors.Is(err, domain.ErrCartReadOnly):
		return http.StatusConflict, "cart_read_only"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return http.StatusServiceUnavailable, "catalog_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
