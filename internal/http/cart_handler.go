package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/fjod/go_cart/cart-service/internal/domain"
)

// CartService is what the handlers need from the service layer.
type CartService interface {
	GetCart(ctx context.Context, userID string) (*domain.Snapshot, error)
	AddItem(ctx context.Context, userID string, productID int64, qty int) (*domain.Snapshot, error)
	UpdateItemQty(ctx context.Context, userID, itemID string, delta int, dir domain.Direction) (*domain.Snapshot, error)
	RemoveItem(ctx context.Context, userID, itemID string) (*domain.Snapshot, error)
	ApplyCoupon(ctx context.Context, userID, code string) (*domain.Snapshot, bool, error)
	RemoveCoupon(ctx context.Context, userID string) (*domain.Snapshot, error)
	SetShippingAddress(ctx context.Context, userID string, a domain.Address) (*domain.Snapshot, error)
	SetBillingAddress(ctx context.Context, userID string, a domain.Address) (*domain.Snapshot, error)
	SetShippingMethod(ctx context.Context, userID, code string) (*domain.Snapshot, error)
	SetStatus(ctx context.Context, userID string, status domain.Status) (*domain.Snapshot, error)
	SetTaxConvention(ctx context.Context, userID string, convention domain.TaxConvention) (*domain.Snapshot, error)
	Checkout(ctx context.Context, userID string) (*domain.Snapshot, error)
	ClearCart(ctx context.Context, userID string) error
}

const maxQuantity = 99

type CartHandler struct {
	carts   CartService
	timeout time.Duration
	logger  *zap.Logger
}

func NewCartHandler(carts CartService, timeout time.Duration, logger *zap.Logger) *CartHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CartHandler{
		carts:   carts,
		timeout: timeout,
		logger:  logger,
	}
}

type AddItemRequestDTO struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity  int    `json:"quantity"`
	Direction string `json:"direction"`
}

type CouponRequestDTO struct {
	Code string `json:"code"`
}

type ShippingMethodRequestDTO struct {
	Code string `json:"code"`
}

type StatusRequestDTO struct {
	Status string `json:"status"`
}

type TaxConventionRequestDTO struct {
	Convention string `json:"convention"`
}

type CouponResponseDTO struct {
	Recognized bool             `json:"recognized"`
	Cart       *domain.Snapshot `json:"cart"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	h.withUser(w, r, func(ctx context.Context, userID string) {
		cart, err := h.carts.GetCart(ctx, userID)
		h.respondCart(w, r, http.StatusOK, cart, err)
	})
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	h.withUser(w, r, func(ctx context.Context, userID string) {
		var req AddItemRequestDTO
		if !decode(w, r, &req) {
			return
		}
		if req.ProductID <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
			return
		}
		if req.Quantity > maxQuantity {
			respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
			return
		}

		cart, err := h.carts.AddItem(ctx, userID, req.ProductID, req.Quantity)
		h.respondCart(w, r, http.StatusCreated, cart, err)
	})
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	h.withUser(w, r, func(ctx context.Context, userID string) {
		var req UpdateQuantityRequestDTO
		if !decode(w, r, &req) {
			return
		}
		dir, err := domain.ParseDirection(req.Direction)
		if err != nil {
			h.respondErr(w, r, err)
			return
		}

		cart, err := h.carts.UpdateItemQty(ctx, userID, chi.URLParam(r, "itemID"), req.Quantity, dir)
		h.respondCart(w, r, http.StatusOK, cart, err)
	})
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	h.withUser(w, r, func(ctx context.Context, userID string) {
		cart, err := h.carts.RemoveItem(ctx, userID, chi.URLParam(r, "itemID"))
		h.respondCart(w, r, http.StatusOK, cart, err)
	})
}

func (h *CartHandler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	h.withUser(w, r, func(ctx context.Context, userID string) {
		var req CouponRequestDTO
		if !decode(w, r, &req) {
			return
		}

		cart, recognized, err := h.carts.ApplyCoupon(ctx, userID, req.Code)
		if err != nil {
			h.respondErr(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, CouponResponseDTO{Recognized: recognized, Cart: cart})
	})
}

func (h *CartHandler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	h.withUser(w, r, func(ctx context.Context, userID string) {
		cart, err := h.carts.RemoveCoupon(ctx, userID)
		h.respondCart(w, r, http.StatusOK, cart, err)
	})
}

func (h *CartHandler) SetShippingAddress(w http.ResponseWriter, r *http.Request) {
	h.withUser(w, r, func(ctx context.Context, userID string) {
		var req domain.Address
		if !decode(w, r, &req) {
			return
		}

		cart, err := h.carts.SetShippingAddress(ctx, userID, req)
		h.respondCart(w, r, http.StatusOK, cart, err)
	})
}

func (h *CartHandler) SetBillingAddress(w http.ResponseWriter, r *http.Request) {
	h.withUser(w, r, func(ctx context.Context, userID string) {
		var req domain.Address
		if !decode(w, r, &req) {
			return
		}

		cart, err := h.carts.SetBillingAddress(ctx, userID, req)
		h.respondCart(w, r, http.StatusOK, cart, err)
	})
}

func (h *CartHandler) SetShippingMethod(w http.ResponseWriter, r *http.Request) {
	h.withUser(w, r, func(ctx context.Context, userID string) {
		var req ShippingMethodRequestDTO
		if !decode(w, r, &req) {
			return
		}

		cart, err := h.carts.SetShippingMethod(ctx, userID, req.Code)
		h.respondCart(w, r, http.StatusOK, cart, err)
	})
}

// SetStatus lets the checkout workflow flip the lifecycle flag, including
// reopening a converted cart.
func (h *CartHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	h.withUser(w, r, func(ctx context.Context, userID string) {
		var req StatusRequestDTO
		if !decode(w, r, &req) {
			return
		}
		status, err := domain.ParseStatus(req.Status)
		if err != nil {
			h.respondErr(w, r, err)
			return
		}

		cart, err := h.carts.SetStatus(ctx, userID, status)
		h.respondCart(w, r, http.StatusOK, cart, err)
	})
}

func (h *CartHandler) SetTaxConvention(w http.ResponseWriter, r *http.Request) {
	h.withUser(w, r, func(ctx context.Context, userID string) {
		var req TaxConventionRequestDTO
		if !decode(w, r, &req) {
			return
		}
		convention, err := domain.ParseTaxConvention(req.Convention)
		if err != nil {
			h.respondErr(w, r, err)
			return
		}

		cart, err := h.carts.SetTaxConvention(ctx, userID, convention)
		h.respondCart(w, r, http.StatusOK, cart, err)
	})
}

func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	h.withUser(w, r, func(ctx context.Context, userID string) {
		cart, err := h.carts.Checkout(ctx, userID)
		h.respondCart(w, r, http.StatusOK, cart, err)
	})
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	h.withUser(w, r, func(ctx context.Context, userID string) {
		if err := h.carts.ClearCart(ctx, userID); err != nil {
			h.respondErr(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

// withUser bounds the request by the handler timeout and resolves the
// {userID} path parameter.
func (h *CartHandler) withUser(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, userID string)) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		respondError(w, http.StatusBadRequest, "invalid_user_id", "user id is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	fn(ctx, userID)
}

func (h *CartHandler) respondCart(w http.ResponseWriter, r *http.Request, status int, cart *domain.Snapshot, err error) {
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	respondJSON(w, status, cart)
}

func (h *CartHandler) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	status, code := mapError(err)
	if status >= http.StatusInternalServerError {
		requestLogger(r, h.logger).Error("request failed", zap.String("code", code), zap.Error(err))
		respondError(w, status, code, http.StatusText(status))
		return
	}
	respondError(w, status, code, err.Error())
}

func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
