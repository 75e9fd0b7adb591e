package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const maxRequestBodySize = 1 << 20 // 1MB

// NewRouter mounts the cart API and wraps it in OpenTelemetry instrumentation.
// catalogState, when set, reports the catalog circuit breaker on /health.
func NewRouter(h *CartHandler, l *zap.Logger, catalogState func() string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(AccessLog(l))
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestSize(maxRequestBodySize))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		body := map[string]string{"status": "ok"}
		if catalogState != nil {
			body["catalog"] = catalogState()
		}
		respondJSON(w, http.StatusOK, body)
	})

	r.Route("/api/v1/carts/{userID}", func(r chi.Router) {
		r.Get("/", h.GetCart)
		r.Delete("/", h.ClearCart)
		r.Post("/items", h.AddItem)
		r.Patch("/items/{itemID}", h.UpdateQuantity)
		r.Delete("/items/{itemID}", h.RemoveItem)
		r.Put("/coupon", h.ApplyCoupon)
		r.Delete("/coupon", h.RemoveCoupon)
		r.Put("/shipping-address", h.SetShippingAddress)
		r.Put("/billing-address", h.SetBillingAddress)
		r.Put("/shipping-method", h.SetShippingMethod)
		r.Put("/status", h.SetStatus)
		r.Put("/tax-convention", h.SetTaxConvention)
		r.Post("/checkout", h.Checkout)
	})

	return otelhttp.NewHandler(r, "cart-service")
}
