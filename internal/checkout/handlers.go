package checkout

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/toko-checkout/internal/common"
	"github.com/noah-isme/toko-checkout/internal/inventory"
	"github.com/noah-isme/toko-checkout/internal/payment"
	"github.com/noah-isme/toko-checkout/internal/shipping"
)

type Handler struct {
	Svc *Service
}

// Routes mounts the handler.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/checkout", h.Checkout)
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	out, err := h.Svc.PlaceOrder(r.Context(), req)
	if err != nil {
		common.WriteError(w, MapError(err))
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": out})
}

// MapError translates checkout failures into API errors.
func MapError(err error) error {
	var rejected *payment.RejectedError
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return common.BadRequest("validation failed", err, common.FieldErrors(err))
	case errors.Is(err, shipping.ErrInvalidMethod):
		return common.NewAppError("INVALID_SHIPPING_METHOD", err.Error(), http.StatusBadRequest, err)
	case errors.As(err, &rejected):
		return common.NewAppError("PAYMENT_REJECTED", rejected.Reason, http.StatusPaymentRequired, err)
	case errors.Is(err, ErrCustomerNotFound):
		return common.NewAppError("NOT_FOUND", "customer not found", http.StatusNotFound, err)
	}
	return inventory.MapError(err)
}
