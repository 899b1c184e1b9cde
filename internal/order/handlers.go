package order

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-checkout/internal/common"
	"github.com/noah-isme/toko-checkout/internal/store"
)

// Handler exposes the order lifecycle over HTTP.
type Handler struct {
	Lifecycle *Lifecycle
}

// StatusUpdateReason is the cancellation reason recorded when an order is
// cancelled through the status endpoint.
const StatusUpdateReason = "status_update"

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type adjustmentRequest struct {
	Percent decimal.Decimal `json:"percent"`
	Reason  string          `json:"reason" validate:"required"`
}

// Routes mounts the handler.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/orders/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Post("/status", h.SetStatus)
		r.Post("/cancel", h.Cancel)
		r.Post("/adjustments", h.Adjust)
	})
	r.Get("/customers/{id}/orders", h.ListByCustomer)
}

func orderID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, common.BadRequest("invalid order id", err, nil)
	}
	return id, nil
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	o, err := h.Lifecycle.Get(r.Context(), id)
	if err != nil {
		common.WriteError(w, MapError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": o})
}

func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	var req statusRequest
	if err := common.DecodeAndValidate(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	status := store.OrderStatus(req.Status)
	var o store.Order
	if status == store.OrderStatusCancelled {
		// Cancelling through the status endpoint still returns stock and points.
		o, err = h.Lifecycle.Cancel(r.Context(), id, StatusUpdateReason)
	} else {
		o, err = h.Lifecycle.Transition(r.Context(), id, status)
	}
	if err != nil {
		common.WriteError(w, MapError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": o})
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	var req cancelRequest
	if r.ContentLength != 0 {
		if err := common.DecodeAndValidate(r, &req); err != nil {
			common.WriteError(w, err)
			return
		}
	}
	o, err := h.Lifecycle.Cancel(r.Context(), id, req.Reason)
	if err != nil {
		common.WriteError(w, MapError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": o})
}

func (h *Handler) Adjust(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	var req adjustmentRequest
	if err := common.DecodeAndValidate(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	o, err := h.Lifecycle.ApplyAdjustment(r.Context(), id, req.Percent, req.Reason)
	if err != nil {
		common.WriteError(w, MapError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": o})
}

func (h *Handler) ListByCustomer(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Lifecycle.ListByCustomer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, MapError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": orders})
}

// MapError translates lifecycle errors into API errors.
func MapError(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return common.NewAppError("NOT_FOUND", "order not found", http.StatusNotFound, err)
	case errors.Is(err, ErrInvalidTransition):
		return common.NewAppError("INVALID_TRANSITION", err.Error(), http.StatusConflict, err)
	case errors.Is(err, ErrShipmentFailed):
		return common.NewAppError("SHIPMENT_FAILED", "shipment could not be created", http.StatusBadGateway, err)
	case errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrInvalidAdjustment):
		return common.BadRequest(err.Error(), err, nil)
	}
	return err
}
