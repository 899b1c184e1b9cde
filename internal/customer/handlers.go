package customer

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-checkout/internal/common"
	"github.com/noah-isme/toko-checkout/internal/store"
)

// Campaigner delivers a marketing message to a set of customers.
type Campaigner interface {
	Marketing(ctx context.Context, customers []store.Customer, message string) int
}

// Handler exposes customer accounts over HTTP.
type Handler struct {
	Accounts  *Accounts
	Campaigns Campaigner
}

type profile struct {
	store.Customer
	LifetimeValue decimal.Decimal `json:"lifetimeValue"`
}

type campaignRequest struct {
	Segment string `json:"segment" validate:"required,oneof=all gold inactive"`
	Message string `json:"message" validate:"required,max=1000"`
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/customers/{id}", h.Get)
	r.Get("/segments/{name}", h.Segment)
	r.Post("/marketing/campaigns", h.SendCampaign)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	c, err := h.Accounts.Store.GetCustomer(r.Context(), id)
	if err != nil {
		common.WriteError(w, MapError(err))
		return
	}
	ltv, err := h.Accounts.LifetimeValue(r.Context(), id)
	if err != nil {
		common.WriteError(w, MapError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": profile{Customer: c, LifetimeValue: ltv}})
}

func (h *Handler) Segment(w http.ResponseWriter, r *http.Request) {
	members, err := h.Accounts.Segment(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		common.WriteError(w, MapError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": members})
}

// SendCampaign addresses every member of a segment.
func (h *Handler) SendCampaign(w http.ResponseWriter, r *http.Request) {
	var req campaignRequest
	if err := common.DecodeAndValidate(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	members, err := h.Accounts.Segment(r.Context(), req.Segment)
	if err != nil {
		common.WriteError(w, MapError(err))
		return
	}
	sent := 0
	if h.Campaigns != nil {
		sent = h.Campaigns.Marketing(r.Context(), members, req.Message)
	}
	common.JSON(w, http.StatusAccepted, map[string]any{"data": map[string]any{"segment": req.Segment, "recipients": sent}})
}

// MapError translates account errors into API errors.
func MapError(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return common.NewAppError("NOT_FOUND", "customer not found", http.StatusNotFound, err)
	case errors.Is(err, ErrUnknownSegment):
		return common.BadRequest("unknown segment", err, nil)
	default:
		return err
	}
}
