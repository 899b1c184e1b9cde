package catalog

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-checkout/internal/common"
	"github.com/noah-isme/toko-checkout/internal/store"
)

// Handler exposes catalog endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{service: svc}
}

type priceRequest struct {
	Price decimal.Decimal `json:"price"`
}

// Routes mounts the handler.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/products", h.Products)
	r.Get("/products/{id}", h.ProductDetail)
	r.Put("/products/{id}/price", h.UpdatePrice)
}

// Products handles GET /products with ?category=, ?inStock=, ?sort= and pagination.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	q := r.URL.Query()
	sortBy, err := ParseSort(q.Get("sort"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	params := ListParams{Category: strings.TrimSpace(q.Get("category")), Sort: sortBy}
	if v := q.Get("inStock"); v != "" {
		inStock, err := strconv.ParseBool(v)
		if err != nil {
			common.WriteError(w, badRequest("inStock", "inStock must be a boolean", err))
			return
		}
		params.InStock = inStock
	}
	products, err := h.service.List(r.Context(), params)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	page, perPage := common.ParsePagination(r, 20, 100)
	start, end := common.Window(page, perPage, len(products))
	w.Header().Set("X-Total-Count", strconv.Itoa(len(products)))
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       products[start:end],
		"pagination": common.Pagination{Page: page, PerPage: perPage, TotalItems: len(products)},
	})
}

// ProductDetail handles GET /products/{id}.
func (h *Handler) ProductDetail(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Lookup(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, mapError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": p})
}

// UpdatePrice handles PUT /products/{id}/price.
func (h *Handler) UpdatePrice(w http.ResponseWriter, r *http.Request) {
	var req priceRequest
	if err := common.DecodeAndValidate(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	p, err := h.service.UpdatePrice(r.Context(), chi.URLParam(r, "id"), req.Price)
	if err != nil {
		common.WriteError(w, mapError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": p})
}

func mapError(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return common.NewAppError("NOT_FOUND", "product not found", http.StatusNotFound, err)
	case errors.Is(err, ErrInvalidPrice):
		return badRequest("price", "price must be positive", err)
	}
	return err
}
