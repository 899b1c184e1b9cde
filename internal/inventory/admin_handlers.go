package inventory

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/toko-checkout/internal/common"
)

// AdminHandler exposes restock and stock reporting endpoints.
type AdminHandler struct {
	Ledger          *Ledger
	ReportThreshold int
}

type restockRequest struct {
	Quantity   int    `json:"quantity" validate:"gt=0"`
	SupplierID string `json:"supplierId"`
}

// Routes mounts the handler.
func (h *AdminHandler) Routes(r chi.Router) {
	r.Post("/products/{id}/restock", h.Restock)
	r.Get("/inventory/low-stock", h.LowStock)
	r.Get("/inventory/log", h.AuditLog)
}

// Restock adds supplier stock to a product.
func (h *AdminHandler) Restock(w http.ResponseWriter, r *http.Request) {
	var req restockRequest
	if err := common.DecodeAndValidate(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	product, err := h.Ledger.Restock(r.Context(), chi.URLParam(r, "id"), req.Quantity, req.SupplierID)
	if err != nil {
		common.WriteError(w, MapError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": product})
}

// LowStock lists products at or below ?threshold=.
func (h *AdminHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	def := h.ReportThreshold
	if def <= 0 {
		def = DefaultReportThreshold
	}
	products, err := h.Ledger.LowStock(r.Context(), common.QueryInt(r, "threshold", def))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": products})
}

// AuditLog returns the stock movement trail.
func (h *AdminHandler) AuditLog(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Ledger.Log(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": entries})
}

// MapError translates ledger errors into API errors.
func MapError(err error) error {
	var stockErr *StockError
	switch {
	case errors.As(err, &stockErr):
		return &common.AppError{
			Code: "INSUFFICIENT_STOCK", Message: stockErr.Error(), HTTPStatus: http.StatusConflict, Err: err,
			Details: map[string]any{"productId": stockErr.ProductID, "available": stockErr.Available, "requested": stockErr.Requested},
		}
	case errors.Is(err, ErrProductNotFound):
		return common.NewAppError("NOT_FOUND", "product not found", http.StatusNotFound, err)
	case errors.Is(err, ErrSupplierMismatch):
		return common.NewAppError("SUPPLIER_MISMATCH", "supplier does not supply this product", http.StatusConflict, err)
	case errors.Is(err, ErrInvalidQuantity):
		return common.BadRequest("quantity must be positive", err, nil)
	}
	return err
}
