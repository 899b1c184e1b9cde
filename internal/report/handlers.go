package report

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/toko-checkout/internal/common"
)

// Handler exposes report endpoints.
type Handler struct {
	Svc *Service
}

// Routes mounts the handler.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/reports/sales", h.Sales)
}

// Sales returns the sales report for ?from=&to= (RFC3339) or the last ?days=.
func (h *Handler) Sales(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "REPORT_NOT_CONFIGURED", "report service not configured", nil)
		return
	}
	query := r.URL.Query()
	fromStr := query.Get("from")
	toStr := query.Get("to")
	var (
		from time.Time
		to   time.Time
		err  error
	)
	if fromStr != "" && toStr != "" {
		from, err = time.Parse(time.RFC3339, fromStr)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid from date", nil)
			return
		}
		to, err = time.Parse(time.RFC3339, toStr)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid to date", nil)
			return
		}
	} else {
		days := h.Svc.DefaultRange
		if days <= 0 {
			days = 30
		}
		if parsed := common.QueryInt(r, "days", days); parsed > 0 {
			days = parsed
		}
		to = h.Svc.now()
		from = to.AddDate(0, 0, -days)
	}
	if to.Before(from) {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "from must not be after to", nil)
		return
	}
	out, err := h.Svc.SalesReport(r.Context(), from, to)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "REPORT_ERROR", err.Error(), nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}
