package audit

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/toko-checkout/internal/common"
	"github.com/noah-isme/toko-checkout/internal/events"
)

// Handler lists recorded admin actions.
type Handler struct {
	Events events.Reader
}

func (h Handler) Routes(r chi.Router) {
	r.Get("/admin/audit", h.List)
}

// List returns the newest admin actions, oldest first.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Events == nil {
		common.JSONError(w, http.StatusInternalServerError, "AUDIT_NOT_CONFIGURED", "audit store not configured", nil)
		return
	}
	limit := common.QueryInt(r, "limit", 50)
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	// Scan a wider window since other topics share the history.
	recent, err := h.Events.Recent(r.Context(), int64(limit*10))
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "AUDIT_QUERY_FAILED", "unable to fetch audit entries", nil)
		return
	}
	entries := make([]Entry, 0, limit)
	for _, ev := range recent {
		if ev.Topic != events.TopicAdminAction {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(ev.Payload, &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": entries})
}
