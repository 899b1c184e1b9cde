package audit

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-checkout/internal/obs"
)

// HTTPRecorder records requests after they have been handled.
type HTTPRecorder struct {
	Service Service
	Logger  zerolog.Logger
}

// HTTPConfig customises the entry produced for a route.
type HTTPConfig struct {
	Action          string
	Resource        string
	ResourceIDParam string
}

// Middleware returns chi-compatible middleware that records mutating
// requests. Failed recording is logged and never changes the response.
func (r HTTPRecorder) Middleware(cfg HTTPConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if !r.Service.Enabled || safeMethod(req.Method) {
				next.ServeHTTP(w, req)
				return
			}
			rec := obs.NewStatusRecorder(w)
			next.ServeHTTP(rec, req)

			entry := Entry{Action: cfg.Action, Resource: cfg.Resource, Status: rec.Status()}
			if cfg.ResourceIDParam != "" {
				entry.ResourceID = chi.URLParam(req, cfg.ResourceIDParam)
			}
			if err := r.Service.Record(req.Context(), req, entry); err != nil {
				r.Logger.Warn().Err(err).Str("action", entry.Action).Msg("audit_record_failed")
			}
		})
	}
}

func safeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}
