// Package security holds response-hardening middleware for the HTTP surface.
package security

import (
	"net/http"
	"strconv"

	"github.com/noah-isme/toko-checkout/internal/common"
)

// DefaultMaxBody caps request payloads when BodyLimit.Max is unset.
const DefaultMaxBody int64 = 1 << 20

// Headers configures common security headers for HTTP responses.
type Headers struct {
	Enable     bool
	EnableHSTS bool
	HSTSMaxAge int
}

// Middleware attaches standard security headers to each response.
func (h Headers) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.Enable {
			next.ServeHTTP(w, r)
			return
		}
		headers := w.Header()
		headers.Set("X-Content-Type-Options", "nosniff")
		headers.Set("X-Frame-Options", "DENY")
		headers.Set("Referrer-Policy", "no-referrer")
		headers.Set("Cache-Control", "no-store")
		if h.EnableHSTS && r.TLS != nil {
			maxAge := h.HSTSMaxAge
			if maxAge <= 0 {
				maxAge = 31536000
			}
			headers.Set("Strict-Transport-Security", "max-age="+strconv.Itoa(maxAge))
		}
		next.ServeHTTP(w, r)
	})
}

// BodyLimit rejects request payloads larger than Max bytes with 413.
type BodyLimit struct {
	Max int64
}

// Middleware declares oversize requests up front and caps the body reader
// for requests with unknown length.
func (b BodyLimit) Middleware(next http.Handler) http.Handler {
	limit := b.Max
	if limit <= 0 {
		limit = DefaultMaxBody
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body == nil || r.Body == http.NoBody {
			next.ServeHTTP(w, r)
			return
		}
		if r.ContentLength > limit {
			common.JSONError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request entity too large", map[string]int64{"max": limit})
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, limit)
		next.ServeHTTP(w, r)
	})
}
