package ratelimit

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-checkout/internal/common"
)

// Handler enforces a request budget per key before delegating.
type Handler struct {
	Limiter Limiter
	Key     func(*http.Request) string
	Window  time.Duration
	Max     int
	Logger  zerolog.Logger
}

// Middleware fails open when the limiter backend errors.
func (h Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Limiter == nil || h.Max <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		keyFn := h.Key
		if keyFn == nil {
			keyFn = ClientIP
		}
		decision, err := h.Limiter.Allow(r.Context(), keyFn(r), h.Window, h.Max)
		if err != nil {
			h.Logger.Warn().Err(err).Msg("rate_limit_unavailable")
			next.ServeHTTP(w, r)
			return
		}

		headers := w.Header()
		headers.Set("X-RateLimit-Limit", strconv.Itoa(h.Max))
		headers.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(decision.Reset.Unix(), 10))
		if !decision.Allowed {
			retryAfter := int(time.Until(decision.Reset).Seconds())
			if retryAfter < 0 {
				retryAfter = 0
			}
			headers.Set("Retry-After", strconv.Itoa(retryAfter))
			common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many checkout attempts", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP keys requests by remote host. Run chi's RealIP first when the
// service sits behind a proxy.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "checkout:" + r.RemoteAddr
	}
	return "checkout:" + host
}
