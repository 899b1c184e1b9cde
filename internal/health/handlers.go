// Package health serves liveness and readiness probes.
package health

import (
	"context"
	"net/http"
	"sort"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/toko-checkout/internal/common"
)

var ready atomic.Bool

func init() { ready.Store(true) }

// SetReady flips readiness; the API clears it when shutdown begins.
func SetReady(v bool) { ready.Store(v) }

// Probe checks one dependency.
type Probe func(ctx context.Context) error

// RedisProbe pings client.
func RedisProbe(client *redis.Client) Probe {
	return func(ctx context.Context) error { return client.Ping(ctx).Err() }
}

// Handler exposes the health endpoints.
type Handler struct {
	Probes  map[string]Probe
	Timeout time.Duration
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready runs every probe and answers 503 when any fails or the process is
// draining. The in-memory backend has no probes and is always ready.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	names := make([]string, 0, len(h.Probes))
	for name := range h.Probes {
		names = append(names, name)
	}
	sort.Strings(names)

	status := map[string]string{}
	healthy := ready.Load()
	if !healthy {
		status["server"] = "shutting down"
	}
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		err := h.Probes[name](ctx)
		cancel()
		if err != nil {
			status[name] = err.Error()
			healthy = false
			continue
		}
		status[name] = "ok"
	}

	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	common.JSON(w, code, status)
}
