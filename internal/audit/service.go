// Package audit records administrative mutations (restocks, price changes,
// order transitions) as domain events.
package audit

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/noah-isme/toko-checkout/internal/events"
	"github.com/noah-isme/toko-checkout/internal/obs"
)

// Emitter publishes an event. *events.Bus satisfies it.
type Emitter interface {
	Emit(ctx context.Context, topic, aggregateID string, payload any) (events.Event, error)
}

// Entry is the payload of one admin.action event.
type Entry struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	ResourceID string         `json:"resourceId,omitempty"`
	Method     string         `json:"method"`
	Route      string         `json:"route"`
	Status     int            `json:"status"`
	RequestID  string         `json:"requestId,omitempty"`
	RemoteIP   string         `json:"remoteIp,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Service records audit entries when enabled.
type Service struct {
	Bus     Emitter
	Enabled bool
}

// Record emits entry on the admin.action topic.
func (s Service) Record(ctx context.Context, req *http.Request, entry Entry) error {
	if !s.Enabled {
		return nil
	}
	if s.Bus == nil {
		return errors.New("audit: bus not configured")
	}
	if req != nil {
		route := obs.RoutePatternFromContext(req.Context())
		if rc := chi.RouteContext(req.Context()); route == "" && rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			route = strings.TrimSpace(req.URL.Path)
		}
		entry.Method = req.Method
		entry.Route = route
		entry.RequestID = middleware.GetReqID(req.Context())
		entry.RemoteIP = req.RemoteAddr
		entry.Action = buildAction(entry.Action, req.Method, route)
		entry.Resource = buildResource(entry.Resource, route)
	}
	if entry.Status == 0 {
		entry.Status = http.StatusOK
	}
	aggregate := entry.ResourceID
	if aggregate == "" {
		aggregate = entry.Resource
	}
	_, err := s.Bus.Emit(ctx, events.TopicAdminAction, aggregate, entry)
	return err
}

func buildAction(action, method, route string) string {
	if trimmed := strings.TrimSpace(action); trimmed != "" {
		return trimmed
	}
	if route == "" {
		route = "/"
	}
	return strings.ToUpper(method) + " " + route
}

func buildResource(resource, route string) string {
	if trimmed := strings.TrimSpace(resource); trimmed != "" {
		return trimmed
	}
	segments := strings.Split(strings.Trim(route, "/"), "/")
	if len(segments) >= 3 && segments[0] == "api" && segments[1] == "v1" {
		return segments[2]
	}
	if len(segments) > 0 && segments[0] != "" {
		return segments[0]
	}
	return "unknown"
}
