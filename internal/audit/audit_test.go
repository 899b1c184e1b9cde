package audit_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-checkout/internal/audit"
	"github.com/noah-isme/toko-checkout/internal/events"
)

func newRouter(store *events.MemoryStore, enabled bool) chi.Router {
	rec := audit.HTTPRecorder{Service: audit.Service{Bus: &events.Bus{Store: store}, Enabled: enabled}}
	r := chi.NewRouter()
	r.With(rec.Middleware(audit.HTTPConfig{Action: "restock", Resource: "product", ResourceIDParam: "id"})).
		Post("/api/v1/products/{id}/restock", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		})
	audit.Handler{Events: store}.Routes(r)
	return r
}

func TestMiddlewareRecordsAdminAction(t *testing.T) {
	store := &events.MemoryStore{}
	r := newRouter(store, true)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/products/P2/restock", nil))
	require.Equal(t, http.StatusAccepted, rr.Code)

	recorded := store.List(events.TopicAdminAction)
	require.Len(t, recorded, 1)
	require.Equal(t, "P2", recorded[0].AggregateID)

	var entry audit.Entry
	require.NoError(t, json.Unmarshal(recorded[0].Payload, &entry))
	require.Equal(t, "restock", entry.Action)
	require.Equal(t, "product", entry.Resource)
	require.Equal(t, http.StatusAccepted, entry.Status)
	require.Equal(t, http.MethodPost, entry.Method)

	list := httptest.NewRecorder()
	r.ServeHTTP(list, httptest.NewRequest(http.MethodGet, "/admin/audit?limit=5", nil))
	require.Equal(t, http.StatusOK, list.Code)
	var body struct {
		Data []audit.Entry `json:"data"`
	}
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	require.Equal(t, "P2", body.Data[0].ResourceID)
}

func TestMiddlewareDisabledRecordsNothing(t *testing.T) {
	store := &events.MemoryStore{}
	r := newRouter(store, false)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/products/P2/restock", nil))
	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Empty(t, store.List(""))
}

func TestRecordDerivesActionFromRoute(t *testing.T) {
	store := &events.MemoryStore{}
	svc := audit.Service{Bus: &events.Bus{Store: store}, Enabled: true}
	req := httptest.NewRequest(http.MethodPut, "/api/v1/products/P1/price", nil)
	require.NoError(t, svc.Record(req.Context(), req, audit.Entry{}))

	var entry audit.Entry
	require.NoError(t, json.Unmarshal(store.List("")[0].Payload, &entry))
	require.Equal(t, "PUT /api/v1/products/P1/price", entry.Action)
	require.Equal(t, "products", entry.Resource)
}
