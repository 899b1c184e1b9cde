package order_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-checkout/internal/customer"
	"github.com/noah-isme/toko-checkout/internal/inventory"
	"github.com/noah-isme/toko-checkout/internal/lock"
	"github.com/noah-isme/toko-checkout/internal/order"
	"github.com/noah-isme/toko-checkout/internal/shipping"
	"github.com/noah-isme/toko-checkout/internal/store"
)

type recorder struct {
	mu        sync.Mutex
	statuses  []store.OrderStatus
	cancelled []string
}

func (r *recorder) StatusChanged(_ context.Context, _ store.Customer, o store.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, o.Status)
}

func (r *recorder) Cancelled(_ context.Context, _ store.Customer, _ store.Order, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled = append(r.cancelled, reason)
}

type fixture struct {
	st        *store.Memory
	lifecycle *order.Lifecycle
	notes     *recorder
	bookings  int
	failBook  bool
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemory()
	require.NoError(t, st.PutProduct(ctx, store.Product{ID: "P1", Name: "Widget", Price: decimal.NewFromInt(100), Quantity: 3}))
	require.NoError(t, st.PutCustomer(ctx, store.Customer{ID: "C1", Tier: store.TierBronze, LoyaltyPoints: 200}))

	f := &fixture{st: st, notes: &recorder{}}
	provider := shipping.ProviderFunc(func(context.Context, store.Order) (string, error) {
		f.bookings++
		if f.failBook {
			return "", errors.New("carrier down")
		}
		return "TRACK1", nil
	})
	f.lifecycle = &order.Lifecycle{
		Store:    st,
		Locker:   lock.NewLocal(),
		Stock:    &inventory.Ledger{Store: st},
		Shipper:  &shipping.Service{Store: st, Provider: provider},
		Notifier: f.notes,
		Refunds:  &customer.Accounts{Store: st},
		Now:      func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) },
	}
	return f
}

// placed creates an order for two units of P1 and takes the stock, the way
// checkout does.
func (f *fixture) placed(t *testing.T) store.Order {
	t.Helper()
	ctx := context.Background()
	lines := []store.Line{{ProductID: "P1", Quantity: 2, UnitPrice: decimal.NewFromInt(100)}}
	o, err := f.lifecycle.Create(ctx, order.Draft{
		CustomerID: "C1", Lines: lines, Subtotal: decimal.NewFromInt(200), TotalPrice: decimal.NewFromInt(216),
		LoyaltyPointsEarned: 200,
	})
	require.NoError(t, err)
	require.NoError(t, (&inventory.Ledger{Store: f.st}).Deduct(ctx, lines, o.ID))
	_, err = f.st.AdjustLoyalty(ctx, "C1", 200)
	require.NoError(t, err)
	return o
}

func stock(t *testing.T, st store.Store) int {
	t.Helper()
	p, err := st.GetProduct(context.Background(), "P1")
	require.NoError(t, err)
	return p.Quantity
}

func TestCreateAllocatesMonotonicIDs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first, err := f.lifecycle.Create(ctx, order.Draft{CustomerID: "C1"})
	require.NoError(t, err)
	second, err := f.lifecycle.Create(ctx, order.Draft{CustomerID: "C1"})
	require.NoError(t, err)
	require.Greater(t, second.ID, first.ID)
	require.Equal(t, store.OrderStatusPending, first.Status)
	require.Equal(t, 3, stock(t, f.st))

	orders, err := f.lifecycle.ListByCustomer(ctx, "C1")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	none, err := f.lifecycle.ListByCustomer(ctx, "C9")
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestStockThreeScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ledger := &inventory.Ledger{Store: f.st}

	o := f.placed(t)
	require.Equal(t, 1, stock(t, f.st))

	err := ledger.CheckAvailability(ctx, []store.Line{{ProductID: "P1", Quantity: 2}})
	var stockErr *inventory.StockError
	require.ErrorAs(t, err, &stockErr)
	require.Equal(t, 1, stockErr.Available)

	cancelled, err := f.lifecycle.Cancel(ctx, o.ID, "changed mind")
	require.NoError(t, err)
	require.Equal(t, store.OrderStatusCancelled, cancelled.Status)
	require.Equal(t, 3, stock(t, f.st))
}

func TestCancelIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.placed(t)

	_, err := f.lifecycle.Cancel(ctx, o.ID, "first")
	require.NoError(t, err)
	_, err = f.lifecycle.Cancel(ctx, o.ID, "second")
	require.NoError(t, err)

	require.Equal(t, 3, stock(t, f.st))
	require.Equal(t, []string{"first"}, f.notes.cancelled)

	log, err := f.st.InventoryLog(ctx)
	require.NoError(t, err)
	require.Len(t, log, 2)

	c, err := f.st.GetCustomer(ctx, "C1")
	require.NoError(t, err)
	require.Equal(t, 200, c.LoyaltyPoints)
}

// flakyRestock fails the first increment of one product.
type flakyRestock struct {
	*store.Memory
	product string
	failed  bool
}

func (f *flakyRestock) AdjustStock(ctx context.Context, id string, delta int) (store.Product, error) {
	if id == f.product && delta > 0 && !f.failed {
		f.failed = true
		return store.Product{}, errors.New("backend unavailable")
	}
	return f.Memory.AdjustStock(ctx, id, delta)
}

func TestCancelRetryAfterRestoreFailureRestoresOnce(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.PutProduct(ctx, store.Product{ID: "A", Quantity: 10}))
	require.NoError(t, mem.PutProduct(ctx, store.Product{ID: "B", Quantity: 10}))
	require.NoError(t, mem.PutCustomer(ctx, store.Customer{ID: "C1", Tier: store.TierBronze}))
	st := &flakyRestock{Memory: mem, product: "B"}
	ledger := &inventory.Ledger{Store: st}
	lifecycle := &order.Lifecycle{Store: st, Locker: lock.NewLocal(), Stock: ledger}

	lines := []store.Line{{ProductID: "A", Quantity: 4}, {ProductID: "B", Quantity: 4}}
	o, err := lifecycle.Create(ctx, order.Draft{CustomerID: "C1", Lines: lines})
	require.NoError(t, err)
	require.NoError(t, ledger.Deduct(ctx, lines, o.ID))

	_, err = lifecycle.Cancel(ctx, o.ID, "first try")
	require.Error(t, err)
	got, err := lifecycle.Get(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, store.OrderStatusPending, got.Status)

	cancelled, err := lifecycle.Cancel(ctx, o.ID, "retry")
	require.NoError(t, err)
	require.Equal(t, store.OrderStatusCancelled, cancelled.Status)
	for _, id := range []string{"A", "B"} {
		p, err := st.GetProduct(ctx, id)
		require.NoError(t, err)
		require.Equal(t, 10, p.Quantity, id)
	}
}

func TestRecordLoyaltyEarned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.placed(t)

	updated, err := f.lifecycle.RecordLoyaltyEarned(ctx, o.ID, 0)
	require.NoError(t, err)
	require.Zero(t, updated.LoyaltyPointsEarned)
	got, err := f.lifecycle.Get(ctx, o.ID)
	require.NoError(t, err)
	require.Zero(t, got.LoyaltyPointsEarned)

	_, err = f.lifecycle.RecordLoyaltyEarned(ctx, 999, 10)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestCancelRejectedAfterShipping(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.placed(t)

	shipped, err := f.lifecycle.Transition(ctx, o.ID, store.OrderStatusShipped)
	require.NoError(t, err)
	require.Equal(t, "TRACK1", shipped.TrackingNumber)

	_, err = f.lifecycle.Cancel(ctx, o.ID, "too late")
	require.ErrorIs(t, err, order.ErrInvalidTransition)
	require.Equal(t, 1, stock(t, f.st))

	_, err = f.lifecycle.Transition(ctx, o.ID, store.OrderStatusDelivered)
	require.NoError(t, err)
	_, err = f.lifecycle.Cancel(ctx, o.ID, "too late")
	require.ErrorIs(t, err, order.ErrInvalidTransition)
	require.Equal(t, []store.OrderStatus{store.OrderStatusShipped, store.OrderStatusDelivered}, f.notes.statuses)
}

func TestShippedTransitionIsAtomicOnShipmentFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.placed(t)
	f.failBook = true

	_, err := f.lifecycle.Transition(ctx, o.ID, store.OrderStatusShipped)
	require.ErrorIs(t, err, order.ErrShipmentFailed)

	got, err := f.lifecycle.Get(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, store.OrderStatusPending, got.Status)
	require.Empty(t, got.TrackingNumber)
	require.Empty(t, f.notes.statuses)
}

func TestShippedWithTrackingSkipsBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.placed(t)
	o.TrackingNumber = "EXISTING"
	require.NoError(t, f.st.PutOrder(ctx, o))

	shipped, err := f.lifecycle.Transition(ctx, o.ID, store.OrderStatusShipped)
	require.NoError(t, err)
	require.Equal(t, "EXISTING", shipped.TrackingNumber)
	require.Zero(t, f.bookings)
}

func TestTransitionValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.lifecycle.Transition(ctx, 1, store.OrderStatus("lost"))
	require.ErrorIs(t, err, order.ErrInvalidStatus)
	_, err = f.lifecycle.Transition(ctx, 404, store.OrderStatusDelivered)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestApplyAdjustment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.placed(t)

	adjusted, err := f.lifecycle.ApplyAdjustment(ctx, o.ID, decimal.NewFromInt(25), "damaged box")
	require.NoError(t, err)
	require.True(t, adjusted.TotalPrice.Equal(decimal.NewFromInt(162)), "got %s", adjusted.TotalPrice)

	_, err = f.lifecycle.ApplyAdjustment(ctx, o.ID, decimal.Zero, "noop")
	require.ErrorIs(t, err, order.ErrInvalidAdjustment)
	_, err = f.lifecycle.ApplyAdjustment(ctx, o.ID, decimal.NewFromInt(101), "too much")
	require.ErrorIs(t, err, order.ErrInvalidAdjustment)

	_, err = f.lifecycle.Cancel(ctx, o.ID, "")
	require.NoError(t, err)
	_, err = f.lifecycle.ApplyAdjustment(ctx, o.ID, decimal.NewFromInt(10), "late")
	require.ErrorIs(t, err, order.ErrInvalidTransition)
}

func TestHandlerErrorMapping(t *testing.T) {
	f := newFixture(t)
	o := f.placed(t)
	r := chi.NewRouter()
	(&order.Handler{Lifecycle: f.lifecycle}).Routes(r)

	do := func(method, path, body string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(method, path, strings.NewReader(body)))
		return rr
	}

	require.Equal(t, http.StatusNotFound, do(http.MethodGet, "/orders/999", "").Code)
	require.Equal(t, http.StatusBadRequest, do(http.MethodGet, "/orders/abc", "").Code)
	require.Equal(t, http.StatusBadRequest, do(http.MethodPost, "/orders/1/status", `{"status":"lost"}`).Code)

	f.failBook = true
	rr := do(http.MethodPost, "/orders/1/status", `{"status":"shipped"}`)
	require.Equal(t, http.StatusBadGateway, rr.Code)
	require.Contains(t, rr.Body.String(), "SHIPMENT_FAILED")

	rr = do(http.MethodPost, "/orders/1/adjustments", `{"percent":"10","reason":"goodwill"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	require.Equal(t, http.StatusOK, do(http.MethodPost, "/orders/1/cancel", `{"reason":"bye"}`).Code)
	require.Equal(t, http.StatusOK, do(http.MethodPost, "/orders/1/cancel", "").Code)

	rr = do(http.MethodPost, "/orders/1/adjustments", `{"percent":10,"reason":"late"}`)
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Contains(t, rr.Body.String(), "INVALID_TRANSITION")

	second := f.placed(t)
	rr = do(http.MethodPost, fmt.Sprintf("/orders/%d/status", second.ID), `{"status":"cancelled"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Contains(t, rr.Body.String(), `"status":"cancelled"`)
	require.Equal(t, 3, stock(t, f.st))
	require.Contains(t, f.notes.cancelled, order.StatusUpdateReason)

	rr = do(http.MethodGet, "/customers/C1/orders", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"id":1`)
	require.Equal(t, int64(1), o.ID)
}
