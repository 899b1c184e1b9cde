package report_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-checkout/internal/cache"
	"github.com/noah-isme/toko-checkout/internal/customer"
	"github.com/noah-isme/toko-checkout/internal/report"
	"github.com/noah-isme/toko-checkout/internal/seed"
	"github.com/noah-isme/toko-checkout/internal/store"
)

type countingStore struct {
	*store.Memory
	listCalls int
}

func (c *countingStore) ListOrders(ctx context.Context) ([]store.Order, error) {
	c.listCalls++
	return c.Memory.ListOrders(ctx)
}

var day = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func seeded(t *testing.T) *countingStore {
	t.Helper()
	ctx := context.Background()
	st := &countingStore{Memory: store.NewMemory()}
	require.NoError(t, seed.Load(ctx, st, day))

	put := func(customerID string, status store.OrderStatus, at time.Time, total string, lines ...store.Line) {
		id, err := st.NextOrderID(ctx)
		require.NoError(t, err)
		require.NoError(t, st.PutOrder(ctx, store.Order{
			ID: id, CustomerID: customerID, Status: status, CreatedAt: at,
			TotalPrice: decimal.RequireFromString(total), Lines: lines,
		}))
		require.NoError(t, st.AppendOrderHistory(ctx, customerID, id))
	}
	put("C1", store.OrderStatusDelivered, day.Add(2*time.Hour), "1300",
		store.Line{ProductID: "P1", Quantity: 1, UnitPrice: decimal.NewFromInt(1200)},
		store.Line{ProductID: "P3", Quantity: 2, UnitPrice: decimal.NewFromInt(45)})
	put("C2", store.OrderStatusPending, day.Add(5*time.Hour), "26",
		store.Line{ProductID: "P2", Quantity: 1, UnitPrice: decimal.NewFromInt(25)})
	put("C3", store.OrderStatusCancelled, day.Add(6*time.Hour), "150",
		store.Line{ProductID: "P4", Quantity: 1, UnitPrice: decimal.NewFromInt(150)})
	put("C3", store.OrderStatusPending, day.Add(72*time.Hour), "45",
		store.Line{ProductID: "P3", Quantity: 1, UnitPrice: decimal.NewFromInt(45)})
	return st
}

func TestSalesReport(t *testing.T) {
	st := seeded(t)
	svc := &report.Service{Store: st, Customers: &customer.Accounts{Store: st}}

	out, err := svc.SalesReport(context.Background(), day, day.Add(24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, 2, out.TotalOrders)
	require.Equal(t, 1, out.CancelledOrders)
	require.True(t, out.TotalSales.Equal(decimal.NewFromInt(1326)))
	require.Equal(t, map[string]int{"P1": 1, "P2": 1, "P3": 2}, out.ProductsSold)
	require.True(t, out.RevenueByCategory["electronics"].Equal(decimal.NewFromInt(1225)))
	require.True(t, out.RevenueByCategory["books"].Equal(decimal.NewFromInt(90)))

	require.Len(t, out.TopCustomers, 3)
	require.Equal(t, "C1", out.TopCustomers[0].CustomerID)
	require.Equal(t, "C3", out.TopCustomers[1].CustomerID)
	require.True(t, out.TopCustomers[1].LifetimeValue.Equal(decimal.NewFromInt(45)))
}

func TestSalesReportCached(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	st := seeded(t)
	svc := &report.Service{Store: st, Cache: cache.New(rdb, "test", time.Minute)}
	ctx := context.Background()

	first, err := svc.SalesReport(ctx, day, day.Add(24*time.Hour))
	require.NoError(t, err)
	second, err := svc.SalesReport(ctx, day, day.Add(24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, 1, st.listCalls)
	require.True(t, first.TotalSales.Equal(second.TotalSales))
	require.Equal(t, first.ProductsSold, second.ProductsSold)

	_, err = svc.SalesReport(ctx, day, day.Add(96*time.Hour))
	require.NoError(t, err)
	require.Equal(t, 2, st.listCalls)
}

func TestSalesHandler(t *testing.T) {
	st := seeded(t)
	svc := &report.Service{Store: st, Now: func() time.Time { return day.Add(4 * 24 * time.Hour) }}
	r := chi.NewRouter()
	(&report.Handler{Svc: svc}).Routes(r)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/reports/sales?days=7", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"totalOrders":3`)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/reports/sales?from=2024-06-02T00:00:00Z&to=2024-06-01T00:00:00Z", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/reports/sales?from=yesterday&to=today", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}
