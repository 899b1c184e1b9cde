package checkout_test

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

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-checkout/internal/checkout"
	"github.com/noah-isme/toko-checkout/internal/customer"
	"github.com/noah-isme/toko-checkout/internal/events"
	"github.com/noah-isme/toko-checkout/internal/inventory"
	"github.com/noah-isme/toko-checkout/internal/lock"
	"github.com/noah-isme/toko-checkout/internal/notify"
	"github.com/noah-isme/toko-checkout/internal/order"
	"github.com/noah-isme/toko-checkout/internal/payment"
	"github.com/noah-isme/toko-checkout/internal/seed"
	"github.com/noah-isme/toko-checkout/internal/shipping"
	"github.com/noah-isme/toko-checkout/internal/store"
)

var now = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type harness struct {
	st     store.Store
	svc    *checkout.Service
	events *events.MemoryStore
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWith(t, store.NewMemory(), lock.NewLocal())
}

func newHarnessWith(t *testing.T, st store.Store, locker lock.Locker) *harness {
	t.Helper()
	require.NoError(t, seed.Load(context.Background(), st, now))

	history := &events.MemoryStore{}
	notifier := &notify.Service{Bus: &events.Bus{Store: history}, Suppliers: st}
	clock := func() time.Time { return now }
	ledger := &inventory.Ledger{Store: st, Notifier: notifier, Now: clock}
	accounts := &customer.Accounts{Store: st, Notifier: notifier, Now: clock}
	svc := &checkout.Service{
		Store:  st,
		Locker: locker,
		Ledger: ledger,
		Orders: &order.Lifecycle{
			Store: st, Locker: locker, Stock: ledger, Notifier: notifier, Refunds: accounts, Now: clock,
			Shipper: &shipping.Service{Store: st, Provider: shipping.LocalProvider{}},
		},
		Accounts:  accounts,
		Payments:  payment.StaticValidator{},
		Confirmer: notifier,
		Now:       clock,
	}
	return &harness{st: st, svc: svc, events: history}
}

func newRedisHarness(t *testing.T) *harness {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return newHarnessWith(t, store.NewRedis(client, "test"), lock.Redis{R: client, Prefix: "test", RetryBackoff: 2 * time.Millisecond})
}

func card(amount string) payment.Info {
	return payment.Info{Type: payment.TypeCreditCard, CardNumber: "4111111111111111", Amount: dec(amount), Valid: true}
}

func (h *harness) points(t *testing.T, id string) int {
	t.Helper()
	c, err := h.st.GetCustomer(context.Background(), id)
	require.NoError(t, err)
	return c.LoyaltyPoints
}

func (h *harness) stock(t *testing.T, id string) int {
	t.Helper()
	p, err := h.st.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.Quantity
}

func TestGoldCustomerFullCheckout(t *testing.T) {
	h := newHarness(t)
	res, err := h.svc.PlaceOrder(context.Background(), checkout.Request{
		CustomerID:     "C1",
		Items:          []checkout.Item{{ProductID: "P1", Quantity: 1}},
		ShippingMethod: shipping.MethodExpress,
		Payment:        card("1000"),
		PromotionCode:  "HOLIDAY10",
	})
	require.NoError(t, err)

	require.True(t, res.Subtotal.Equal(dec("1200")))
	require.True(t, res.Discounted.Equal(dec("913")), "discounted %s", res.Discounted)
	require.True(t, res.Tax.Equal(dec("66.1925")), "tax %s", res.Tax)
	require.True(t, res.Shipping.Equal(dec("13.125")), "shipping %s", res.Shipping)
	require.True(t, res.Total.Equal(dec("992.3175")), "total %s", res.Total)
	require.Equal(t, 500, res.PointsSpent)
	require.Equal(t, 1200, res.PointsEarned)
	require.False(t, res.Upgraded)

	require.Equal(t, store.OrderStatusPending, res.Order.Status)
	require.Equal(t, 500, res.Order.LoyaltyPointsSpent)
	require.Equal(t, 1200, res.Order.LoyaltyPointsEarned)
	require.Equal(t, 9, h.stock(t, "P1"))
	require.Equal(t, 1200, h.points(t, "C1"))
	require.Len(t, h.events.List(events.TopicOrderCreated), 1)

	c, err := h.st.GetCustomer(context.Background(), "C1")
	require.NoError(t, err)
	require.Equal(t, []int64{res.Order.ID}, c.OrderHistory)
}

func TestBronzeCustomerUpgradedAfterLargeOrder(t *testing.T) {
	h := newHarness(t)
	res, err := h.svc.PlaceOrder(context.Background(), checkout.Request{
		CustomerID:     "C2",
		Items:          []checkout.Item{{ProductID: "P1", Quantity: 1}},
		ShippingMethod: shipping.MethodStandard,
		Payment:        payment.Info{Type: payment.TypePayPal, Email: "bob@example.com", Amount: dec("1210.56"), Valid: true},
	})
	require.NoError(t, err)
	require.True(t, res.Total.Equal(dec("1210.56")), "total %s", res.Total)
	require.True(t, res.Upgraded)

	c, err := h.st.GetCustomer(context.Background(), "C2")
	require.NoError(t, err)
	require.Equal(t, store.TierGold, c.Tier)
	require.Len(t, h.events.List(events.TopicCustomerUpgraded), 1)
}

func TestPaymentRejectionRefundsPointsAndLeavesStock(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.PlaceOrder(context.Background(), checkout.Request{
		CustomerID:     "C1",
		Items:          []checkout.Item{{ProductID: "P1", Quantity: 2}},
		ShippingMethod: shipping.MethodStandard,
		Payment:        card("10"),
	})
	var rejected *payment.RejectedError
	require.ErrorAs(t, err, &rejected)
	require.Equal(t, payment.ReasonInsufficientAmount, rejected.Reason)

	require.Equal(t, 500, h.points(t, "C1"))
	require.Equal(t, 10, h.stock(t, "P1"))
	orders, err := h.st.ListOrders(context.Background())
	require.NoError(t, err)
	require.Empty(t, orders)
}

func TestInvalidShippingMethodRefundsPoints(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.PlaceOrder(context.Background(), checkout.Request{
		CustomerID:     "C1",
		Items:          []checkout.Item{{ProductID: "P3", Quantity: 1}},
		ShippingMethod: "teleport",
		Payment:        card("100"),
	})
	require.ErrorIs(t, err, shipping.ErrInvalidMethod)
	require.Equal(t, 500, h.points(t, "C1"))
}

func TestRejectedBeforePricing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	cases := []struct {
		name string
		req  checkout.Request
		want error
	}{
		{"no items", checkout.Request{CustomerID: "C1", ShippingMethod: "standard"}, checkout.ErrInvalidRequest},
		{"zero quantity", checkout.Request{CustomerID: "C1", ShippingMethod: "standard", Items: []checkout.Item{{ProductID: "P1"}}}, checkout.ErrInvalidRequest},
		{"unknown customer", checkout.Request{CustomerID: "C9", ShippingMethod: "standard", Items: []checkout.Item{{ProductID: "P1", Quantity: 1}}}, checkout.ErrCustomerNotFound},
		{"unknown product", checkout.Request{CustomerID: "C1", ShippingMethod: "standard", Items: []checkout.Item{{ProductID: "P9", Quantity: 1}}}, inventory.ErrProductNotFound},
		{"out of stock", checkout.Request{CustomerID: "C1", ShippingMethod: "standard", Items: []checkout.Item{{ProductID: "P2", Quantity: 4}}}, inventory.ErrInsufficientStock},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.svc.PlaceOrder(ctx, tc.req)
			require.ErrorIs(t, err, tc.want)
			require.Equal(t, 500, h.points(t, "C1"))
		})
	}
}

func TestConcurrentCheckoutsNeverOversell(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	const buyers = 12
	for i := 0; i < buyers; i++ {
		require.NoError(t, h.st.PutCustomer(ctx, store.Customer{ID: fmt.Sprintf("B%02d", i), Tier: store.TierBronze, Address: "Somewhere, NY"}))
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	placed, outOfStock := 0, 0
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.svc.PlaceOrder(ctx, checkout.Request{
				CustomerID:     fmt.Sprintf("B%02d", i),
				Items:          []checkout.Item{{ProductID: "P2", Quantity: 1}},
				ShippingMethod: shipping.MethodStandard,
				Payment:        card("100"),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				placed++
			case strings.Contains(err.Error(), "insufficient stock"):
				outOfStock++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, 3, placed)
	require.Equal(t, buyers-3, outOfStock)
	require.Equal(t, 0, h.stock(t, "P2"))

	log, err := h.st.InventoryLog(ctx)
	require.NoError(t, err)
	require.Len(t, log, 3)
	require.NotEmpty(t, h.events.List(events.TopicSupplierLowStock))
}

// brokenHistory fails every order history append.
type brokenHistory struct {
	*store.Memory
}

func (brokenHistory) AppendOrderHistory(context.Context, string, int64) error {
	return errors.New("history unavailable")
}

func TestFailedFinalizeRecordsNoEarnedPoints(t *testing.T) {
	h := newHarnessWith(t, brokenHistory{store.NewMemory()}, lock.NewLocal())
	ctx := context.Background()

	res, err := h.svc.PlaceOrder(ctx, checkout.Request{
		CustomerID:     "C3",
		Items:          []checkout.Item{{ProductID: "P3", Quantity: 2}},
		ShippingMethod: shipping.MethodStandard,
		Payment:        card("500"),
	})
	require.NoError(t, err)
	require.Equal(t, 200, res.PointsSpent)
	require.Zero(t, res.PointsEarned)
	require.Zero(t, res.Order.LoyaltyPointsEarned)
	require.Equal(t, 0, h.points(t, "C3"))

	stored, err := h.st.GetOrder(ctx, res.Order.ID)
	require.NoError(t, err)
	require.Zero(t, stored.LoyaltyPointsEarned)

	_, err = h.svc.Orders.Cancel(ctx, res.Order.ID, "changed mind")
	require.NoError(t, err)
	require.Equal(t, 200, h.points(t, "C3"))
	require.Equal(t, 20, h.stock(t, "P3"))
}

func TestConcurrentCheckoutsSpendLoyaltyOnce(t *testing.T) {
	backends := map[string]func(*testing.T) *harness{
		"memory": newHarness,
		"redis":  newRedisHarness,
	}
	for name, build := range backends {
		t.Run(name, func(t *testing.T) {
			h := build(t)
			ctx := context.Background()
			start := h.points(t, "C3")
			const attempts = 8

			var wg sync.WaitGroup
			var mu sync.Mutex
			spent, earned, placed := 0, 0, 0
			for i := 0; i < attempts; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					res, err := h.svc.PlaceOrder(ctx, checkout.Request{
						CustomerID:     "C3",
						Items:          []checkout.Item{{ProductID: "P3", Quantity: 1}},
						ShippingMethod: shipping.MethodStandard,
						Payment:        card("500"),
					})
					mu.Lock()
					defer mu.Unlock()
					if err != nil {
						t.Errorf("checkout failed: %v", err)
						return
					}
					spent += res.PointsSpent
					earned += res.PointsEarned
					placed++
				}()
			}
			wg.Wait()

			require.Equal(t, attempts, placed)
			require.Positive(t, spent)
			final := h.points(t, "C3")
			require.GreaterOrEqual(t, final, 0)
			require.Equal(t, start-spent+earned, final)
			require.Equal(t, 20-attempts, h.stock(t, "P3"))

			orders, err := h.st.ListOrders(ctx)
			require.NoError(t, err)
			recorded := 0
			for _, o := range orders {
				recorded += o.LoyaltyPointsSpent
			}
			require.Equal(t, spent, recorded)
		})
	}
}

func TestCheckoutHandler(t *testing.T) {
	h := newHarness(t)
	r := chi.NewRouter()
	(&checkout.Handler{Svc: h.svc}).Routes(r)

	post := func(body string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(body)))
		return rr
	}

	rr := post(`{"customerId":"C3","items":[{"productId":"P3","quantity":2}],"shippingMethod":"standard",` +
		`"payment":{"type":"credit_card","cardNumber":"4111111111111111","amount":"500","valid":true},"promotionCode":"BOOKSALE"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	require.Contains(t, rr.Body.String(), `"status":"pending"`)

	rr = post(`{"customerId":"C3","items":[{"productId":"P3","quantity":1}],"shippingMethod":"standard","payment":{"type":"cash","amount":"500","valid":true}}`)
	require.Equal(t, http.StatusPaymentRequired, rr.Code)
	require.Contains(t, rr.Body.String(), payment.ReasonUnknownType)

	rr = post(`{"customerId":"C3","items":[],"shippingMethod":"standard"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = post(`{"customerId":"C3","items":[{"productId":"P2","quantity":9}],"shippingMethod":"standard","payment":{"type":"credit_card","cardNumber":"4111111111111111","amount":"500","valid":true}}`)
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Contains(t, rr.Body.String(), "INSUFFICIENT_STOCK")

	rr = post(`{"customerId":"C3","items":[{"productId":"P3","quantity":1}],"shippingMethod":"drone","payment":{"type":"credit_card","cardNumber":"4111111111111111","amount":"500","valid":true}}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "INVALID_SHIPPING_METHOD")
}
