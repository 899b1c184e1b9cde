// Package report aggregates sales over a time window.
package report

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-checkout/internal/cache"
	"github.com/noah-isme/toko-checkout/internal/store"
)

// TopCustomerLimit bounds the top customers list.
const TopCustomerLimit = 10

// LifetimeValuer computes a customer's lifetime value.
type LifetimeValuer interface {
	LifetimeValue(ctx context.Context, customerID string) (decimal.Decimal, error)
}

// CustomerValue is one row of the top customers list.
type CustomerValue struct {
	CustomerID    string          `json:"customerId"`
	LifetimeValue decimal.Decimal `json:"lifetimeValue"`
}

// Sales summarises orders created within [From, To].
type Sales struct {
	From              time.Time                  `json:"from"`
	To                time.Time                  `json:"to"`
	TotalSales        decimal.Decimal            `json:"totalSales"`
	TotalOrders       int                        `json:"totalOrders"`
	CancelledOrders   int                        `json:"cancelledOrders"`
	ProductsSold      map[string]int             `json:"productsSold"`
	RevenueByCategory map[string]decimal.Decimal `json:"revenueByCategory"`
	TopCustomers      []CustomerValue            `json:"topCustomers"`
}

// Service builds sales reports, optionally caching them.
type Service struct {
	Store        store.Store
	Customers    LifetimeValuer
	Cache        *cache.JSON
	DefaultRange int
	Logger       zerolog.Logger
	Now          func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// SalesReport summarises orders created between from and to inclusive.
// Cancelled orders are only counted. Top customers are ranked by lifetime
// value over all time.
func (s *Service) SalesReport(ctx context.Context, from, to time.Time) (Sales, error) {
	if s == nil || s.Store == nil {
		return Sales{}, errors.New("report service not configured")
	}
	key := s.Cache.Key("report", "sales", from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))
	var cached Sales
	if ok, err := s.Cache.Get(ctx, key, &cached); err != nil {
		s.Logger.Warn().Err(err).Str("key", key).Msg("report_cache_read_failed")
	} else if ok {
		return cached, nil
	}

	out, err := s.build(ctx, from, to)
	if err != nil {
		return Sales{}, err
	}
	if err := s.Cache.Set(ctx, key, out); err != nil {
		s.Logger.Warn().Err(err).Str("key", key).Msg("report_cache_write_failed")
	}
	return out, nil
}

func (s *Service) build(ctx context.Context, from, to time.Time) (Sales, error) {
	out := Sales{
		From:              from.UTC(),
		To:                to.UTC(),
		TotalSales:        decimal.Zero,
		ProductsSold:      map[string]int{},
		RevenueByCategory: map[string]decimal.Decimal{},
		TopCustomers:      []CustomerValue{},
	}
	orders, err := s.Store.ListOrders(ctx)
	if err != nil {
		return Sales{}, err
	}
	for _, o := range orders {
		if o.CreatedAt.Before(from) || o.CreatedAt.After(to) {
			continue
		}
		if o.Status == store.OrderStatusCancelled {
			out.CancelledOrders++
			continue
		}
		out.TotalSales = out.TotalSales.Add(o.TotalPrice)
		out.TotalOrders++
		for _, line := range o.Lines {
			p, err := s.Store.GetProduct(ctx, line.ProductID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					continue
				}
				return Sales{}, err
			}
			out.ProductsSold[p.ID] += line.Quantity
			out.RevenueByCategory[p.Category] = out.RevenueByCategory[p.Category].Add(line.Amount())
		}
	}

	if s.Customers == nil {
		return out, nil
	}
	customers, err := s.Store.ListCustomers(ctx)
	if err != nil {
		return Sales{}, err
	}
	for _, c := range customers {
		ltv, err := s.Customers.LifetimeValue(ctx, c.ID)
		if err != nil {
			return Sales{}, fmt.Errorf("report: lifetime value %s: %w", c.ID, err)
		}
		out.TopCustomers = append(out.TopCustomers, CustomerValue{CustomerID: c.ID, LifetimeValue: ltv})
	}
	sort.SliceStable(out.TopCustomers, func(i, j int) bool {
		return out.TopCustomers[i].LifetimeValue.GreaterThan(out.TopCustomers[j].LifetimeValue)
	})
	if len(out.TopCustomers) > TopCustomerLimit {
		out.TopCustomers = out.TopCustomers[:TopCustomerLimit]
	}
	return out, nil
}
