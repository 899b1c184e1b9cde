// Package catalog serves product lookups and price maintenance.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-checkout/internal/common"
	"github.com/noah-isme/toko-checkout/internal/store"
)

// ErrInvalidPrice is returned by UpdatePrice for non-positive prices.
var ErrInvalidPrice = errors.New("catalog: price must be positive")

// Sort orders accepted by List.
const (
	SortID        = "id"
	SortName      = "name"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
)

// ListParams captures filters for product listing.
type ListParams struct {
	Category string
	InStock  bool
	Sort     string
}

// Service reads and maintains the product catalog.
type Service struct {
	Store  store.Store
	Logger zerolog.Logger
}

// Lookup returns one product.
func (s *Service) Lookup(ctx context.Context, id string) (store.Product, error) {
	return s.Store.GetProduct(ctx, id)
}

// List returns the products matching params.
func (s *Service) List(ctx context.Context, params ListParams) ([]store.Product, error) {
	products, err := s.Store.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	out := products[:0]
	for _, p := range products {
		if params.Category != "" && !strings.EqualFold(p.Category, params.Category) {
			continue
		}
		if params.InStock && p.Quantity == 0 {
			continue
		}
		out = append(out, p)
	}
	switch params.Sort {
	case SortName:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	case SortPriceAsc:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Price.LessThan(out[j].Price) })
	case SortPriceDesc:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Price.GreaterThan(out[j].Price) })
	}
	return out, nil
}

// UpdatePrice sets a new catalog price. Lines already on orders keep the
// price they were created with.
func (s *Service) UpdatePrice(ctx context.Context, id string, price decimal.Decimal) (store.Product, error) {
	if !price.IsPositive() {
		return store.Product{}, ErrInvalidPrice
	}
	before, err := s.Store.GetProduct(ctx, id)
	if err != nil {
		return store.Product{}, err
	}
	p, err := s.Store.SetPrice(ctx, id, price)
	if err != nil {
		return store.Product{}, fmt.Errorf("catalog: update price %s: %w", id, err)
	}
	s.Logger.Info().Str("product_id", id).Str("old_price", before.Price.StringFixed(2)).Str("new_price", price.StringFixed(2)).Msg("product_price_updated")
	return p, nil
}

// ParseSort validates a sort query value.
func ParseSort(value string) (string, error) {
	switch v := strings.TrimSpace(value); v {
	case "", SortID:
		return SortID, nil
	case SortName, SortPriceAsc, SortPriceDesc:
		return v, nil
	}
	return "", badRequest("sort", "sort must be one of id, name, price_asc, price_desc", nil)
}

func badRequest(field, message string, err error) error {
	return &common.AppError{
		Code:       "BAD_REQUEST",
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
		Details:    map[string]string{field: message},
	}
}
