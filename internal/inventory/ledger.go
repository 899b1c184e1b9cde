// Package inventory validates and moves per-product stock and keeps the
// append-only audit trail of every movement.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-checkout/internal/obs"
	"github.com/noah-isme/toko-checkout/internal/store"
)

var (
	// ErrProductNotFound is returned when a line or restock names an unknown product.
	ErrProductNotFound = errors.New("inventory: product not found")
	// ErrInsufficientStock is wrapped by StockError.
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
	// ErrSupplierMismatch is returned when a restock names a supplier other than the product's.
	ErrSupplierMismatch = errors.New("inventory: supplier does not supply product")
	// ErrInvalidQuantity is returned for non-positive restock quantities.
	ErrInvalidQuantity = errors.New("inventory: quantity must be positive")
)

// Default thresholds.
const (
	DefaultLowStockThreshold = 5
	DefaultReportThreshold   = 10
)

// Log reasons.
const (
	ReasonRestock = "restock"
)

func orderReason(id int64) string  { return "order_" + strconv.FormatInt(id, 10) }
func cancelReason(id int64) string { return "cancel_order_" + strconv.FormatInt(id, 10) }

// Rollback entries undo a partial deduct or restore and never count as a
// cancellation.
func rollbackReason(id int64) string       { return "rollback_order_" + strconv.FormatInt(id, 10) }
func rollbackCancelReason(id int64) string { return "rollback_cancel_order_" + strconv.FormatInt(id, 10) }

// StockError reports a line whose quantity exceeds what is available.
type StockError struct {
	ProductID string
	Name      string
	Available int
	Requested int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available %d, requested %d", e.Name, e.Available, e.Requested)
}

// Unwrap returns ErrInsufficientStock.
func (e *StockError) Unwrap() error { return ErrInsufficientStock }

// SupplierNotifier receives reorder alerts for products running low.
type SupplierNotifier interface {
	LowStock(ctx context.Context, product store.Product)
}

// Ledger owns stock movements.
type Ledger struct {
	Store    store.Store
	Notifier SupplierNotifier
	Logger   zerolog.Logger
	Now      func() time.Time
}

func (l *Ledger) now() time.Time {
	if l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}

func notFound(id string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrProductNotFound, id, err)
}

// CheckAvailability returns nil when every line can be served from current
// stock, otherwise the first failure. Quantities for a product that appears
// on several lines are summed. Nothing is mutated.
func (l *Ledger) CheckAvailability(ctx context.Context, lines []store.Line) error {
	requested := make(map[string]int, len(lines))
	for _, line := range lines {
		product, err := l.Store.GetProduct(ctx, line.ProductID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return notFound(line.ProductID, err)
			}
			return err
		}
		requested[line.ProductID] += line.Quantity
		if requested[line.ProductID] > product.Quantity {
			return &StockError{
				ProductID: product.ID,
				Name:      product.Name,
				Available: product.Quantity,
				Requested: requested[line.ProductID],
			}
		}
	}
	return nil
}

// Available is the boolean form of CheckAvailability.
func (l *Ledger) Available(ctx context.Context, lines []store.Line) bool {
	return l.CheckAvailability(ctx, lines) == nil
}

// Deduct removes each line's quantity from stock and logs it against the
// order. Callers check availability first; if the store still refuses a
// decrement the lines already taken are put back and the error returned.
func (l *Ledger) Deduct(ctx context.Context, lines []store.Line, orderID int64) error {
	reason := orderReason(orderID)
	for i, line := range lines {
		if _, err := l.Store.AdjustStock(ctx, line.ProductID, -line.Quantity); err != nil {
			l.revert(ctx, lines[:i], 1, orderID, rollbackReason(orderID))
			return fmt.Errorf("inventory: deduct %s for order %d: %w", line.ProductID, orderID, err)
		}
		l.append(ctx, line.ProductID, -line.Quantity, reason)
		obs.ObserveStock("deduct", line.Quantity)
	}
	return nil
}

// revert applies sign × quantity for each line, logging under reason.
func (l *Ledger) revert(ctx context.Context, lines []store.Line, sign int, orderID int64, reason string) {
	for _, line := range lines {
		delta := sign * line.Quantity
		if _, err := l.Store.AdjustStock(ctx, line.ProductID, delta); err != nil {
			l.Logger.Error().Err(err).Str("product_id", line.ProductID).Int64("order_id", orderID).Str("reason", reason).Msg("stock_rollback_failed")
			continue
		}
		l.append(ctx, line.ProductID, delta, reason)
	}
}

// Restore puts every line of order back into stock. Products that no longer
// resolve are skipped. If the store fails on a line, the lines already put
// back are taken out again so a retried cancel restores each line once.
func (l *Ledger) Restore(ctx context.Context, order store.Order) error {
	reason := cancelReason(order.ID)
	restored := make([]store.Line, 0, len(order.Lines))
	for _, line := range order.Lines {
		if _, err := l.Store.AdjustStock(ctx, line.ProductID, line.Quantity); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				l.Logger.Warn().Str("product_id", line.ProductID).Int64("order_id", order.ID).Msg("restore_product_missing")
				continue
			}
			l.revert(ctx, restored, -1, order.ID, rollbackCancelReason(order.ID))
			return fmt.Errorf("inventory: restore %s for order %d: %w", line.ProductID, order.ID, err)
		}
		restored = append(restored, line)
		l.append(ctx, line.ProductID, line.Quantity, reason)
		obs.ObserveStock("restore", line.Quantity)
	}
	return nil
}

// Restock adds quantity to a product. When supplierID is non-empty it must
// match the product's supplier.
func (l *Ledger) Restock(ctx context.Context, productID string, quantity int, supplierID string) (store.Product, error) {
	if quantity <= 0 {
		return store.Product{}, ErrInvalidQuantity
	}
	product, err := l.Store.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Product{}, notFound(productID, err)
		}
		return store.Product{}, err
	}
	if supplierID != "" && supplierID != product.SupplierID {
		return store.Product{}, fmt.Errorf("%w: %s does not supply %s", ErrSupplierMismatch, supplierID, productID)
	}
	product, err = l.Store.AdjustStock(ctx, productID, quantity)
	if err != nil {
		return store.Product{}, err
	}
	l.append(ctx, productID, quantity, ReasonRestock)
	obs.ObserveStock("restock", quantity)
	l.Logger.Info().Str("product_id", productID).Int("quantity", quantity).Int("stock", product.Quantity).Msg("product_restocked")
	return product, nil
}

// LowStockCheck alerts the supplier of every product on lines whose stock is
// now strictly below threshold. It runs after Deduct. The alerted products
// are returned.
func (l *Ledger) LowStockCheck(ctx context.Context, lines []store.Line, threshold int) []store.Product {
	if threshold <= 0 {
		threshold = DefaultLowStockThreshold
	}
	seen := make(map[string]struct{}, len(lines))
	var alerted []store.Product
	for _, line := range lines {
		if _, ok := seen[line.ProductID]; ok {
			continue
		}
		seen[line.ProductID] = struct{}{}
		product, err := l.Store.GetProduct(ctx, line.ProductID)
		if err != nil {
			continue
		}
		if product.Quantity < threshold {
			alerted = append(alerted, product)
			if l.Notifier != nil {
				l.Notifier.LowStock(ctx, product)
			}
		}
	}
	return alerted
}

// LowStock lists products with stock at or below threshold, sorted by ID.
func (l *Ledger) LowStock(ctx context.Context, threshold int) ([]store.Product, error) {
	if threshold <= 0 {
		threshold = DefaultReportThreshold
	}
	products, err := l.Store.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]store.Product, 0)
	for _, p := range products {
		if p.Quantity <= threshold {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Log returns the audit trail.
func (l *Ledger) Log(ctx context.Context) ([]store.InventoryLogEntry, error) {
	return l.Store.InventoryLog(ctx)
}

func (l *Ledger) append(ctx context.Context, productID string, delta int, reason string) {
	entry := store.InventoryLogEntry{ProductID: productID, Delta: delta, Reason: reason, Timestamp: l.now()}
	if err := l.Store.AppendInventoryLog(ctx, entry); err != nil {
		l.Logger.Error().Err(err).Str("product_id", productID).Str("reason", reason).Msg("inventory_log_failed")
	}
}
