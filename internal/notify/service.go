// Package notify turns checkout and lifecycle happenings into domain events
// and delivers them to customers and suppliers. Delivery is fire-and-forget:
// failures are logged and counted, never returned to the caller.
package notify

import (
	"context"
	"errors"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-checkout/internal/events"
	"github.com/noah-isme/toko-checkout/internal/obs"
	"github.com/noah-isme/toko-checkout/internal/store"
)

// SupplierLookup resolves the supplier of a low-stock product.
type SupplierLookup interface {
	GetSupplier(ctx context.Context, id string) (store.Supplier, error)
}

// Service emits notification events on Bus.
type Service struct {
	Bus       *events.Bus
	Suppliers SupplierLookup
	Logger    zerolog.Logger
}

func (s *Service) emit(ctx context.Context, kind, topic, aggregateID string, payload map[string]any) {
	if s == nil || s.Bus == nil {
		return
	}
	if _, err := s.Bus.Emit(ctx, topic, aggregateID, payload); err != nil {
		obs.ObserveNotification(kind, "error")
		s.Logger.Warn().Err(err).Str("topic", topic).Str("aggregate_id", aggregateID).Msg("notification_failed")
		return
	}
	obs.ObserveNotification(kind, "sent")
}

func orderPayload(customer store.Customer, order store.Order) map[string]any {
	return map[string]any{
		"orderId":    order.ID,
		"customerId": customer.ID,
		"name":       customer.Name,
		"email":      customer.Email,
		"phone":      customer.Phone,
		"status":     string(order.Status),
		"total":      order.TotalPrice.StringFixed(2),
	}
}

func orderAggregate(order store.Order) string { return strconv.FormatInt(order.ID, 10) }

// OrderConfirmed tells the customer the order was placed.
func (s *Service) OrderConfirmed(ctx context.Context, customer store.Customer, order store.Order) {
	s.emit(ctx, "order_confirmation", events.TopicOrderCreated, orderAggregate(order), orderPayload(customer, order))
}

// StatusChanged tells the customer the order moved to a new status.
func (s *Service) StatusChanged(ctx context.Context, customer store.Customer, order store.Order) {
	payload := orderPayload(customer, order)
	if order.TrackingNumber != "" {
		payload["trackingNumber"] = order.TrackingNumber
	}
	s.emit(ctx, "status_update", events.TopicOrderStatusChanged, orderAggregate(order), payload)
}

// Cancelled tells the customer the order was cancelled and why.
func (s *Service) Cancelled(ctx context.Context, customer store.Customer, order store.Order, reason string) {
	payload := orderPayload(customer, order)
	payload["reason"] = reason
	s.emit(ctx, "cancellation", events.TopicOrderCancelled, orderAggregate(order), payload)
}

// TierUpgraded tells the customer about a membership upgrade.
func (s *Service) TierUpgraded(ctx context.Context, customer store.Customer, from store.Tier) {
	s.emit(ctx, "tier_upgrade", events.TopicCustomerUpgraded, customer.ID, map[string]any{
		"customerId": customer.ID,
		"name":       customer.Name,
		"email":      customer.Email,
		"from":       string(from),
		"to":         string(customer.Tier),
	})
}

// Marketing sends message to every customer and returns how many were addressed.
func (s *Service) Marketing(ctx context.Context, customers []store.Customer, message string) int {
	count := 0
	for _, c := range customers {
		s.emit(ctx, "marketing", events.TopicCustomerMarketing, c.ID, map[string]any{
			"customerId": c.ID,
			"email":      c.Email,
			"message":    message,
		})
		count++
	}
	return count
}

// LowStock alerts the product's supplier. A missing supplier is logged.
func (s *Service) LowStock(ctx context.Context, product store.Product) {
	obs.ObserveLowStockAlert()
	if s.Suppliers == nil {
		return
	}
	supplier, err := s.Suppliers.GetSupplier(ctx, product.SupplierID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.Logger.Warn().Str("product_id", product.ID).Str("supplier_id", product.SupplierID).Msg("low_stock_supplier_missing")
			return
		}
		s.Logger.Error().Err(err).Str("product_id", product.ID).Msg("low_stock_supplier_lookup_failed")
		return
	}
	s.Logger.Info().Str("product_id", product.ID).Int("quantity", product.Quantity).Str("supplier_id", supplier.ID).Msg("low_stock_alert")
	s.emit(ctx, "supplier_reorder", events.TopicSupplierLowStock, product.ID, map[string]any{
		"productId":    product.ID,
		"product":      product.Name,
		"quantity":     product.Quantity,
		"supplierId":   supplier.ID,
		"supplierName": supplier.Name,
		"email":        supplier.Email,
	})
}
