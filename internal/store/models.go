package store

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Tier is a customer membership classification.
type Tier string

const (
	TierSuspended Tier = "suspended"
	TierBronze    Tier = "bronze"
	TierSilver    Tier = "silver"
	TierGold      Tier = "gold"
)

// ParseTier maps a free-form label to a Tier. Unknown labels resolve to
// TierSuspended.
func ParseTier(value string) Tier {
	switch Tier(strings.ToLower(strings.TrimSpace(value))) {
	case TierBronze:
		return TierBronze
	case TierSilver:
		return TierSilver
	case TierGold:
		return TierGold
	default:
		return TierSuspended
	}
}

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// PromotionCategoryAll matches every cart.
const PromotionCategoryAll = "all"

// Product is a catalog entry together with its available stock.
type Product struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	Quantity   int             `json:"quantity"`
	Category   string          `json:"category"`
	Weight     decimal.Decimal `json:"weight"`
	SupplierID string          `json:"supplierId"`
}

// Line is a cart or order line. UnitPrice is snapshotted when the line is
// built and does not follow later catalog price changes.
type Line struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Discount  decimal.Decimal `json:"discount"`
}

// Amount returns quantity times unit price.
func (l Line) Amount() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Customer holds membership, loyalty balance and order history.
type Customer struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Email         string  `json:"email"`
	Phone         string  `json:"phone"`
	Address       string  `json:"address"`
	Tier          Tier    `json:"tier"`
	LoyaltyPoints int     `json:"loyaltyPoints"`
	OrderHistory  []int64 `json:"orderHistory"`
}

// Supplier provides products and receives reorder alerts.
type Supplier struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Email       string  `json:"email"`
	Reliability float64 `json:"reliability"`
}

// Promotion is a percent-off code. UsedCount only ever grows.
type Promotion struct {
	Code        string          `json:"code"`
	Percent     decimal.Decimal `json:"percent"`
	MinPurchase decimal.Decimal `json:"minPurchase"`
	ValidUntil  time.Time       `json:"validUntil"`
	Category    string          `json:"category"`
	UsedCount   int             `json:"usedCount"`
}

// Order is a placed order. Lines are immutable after creation.
type Order struct {
	ID                  int64           `json:"id"`
	CustomerID          string          `json:"customerId"`
	Lines               []Line          `json:"lines"`
	Status              OrderStatus     `json:"status"`
	CreatedAt           time.Time       `json:"createdAt"`
	Subtotal            decimal.Decimal `json:"subtotal"`
	Tax                 decimal.Decimal `json:"tax"`
	TotalPrice          decimal.Decimal `json:"totalPrice"`
	ShippingCost        decimal.Decimal `json:"shippingCost"`
	TrackingNumber      string          `json:"trackingNumber,omitempty"`
	PaymentMethod       string          `json:"paymentMethod,omitempty"`
	LoyaltyPointsSpent  int             `json:"loyaltyPointsSpent"`
	LoyaltyPointsEarned int             `json:"loyaltyPointsEarned"`
}

// InventoryLogEntry is one row of the append-only stock audit trail.
type InventoryLogEntry struct {
	ProductID string    `json:"productId"`
	Delta     int       `json:"delta"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// Shipment records a booked shipment for an order.
type Shipment struct {
	ID             int64     `json:"id"`
	OrderID        int64     `json:"orderId"`
	TrackingNumber string    `json:"trackingNumber"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
}

func cloneLines(lines []Line) []Line {
	if lines == nil {
		return nil
	}
	out := make([]Line, len(lines))
	copy(out, lines)
	return out
}

func cloneOrder(o Order) Order {
	o.Lines = cloneLines(o.Lines)
	return o
}

func cloneCustomer(c Customer) Customer {
	if c.OrderHistory != nil {
		history := make([]int64, len(c.OrderHistory))
		copy(history, c.OrderHistory)
		c.OrderHistory = history
	}
	return c
}
