package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a record cannot be resolved by its key.
	ErrNotFound = errors.New("store: record not found")
	// ErrNegativeStock is returned when a stock adjustment would drop below zero.
	ErrNegativeStock = errors.New("store: stock cannot go negative")
	// ErrInsufficientPoints is returned when a loyalty adjustment would drop below zero.
	ErrInsufficientPoints = errors.New("store: insufficient loyalty points")
)

// Store is the keyed record store shared by every component. Reads return
// copies; mutations of shared counters go through the atomic Adjust/Increment
// methods so that concurrent callers never lose an update.
type Store interface {
	GetProduct(ctx context.Context, id string) (Product, error)
	PutProduct(ctx context.Context, p Product) error
	ListProducts(ctx context.Context) ([]Product, error)
	// AdjustStock adds delta to the product quantity and returns the updated
	// product. It fails with ErrNegativeStock without mutating when the result
	// would be negative.
	AdjustStock(ctx context.Context, id string, delta int) (Product, error)
	// SetPrice replaces the catalog price without touching stock.
	SetPrice(ctx context.Context, id string, price decimal.Decimal) (Product, error)

	GetCustomer(ctx context.Context, id string) (Customer, error)
	PutCustomer(ctx context.Context, c Customer) error
	ListCustomers(ctx context.Context) ([]Customer, error)
	// AdjustLoyalty adds delta to the loyalty balance. It fails with
	// ErrInsufficientPoints without mutating when the result would be negative.
	AdjustLoyalty(ctx context.Context, id string, delta int) (Customer, error)
	AppendOrderHistory(ctx context.Context, customerID string, orderID int64) error
	SetTier(ctx context.Context, customerID string, tier Tier) error

	GetSupplier(ctx context.Context, id string) (Supplier, error)
	PutSupplier(ctx context.Context, s Supplier) error

	GetPromotion(ctx context.Context, code string) (Promotion, error)
	PutPromotion(ctx context.Context, p Promotion) error
	IncrementPromotionUse(ctx context.Context, code string) (int, error)

	NextOrderID(ctx context.Context) (int64, error)
	GetOrder(ctx context.Context, id int64) (Order, error)
	PutOrder(ctx context.Context, o Order) error
	ListOrders(ctx context.Context) ([]Order, error)

	NextShipmentID(ctx context.Context) (int64, error)
	PutShipment(ctx context.Context, s Shipment) error
	GetShipment(ctx context.Context, id int64) (Shipment, error)

	AppendInventoryLog(ctx context.Context, entry InventoryLogEntry) error
	InventoryLog(ctx context.Context) ([]InventoryLogEntry, error)
}
