package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// Memory is a process-local Store guarded by a single RWMutex.
type Memory struct {
	mu           sync.RWMutex
	products     map[string]Product
	customers    map[string]Customer
	suppliers    map[string]Supplier
	promotions   map[string]Promotion
	orders       map[int64]Order
	shipments    map[int64]Shipment
	inventoryLog []InventoryLogEntry
	nextOrder    int64
	nextShipment int64
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		products:   make(map[string]Product),
		customers:  make(map[string]Customer),
		suppliers:  make(map[string]Supplier),
		promotions: make(map[string]Promotion),
		orders:     make(map[int64]Order),
		shipments:  make(map[int64]Shipment),
	}
}

var _ Store = (*Memory)(nil)

func (m *Memory) GetProduct(_ context.Context, id string) (Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return Product{}, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	return p, nil
}

func (m *Memory) PutProduct(_ context.Context, p Product) error {
	if p.Quantity < 0 {
		return ErrNegativeStock
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
	return nil
}

func (m *Memory) ListProducts(_ context.Context) ([]Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) AdjustStock(_ context.Context, id string, delta int) (Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return Product{}, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	if p.Quantity+delta < 0 {
		return p, fmt.Errorf("product %s: %w", id, ErrNegativeStock)
	}
	p.Quantity += delta
	m.products[id] = p
	return p, nil
}

func (m *Memory) SetPrice(_ context.Context, id string, price decimal.Decimal) (Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return Product{}, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	p.Price = price
	m.products[id] = p
	return p, nil
}

func (m *Memory) GetCustomer(_ context.Context, id string) (Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.customers[id]
	if !ok {
		return Customer{}, fmt.Errorf("customer %s: %w", id, ErrNotFound)
	}
	return cloneCustomer(c), nil
}

func (m *Memory) PutCustomer(_ context.Context, c Customer) error {
	if c.LoyaltyPoints < 0 {
		return ErrInsufficientPoints
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customers[c.ID] = cloneCustomer(c)
	return nil
}

func (m *Memory) ListCustomers(_ context.Context) ([]Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Customer, 0, len(m.customers))
	for _, c := range m.customers {
		out = append(out, cloneCustomer(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) AdjustLoyalty(_ context.Context, id string, delta int) (Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customers[id]
	if !ok {
		return Customer{}, fmt.Errorf("customer %s: %w", id, ErrNotFound)
	}
	if c.LoyaltyPoints+delta < 0 {
		return cloneCustomer(c), fmt.Errorf("customer %s: %w", id, ErrInsufficientPoints)
	}
	c.LoyaltyPoints += delta
	m.customers[id] = c
	return cloneCustomer(c), nil
}

func (m *Memory) AppendOrderHistory(_ context.Context, customerID string, orderID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customers[customerID]
	if !ok {
		return fmt.Errorf("customer %s: %w", customerID, ErrNotFound)
	}
	c.OrderHistory = append(cloneCustomer(c).OrderHistory, orderID)
	m.customers[customerID] = c
	return nil
}

func (m *Memory) SetTier(_ context.Context, customerID string, tier Tier) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customers[customerID]
	if !ok {
		return fmt.Errorf("customer %s: %w", customerID, ErrNotFound)
	}
	c.Tier = tier
	m.customers[customerID] = c
	return nil
}

func (m *Memory) GetSupplier(_ context.Context, id string) (Supplier, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.suppliers[id]
	if !ok {
		return Supplier{}, fmt.Errorf("supplier %s: %w", id, ErrNotFound)
	}
	return s, nil
}

func (m *Memory) PutSupplier(_ context.Context, s Supplier) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suppliers[s.ID] = s
	return nil
}

func (m *Memory) GetPromotion(_ context.Context, code string) (Promotion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.promotions[code]
	if !ok {
		return Promotion{}, fmt.Errorf("promotion %s: %w", code, ErrNotFound)
	}
	return p, nil
}

func (m *Memory) PutPromotion(_ context.Context, p Promotion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.promotions[p.Code] = p
	return nil
}

func (m *Memory) IncrementPromotionUse(_ context.Context, code string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.promotions[code]
	if !ok {
		return 0, fmt.Errorf("promotion %s: %w", code, ErrNotFound)
	}
	p.UsedCount++
	m.promotions[code] = p
	return p.UsedCount, nil
}

func (m *Memory) NextOrderID(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextOrder++
	return m.nextOrder, nil
}

func (m *Memory) GetOrder(_ context.Context, id int64) (Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return Order{}, fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	return cloneOrder(o), nil
}

func (m *Memory) PutOrder(_ context.Context, o Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = cloneOrder(o)
	return nil
}

func (m *Memory) ListOrders(_ context.Context) ([]Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) NextShipmentID(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextShipment++
	return m.nextShipment, nil
}

func (m *Memory) PutShipment(_ context.Context, s Shipment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shipments[s.ID] = s
	return nil
}

func (m *Memory) GetShipment(_ context.Context, id int64) (Shipment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.shipments[id]
	if !ok {
		return Shipment{}, fmt.Errorf("shipment %d: %w", id, ErrNotFound)
	}
	return s, nil
}

func (m *Memory) AppendInventoryLog(_ context.Context, entry InventoryLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inventoryLog = append(m.inventoryLog, entry)
	return nil
}

func (m *Memory) InventoryLog(_ context.Context) ([]InventoryLogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]InventoryLogEntry, len(m.inventoryLog))
	copy(out, m.inventoryLog)
	return out, nil
}
