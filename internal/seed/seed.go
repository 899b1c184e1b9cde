// Package seed loads the demo catalog, customers and promotions.
package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-checkout/internal/store"
)

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// Suppliers returns the demo suppliers.
func Suppliers() []store.Supplier {
	return []store.Supplier{
		{ID: "S1", Name: "TechSupplier", Email: "sales@techsupplier.com", Reliability: 0.95},
		{ID: "S2", Name: "BookWorld", Email: "orders@bookworld.com", Reliability: 0.99},
	}
}

// Products returns the demo catalog. P2 starts low on stock.
func Products() []store.Product {
	return []store.Product{
		{ID: "P1", Name: "Laptop", Price: money("1200"), Quantity: 10, Category: "electronics", Weight: money("2.5"), SupplierID: "S1"},
		{ID: "P2", Name: "Mouse", Price: money("25"), Quantity: 3, Category: "electronics", Weight: money("0.2"), SupplierID: "S1"},
		{ID: "P3", Name: "Python Book", Price: money("45"), Quantity: 20, Category: "books", Weight: money("0.8"), SupplierID: "S2"},
		{ID: "P4", Name: "Headphones", Price: money("150"), Quantity: 15, Category: "electronics", Weight: money("0.5"), SupplierID: "S1"},
	}
}

// Customers returns the demo customers.
func Customers() []store.Customer {
	return []store.Customer{
		{ID: "C1", Name: "Alice Smith", Email: "alice@example.com", Phone: "555-1234", Address: "123 Main St, CA", Tier: store.TierGold, LoyaltyPoints: 500},
		{ID: "C2", Name: "Bob Johnson", Email: "bob@example.com", Phone: "555-5678", Address: "456 Oak Ave, NY", Tier: store.TierBronze, LoyaltyPoints: 50},
		{ID: "C3", Name: "Charlie Lee", Email: "charlie@example.com", Phone: "555-9012", Address: "789 Pine Ln, TX", Tier: store.TierSilver, LoyaltyPoints: 200},
	}
}

// Promotions returns the demo promotion codes, valid relative to now.
func Promotions(now time.Time) []store.Promotion {
	return []store.Promotion{
		{Code: "HOLIDAY10", Percent: money("10"), MinPurchase: money("50"), ValidUntil: now.Add(30 * 24 * time.Hour).UTC(), Category: store.PromotionCategoryAll},
		{Code: "BOOKSALE", Percent: money("15"), MinPurchase: money("40"), ValidUntil: now.Add(10 * 24 * time.Hour).UTC(), Category: "books"},
	}
}

// Load writes the demo data into st.
func Load(ctx context.Context, st store.Store, now time.Time) error {
	for _, s := range Suppliers() {
		if err := st.PutSupplier(ctx, s); err != nil {
			return fmt.Errorf("seed supplier %s: %w", s.ID, err)
		}
	}
	for _, p := range Products() {
		if err := st.PutProduct(ctx, p); err != nil {
			return fmt.Errorf("seed product %s: %w", p.ID, err)
		}
	}
	for _, c := range Customers() {
		if err := st.PutCustomer(ctx, c); err != nil {
			return fmt.Errorf("seed customer %s: %w", c.ID, err)
		}
	}
	for _, p := range Promotions(now) {
		if err := st.PutPromotion(ctx, p); err != nil {
			return fmt.Errorf("seed promotion %s: %w", p.Code, err)
		}
	}
	return nil
}
