package shipping

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/noah-isme/toko-checkout/internal/store"
)

// Provider books a parcel with a carrier and returns its tracking number.
type Provider interface {
	Book(ctx context.Context, order store.Order) (string, error)
}

// ProviderFunc adapts a function into a Provider.
type ProviderFunc func(ctx context.Context, order store.Order) (string, error)

// Book implements Provider.
func (f ProviderFunc) Book(ctx context.Context, order store.Order) (string, error) {
	return f(ctx, order)
}

// LocalProvider issues tracking numbers of the form TRACK<order id><4 digits>
// without contacting a carrier.
type LocalProvider struct {
	// Rand returns a number in [0, n); defaults to math/rand/v2.
	Rand func(n int) int
}

// Book implements Provider.
func (p LocalProvider) Book(_ context.Context, order store.Order) (string, error) {
	intn := p.Rand
	if intn == nil {
		intn = rand.IntN
	}
	return fmt.Sprintf("TRACK%d%d", order.ID, 1000+intn(9000)), nil
}
