package shipping

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-checkout/internal/resilience"
	"github.com/noah-isme/toko-checkout/internal/store"
)

// ShipmentStatusInTransit is the status of a freshly booked shipment.
const ShipmentStatusInTransit = "in_transit"

// Records is the store surface used to persist shipments.
type Records interface {
	NextShipmentID(ctx context.Context) (int64, error)
	PutShipment(ctx context.Context, s store.Shipment) error
}

// Service books shipments through Provider behind a circuit breaker.
// Attempts > 1 retries failed bookings with exponential backoff; an open
// breaker is never retried.
type Service struct {
	Store     Records
	Provider  Provider
	Breaker   *resilience.Breaker
	Attempts  int
	RetryBase time.Duration
	Logger    zerolog.Logger
	Now       func() time.Time
}

// CreateShipment books a parcel for order and records the shipment. It
// returns the tracking number.
func (s *Service) CreateShipment(ctx context.Context, order store.Order) (string, error) {
	if s.Store == nil {
		return "", errors.New("shipping: store not configured")
	}
	provider := s.Provider
	if provider == nil {
		provider = LocalProvider{}
	}
	var tracking string
	book := func(ctx context.Context) error {
		var err error
		tracking, err = provider.Book(ctx, order)
		return err
	}
	guarded := book
	if s.Breaker != nil {
		guarded = func(ctx context.Context) error { return s.Breaker.Execute(ctx, book) }
	}
	err := resilience.Retry(ctx, s.Attempts, s.RetryBase, 0.2, guarded)
	if err != nil {
		s.Logger.Warn().Err(err).Int64("order_id", order.ID).Msg("shipment_booking_failed")
		return "", fmt.Errorf("shipping: book order %d: %w", order.ID, err)
	}

	id, err := s.Store.NextShipmentID(ctx)
	if err != nil {
		return "", err
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	shipment := store.Shipment{
		ID:             id,
		OrderID:        order.ID,
		TrackingNumber: tracking,
		Status:         ShipmentStatusInTransit,
		CreatedAt:      now().UTC(),
	}
	if err := s.Store.PutShipment(ctx, shipment); err != nil {
		return "", err
	}
	s.Logger.Info().Int64("order_id", order.ID).Int64("shipment_id", id).Str("tracking_number", tracking).Msg("shipment_created")
	return tracking, nil
}
