package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/movemobility/dispatch/internal/drivers"
	"github.com/movemobility/dispatch/pkg/models"
)

// BookingStore is the slice of the booking repository the dispatcher needs.
type BookingStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	MarkNoDriverFound(ctx context.Context, id uuid.UUID) error
}

// OfferStore is the slice of the offer repository the dispatcher needs.
type OfferStore interface {
	Create(ctx context.Context, o *models.RideOffer) error
	PendingForBooking(ctx context.Context, bookingID uuid.UUID) (*models.RideOffer, error)
	CountForBooking(ctx context.Context, bookingID uuid.UUID) (int, error)
	OfferedDriverIDs(ctx context.Context, bookingID uuid.UUID) ([]uuid.UUID, error)
	ExpireStaleForBooking(ctx context.Context, bookingID uuid.UUID, now time.Time) (int64, error)
	ExpireAllStale(ctx context.Context, now time.Time) ([]uuid.UUID, error)
}

// DriverIndex supplies eligible candidates and their scoring history.
type DriverIndex interface {
	Candidates(ctx context.Context, excludeIDs []uuid.UUID) ([]*models.Driver, error)
	MatchSignals(ctx context.Context, driverIDs []uuid.UUID) (map[uuid.UUID]*drivers.MatchSignals, error)
}

// EventEmitter is the slice of the event pipeline this package publishes to.
type EventEmitter interface {
	OfferExtended(b *models.Booking, offer *models.RideOffer)
	NoDriverFound(b *models.Booking, offersMade int)
}

// Redispatcher re-enters stuck searching bookings into dispatch.
type Redispatcher interface {
	RedispatchStuck(ctx context.Context) (int, error)
}
