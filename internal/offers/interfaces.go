package offers

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/movemobility/dispatch/pkg/models"
)

// RepositoryInterface defines offer persistence operations
type RepositoryInterface interface {
	Create(ctx context.Context, o *models.RideOffer) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.RideOffer, error)
	PendingForBooking(ctx context.Context, bookingID uuid.UUID) (*models.RideOffer, error)
	PendingForDriver(ctx context.Context, driverID uuid.UUID) (*models.RideOffer, error)
	CountForBooking(ctx context.Context, bookingID uuid.UUID) (int, error)
	OfferedDriverIDs(ctx context.Context, bookingID uuid.UUID) ([]uuid.UUID, error)
	ExpireStaleForBooking(ctx context.Context, bookingID uuid.UUID, now time.Time) (int64, error)
	ExpireAllStale(ctx context.Context, now time.Time) ([]uuid.UUID, error)
	ListForBooking(ctx context.Context, bookingID uuid.UUID) ([]*models.RideOffer, error)
	Accept(ctx context.Context, offerID, driverID uuid.UUID, now time.Time) (*RespondResult, error)
	Decline(ctx context.Context, offerID, driverID uuid.UUID, now time.Time) (*RespondResult, error)
}

// Dispatcher resumes the offer loop for a booking after a decline.
type Dispatcher interface {
	Dispatch(ctx context.Context, bookingID uuid.UUID) error
}

// EventEmitter is the slice of the event pipeline this package publishes to.
type EventEmitter interface {
	DriverAssigned(b *models.Booking, offer *models.RideOffer)
}

var _ RepositoryInterface = (*Repository)(nil)
