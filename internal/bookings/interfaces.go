package bookings

import (
	"context"

	"github.com/google/uuid"

	"github.com/movemobility/dispatch/pkg/models"
)

// RepositoryInterface defines booking persistence operations
type RepositoryInterface interface {
	Create(ctx context.Context, b *models.Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	Advance(ctx context.Context, id uuid.UUID, next models.BookingStatus) error
	MarkNoDriverFound(ctx context.Context, id uuid.UUID) error
	Complete(ctx context.Context, id uuid.UUID) error
	Cancel(ctx context.Context, id uuid.UUID) (*CancelResult, error)
	ListByRider(ctx context.Context, riderID uuid.UUID, limit int) ([]*models.Booking, error)
	SearchingWithoutPendingOffer(ctx context.Context) ([]uuid.UUID, error)
}

// Dispatcher starts or resumes the offer loop for a booking.
type Dispatcher interface {
	Dispatch(ctx context.Context, bookingID uuid.UUID) error
}

// EventEmitter is the slice of the event pipeline this package publishes to.
type EventEmitter interface {
	BookingRequested(b *models.Booking)
	BookingProgress(b *models.Booking)
	RideCompleted(b *models.Booking)
	RideCancelled(b *models.Booking, assignedDriver *uuid.UUID, offeredDrivers []uuid.UUID)
}

var _ RepositoryInterface = (*Repository)(nil)
