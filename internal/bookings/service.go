package bookings

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/movemobility/dispatch/pkg/common"
	"github.com/movemobility/dispatch/pkg/logger"
	"github.com/movemobility/dispatch/pkg/models"
)

// dispatchTriggerTimeout bounds the background dispatch run started when a
// booking is created or cancelled.
const dispatchTriggerTimeout = 30 * time.Second

// Service owns the booking lifecycle.
type Service struct {
	repo       RepositoryInterface
	dispatcher Dispatcher
	emitter    EventEmitter
}

// NewService creates a new bookings service. The dispatcher is attached
// after construction because it is built on top of this package's repository.
func NewService(repo RepositoryInterface, emitter EventEmitter) *Service {
	return &Service{repo: repo, emitter: emitter}
}

// SetDispatcher attaches the offer dispatcher.
func (s *Service) SetDispatcher(d Dispatcher) {
	s.dispatcher = d
}

// CreateBooking stores a new ride request and starts dispatch for it.
func (s *Service) CreateBooking(ctx context.Context, riderID uuid.UUID, req *models.BookingRequest) (*models.Booking, error) {
	rideClass := req.RideClass
	if rideClass == "" {
		rideClass = models.RideClassStandard
	}

	booking := &models.Booking{
		ID:                 uuid.New(),
		RiderID:            riderID,
		Status:             models.BookingStatusSearchingDriver,
		PickupAddress:      req.PickupAddress,
		PickupLatitude:     req.PickupLatitude,
		PickupLongitude:    req.PickupLongitude,
		DestinationAddress: req.DestinationAddress,
		DestLatitude:       req.DestLatitude,
		DestLongitude:      req.DestLongitude,
		RideClass:          rideClass,
		Fare:               req.Fare,
		DistanceKm:         req.DistanceKm,
		DurationMin:        req.DurationMin,
		PaymentMethod:      req.PaymentMethod,
	}

	if err := s.repo.Create(ctx, booking); err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "booking created",
		zap.String("booking_id", booking.ID.String()),
		zap.String("rider_id", riderID.String()))

	s.emitter.BookingRequested(booking)
	s.triggerDispatch(booking.ID)

	return booking, nil
}

// triggerDispatch runs the dispatcher outside the request lifecycle. The
// sweeper picks the booking up later if this run dies with it.
func (s *Service) triggerDispatch(bookingID uuid.UUID) {
	if s.dispatcher == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTriggerTimeout)
		defer cancel()

		if err := s.dispatcher.Dispatch(ctx, bookingID); err != nil {
			logger.Error("dispatch run failed",
				zap.String("booking_id", bookingID.String()), zap.Error(err))
		}
	}()
}

// GetBooking returns a booking visible to the requesting user: its rider or
// its assigned driver.
func (s *Service) GetBooking(ctx context.Context, bookingID, userID uuid.UUID) (*models.Booking, error) {
	booking, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.RiderID != userID &&
		(booking.DriverID == nil || *booking.DriverID != userID) {
		return nil, common.ErrBookingNotFound
	}
	return booking, nil
}

// ListRiderBookings returns the rider's booking history.
func (s *Service) ListRiderBookings(ctx context.Context, riderID uuid.UUID, limit int) ([]*models.Booking, error) {
	return s.repo.ListByRider(ctx, riderID, limit)
}

// CancelBooking cancels a non-terminal booking on behalf of its rider.
// Pending offers are cancelled in the same atomic unit; a previously
// assigned driver re-enters the dispatch pool by losing the active booking.
func (s *Service) CancelBooking(ctx context.Context, bookingID, riderID uuid.UUID) (*models.Booking, error) {
	booking, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.RiderID != riderID {
		return nil, common.ErrBookingNotFound
	}

	result, err := s.repo.Cancel(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "booking cancelled",
		zap.String("booking_id", bookingID.String()),
		zap.Int("offers_cancelled", len(result.OfferedDriverIDs)))

	s.emitter.RideCancelled(result.Booking, result.AssignedDriverID, result.OfferedDriverIDs)
	return result.Booking, nil
}

// UpdateProgress advances an assigned ride through driver_arrived,
// in_progress and completed. Only the assigned driver may do this.
func (s *Service) UpdateProgress(ctx context.Context, bookingID, driverID uuid.UUID, next models.BookingStatus) (*models.Booking, error) {
	booking, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.DriverID == nil || *booking.DriverID != driverID {
		return nil, common.ErrDriverIneligible
	}

	if next == models.BookingStatusCompleted {
		err = s.repo.Complete(ctx, bookingID)
	} else {
		err = s.repo.Advance(ctx, bookingID, next)
	}
	if err != nil {
		return nil, err
	}

	booking, err = s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "booking progressed",
		zap.String("booking_id", bookingID.String()),
		zap.String("status", string(booking.Status)))

	if booking.Status == models.BookingStatusCompleted {
		s.emitter.RideCompleted(booking)
	} else {
		s.emitter.BookingProgress(booking)
	}
	return booking, nil
}

// RedispatchStuck finds searching bookings with no live offer and re-enters
// them into dispatch. Called by the expiry sweeper.
func (s *Service) RedispatchStuck(ctx context.Context) (int, error) {
	if s.dispatcher == nil {
		return 0, nil
	}

	ids, err := s.repo.SearchingWithoutPendingOffer(ctx)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		if err := s.dispatcher.Dispatch(ctx, id); err != nil {
			logger.Error("re-dispatch failed",
				zap.String("booking_id", id.String()), zap.Error(err))
		}
	}
	return len(ids), nil
}
