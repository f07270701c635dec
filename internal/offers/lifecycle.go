package offers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/movemobility/dispatch/pkg/common"
	"github.com/movemobility/dispatch/pkg/logger"
	"github.com/movemobility/dispatch/pkg/models"
)

// Lifecycle owns driver responses to offers: accept, decline, and the
// single-offer pull query. Expiry of stale offers lives in the sweeper.
type Lifecycle struct {
	repo       RepositoryInterface
	dispatcher Dispatcher
	emitter    EventEmitter
	now        func() time.Time
}

// NewLifecycle creates the offer lifecycle service.
func NewLifecycle(repo RepositoryInterface, emitter EventEmitter) *Lifecycle {
	return &Lifecycle{repo: repo, emitter: emitter, now: time.Now}
}

// SetDispatcher attaches the offer dispatcher.
func (l *Lifecycle) SetDispatcher(d Dispatcher) {
	l.dispatcher = d
}

// PendingOffer returns the driver's current live offer.
func (l *Lifecycle) PendingOffer(ctx context.Context, driverID uuid.UUID) (*models.RideOffer, error) {
	return l.repo.PendingForDriver(ctx, driverID)
}

// resolveOfferID turns an accept/decline request into an offer ID. Drivers
// may respond by offer ID or by booking ID; the booking path resolves to the
// booking's single pending offer and checks it belongs to the driver.
func (l *Lifecycle) resolveOfferID(ctx context.Context, driverID uuid.UUID, req *models.OfferResponseRequest) (uuid.UUID, error) {
	if req.OfferID != nil {
		return *req.OfferID, nil
	}
	if req.BookingID == nil {
		return uuid.Nil, common.ErrOfferNotFound
	}

	offer, err := l.repo.PendingForBooking(ctx, *req.BookingID)
	if err != nil {
		return uuid.Nil, err
	}
	if offer.DriverID != driverID {
		return uuid.Nil, common.ErrDriverIneligible
	}
	return offer.ID, nil
}

// Accept finalizes a booking: the offer becomes accepted and the booking
// moves to driver_assigned with this driver, atomically.
func (l *Lifecycle) Accept(ctx context.Context, driverID uuid.UUID, req *models.OfferResponseRequest) (*RespondResult, error) {
	offerID, err := l.resolveOfferID(ctx, driverID, req)
	if err != nil {
		return nil, err
	}

	result, err := l.repo.Accept(ctx, offerID, driverID, l.now())
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "offer accepted",
		zap.String("offer_id", offerID.String()),
		zap.String("booking_id", result.Booking.ID.String()),
		zap.String("driver_id", driverID.String()),
		zap.Int("offer_order", result.Offer.OfferOrder))

	l.emitter.DriverAssigned(result.Booking, result.Offer)
	return result, nil
}

// DeclineResult is a recorded decline plus the offer dispatch placed next, if
// any. A nil NextOffer means no further driver was notified.
type DeclineResult struct {
	Offer     *models.RideOffer `json:"offer"`
	NextOffer *models.RideOffer `json:"next_offer,omitempty"`
}

// Decline records a driver's refusal, then advances dispatch to the next
// candidate before returning so the response can say whether another driver
// was notified. A decline past the deadline is still recorded as declined.
func (l *Lifecycle) Decline(ctx context.Context, driverID uuid.UUID, req *models.OfferResponseRequest) (*DeclineResult, error) {
	offerID, err := l.resolveOfferID(ctx, driverID, req)
	if err != nil {
		return nil, err
	}

	result, err := l.repo.Decline(ctx, offerID, driverID, l.now())
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "offer declined",
		zap.String("offer_id", offerID.String()),
		zap.String("booking_id", result.Offer.BookingID.String()))

	bookingID := result.Offer.BookingID
	if l.dispatcher != nil {
		// The decline stands even if dispatch fails here; the sweeper
		// picks the booking up again.
		if err := l.dispatcher.Dispatch(ctx, bookingID); err != nil {
			logger.ErrorContext(ctx, "dispatch after decline failed",
				zap.String("booking_id", bookingID.String()), zap.Error(err))
		}
	}

	declined := &DeclineResult{Offer: result.Offer}
	if next, err := l.repo.PendingForBooking(ctx, bookingID); err == nil {
		declined.NextOffer = next
	}
	return declined, nil
}
