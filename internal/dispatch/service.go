package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/movemobility/dispatch/pkg/common"
	"github.com/movemobility/dispatch/pkg/config"
	"github.com/movemobility/dispatch/pkg/logger"
	"github.com/movemobility/dispatch/pkg/models"
)

// Service is the sequential offer dispatcher. One call to Dispatch makes at
// most one new offer: it picks the best unoffered candidate and extends a
// time-bounded offer to that driver alone. Decline, expiry and the sweeper
// re-enter Dispatch to try the next candidate.
type Service struct {
	bookings BookingStore
	offers   OfferStore
	index    DriverIndex
	scorer   *Scorer
	emitter  EventEmitter
	cfg      config.DispatchConfig
	now      func() time.Time
}

// NewService creates the dispatcher.
func NewService(bookings BookingStore, offers OfferStore, index DriverIndex, emitter EventEmitter, cfg config.DispatchConfig) *Service {
	return &Service{
		bookings: bookings,
		offers:   offers,
		index:    index,
		scorer:   NewScorer(cfg),
		emitter:  emitter,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Dispatch runs one round of the offer loop for a booking. It is safe to
// call concurrently and repeatedly: the unique-pending constraint guarantees
// at most one live offer per booking no matter how many runs race.
func (s *Service) Dispatch(ctx context.Context, bookingID uuid.UUID) error {
	start := s.now()
	defer func() {
		dispatchDuration.Observe(time.Since(start).Seconds())
	}()

	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return err
	}
	if booking.Status != models.BookingStatusSearchingDriver {
		// Already assigned, cancelled or terminated; nothing to dispatch.
		return nil
	}

	now := s.now()
	expired, err := s.offers.ExpireStaleForBooking(ctx, bookingID, now)
	if err != nil {
		return err
	}
	if expired > 0 {
		offersExpiredTotal.Add(float64(expired))
	}

	// A live offer means some driver is still deciding.
	if _, err := s.offers.PendingForBooking(ctx, bookingID); err == nil {
		return nil
	} else if !errors.Is(err, common.ErrOfferNotFound) {
		return err
	}

	count, err := s.offers.CountForBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	if count >= s.cfg.MaxOffersPerBooking {
		return s.giveUp(ctx, booking, count)
	}

	offered, err := s.offers.OfferedDriverIDs(ctx, bookingID)
	if err != nil {
		return err
	}

	candidates, err := s.index.Candidates(ctx, offered)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return s.giveUp(ctx, booking, count)
	}

	ids := make([]uuid.UUID, len(candidates))
	for i, d := range candidates {
		ids[i] = d.ID
	}
	signals, err := s.index.MatchSignals(ctx, ids)
	if err != nil {
		return err
	}

	ranked := s.scorer.Rank(booking.PickupLatitude, booking.PickupLongitude, candidates, signals)
	if len(ranked) == 0 {
		// Everyone eligible sits outside the search radius.
		return s.giveUp(ctx, booking, count)
	}
	best := ranked[0]

	offer := &models.RideOffer{
		ID:         uuid.New(),
		BookingID:  bookingID,
		DriverID:   best.Driver.ID,
		OfferOrder: count + 1,
		DistanceKm: best.DistanceKm,
		Score:      best.Score,
		Status:     models.OfferStatusPending,
		OfferedAt:  now,
		ExpiresAt:  now.Add(s.cfg.OfferTimeout()),
	}

	if err := s.offers.Create(ctx, offer); err != nil {
		if errors.Is(err, common.ErrRaceLost) {
			// A concurrent run created the offer first; theirs stands.
			raceLostTotal.Inc()
			logger.DebugContext(ctx, "dispatch lost offer race",
				zap.String("booking_id", bookingID.String()))
			return nil
		}
		return err
	}

	offersExtendedTotal.Inc()
	logger.InfoContext(ctx, "offer extended",
		zap.String("booking_id", bookingID.String()),
		zap.String("driver_id", best.Driver.ID.String()),
		zap.Int("offer_order", offer.OfferOrder),
		zap.Float64("distance_km", best.DistanceKm),
		zap.Float64("score", best.Score))

	s.emitter.OfferExtended(booking, offer)
	return nil
}

// giveUp terminates a searching booking as no_driver_found. A concurrent
// acceptance wins the race: the guarded update fails and we back off.
func (s *Service) giveUp(ctx context.Context, booking *models.Booking, offersMade int) error {
	err := s.bookings.MarkNoDriverFound(ctx, booking.ID)
	if err != nil {
		if errors.Is(err, common.ErrBookingTerminal) {
			return nil
		}
		return err
	}

	noDriverFoundTotal.Inc()
	logger.InfoContext(ctx, "no driver found",
		zap.String("booking_id", booking.ID.String()),
		zap.Int("offers_made", offersMade))

	s.emitter.NoDriverFound(booking, offersMade)
	return nil
}
