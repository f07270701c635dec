package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/movemobility/dispatch/pkg/logger"
)

// Sweeper periodically expires timed-out pending offers and re-enters their
// bookings into dispatch. Run one per process; concurrent sweeps are safe
// but wasteful, the guarded updates make every action idempotent.
type Sweeper struct {
	offers       OfferStore
	dispatcher   offerDispatcher
	redispatcher Redispatcher
	interval     time.Duration
	done         chan struct{}
	now          func() time.Time
}

type offerDispatcher interface {
	Dispatch(ctx context.Context, bookingID uuid.UUID) error
}

// NewSweeper creates the expiry sweeper. The interval should be well under
// the offer timeout so stale offers never linger much past their deadline.
func NewSweeper(offers OfferStore, dispatcher offerDispatcher, redispatcher Redispatcher, interval time.Duration) *Sweeper {
	return &Sweeper{
		offers:       offers,
		dispatcher:   dispatcher,
		redispatcher: redispatcher,
		interval:     interval,
		done:         make(chan struct{}),
		now:          time.Now,
	}
}

// Start begins the sweep loop. Call in its own goroutine.
func (s *Sweeper) Start(ctx context.Context) {
	logger.Info("starting expiry sweeper", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Sweep(ctx)

	for {
		select {
		case <-ticker.C:
			s.Sweep(ctx)
		case <-ctx.Done():
			logger.Info("expiry sweeper stopped")
			return
		case <-s.done:
			logger.Info("expiry sweeper shutdown requested")
			return
		}
	}
}

// Stop gracefully stops the sweeper.
func (s *Sweeper) Stop() {
	close(s.done)
}

// Sweep runs one pass: expire every timed-out pending offer, then dispatch
// the next candidate for each affected booking.
func (s *Sweeper) Sweep(ctx context.Context) {
	now := s.now()

	bookingIDs, err := s.offers.ExpireAllStale(ctx, now)
	if err != nil {
		logger.Error("failed to expire stale offers", zap.Error(err))
		return
	}
	if len(bookingIDs) > 0 {
		offersExpiredTotal.Add(float64(len(bookingIDs)))
		logger.Info("expired stale offers", zap.Int("count", len(bookingIDs)))
	}

	for _, bookingID := range bookingIDs {
		if err := s.dispatcher.Dispatch(ctx, bookingID); err != nil {
			logger.Error("re-dispatch after expiry failed",
				zap.String("booking_id", bookingID.String()), zap.Error(err))
		}
	}

	// Bookings can also get stuck with no offer at all, e.g. when the
	// process died between expiring an offer and dispatching the next.
	if s.redispatcher != nil {
		if n, err := s.redispatcher.RedispatchStuck(ctx); err != nil {
			logger.Error("stuck booking re-dispatch failed", zap.Error(err))
		} else if n > 0 {
			logger.Info("re-dispatched stuck bookings", zap.Int("count", n))
		}
	}
}
