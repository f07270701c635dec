package offers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/movemobility/dispatch/pkg/common"
	"github.com/movemobility/dispatch/pkg/models"
)

// uniqueViolation is the SQLSTATE raised when a second pending offer for the
// same booking hits the partial unique index.
const uniqueViolation = "23505"

// Repository handles database operations for ride offers
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new offers repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const offerColumns = `
	id, booking_id, driver_id, offer_order, distance_km, score, status,
	offered_at, expires_at, responded_at`

func scanOffer(row pgx.Row) (*models.RideOffer, error) {
	o := &models.RideOffer{}
	err := row.Scan(
		&o.ID, &o.BookingID, &o.DriverID, &o.OfferOrder, &o.DistanceKm,
		&o.Score, &o.Status, &o.OfferedAt, &o.ExpiresAt, &o.RespondedAt,
	)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// Create inserts a pending offer. The partial unique index rejects a second
// pending offer for the same booking; that surfaces as ErrRaceLost and the
// caller re-reads the winner.
func (r *Repository) Create(ctx context.Context, o *models.RideOffer) error {
	query := `
		INSERT INTO ride_offers (
			id, booking_id, driver_id, offer_order, distance_km, score,
			status, offered_at, expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.Exec(ctx, query,
		o.ID, o.BookingID, o.DriverID, o.OfferOrder, o.DistanceKm, o.Score,
		o.Status, o.OfferedAt, o.ExpiresAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return common.ErrRaceLost
		}
		return fmt.Errorf("failed to create offer: %w", err)
	}
	return nil
}

// GetByID retrieves an offer by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.RideOffer, error) {
	query := `SELECT` + offerColumns + ` FROM ride_offers WHERE id = $1`

	o, err := scanOffer(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrOfferNotFound
		}
		return nil, fmt.Errorf("failed to get offer: %w", err)
	}
	return o, nil
}

// PendingForBooking returns the booking's single live offer, if any.
func (r *Repository) PendingForBooking(ctx context.Context, bookingID uuid.UUID) (*models.RideOffer, error) {
	query := `SELECT` + offerColumns + `
		FROM ride_offers WHERE booking_id = $1 AND status = $2`

	o, err := scanOffer(r.db.QueryRow(ctx, query, bookingID, models.OfferStatusPending))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrOfferNotFound
		}
		return nil, fmt.Errorf("failed to get pending offer: %w", err)
	}
	return o, nil
}

// PendingForDriver returns the driver's current live offer, if any. A driver
// can hold offers for different bookings, newest first wins the pull query.
func (r *Repository) PendingForDriver(ctx context.Context, driverID uuid.UUID) (*models.RideOffer, error) {
	query := `SELECT` + offerColumns + `
		FROM ride_offers
		WHERE driver_id = $1 AND status = $2 AND expires_at > NOW()
		ORDER BY offered_at DESC
		LIMIT 1`

	o, err := scanOffer(r.db.QueryRow(ctx, query, driverID, models.OfferStatusPending))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrOfferNotFound
		}
		return nil, fmt.Errorf("failed to get driver offer: %w", err)
	}
	return o, nil
}

// CountForBooking returns how many offers this booking has ever had.
func (r *Repository) CountForBooking(ctx context.Context, bookingID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM ride_offers WHERE booking_id = $1`, bookingID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count offers: %w", err)
	}
	return count, nil
}

// OfferedDriverIDs returns every driver already offered this booking,
// regardless of how they responded.
func (r *Repository) OfferedDriverIDs(ctx context.Context, bookingID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx,
		`SELECT DISTINCT driver_id FROM ride_offers WHERE booking_id = $1`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list offered drivers: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan driver id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ExpireStaleForBooking flips the booking's timed-out pending offer to
// expired. Returns the number of rows flipped (0 or 1).
func (r *Repository) ExpireStaleForBooking(ctx context.Context, bookingID uuid.UUID, now time.Time) (int64, error) {
	result, err := r.db.Exec(ctx, `
		UPDATE ride_offers SET status = $1, responded_at = $2
		WHERE booking_id = $3 AND status = $4 AND expires_at < $2
	`, models.OfferStatusExpired, now, bookingID, models.OfferStatusPending)
	if err != nil {
		return 0, fmt.Errorf("failed to expire stale offers: %w", err)
	}
	return result.RowsAffected(), nil
}

// ExpireAllStale flips every timed-out pending offer to expired and returns
// the bookings they belonged to, for re-dispatch.
func (r *Repository) ExpireAllStale(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `
		UPDATE ride_offers SET status = $1, responded_at = $2
		WHERE status = $3 AND expires_at < $2
		RETURNING booking_id
	`, models.OfferStatusExpired, now, models.OfferStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to expire stale offers: %w", err)
	}
	defer rows.Close()

	var bookingIDs []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan booking id: %w", err)
		}
		bookingIDs = append(bookingIDs, id)
	}
	return bookingIDs, rows.Err()
}

// ListForBooking returns all offers for a booking in offer order.
func (r *Repository) ListForBooking(ctx context.Context, bookingID uuid.UUID) ([]*models.RideOffer, error) {
	query := `SELECT` + offerColumns + `
		FROM ride_offers WHERE booking_id = $1 ORDER BY offer_order`

	rows, err := r.db.Query(ctx, query, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list offers: %w", err)
	}
	defer rows.Close()

	var offers []*models.RideOffer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan offer: %w", err)
		}
		offers = append(offers, o)
	}
	return offers, rows.Err()
}

// RespondResult is the outcome of an accept or decline transaction.
type RespondResult struct {
	Offer   *models.RideOffer
	Booking *models.Booking
}

const bookingColumns = `
	id, rider_id, driver_id, status, pickup_address, pickup_latitude,
	pickup_longitude, destination_address, destination_latitude,
	destination_longitude, ride_class, fare, distance_km, duration_min,
	payment_method, payment_completed, created_at, updated_at, completed_at`

func scanBooking(row pgx.Row) (*models.Booking, error) {
	b := &models.Booking{}
	err := row.Scan(
		&b.ID, &b.RiderID, &b.DriverID, &b.Status, &b.PickupAddress,
		&b.PickupLatitude, &b.PickupLongitude, &b.DestinationAddress,
		&b.DestLatitude, &b.DestLongitude, &b.RideClass, &b.Fare,
		&b.DistanceKm, &b.DurationMin, &b.PaymentMethod, &b.PaymentCompleted,
		&b.CreatedAt, &b.UpdatedAt, &b.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// lockOffer reads an offer inside a transaction with a row lock. Lock order
// is always offer first, then booking, so concurrent responders serialize.
func lockOffer(ctx context.Context, tx pgx.Tx, offerID uuid.UUID) (*models.RideOffer, error) {
	o, err := scanOffer(tx.QueryRow(ctx,
		`SELECT`+offerColumns+` FROM ride_offers WHERE id = $1 FOR UPDATE`, offerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrOfferNotFound
		}
		return nil, fmt.Errorf("failed to lock offer: %w", err)
	}
	return o, nil
}

// Accept atomically accepts a pending offer: the offer becomes accepted and
// the booking becomes driver_assigned with the driver set. An offer past its
// deadline is flipped to expired instead and ErrOfferExpired is returned.
func (r *Repository) Accept(ctx context.Context, offerID, driverID uuid.UUID, now time.Time) (*RespondResult, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	offer, err := lockOffer(ctx, tx, offerID)
	if err != nil {
		return nil, err
	}
	if offer.DriverID != driverID {
		return nil, common.ErrDriverIneligible
	}
	if offer.Status != models.OfferStatusPending {
		return nil, common.ErrOfferGone
	}
	if offer.IsExpired(now) {
		_, err = tx.Exec(ctx, `
			UPDATE ride_offers SET status = $1, responded_at = $2 WHERE id = $3
		`, models.OfferStatusExpired, now, offerID)
		if err != nil {
			return nil, fmt.Errorf("failed to expire offer: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("failed to commit expiry: %w", err)
		}
		return nil, common.ErrOfferExpired
	}

	booking, err := scanBooking(tx.QueryRow(ctx,
		`SELECT`+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, offer.BookingID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrBookingNotFound
		}
		return nil, fmt.Errorf("failed to lock booking: %w", err)
	}
	if booking.Status != models.BookingStatusSearchingDriver {
		// The booking moved on (cancelled, timed out); the offer is dead.
		_, err = tx.Exec(ctx, `
			UPDATE ride_offers SET status = $1, responded_at = $2 WHERE id = $3
		`, models.OfferStatusCancelled, now, offerID)
		if err != nil {
			return nil, fmt.Errorf("failed to cancel offer: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("failed to commit cancellation: %w", err)
		}
		return nil, common.ErrOfferGone
	}

	_, err = tx.Exec(ctx, `
		UPDATE ride_offers SET status = $1, responded_at = $2 WHERE id = $3
	`, models.OfferStatusAccepted, now, offerID)
	if err != nil {
		return nil, fmt.Errorf("failed to accept offer: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE bookings SET status = $1, driver_id = $2, updated_at = $3 WHERE id = $4
	`, models.BookingStatusDriverAssigned, driverID, now, offer.BookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to assign driver: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit acceptance: %w", err)
	}

	offer.Status = models.OfferStatusAccepted
	offer.RespondedAt = &now
	booking.Status = models.BookingStatusDriverAssigned
	booking.DriverID = &driverID
	return &RespondResult{Offer: offer, Booking: booking}, nil
}

// Decline atomically declines a pending offer. A decline past the deadline is
// still recorded as declined; expired is reserved for the sweeper. The booking
// stays in searching_driver; the caller advances dispatch to the next
// candidate.
func (r *Repository) Decline(ctx context.Context, offerID, driverID uuid.UUID, now time.Time) (*RespondResult, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	offer, err := lockOffer(ctx, tx, offerID)
	if err != nil {
		return nil, err
	}
	if offer.DriverID != driverID {
		return nil, common.ErrDriverIneligible
	}
	if offer.Status != models.OfferStatusPending {
		return nil, common.ErrOfferGone
	}

	_, err = tx.Exec(ctx, `
		UPDATE ride_offers SET status = $1, responded_at = $2 WHERE id = $3
	`, models.OfferStatusDeclined, now, offerID)
	if err != nil {
		return nil, fmt.Errorf("failed to decline offer: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit decline: %w", err)
	}

	offer.Status = models.OfferStatusDeclined
	offer.RespondedAt = &now
	return &RespondResult{Offer: offer}, nil
}
