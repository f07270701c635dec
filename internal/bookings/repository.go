package bookings

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/movemobility/dispatch/pkg/common"
	"github.com/movemobility/dispatch/pkg/models"
)

// Repository handles database operations for bookings
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new bookings repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
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

// Create inserts a new booking. Bookings enter dispatch immediately, so the
// stored status is searching_driver.
func (r *Repository) Create(ctx context.Context, b *models.Booking) error {
	query := `
		INSERT INTO bookings (
			id, rider_id, status, pickup_address, pickup_latitude, pickup_longitude,
			destination_address, destination_latitude, destination_longitude,
			ride_class, fare, distance_km, duration_min, payment_method
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		b.ID, b.RiderID, b.Status,
		b.PickupAddress, b.PickupLatitude, b.PickupLongitude,
		b.DestinationAddress, b.DestLatitude, b.DestLongitude,
		b.RideClass, b.Fare, b.DistanceKm, b.DurationMin, b.PaymentMethod,
	).Scan(&b.CreatedAt, &b.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

// GetByID retrieves a booking by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	query := `SELECT` + bookingColumns + ` FROM bookings WHERE id = $1`

	b, err := scanBooking(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrBookingNotFound
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

// Advance moves a booking to next, guarded by the transition table. The
// status check is part of the UPDATE so a concurrent writer cannot slip an
// illegal transition through.
func (r *Repository) Advance(ctx context.Context, id uuid.UUID, next models.BookingStatus) error {
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if current.Status.IsTerminal() {
		return common.ErrBookingTerminal
	}
	if !current.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: cannot move booking from %s to %s",
			common.ErrInvalidTransition, current.Status, next)
	}

	query := `UPDATE bookings SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`
	result, err := r.db.Exec(ctx, query, next, id, current.Status)
	if err != nil {
		return fmt.Errorf("failed to advance booking: %w", err)
	}
	if result.RowsAffected() == 0 {
		// Lost a race with a concurrent transition
		return common.ErrBookingTerminal
	}
	return nil
}

// MarkNoDriverFound terminates a searching booking after candidate
// exhaustion. Pending offers are cancelled in the same transaction.
func (r *Repository) MarkNoDriverFound(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	result, err := tx.Exec(ctx, `
		UPDATE bookings SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, models.BookingStatusNoDriverFound, id, models.BookingStatusSearchingDriver)
	if err != nil {
		return fmt.Errorf("failed to mark no driver found: %w", err)
	}
	if result.RowsAffected() == 0 {
		return common.ErrBookingTerminal
	}

	_, err = tx.Exec(ctx, `
		UPDATE ride_offers SET status = $1, responded_at = NOW()
		WHERE booking_id = $2 AND status = $3
	`, models.OfferStatusCancelled, id, models.OfferStatusPending)
	if err != nil {
		return fmt.Errorf("failed to cancel pending offers: %w", err)
	}

	return tx.Commit(ctx)
}

// Complete finishes an in-progress ride. Completed rows always carry
// completed_at and a settled payment flag.
func (r *Repository) Complete(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE bookings
		SET status = $1, payment_completed = TRUE, completed_at = NOW(), updated_at = NOW()
		WHERE id = $2 AND status = $3
	`

	result, err := r.db.Exec(ctx, query,
		models.BookingStatusCompleted, id, models.BookingStatusInProgress)
	if err != nil {
		return fmt.Errorf("failed to complete booking: %w", err)
	}
	if result.RowsAffected() == 0 {
		return common.ErrBookingTerminal
	}
	return nil
}

// CancelResult reports what a cancellation touched, for notifications.
type CancelResult struct {
	Booking          *models.Booking
	AssignedDriverID *uuid.UUID  // driver who held the booking, if any
	OfferedDriverIDs []uuid.UUID // drivers whose pending offers were cancelled
}

// Cancel moves a non-terminal booking to cancelled and atomically flips its
// pending offers to cancelled. A driver notification row is written for the
// assigned driver, if there was one.
func (r *Repository) Cancel(ctx context.Context, id uuid.UUID) (*CancelResult, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	booking, err := scanBooking(tx.QueryRow(ctx,
		`SELECT`+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrBookingNotFound
		}
		return nil, fmt.Errorf("failed to lock booking: %w", err)
	}
	if booking.Status.IsTerminal() {
		return nil, common.ErrBookingTerminal
	}

	result := &CancelResult{Booking: booking, AssignedDriverID: booking.DriverID}

	_, err = tx.Exec(ctx, `
		UPDATE bookings SET status = $1, updated_at = NOW() WHERE id = $2
	`, models.BookingStatusCancelled, id)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel booking: %w", err)
	}

	rows, err := tx.Query(ctx, `
		UPDATE ride_offers SET status = $1, responded_at = NOW()
		WHERE booking_id = $2 AND status = $3
		RETURNING driver_id
	`, models.OfferStatusCancelled, id, models.OfferStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel pending offers: %w", err)
	}
	for rows.Next() {
		var driverID uuid.UUID
		if err := rows.Scan(&driverID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan cancelled offer: %w", err)
		}
		result.OfferedDriverIDs = append(result.OfferedDriverIDs, driverID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if booking.DriverID != nil {
		_, err = tx.Exec(ctx, `
			INSERT INTO driver_notifications (id, driver_id, booking_id, type, title, message)
			VALUES ($1, $2, $3, 'ride_cancelled', 'Ride cancelled',
			        'The rider cancelled the ride. You are back in the dispatch pool.')
		`, uuid.New(), *booking.DriverID, id)
		if err != nil {
			return nil, fmt.Errorf("failed to write driver notification: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit cancellation: %w", err)
	}

	booking.Status = models.BookingStatusCancelled
	return result, nil
}

// ListByRider returns the rider's bookings, newest first.
func (r *Repository) ListByRider(ctx context.Context, riderID uuid.UUID, limit int) ([]*models.Booking, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT` + bookingColumns + `
		FROM bookings WHERE rider_id = $1
		ORDER BY created_at DESC LIMIT $2`

	rows, err := r.db.Query(ctx, query, riderID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// SearchingWithoutPendingOffer returns bookings stuck in searching_driver
// with no live offer. The sweeper re-enters these into dispatch.
func (r *Repository) SearchingWithoutPendingOffer(ctx context.Context) ([]uuid.UUID, error) {
	query := `
		SELECT b.id
		FROM bookings b
		WHERE b.status = $1
		  AND NOT EXISTS (
			SELECT 1 FROM ride_offers o
			WHERE o.booking_id = b.id AND o.status = $2
		  )
		ORDER BY b.created_at
	`

	rows, err := r.db.Query(ctx, query,
		models.BookingStatusSearchingDriver, models.OfferStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to query searching bookings: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan booking id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
