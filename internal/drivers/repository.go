package drivers

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

// Repository handles database operations for drivers
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new drivers repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const driverColumns = `
	id, full_name, phone, vehicle_type, vehicle_plate, is_approved, is_online,
	otp_verified, docs_complete, rating, total_trips, current_latitude,
	current_longitude, location_updated_at, created_at, updated_at`

func scanDriver(row pgx.Row) (*models.Driver, error) {
	d := &models.Driver{}
	err := row.Scan(
		&d.ID, &d.FullName, &d.Phone, &d.VehicleType, &d.VehiclePlate,
		&d.IsApproved, &d.IsOnline, &d.OTPVerified, &d.DocsComplete,
		&d.Rating, &d.TotalTrips, &d.CurrentLatitude, &d.CurrentLongitude,
		&d.LocationUpdatedAt, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// GetByID retrieves a driver by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Driver, error) {
	query := `SELECT` + driverColumns + ` FROM drivers WHERE id = $1`

	driver, err := scanDriver(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrDriverNotFound
		}
		return nil, fmt.Errorf("failed to get driver: %w", err)
	}
	return driver, nil
}

// EligibleCandidates returns every driver who may receive an offer right now:
// online, approved, verified, with a fresh location, not already offered this
// booking and not holding an active booking. Ordered by ID so downstream
// scoring sees a stable input.
func (r *Repository) EligibleCandidates(ctx context.Context, excludeIDs []uuid.UUID) ([]*models.Driver, error) {
	query := `
		SELECT` + driverColumns + `
		FROM drivers d
		WHERE d.is_online = TRUE
		  AND d.is_approved = TRUE
		  AND d.docs_complete = TRUE
		  AND d.otp_verified = TRUE
		  AND d.current_latitude IS NOT NULL
		  AND d.current_longitude IS NOT NULL
		  AND d.location_updated_at > NOW() - INTERVAL '5 minutes'
		  AND NOT (d.id = ANY($1))
		  AND NOT EXISTS (
			SELECT 1 FROM bookings b
			WHERE b.driver_id = d.id
			  AND b.status = ANY($2)
		  )
		ORDER BY d.id
	`

	if excludeIDs == nil {
		excludeIDs = []uuid.UUID{}
	}
	active := make([]string, 0, len(models.ActiveBookingStatuses))
	for _, s := range models.ActiveBookingStatuses {
		active = append(active, string(s))
	}

	rows, err := r.db.Query(ctx, query, excludeIDs, active)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer rows.Close()

	var candidates []*models.Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		candidates = append(candidates, d)
	}
	return candidates, rows.Err()
}

// UpdateLocation stores a driver location ping.
func (r *Repository) UpdateLocation(ctx context.Context, id uuid.UUID, latitude, longitude float64) error {
	query := `
		UPDATE drivers
		SET current_latitude = $1, current_longitude = $2,
		    location_updated_at = NOW(), updated_at = NOW()
		WHERE id = $3
	`

	result, err := r.db.Exec(ctx, query, latitude, longitude, id)
	if err != nil {
		return fmt.Errorf("failed to update driver location: %w", err)
	}
	if result.RowsAffected() == 0 {
		return common.ErrDriverNotFound
	}
	return nil
}

// SetOnline toggles driver availability. Going online is gated on the
// vetting flags so an unapproved driver never enters the pool.
func (r *Repository) SetOnline(ctx context.Context, id uuid.UUID, online bool) error {
	query := `UPDATE drivers SET is_online = $1, updated_at = NOW() WHERE id = $2`
	if online {
		query += ` AND is_approved = TRUE AND docs_complete = TRUE AND otp_verified = TRUE`
	}

	result, err := r.db.Exec(ctx, query, online, id)
	if err != nil {
		return fmt.Errorf("failed to set driver online flag: %w", err)
	}
	if result.RowsAffected() == 0 {
		if !online {
			return common.ErrDriverNotFound
		}
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return common.ErrDriverIneligible
	}
	return nil
}

// MatchSignals holds per-driver history aggregates used for scoring. Nil
// fields mean the driver has no history for that signal; the scorer applies
// its configured defaults.
type MatchSignals struct {
	DriverID      uuid.UUID
	AcceptancePct *float64 // 100 * accepted / total offers, last 7 days
	IdleMinutes   *float64 // minutes since last completed booking
}

// GetMatchSignals returns acceptance rate and idle time for a list of drivers.
func (r *Repository) GetMatchSignals(ctx context.Context, driverIDs []uuid.UUID) (map[uuid.UUID]*MatchSignals, error) {
	signals := make(map[uuid.UUID]*MatchSignals, len(driverIDs))
	if len(driverIDs) == 0 {
		return signals, nil
	}

	query := `
		SELECT
			d.id,
			CASE WHEN COUNT(o.id) > 0 THEN
				100.0 * SUM(CASE WHEN o.status = 'accepted' THEN 1 ELSE 0 END) / COUNT(o.id)
			END AS acceptance_pct,
			EXTRACT(EPOCH FROM (NOW() - MAX(b.completed_at))) / 60.0 AS idle_minutes
		FROM drivers d
		LEFT JOIN ride_offers o
			ON o.driver_id = d.id AND o.offered_at > NOW() - INTERVAL '7 days'
		LEFT JOIN bookings b
			ON b.driver_id = d.id AND b.status = 'completed'
		WHERE d.id = ANY($1)
		GROUP BY d.id
	`

	rows, err := r.db.Query(ctx, query, driverIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get match signals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		s := &MatchSignals{}
		if err := rows.Scan(&s.DriverID, &s.AcceptancePct, &s.IdleMinutes); err != nil {
			return nil, fmt.Errorf("failed to scan match signals: %w", err)
		}
		signals[s.DriverID] = s
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Drivers absent from the result set have no rows at all
	for _, id := range driverIDs {
		if _, ok := signals[id]; !ok {
			signals[id] = &MatchSignals{DriverID: id}
		}
	}
	return signals, nil
}
