package notifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/movemobility/dispatch/pkg/models"
)

// Repository handles database operations for driver notifications and
// device tokens
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new notifications repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// ListForDriver returns the driver's notifications, newest first.
func (r *Repository) ListForDriver(ctx context.Context, driverID uuid.UUID, limit int) ([]*models.DriverNotification, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, driver_id, booking_id, type, title, message, is_read, created_at
		FROM driver_notifications
		WHERE driver_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, driverID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*models.DriverNotification
	for rows.Next() {
		n := &models.DriverNotification{}
		err := rows.Scan(&n.ID, &n.DriverID, &n.BookingID, &n.Type,
			&n.Title, &n.Message, &n.IsRead, &n.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// UnreadCount returns the driver's unread notification count.
func (r *Repository) UnreadCount(ctx context.Context, driverID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM driver_notifications
		WHERE driver_id = $1 AND is_read = FALSE
	`, driverID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead marks the given notifications as read, scoped to the driver.
func (r *Repository) MarkRead(ctx context.Context, driverID uuid.UUID, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx, `
		UPDATE driver_notifications SET is_read = TRUE
		WHERE driver_id = $1 AND id = ANY($2)
	`, driverID, ids)
	if err != nil {
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return nil
}

// MarkAllRead marks every notification of the driver as read.
func (r *Repository) MarkAllRead(ctx context.Context, driverID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `
		UPDATE driver_notifications SET is_read = TRUE
		WHERE driver_id = $1 AND is_read = FALSE
	`, driverID)
	if err != nil {
		return fmt.Errorf("failed to mark all notifications read: %w", err)
	}
	return nil
}

// RegisterDeviceToken upserts a push target for a user. Tokens are unique;
// re-registering moves the token to the new user.
func (r *Repository) RegisterDeviceToken(ctx context.Context, userID uuid.UUID, token, platform string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO device_tokens (id, user_id, token, platform)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (token) DO UPDATE SET user_id = EXCLUDED.user_id, platform = EXCLUDED.platform
	`, uuid.New(), userID, token, platform)
	if err != nil {
		return fmt.Errorf("failed to register device token: %w", err)
	}
	return nil
}

// RemoveDeviceToken deletes a push target.
func (r *Repository) RemoveDeviceToken(ctx context.Context, userID uuid.UUID, token string) error {
	_, err := r.db.Exec(ctx, `
		DELETE FROM device_tokens WHERE user_id = $1 AND token = $2
	`, userID, token)
	if err != nil {
		return fmt.Errorf("failed to remove device token: %w", err)
	}
	return nil
}

// TokensForUser returns all registered push targets for a user.
func (r *Repository) TokensForUser(ctx context.Context, userID uuid.UUID) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT token FROM device_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list device tokens: %w", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("failed to scan device token: %w", err)
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}
