package models

import (
	"time"

	"github.com/google/uuid"
)

// DriverNotification is an append-only log entry shown in the driver app,
// written when a ride the driver held is cancelled.
type DriverNotification struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	DriverID  uuid.UUID  `json:"driver_id" db:"driver_id"`
	BookingID *uuid.UUID `json:"booking_id,omitempty" db:"booking_id"`
	Type      string     `json:"type" db:"type"`
	Title     string     `json:"title" db:"title"`
	Message   string     `json:"message" db:"message"`
	IsRead    bool       `json:"is_read" db:"is_read"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// DeviceToken is a registered push target for a rider or driver.
type DeviceToken struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Token     string    `json:"token" db:"token"`
	Platform  string    `json:"platform" db:"platform"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// MarkReadRequest marks driver notifications as read.
type MarkReadRequest struct {
	NotificationIDs []uuid.UUID `json:"notification_ids"`
	MarkAll         bool        `json:"mark_all"`
}
