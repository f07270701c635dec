package eventbus

import (
	"time"

	"github.com/google/uuid"
)

// BookingRequestedEvent is published when a booking enters searching_driver
// and triggers the dispatcher.
type BookingRequestedEvent struct {
	BookingID       uuid.UUID `json:"booking_id"`
	RiderID         uuid.UUID `json:"rider_id"`
	PickupLatitude  float64   `json:"pickup_latitude"`
	PickupLongitude float64   `json:"pickup_longitude"`
	RequestedAt     time.Time `json:"requested_at"`
}

// BookingAssignedEvent is published after a driver accepts an offer.
type BookingAssignedEvent struct {
	BookingID  uuid.UUID `json:"booking_id"`
	RiderID    uuid.UUID `json:"rider_id"`
	DriverID   uuid.UUID `json:"driver_id"`
	AcceptedAt time.Time `json:"accepted_at"`
}

// BookingCancelledEvent is published on rider cancellation.
type BookingCancelledEvent struct {
	BookingID   uuid.UUID  `json:"booking_id"`
	RiderID     uuid.UUID  `json:"rider_id"`
	DriverID    *uuid.UUID `json:"driver_id,omitempty"`
	CancelledAt time.Time  `json:"cancelled_at"`
}

// BookingCompletedEvent is published on ride completion.
type BookingCompletedEvent struct {
	BookingID   uuid.UUID `json:"booking_id"`
	RiderID     uuid.UUID `json:"rider_id"`
	DriverID    uuid.UUID `json:"driver_id"`
	CompletedAt time.Time `json:"completed_at"`
}

// BookingNoDriverEvent is published when dispatch exhausts all candidates.
type BookingNoDriverEvent struct {
	BookingID    uuid.UUID `json:"booking_id"`
	RiderID      uuid.UUID `json:"rider_id"`
	OffersMade   int       `json:"offers_made"`
	TerminatedAt time.Time `json:"terminated_at"`
}

// OfferExtendedEvent is published when a pending offer is created.
type OfferExtendedEvent struct {
	OfferID    uuid.UUID `json:"offer_id"`
	BookingID  uuid.UUID `json:"booking_id"`
	DriverID   uuid.UUID `json:"driver_id"`
	OfferOrder int       `json:"offer_order"`
	ExpiresAt  time.Time `json:"expires_at"`
}
