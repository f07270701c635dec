package models

import (
	"time"

	"github.com/google/uuid"
)

// OfferStatus is the state of a ride offer.
type OfferStatus string

const (
	OfferStatusPending   OfferStatus = "pending"
	OfferStatusAccepted  OfferStatus = "accepted"
	OfferStatusDeclined  OfferStatus = "declined"
	OfferStatusExpired   OfferStatus = "expired"
	OfferStatusCancelled OfferStatus = "cancelled"
)

// RideOffer is a time-bounded proposal to a specific driver to take a
// specific booking. Offers are created only by the dispatcher and are
// immutable except for status and responded_at.
type RideOffer struct {
	ID          uuid.UUID   `json:"id" db:"id"`
	BookingID   uuid.UUID   `json:"booking_id" db:"booking_id"`
	DriverID    uuid.UUID   `json:"driver_id" db:"driver_id"`
	OfferOrder  int         `json:"offer_order" db:"offer_order"`
	DistanceKm  float64     `json:"distance_km" db:"distance_km"`
	Score       float64     `json:"score" db:"score"`
	Status      OfferStatus `json:"status" db:"status"`
	OfferedAt   time.Time   `json:"offered_at" db:"offered_at"`
	ExpiresAt   time.Time   `json:"expires_at" db:"expires_at"`
	RespondedAt *time.Time  `json:"responded_at,omitempty" db:"responded_at"`
}

// IsExpired reports whether the offer deadline has passed.
func (o *RideOffer) IsExpired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}

// OfferResponseRequest identifies an offer to accept or decline. Either the
// offer ID or the booking ID may be supplied; the driver is taken from the
// authenticated route.
type OfferResponseRequest struct {
	OfferID   *uuid.UUID `json:"offer_id,omitempty"`
	BookingID *uuid.UUID `json:"booking_id,omitempty"`
}
