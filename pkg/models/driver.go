package models

import (
	"time"

	"github.com/google/uuid"
)

// LocationFreshness is how recent a driver's reported location must be for
// the driver to count as dispatchable.
const LocationFreshness = 5 * time.Minute

// Driver is a vetted driver account. Registration, OTP verification and
// document upload happen in external collaborators; this service only reads
// the resulting flags.
type Driver struct {
	ID                uuid.UUID  `json:"id" db:"id"`
	FullName          string     `json:"full_name" db:"full_name"`
	Phone             string     `json:"phone" db:"phone"`
	VehicleType       string     `json:"vehicle_type" db:"vehicle_type"`
	VehiclePlate      string     `json:"vehicle_plate" db:"vehicle_plate"`
	IsApproved        bool       `json:"is_approved" db:"is_approved"`
	IsOnline          bool       `json:"is_online" db:"is_online"`
	OTPVerified       bool       `json:"otp_verified" db:"otp_verified"`
	DocsComplete      bool       `json:"docs_complete" db:"docs_complete"`
	Rating            *float64   `json:"rating,omitempty" db:"rating"`
	TotalTrips        int        `json:"total_trips" db:"total_trips"`
	CurrentLatitude   *float64   `json:"current_latitude,omitempty" db:"current_latitude"`
	CurrentLongitude  *float64   `json:"current_longitude,omitempty" db:"current_longitude"`
	LocationUpdatedAt *time.Time `json:"location_updated_at,omitempty" db:"location_updated_at"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
}

// Eligible reports whether the driver may receive offers at all. Location
// freshness is evaluated against now; the active-booking exclusion lives in
// the candidate query, not here.
func (d *Driver) Eligible(now time.Time) bool {
	if !d.IsOnline || !d.IsApproved || !d.DocsComplete || !d.OTPVerified {
		return false
	}
	if d.CurrentLatitude == nil || d.CurrentLongitude == nil || d.LocationUpdatedAt == nil {
		return false
	}
	return now.Sub(*d.LocationUpdatedAt) <= LocationFreshness
}

// LocationUpdateRequest is a driver location ping.
type LocationUpdateRequest struct {
	Latitude  float64 `json:"latitude" binding:"required,latitude"`
	Longitude float64 `json:"longitude" binding:"required,longitude"`
}

// OnlineRequest toggles driver availability.
type OnlineRequest struct {
	Online *bool `json:"online" binding:"required"`
}
