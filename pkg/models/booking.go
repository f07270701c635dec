package models

import (
	"time"

	"github.com/google/uuid"
)

// BookingStatus represents the lifecycle state of a booking.
type BookingStatus string

const (
	BookingStatusPending         BookingStatus = "pending"
	BookingStatusSearchingDriver BookingStatus = "searching_driver"
	BookingStatusDriverAssigned  BookingStatus = "driver_assigned"
	BookingStatusDriverArrived   BookingStatus = "driver_arrived"
	BookingStatusInProgress      BookingStatus = "in_progress"
	BookingStatusCompleted       BookingStatus = "completed"
	BookingStatusCancelled       BookingStatus = "cancelled"
	BookingStatusNoDriverFound   BookingStatus = "no_driver_found"
)

// RideClass is the requested vehicle class.
type RideClass string

const (
	RideClassStandard RideClass = "standard"
	RideClassXL       RideClass = "xl"
	RideClassPremium  RideClass = "premium"
)

// ActiveBookingStatuses are the states in which a booking holds its driver.
// A driver with a booking in one of these states is excluded from dispatch.
var ActiveBookingStatuses = []BookingStatus{
	BookingStatusDriverAssigned,
	BookingStatusDriverArrived,
	BookingStatusInProgress,
}

// IsTerminal reports whether no further transitions are allowed.
func (s BookingStatus) IsTerminal() bool {
	switch s {
	case BookingStatusCompleted, BookingStatusCancelled, BookingStatusNoDriverFound:
		return true
	}
	return false
}

// IsActive reports whether the booking currently holds an assigned driver.
func (s BookingStatus) IsActive() bool {
	switch s {
	case BookingStatusDriverAssigned, BookingStatusDriverArrived, BookingStatusInProgress:
		return true
	}
	return false
}

// bookingTransitions is the authoritative forward-transition table.
// Cancellation from any non-terminal state is handled in CanTransitionTo.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:         {BookingStatusSearchingDriver},
	BookingStatusSearchingDriver: {BookingStatusDriverAssigned, BookingStatusNoDriverFound},
	BookingStatusDriverAssigned:  {BookingStatusDriverArrived},
	BookingStatusDriverArrived:   {BookingStatusInProgress},
	BookingStatusInProgress:      {BookingStatusCompleted},
}

// CanTransitionTo reports whether moving from s to next is a legal transition.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if next == BookingStatusCancelled {
		return true
	}
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Booking is the authoritative record of a ride request.
type Booking struct {
	ID                 uuid.UUID     `json:"id" db:"id"`
	RiderID            uuid.UUID     `json:"rider_id" db:"rider_id"`
	DriverID           *uuid.UUID    `json:"driver_id,omitempty" db:"driver_id"`
	Status             BookingStatus `json:"status" db:"status"`
	PickupAddress      string        `json:"pickup_address" db:"pickup_address"`
	PickupLatitude     float64       `json:"pickup_latitude" db:"pickup_latitude"`
	PickupLongitude    float64       `json:"pickup_longitude" db:"pickup_longitude"`
	DestinationAddress string        `json:"destination_address" db:"destination_address"`
	DestLatitude       float64       `json:"destination_latitude" db:"destination_latitude"`
	DestLongitude      float64       `json:"destination_longitude" db:"destination_longitude"`
	RideClass          RideClass     `json:"ride_class" db:"ride_class"`
	Fare               float64       `json:"fare" db:"fare"`
	DistanceKm         float64       `json:"distance_km" db:"distance_km"`
	DurationMin        int           `json:"duration_min" db:"duration_min"`
	PaymentMethod      string        `json:"payment_method" db:"payment_method"`
	PaymentCompleted   bool          `json:"payment_completed" db:"payment_completed"`
	CreatedAt          time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at" db:"updated_at"`
	CompletedAt        *time.Time    `json:"completed_at,omitempty" db:"completed_at"`
}

// BookingRequest is the rider-facing payload to create a booking.
type BookingRequest struct {
	PickupAddress      string    `json:"pickup_address" binding:"required"`
	PickupLatitude     float64   `json:"pickup_latitude" binding:"required,latitude"`
	PickupLongitude    float64   `json:"pickup_longitude" binding:"required,longitude"`
	DestinationAddress string    `json:"destination_address" binding:"required"`
	DestLatitude       float64   `json:"destination_latitude" binding:"required,latitude"`
	DestLongitude      float64   `json:"destination_longitude" binding:"required,longitude"`
	RideClass          RideClass `json:"ride_class" binding:"omitempty,oneof=standard xl premium"`
	Fare               float64   `json:"fare" binding:"required,gt=0"`
	DistanceKm         float64   `json:"distance_km" binding:"required,gt=0"`
	DurationMin        int       `json:"duration_min" binding:"required,gt=0"`
	PaymentMethod      string    `json:"payment_method" binding:"required,payment_method"`
}

// BookingStatusUpdateRequest advances an assigned ride through its progress
// states (driver arrived, ride started, ride completed).
type BookingStatusUpdateRequest struct {
	Status BookingStatus `json:"status" binding:"required,oneof=driver_arrived in_progress completed"`
}
