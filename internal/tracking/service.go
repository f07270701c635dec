package tracking

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/movemobility/dispatch/internal/drivers"
	"github.com/movemobility/dispatch/pkg/common"
	"github.com/movemobility/dispatch/pkg/geo"
	"github.com/movemobility/dispatch/pkg/models"
)

// BookingStore is the slice of the booking repository this view reads.
type BookingStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
}

// DriverIndex resolves driver metadata and last known positions.
type DriverIndex interface {
	GetDriver(ctx context.Context, id uuid.UUID) (*models.Driver, error)
	LastKnownLocation(ctx context.Context, driverID uuid.UUID) (*drivers.DriverLocation, error)
}

// OfferStore lists the booking's offer history.
type OfferStore interface {
	ListForBooking(ctx context.Context, bookingID uuid.UUID) ([]*models.RideOffer, error)
}

// DriverView is the driver slice of a tracking snapshot.
type DriverView struct {
	ID           uuid.UUID  `json:"id"`
	FullName     string     `json:"full_name"`
	Phone        string     `json:"phone"`
	VehicleType  string     `json:"vehicle_type"`
	VehiclePlate string     `json:"vehicle_plate"`
	Rating       *float64   `json:"rating,omitempty"`
	Latitude     *float64   `json:"latitude,omitempty"`
	Longitude    *float64   `json:"longitude,omitempty"`
	DistanceKm   *float64   `json:"distance_to_pickup_km,omitempty"`
	LocatedAt    *time.Time `json:"located_at,omitempty"`
}

// Snapshot is the rider-facing projection of a booking in flight.
type Snapshot struct {
	BookingID   uuid.UUID            `json:"booking_id"`
	Status      models.BookingStatus `json:"status"`
	Driver      *DriverView          `json:"driver,omitempty"`
	OffersMade  int                  `json:"offers_made"`
	GeneratedAt time.Time            `json:"generated_at"`
}

// Service builds read-side tracking snapshots. It composes data the write
// side already owns and never mutates anything.
type Service struct {
	bookings BookingStore
	index    DriverIndex
	offers   OfferStore
}

// NewService creates the tracking view service.
func NewService(bookings BookingStore, index DriverIndex, offers OfferStore) *Service {
	return &Service{bookings: bookings, index: index, offers: offers}
}

// Snapshot returns the current tracking view of a booking for its rider or
// assigned driver.
func (s *Service) Snapshot(ctx context.Context, bookingID, userID uuid.UUID) (*Snapshot, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.RiderID != userID &&
		(booking.DriverID == nil || *booking.DriverID != userID) {
		return nil, common.ErrBookingNotFound
	}

	snap := &Snapshot{
		BookingID:   booking.ID,
		Status:      booking.Status,
		GeneratedAt: time.Now(),
	}

	offers, err := s.offers.ListForBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	snap.OffersMade = len(offers)

	if booking.DriverID != nil {
		view, err := s.driverView(ctx, *booking.DriverID, booking)
		if err != nil {
			return nil, err
		}
		snap.Driver = view
	}
	return snap, nil
}

func (s *Service) driverView(ctx context.Context, driverID uuid.UUID, booking *models.Booking) (*DriverView, error) {
	driver, err := s.index.GetDriver(ctx, driverID)
	if err != nil {
		return nil, err
	}

	view := &DriverView{
		ID:           driver.ID,
		FullName:     driver.FullName,
		Phone:        driver.Phone,
		VehicleType:  driver.VehicleType,
		VehiclePlate: driver.VehiclePlate,
		Rating:       driver.Rating,
	}

	// Location is best effort; a stale cache never hides the booking state.
	loc, err := s.index.LastKnownLocation(ctx, driverID)
	if err != nil {
		return view, nil
	}
	view.Latitude = &loc.Latitude
	view.Longitude = &loc.Longitude
	if !loc.Timestamp.IsZero() {
		ts := loc.Timestamp
		view.LocatedAt = &ts
	}
	dist := geo.Haversine(loc.Latitude, loc.Longitude, booking.PickupLatitude, booking.PickupLongitude)
	view.DistanceKm = &dist

	return view, nil
}
