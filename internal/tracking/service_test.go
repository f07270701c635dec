package tracking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/movemobility/dispatch/internal/drivers"
	"github.com/movemobility/dispatch/pkg/common"
	"github.com/movemobility/dispatch/pkg/models"
)

type mockBookings struct{ mock.Mock }

func (m *mockBookings) GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

type mockIndex struct{ mock.Mock }

func (m *mockIndex) GetDriver(ctx context.Context, id uuid.UUID) (*models.Driver, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Driver), args.Error(1)
}

func (m *mockIndex) LastKnownLocation(ctx context.Context, driverID uuid.UUID) (*drivers.DriverLocation, error) {
	args := m.Called(ctx, driverID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*drivers.DriverLocation), args.Error(1)
}

type mockOffers struct{ mock.Mock }

func (m *mockOffers) ListForBooking(ctx context.Context, bookingID uuid.UUID) ([]*models.RideOffer, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.RideOffer), args.Error(1)
}

func TestSnapshot_SearchingBookingHasNoDriver(t *testing.T) {
	bookings := &mockBookings{}
	index := &mockIndex{}
	offers := &mockOffers{}
	svc := NewService(bookings, index, offers)

	riderID := uuid.New()
	bookingID := uuid.New()
	bookings.On("GetByID", mock.Anything, bookingID).Return(&models.Booking{
		ID:      bookingID,
		RiderID: riderID,
		Status:  models.BookingStatusSearchingDriver,
	}, nil)
	offers.On("ListForBooking", mock.Anything, bookingID).Return([]*models.RideOffer{
		{ID: uuid.New()}, {ID: uuid.New()},
	}, nil)

	snap, err := svc.Snapshot(context.Background(), bookingID, riderID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusSearchingDriver, snap.Status)
	assert.Nil(t, snap.Driver)
	assert.Equal(t, 2, snap.OffersMade)
	index.AssertNotCalled(t, "GetDriver", mock.Anything, mock.Anything)
}

func TestSnapshot_AssignedBookingIncludesDriverAndDistance(t *testing.T) {
	bookings := &mockBookings{}
	index := &mockIndex{}
	offers := &mockOffers{}
	svc := NewService(bookings, index, offers)

	riderID := uuid.New()
	driverID := uuid.New()
	bookingID := uuid.New()
	rating := 4.8

	bookings.On("GetByID", mock.Anything, bookingID).Return(&models.Booking{
		ID:              bookingID,
		RiderID:         riderID,
		DriverID:        &driverID,
		Status:          models.BookingStatusDriverAssigned,
		PickupLatitude:  37.7749,
		PickupLongitude: -122.4194,
	}, nil)
	offers.On("ListForBooking", mock.Anything, bookingID).Return([]*models.RideOffer{{ID: uuid.New()}}, nil)
	index.On("GetDriver", mock.Anything, driverID).Return(&models.Driver{
		ID:           driverID,
		FullName:     "Test Driver",
		VehiclePlate: "ABC-123",
		Rating:       &rating,
	}, nil)
	index.On("LastKnownLocation", mock.Anything, driverID).Return(&drivers.DriverLocation{
		DriverID:  driverID,
		Latitude:  37.7849,
		Longitude: -122.4194,
		Timestamp: time.Now(),
	}, nil)

	snap, err := svc.Snapshot(context.Background(), bookingID, riderID)
	require.NoError(t, err)
	require.NotNil(t, snap.Driver)
	assert.Equal(t, "Test Driver", snap.Driver.FullName)
	require.NotNil(t, snap.Driver.DistanceKm)
	// ~1.1 km between the two points
	assert.InDelta(t, 1.11, *snap.Driver.DistanceKm, 0.1)
}

func TestSnapshot_LocationFailureStillReturnsDriver(t *testing.T) {
	bookings := &mockBookings{}
	index := &mockIndex{}
	offers := &mockOffers{}
	svc := NewService(bookings, index, offers)

	riderID := uuid.New()
	driverID := uuid.New()
	bookingID := uuid.New()

	bookings.On("GetByID", mock.Anything, bookingID).Return(&models.Booking{
		ID:       bookingID,
		RiderID:  riderID,
		DriverID: &driverID,
		Status:   models.BookingStatusInProgress,
	}, nil)
	offers.On("ListForBooking", mock.Anything, bookingID).Return([]*models.RideOffer{}, nil)
	index.On("GetDriver", mock.Anything, driverID).Return(&models.Driver{ID: driverID, FullName: "D"}, nil)
	index.On("LastKnownLocation", mock.Anything, driverID).Return(nil, errors.New("no location"))

	snap, err := svc.Snapshot(context.Background(), bookingID, riderID)
	require.NoError(t, err)
	require.NotNil(t, snap.Driver)
	assert.Nil(t, snap.Driver.Latitude)
	assert.Nil(t, snap.Driver.DistanceKm)
}

func TestSnapshot_HiddenFromStrangers(t *testing.T) {
	bookings := &mockBookings{}
	svc := NewService(bookings, &mockIndex{}, &mockOffers{})

	bookingID := uuid.New()
	bookings.On("GetByID", mock.Anything, bookingID).Return(&models.Booking{
		ID:      bookingID,
		RiderID: uuid.New(),
		Status:  models.BookingStatusSearchingDriver,
	}, nil)

	_, err := svc.Snapshot(context.Background(), bookingID, uuid.New())
	assert.ErrorIs(t, err, common.ErrBookingNotFound)
}
