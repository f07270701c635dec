package drivers

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/movemobility/dispatch/pkg/common"
	"github.com/movemobility/dispatch/pkg/models"
)

type mockRepo struct{ mock.Mock }

func (m *mockRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Driver, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Driver), args.Error(1)
}

func (m *mockRepo) EligibleCandidates(ctx context.Context, excludeIDs []uuid.UUID) ([]*models.Driver, error) {
	args := m.Called(ctx, excludeIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Driver), args.Error(1)
}

func (m *mockRepo) UpdateLocation(ctx context.Context, id uuid.UUID, latitude, longitude float64) error {
	args := m.Called(ctx, id, latitude, longitude)
	return args.Error(0)
}

func (m *mockRepo) SetOnline(ctx context.Context, id uuid.UUID, online bool) error {
	args := m.Called(ctx, id, online)
	return args.Error(0)
}

func (m *mockRepo) GetMatchSignals(ctx context.Context, driverIDs []uuid.UUID) (map[uuid.UUID]*MatchSignals, error) {
	args := m.Called(ctx, driverIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID]*MatchSignals), args.Error(1)
}

type mockRedis struct{ mock.Mock }

func (m *mockRedis) SetWithExpiration(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	args := m.Called(ctx, key, value, expiration)
	return args.Error(0)
}

func (m *mockRedis) GetString(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *mockRedis) Delete(ctx context.Context, keys ...string) error {
	args := m.Called(ctx, keys)
	return args.Error(0)
}

func (m *mockRedis) SAdd(ctx context.Context, key string, members ...interface{}) error {
	args := m.Called(ctx, key, members)
	return args.Error(0)
}

func (m *mockRedis) SMembers(ctx context.Context, key string) ([]string, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockRedis) SRem(ctx context.Context, key string, members ...interface{}) error {
	args := m.Called(ctx, key, members)
	return args.Error(0)
}

func (m *mockRedis) ExpireKey(ctx context.Context, key string, expiration time.Duration) error {
	args := m.Called(ctx, key, expiration)
	return args.Error(0)
}

func (m *mockRedis) GeoAdd(ctx context.Context, key string, longitude, latitude float64, member string) error {
	args := m.Called(ctx, key, longitude, latitude, member)
	return args.Error(0)
}

func (m *mockRedis) GeoRadius(ctx context.Context, key string, longitude, latitude, radiusKm float64, count int) ([]string, error) {
	args := m.Called(ctx, key, longitude, latitude, radiusKm, count)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockRedis) GeoRemove(ctx context.Context, key string, member string) error {
	args := m.Called(ctx, key, member)
	return args.Error(0)
}

func (m *mockRedis) Close() error {
	args := m.Called()
	return args.Error(0)
}

func newPermissiveRedis() *mockRedis {
	r := &mockRedis{}
	r.On("SetWithExpiration", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	r.On("GetString", mock.Anything, mock.Anything).Return("", errors.New("miss"))
	r.On("Delete", mock.Anything, mock.Anything).Return(nil)
	r.On("SAdd", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	r.On("SMembers", mock.Anything, mock.Anything).Return([]string{}, nil)
	r.On("SRem", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	r.On("ExpireKey", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	r.On("GeoAdd", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	r.On("GeoRemove", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	return r
}

func TestService_UpdateLocation_WritesThroughToCache(t *testing.T) {
	repo := &mockRepo{}
	redis := newPermissiveRedis()
	svc := NewService(repo, redis)

	driverID := uuid.New()
	repo.On("UpdateLocation", mock.Anything, driverID, 37.7749, -122.4194).Return(nil)

	err := svc.UpdateLocation(context.Background(), driverID, 37.7749, -122.4194)
	require.NoError(t, err)

	repo.AssertExpectations(t)
	redis.AssertCalled(t, "SetWithExpiration",
		mock.Anything, "driver:location:"+driverID.String(), mock.Anything, driverLocationTTL)
	redis.AssertCalled(t, "GeoAdd",
		mock.Anything, driverGeoIndexKey, -122.4194, 37.7749, driverID.String())
}

func TestService_UpdateLocation_UnknownDriver(t *testing.T) {
	repo := &mockRepo{}
	redis := newPermissiveRedis()
	svc := NewService(repo, redis)

	driverID := uuid.New()
	repo.On("UpdateLocation", mock.Anything, driverID, 1.0, 2.0).Return(common.ErrDriverNotFound)

	err := svc.UpdateLocation(context.Background(), driverID, 1.0, 2.0)
	assert.ErrorIs(t, err, common.ErrDriverNotFound)
	redis.AssertNotCalled(t, "GeoAdd", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestService_UpdateLocation_CacheFailureIsNotFatal(t *testing.T) {
	repo := &mockRepo{}
	redis := &mockRedis{}
	svc := NewService(repo, redis)

	driverID := uuid.New()
	repo.On("UpdateLocation", mock.Anything, driverID, 1.0, 2.0).Return(nil)
	redis.On("SetWithExpiration", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("redis down"))

	err := svc.UpdateLocation(context.Background(), driverID, 1.0, 2.0)
	assert.NoError(t, err)
}

func TestService_SetOnline_OfflineRemovesFromGeoIndex(t *testing.T) {
	repo := &mockRepo{}
	redis := newPermissiveRedis()
	svc := NewService(repo, redis)

	driverID := uuid.New()
	repo.On("SetOnline", mock.Anything, driverID, false).Return(nil)

	err := svc.SetOnline(context.Background(), driverID, false)
	require.NoError(t, err)

	redis.AssertCalled(t, "GeoRemove", mock.Anything, driverGeoIndexKey, driverID.String())
}

func TestService_SetOnline_OnlineKeepsGeoIndex(t *testing.T) {
	repo := &mockRepo{}
	redis := newPermissiveRedis()
	svc := NewService(repo, redis)

	driverID := uuid.New()
	repo.On("SetOnline", mock.Anything, driverID, true).Return(nil)

	err := svc.SetOnline(context.Background(), driverID, true)
	require.NoError(t, err)

	redis.AssertNotCalled(t, "GeoRemove", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_SetOnline_IneligibleDriverIsRejected(t *testing.T) {
	repo := &mockRepo{}
	redis := &mockRedis{}
	svc := NewService(repo, redis)

	driverID := uuid.New()
	repo.On("SetOnline", mock.Anything, driverID, true).Return(common.ErrDriverIneligible)

	err := svc.SetOnline(context.Background(), driverID, true)
	assert.ErrorIs(t, err, common.ErrDriverIneligible)
	redis.AssertNotCalled(t, "GeoRemove", mock.Anything, mock.Anything, mock.Anything)
	redis.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func cachedLocation(driverID uuid.UUID, lat, lon float64) string {
	return `{"driver_id":"` + driverID.String() + `","latitude":` +
		strconv.FormatFloat(lat, 'f', -1, 64) + `,"longitude":` +
		strconv.FormatFloat(lon, 'f', -1, 64) + `,"h3_cell":"89283082813ffff"}`
}

func TestService_NearbyDrivers_SortedByDistance(t *testing.T) {
	repo := &mockRepo{}
	redis := &mockRedis{}
	svc := NewService(repo, redis)

	near := uuid.New()
	far := uuid.New()
	redis.On("GeoRadius", mock.Anything, driverGeoIndexKey, -122.4194, 37.7749, 10.0, 10).
		Return([]string{far.String(), near.String()}, nil)
	redis.On("GetString", mock.Anything, "driver:location:"+far.String()).
		Return(cachedLocation(far, 37.80, -122.4194), nil)
	redis.On("GetString", mock.Anything, "driver:location:"+near.String()).
		Return(cachedLocation(near, 37.7755, -122.4194), nil)

	drivers, err := svc.NearbyDrivers(context.Background(), 37.7749, -122.4194, 10.0, 5)
	require.NoError(t, err)
	require.Len(t, drivers, 2)
	assert.Equal(t, near, drivers[0].DriverID)
	assert.Equal(t, far, drivers[1].DriverID)
	assert.Less(t, drivers[0].DistanceKm, drivers[1].DistanceKm)
}

func TestService_NearbyDrivers_SkipsDriversWithoutLocation(t *testing.T) {
	repo := &mockRepo{}
	redis := &mockRedis{}
	svc := NewService(repo, redis)

	known := uuid.New()
	gone := uuid.New()
	redis.On("GeoRadius", mock.Anything, driverGeoIndexKey, 2.0, 1.0, 5.0, 40).
		Return([]string{gone.String(), known.String()}, nil)
	redis.On("GetString", mock.Anything, "driver:location:"+gone.String()).
		Return("", errors.New("miss"))
	repo.On("GetByID", mock.Anything, gone).Return(nil, common.ErrDriverNotFound)
	redis.On("GetString", mock.Anything, "driver:location:"+known.String()).
		Return(cachedLocation(known, 1.0, 2.0), nil)

	drivers, err := svc.NearbyDrivers(context.Background(), 1.0, 2.0, 5.0, 0)
	require.NoError(t, err)
	require.Len(t, drivers, 1)
	assert.Equal(t, known, drivers[0].DriverID)
}

func TestService_NearbyDrivers_DropsDriversOutsideRadius(t *testing.T) {
	repo := &mockRepo{}
	redis := &mockRedis{}
	svc := NewService(repo, redis)

	// Cached position drifted well past the radius since the index write.
	drifted := uuid.New()
	redis.On("GeoRadius", mock.Anything, driverGeoIndexKey, -122.4194, 37.7749, 1.0, 40).
		Return([]string{drifted.String()}, nil)
	redis.On("GetString", mock.Anything, "driver:location:"+drifted.String()).
		Return(cachedLocation(drifted, 37.9, -122.4194), nil)

	drivers, err := svc.NearbyDrivers(context.Background(), 37.7749, -122.4194, 1.0, 0)
	require.NoError(t, err)
	assert.Empty(t, drivers)
}

func TestService_ZoneSupply_CountsDistinctDrivers(t *testing.T) {
	repo := &mockRepo{}
	redis := &mockRedis{}
	svc := NewService(repo, redis)

	// The same driver appearing in two cells counts once.
	redis.On("SMembers", mock.Anything, mock.Anything).Return([]string{"driver-a", "driver-b"}, nil).Once()
	redis.On("SMembers", mock.Anything, mock.Anything).Return([]string{"driver-b", "driver-c"}, nil)

	count, err := svc.ZoneSupply(context.Background(), 37.7749, -122.4194)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestService_ZoneSupply_RedisFailure(t *testing.T) {
	repo := &mockRepo{}
	redis := &mockRedis{}
	svc := NewService(repo, redis)

	redis.On("SMembers", mock.Anything, mock.Anything).Return(nil, errors.New("redis down"))

	_, err := svc.ZoneSupply(context.Background(), 37.7749, -122.4194)
	assert.Error(t, err)
}

func TestService_LastKnownLocation_CacheHit(t *testing.T) {
	repo := &mockRepo{}
	redis := &mockRedis{}
	svc := NewService(repo, redis)

	driverID := uuid.New()
	cached := `{"driver_id":"` + driverID.String() + `","latitude":10.5,"longitude":20.25,"h3_cell":"89283082813ffff"}`
	redis.On("GetString", mock.Anything, "driver:location:"+driverID.String()).Return(cached, nil)

	loc, err := svc.LastKnownLocation(context.Background(), driverID)
	require.NoError(t, err)
	assert.Equal(t, 10.5, loc.Latitude)
	assert.Equal(t, 20.25, loc.Longitude)
	repo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestService_LastKnownLocation_FallsBackToRepository(t *testing.T) {
	repo := &mockRepo{}
	redis := &mockRedis{}
	svc := NewService(repo, redis)

	driverID := uuid.New()
	lat, lon := 41.0, 28.9
	now := time.Now()
	redis.On("GetString", mock.Anything, mock.Anything).Return("", errors.New("miss"))
	repo.On("GetByID", mock.Anything, driverID).Return(&models.Driver{
		ID:                driverID,
		CurrentLatitude:   &lat,
		CurrentLongitude:  &lon,
		LocationUpdatedAt: &now,
	}, nil)

	loc, err := svc.LastKnownLocation(context.Background(), driverID)
	require.NoError(t, err)
	assert.Equal(t, lat, loc.Latitude)
	assert.Equal(t, lon, loc.Longitude)
	assert.Equal(t, now, loc.Timestamp)
}

func TestService_LastKnownLocation_NoLocationAnywhere(t *testing.T) {
	repo := &mockRepo{}
	redis := &mockRedis{}
	svc := NewService(repo, redis)

	driverID := uuid.New()
	redis.On("GetString", mock.Anything, mock.Anything).Return("", errors.New("miss"))
	repo.On("GetByID", mock.Anything, driverID).Return(&models.Driver{ID: driverID}, nil)

	_, err := svc.LastKnownLocation(context.Background(), driverID)
	assert.Error(t, err)
}
