package redis

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	return &Client{Client: db}, mock
}

func TestSetWithExpiration(t *testing.T) {
	client, mock := newTestClient(t)

	mock.ExpectSet("driver:location:abc", "payload", 5*time.Minute).SetVal("OK")

	err := client.SetWithExpiration(context.Background(), "driver:location:abc", "payload", 5*time.Minute)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetString(t *testing.T) {
	client, mock := newTestClient(t)

	mock.ExpectGet("driver:location:abc").SetVal("payload")

	val, err := client.GetString(context.Background(), "driver:location:abc")
	require.NoError(t, err)
	assert.Equal(t, "payload", val)
}

func TestGetString_Missing(t *testing.T) {
	client, mock := newTestClient(t)

	mock.ExpectGet("driver:location:missing").RedisNil()

	_, err := client.GetString(context.Background(), "driver:location:missing")
	assert.ErrorIs(t, err, goredis.Nil)
}

func TestGeoAdd(t *testing.T) {
	client, mock := newTestClient(t)

	mock.ExpectGeoAdd("drivers:geo:index", &goredis.GeoLocation{
		Longitude: -122.4194,
		Latitude:  37.7749,
		Name:      "driver-1",
	}).SetVal(1)

	err := client.GeoAdd(context.Background(), "drivers:geo:index", -122.4194, 37.7749, "driver-1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGeoRadius_NearestFirst(t *testing.T) {
	client, mock := newTestClient(t)

	mock.ExpectGeoRadius("drivers:geo:index", -122.4194, 37.7749, &goredis.GeoRadiusQuery{
		Radius:   15,
		Unit:     "km",
		WithDist: true,
		Count:    10,
		Sort:     "ASC",
	}).SetVal([]goredis.GeoLocation{
		{Name: "driver-near", Dist: 0.4},
		{Name: "driver-far", Dist: 9.8},
	})

	members, err := client.GeoRadius(context.Background(), "drivers:geo:index", -122.4194, 37.7749, 15, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"driver-near", "driver-far"}, members)
}

func TestSMembers(t *testing.T) {
	client, mock := newTestClient(t)

	mock.ExpectSMembers("h3:drivers:8928308280fffff").SetVal([]string{"driver-1", "driver-2"})

	members, err := client.SMembers(context.Background(), "h3:drivers:8928308280fffff")
	require.NoError(t, err)
	assert.Equal(t, []string{"driver-1", "driver-2"}, members)
}

func TestGeoRemove(t *testing.T) {
	client, mock := newTestClient(t)

	mock.ExpectZRem("drivers:geo:index", "driver-1").SetVal(1)

	err := client.GeoRemove(context.Background(), "drivers:geo:index", "driver-1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete(t *testing.T) {
	client, mock := newTestClient(t)

	mock.ExpectDel("a", "b").SetVal(2)

	err := client.Delete(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
