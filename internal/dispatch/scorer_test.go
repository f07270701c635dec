package dispatch

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/movemobility/dispatch/internal/drivers"
	"github.com/movemobility/dispatch/pkg/config"
	"github.com/movemobility/dispatch/pkg/models"
)

const (
	pickupLat = 37.7749
	pickupLon = -122.4194
)

func ptr(v float64) *float64 { return &v }

// driverAt places a driver roughly km kilometers north of the pickup.
// One degree of latitude is ~111.19 km at this radius.
func driverAt(km float64) *models.Driver {
	lat := pickupLat + km/111.19
	lon := pickupLon
	return &models.Driver{
		ID:               uuid.New(),
		CurrentLatitude:  &lat,
		CurrentLongitude: &lon,
	}
}

func TestScorer_DefaultsWhenNoHistory(t *testing.T) {
	cfg := config.DefaultDispatchConfig()
	s := NewScorer(cfg)

	d := driverAt(0)
	ranked := s.Rank(pickupLat, pickupLon, []*models.Driver{d}, nil)
	require.Len(t, ranked, 1)

	// distance 100, rating 4.5/5=90, acceptance 80, idle 50
	want := 0.50*100 + 0.25*90 + 0.15*80 + 0.10*50
	assert.InDelta(t, want, ranked[0].Score, 0.01)
}

func TestScorer_SkipsDriversBeyondRadius(t *testing.T) {
	s := NewScorer(config.DefaultDispatchConfig())

	inside := driverAt(14.0)
	outside := driverAt(16.0)

	ranked := s.Rank(pickupLat, pickupLon, []*models.Driver{outside, inside}, nil)
	require.Len(t, ranked, 1)
	assert.Equal(t, inside.ID, ranked[0].Driver.ID)
}

func TestScorer_SkipsDriversWithoutLocation(t *testing.T) {
	s := NewScorer(config.DefaultDispatchConfig())

	ranked := s.Rank(pickupLat, pickupLon, []*models.Driver{{ID: uuid.New()}}, nil)
	assert.Empty(t, ranked)
}

func TestScorer_DistanceDominates(t *testing.T) {
	s := NewScorer(config.DefaultDispatchConfig())

	near := driverAt(1.0)
	near.Rating = ptr(3.0)
	far := driverAt(12.0)
	far.Rating = ptr(5.0)

	ranked := s.Rank(pickupLat, pickupLon, []*models.Driver{far, near}, nil)
	require.Len(t, ranked, 2)
	assert.Equal(t, near.ID, ranked[0].Driver.ID)
}

func TestScorer_RatingBreaksEqualDistance(t *testing.T) {
	s := NewScorer(config.DefaultDispatchConfig())

	good := driverAt(3.0)
	good.Rating = ptr(5.0)
	poor := driverAt(3.0)
	poor.Rating = ptr(3.5)

	ranked := s.Rank(pickupLat, pickupLon, []*models.Driver{poor, good}, nil)
	require.Len(t, ranked, 2)
	assert.Equal(t, good.ID, ranked[0].Driver.ID)
	assert.Greater(t, ranked[0].Score, ranked[1].Score)
}

func TestScorer_AcceptanceSignalUsed(t *testing.T) {
	s := NewScorer(config.DefaultDispatchConfig())

	reliable := driverAt(3.0)
	flaky := driverAt(3.0)
	signals := map[uuid.UUID]*drivers.MatchSignals{
		reliable.ID: {DriverID: reliable.ID, AcceptancePct: ptr(100)},
		flaky.ID:    {DriverID: flaky.ID, AcceptancePct: ptr(10)},
	}

	ranked := s.Rank(pickupLat, pickupLon, []*models.Driver{flaky, reliable}, signals)
	require.Len(t, ranked, 2)
	assert.Equal(t, reliable.ID, ranked[0].Driver.ID)
}

func TestScorer_IdleCapped(t *testing.T) {
	s := NewScorer(config.DefaultDispatchConfig())

	hourIdle := driverAt(3.0)
	dayIdle := driverAt(3.0)
	signals := map[uuid.UUID]*drivers.MatchSignals{
		hourIdle.ID: {DriverID: hourIdle.ID, IdleMinutes: ptr(60)},
		dayIdle.ID:  {DriverID: dayIdle.ID, IdleMinutes: ptr(1440)},
	}

	ranked := s.Rank(pickupLat, pickupLon, []*models.Driver{hourIdle, dayIdle}, signals)
	require.Len(t, ranked, 2)
	assert.InDelta(t, ranked[0].Score, ranked[1].Score, 0.0001)
}

func TestScorer_TieBreaksOnDriverID(t *testing.T) {
	s := NewScorer(config.DefaultDispatchConfig())

	a := driverAt(3.0)
	b := driverAt(3.0)
	a.ID = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	b.ID = uuid.MustParse("00000000-0000-0000-0000-000000000002")
	// Same position, everything defaulted: identical score and distance.
	b.CurrentLatitude = a.CurrentLatitude
	b.CurrentLongitude = a.CurrentLongitude

	ranked := s.Rank(pickupLat, pickupLon, []*models.Driver{b, a}, nil)
	require.Len(t, ranked, 2)
	assert.Equal(t, a.ID, ranked[0].Driver.ID)
}

func TestScorer_Deterministic(t *testing.T) {
	s := NewScorer(config.DefaultDispatchConfig())

	pool := []*models.Driver{driverAt(1), driverAt(5), driverAt(9), driverAt(13)}
	pool[1].Rating = ptr(4.9)
	pool[2].Rating = ptr(3.1)

	first := s.Rank(pickupLat, pickupLon, pool, nil)
	second := s.Rank(pickupLat, pickupLon, pool, nil)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Driver.ID, second[i].Driver.ID)
		assert.Equal(t, first[i].Score, second[i].Score)
	}
}
