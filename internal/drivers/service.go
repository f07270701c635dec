package drivers

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/movemobility/dispatch/pkg/geo"
	"github.com/movemobility/dispatch/pkg/logger"
	"github.com/movemobility/dispatch/pkg/models"
	"github.com/movemobility/dispatch/pkg/redis"
)

const (
	driverLocationPrefix = "driver:location:"
	driverGeoIndexKey    = "drivers:geo:index"
	h3CellDriversPrefix  = "h3:drivers:" // set of driver IDs per H3 cell (resolution 9)

	driverLocationTTL = 5 * time.Minute
	h3CellTTL         = 10 * time.Minute
)

// DriverLocation is the cached last-known position of a driver.
type DriverLocation struct {
	DriverID  uuid.UUID `json:"driver_id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	H3Cell    string    `json:"h3_cell"`
	Timestamp time.Time `json:"timestamp"`
}

// Service is the driver availability index. Postgres is the source of truth
// for eligibility; Redis carries the hot location caches.
type Service struct {
	repo  RepositoryInterface
	redis redis.ClientInterface
}

// NewService creates a new driver index service.
func NewService(repo RepositoryInterface, redisClient redis.ClientInterface) *Service {
	return &Service{repo: repo, redis: redisClient}
}

// GetDriver returns a driver by ID.
func (s *Service) GetDriver(ctx context.Context, id uuid.UUID) (*models.Driver, error) {
	return s.repo.GetByID(ctx, id)
}

// Candidates returns the drivers eligible for an offer right now, excluding
// the given IDs and anyone holding an active booking.
func (s *Service) Candidates(ctx context.Context, excludeIDs []uuid.UUID) ([]*models.Driver, error) {
	return s.repo.EligibleCandidates(ctx, excludeIDs)
}

// MatchSignals returns scoring history for the given drivers.
func (s *Service) MatchSignals(ctx context.Context, driverIDs []uuid.UUID) (map[uuid.UUID]*MatchSignals, error) {
	return s.repo.GetMatchSignals(ctx, driverIDs)
}

// UpdateLocation records a driver location ping in Postgres and refreshes the
// Redis caches. Cache failures are logged, not returned: the durable row is
// what eligibility reads.
func (s *Service) UpdateLocation(ctx context.Context, driverID uuid.UUID, latitude, longitude float64) error {
	if err := s.repo.UpdateLocation(ctx, driverID, latitude, longitude); err != nil {
		return err
	}

	s.cacheLocation(ctx, driverID, latitude, longitude)
	return nil
}

func (s *Service) cacheLocation(ctx context.Context, driverID uuid.UUID, latitude, longitude float64) {
	h3Cell := geo.MatchingCell(latitude, longitude)
	location := &DriverLocation{
		DriverID:  driverID,
		Latitude:  latitude,
		Longitude: longitude,
		H3Cell:    h3Cell,
		Timestamp: time.Now(),
	}

	data, err := json.Marshal(location)
	if err != nil {
		logger.ErrorContext(ctx, "failed to marshal driver location", zap.Error(err))
		return
	}

	key := driverLocationPrefix + driverID.String()
	if err := s.redis.SetWithExpiration(ctx, key, data, driverLocationTTL); err != nil {
		logger.WarnContext(ctx, "failed to cache driver location",
			zap.String("driver_id", driverID.String()), zap.Error(err))
		return
	}

	if err := s.redis.GeoAdd(ctx, driverGeoIndexKey, longitude, latitude, driverID.String()); err != nil {
		logger.WarnContext(ctx, "failed to update driver geo index",
			zap.String("driver_id", driverID.String()), zap.Error(err))
	}

	s.updateH3Cell(ctx, driverID, h3Cell)
}

// updateH3Cell moves the driver between cell membership sets when the
// reported position crosses a cell boundary.
func (s *Service) updateH3Cell(ctx context.Context, driverID uuid.UUID, newCell string) {
	prevKey := driverLocationPrefix + driverID.String() + ":cell"

	prevCell, err := s.redis.GetString(ctx, prevKey)
	if err == nil && prevCell != "" && prevCell != newCell {
		_ = s.redis.SRem(ctx, h3CellDriversPrefix+prevCell, driverID.String())
	}

	cellKey := h3CellDriversPrefix + newCell
	if err := s.redis.SAdd(ctx, cellKey, driverID.String()); err != nil {
		logger.WarnContext(ctx, "failed to update driver h3 cell", zap.Error(err))
		return
	}
	_ = s.redis.ExpireKey(ctx, cellKey, h3CellTTL)
	_ = s.redis.SetWithExpiration(ctx, prevKey, newCell, driverLocationTTL)
}

// SetOnline toggles driver availability. Going offline removes the driver
// from the geo index so stale entries never reach dispatch.
func (s *Service) SetOnline(ctx context.Context, driverID uuid.UUID, online bool) error {
	if err := s.repo.SetOnline(ctx, driverID, online); err != nil {
		return err
	}

	if !online {
		if err := s.redis.GeoRemove(ctx, driverGeoIndexKey, driverID.String()); err != nil {
			logger.WarnContext(ctx, "failed to remove driver from geo index",
				zap.String("driver_id", driverID.String()), zap.Error(err))
		}
		_ = s.redis.Delete(ctx, driverLocationPrefix+driverID.String())
	}

	logger.InfoContext(ctx, "driver availability changed",
		zap.String("driver_id", driverID.String()), zap.Bool("online", online))
	return nil
}

// NearbyDriver is a cached driver position with its distance from the
// query point.
type NearbyDriver struct {
	DriverLocation
	DistanceKm float64 `json:"distance_km"`
}

// NearbyDrivers returns driver positions within radiusKm of the point,
// nearest first, from the redis GEO index. Drivers whose location entry has
// gone missing since the index write are skipped.
func (s *Service) NearbyDrivers(ctx context.Context, latitude, longitude, radiusKm float64, limit int) ([]*NearbyDriver, error) {
	if limit <= 0 {
		limit = 20
	}

	ids, err := s.redis.GeoRadius(ctx, driverGeoIndexKey, longitude, latitude, radiusKm, limit*2)
	if err != nil {
		return nil, fmt.Errorf("failed to search nearby drivers: %w", err)
	}

	nearby := make([]*NearbyDriver, 0, len(ids))
	for _, idStr := range ids {
		driverID, err := uuid.Parse(idStr)
		if err != nil {
			continue
		}

		loc, err := s.LastKnownLocation(ctx, driverID)
		if err != nil {
			continue
		}

		dist := geo.Haversine(latitude, longitude, loc.Latitude, loc.Longitude)
		if dist > radiusKm {
			continue
		}
		nearby = append(nearby, &NearbyDriver{DriverLocation: *loc, DistanceKm: dist})
	}

	sort.Slice(nearby, func(i, j int) bool {
		return nearby[i].DistanceKm < nearby[j].DistanceKm
	})
	if len(nearby) > limit {
		nearby = nearby[:limit]
	}
	return nearby, nil
}

// ZoneSupply counts distinct drivers in the H3 neighborhood of the point,
// read from the per-cell membership sets.
func (s *Service) ZoneSupply(ctx context.Context, latitude, longitude float64) (int, error) {
	cells := geo.NearbyCells(latitude, longitude, geo.H3ResolutionMatching, geo.H3KRingMatching)

	seen := make(map[string]struct{})
	for _, cell := range cells {
		members, err := s.redis.SMembers(ctx, h3CellDriversPrefix+cell)
		if err != nil {
			return 0, fmt.Errorf("failed to read cell supply: %w", err)
		}
		for _, m := range members {
			seen[m] = struct{}{}
		}
	}
	return len(seen), nil
}

// LastKnownLocation returns the cached location, falling back to the durable
// row when the cache entry has expired.
func (s *Service) LastKnownLocation(ctx context.Context, driverID uuid.UUID) (*DriverLocation, error) {
	key := driverLocationPrefix + driverID.String()
	if data, err := s.redis.GetString(ctx, key); err == nil && data != "" {
		loc := &DriverLocation{}
		if err := json.Unmarshal([]byte(data), loc); err == nil {
			return loc, nil
		}
	}

	driver, err := s.repo.GetByID(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if driver.CurrentLatitude == nil || driver.CurrentLongitude == nil {
		return nil, fmt.Errorf("driver %s has no known location", driverID)
	}

	loc := &DriverLocation{
		DriverID:  driverID,
		Latitude:  *driver.CurrentLatitude,
		Longitude: *driver.CurrentLongitude,
		H3Cell:    geo.MatchingCell(*driver.CurrentLatitude, *driver.CurrentLongitude),
	}
	if driver.LocationUpdatedAt != nil {
		loc.Timestamp = *driver.LocationUpdatedAt
	}
	return loc, nil
}
