package drivers

import (
	"context"

	"github.com/google/uuid"

	"github.com/movemobility/dispatch/pkg/models"
)

// RepositoryInterface defines driver persistence operations
type RepositoryInterface interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Driver, error)
	EligibleCandidates(ctx context.Context, excludeIDs []uuid.UUID) ([]*models.Driver, error)
	UpdateLocation(ctx context.Context, id uuid.UUID, latitude, longitude float64) error
	SetOnline(ctx context.Context, id uuid.UUID, online bool) error
	GetMatchSignals(ctx context.Context, driverIDs []uuid.UUID) (map[uuid.UUID]*MatchSignals, error)
}

// ServiceInterface defines the driver index operations
type ServiceInterface interface {
	GetDriver(ctx context.Context, id uuid.UUID) (*models.Driver, error)
	Candidates(ctx context.Context, excludeIDs []uuid.UUID) ([]*models.Driver, error)
	MatchSignals(ctx context.Context, driverIDs []uuid.UUID) (map[uuid.UUID]*MatchSignals, error)
	UpdateLocation(ctx context.Context, driverID uuid.UUID, latitude, longitude float64) error
	SetOnline(ctx context.Context, driverID uuid.UUID, online bool) error
	LastKnownLocation(ctx context.Context, driverID uuid.UUID) (*DriverLocation, error)
	NearbyDrivers(ctx context.Context, latitude, longitude, radiusKm float64, limit int) ([]*NearbyDriver, error)
	ZoneSupply(ctx context.Context, latitude, longitude float64) (int, error)
}

// Ensure implementations satisfy the interfaces
var (
	_ RepositoryInterface = (*Repository)(nil)
	_ ServiceInterface    = (*Service)(nil)
)
