package dispatch

import (
	"bytes"
	"sort"

	"github.com/google/uuid"

	"github.com/movemobility/dispatch/internal/drivers"
	"github.com/movemobility/dispatch/pkg/config"
	"github.com/movemobility/dispatch/pkg/geo"
	"github.com/movemobility/dispatch/pkg/models"
)

// idleCapMinutes caps the idle signal: a driver idle for an hour or more
// gets the full idle score.
const idleCapMinutes = 60

// Candidate is a driver ranked for a specific pickup.
type Candidate struct {
	Driver     *models.Driver
	DistanceKm float64
	Score      float64
}

// Scorer ranks eligible drivers for a pickup point. Scoring is pure: all
// signals are passed in, so identical inputs always produce identical
// rankings.
type Scorer struct {
	cfg config.DispatchConfig
}

// NewScorer creates a scorer with the given tuning.
func NewScorer(cfg config.DispatchConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Rank scores every driver within the search radius and returns them best
// first. Drivers farther than MaxSearchRadiusKm are skipped entirely. Ties
// break on smaller distance, then smaller driver ID.
func (s *Scorer) Rank(pickupLat, pickupLon float64, ds []*models.Driver, signals map[uuid.UUID]*drivers.MatchSignals) []*Candidate {
	candidates := make([]*Candidate, 0, len(ds))

	for _, d := range ds {
		if d.CurrentLatitude == nil || d.CurrentLongitude == nil {
			continue
		}
		dist := geo.Haversine(*d.CurrentLatitude, *d.CurrentLongitude, pickupLat, pickupLon)
		if dist > s.cfg.MaxSearchRadiusKm {
			continue
		}
		candidates = append(candidates, &Candidate{
			Driver:     d,
			DistanceKm: dist,
			Score:      s.score(dist, d.Rating, signals[d.ID]),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.DistanceKm != b.DistanceKm {
			return a.DistanceKm < b.DistanceKm
		}
		return bytes.Compare(a.Driver.ID[:], b.Driver.ID[:]) < 0
	})

	return candidates
}

func (s *Scorer) score(distanceKm float64, rating *float64, sig *drivers.MatchSignals) float64 {
	distanceScore := 100 * (1 - distanceKm/s.cfg.MaxSearchRadiusKm)
	if distanceScore < 0 {
		distanceScore = 0
	}

	ratingValue := s.cfg.DefaultRating
	if rating != nil {
		ratingValue = *rating
	}
	ratingScore := 100 * ratingValue / 5

	acceptanceScore := s.cfg.DefaultAcceptance
	if sig != nil && sig.AcceptancePct != nil {
		acceptanceScore = *sig.AcceptancePct
	}

	idleScore := s.cfg.DefaultIdleScore
	if sig != nil && sig.IdleMinutes != nil {
		idle := *sig.IdleMinutes
		if idle > idleCapMinutes {
			idle = idleCapMinutes
		}
		idleScore = 100 * idle / idleCapMinutes
	}

	return s.cfg.DistanceWeight*distanceScore +
		s.cfg.RatingWeight*ratingScore +
		s.cfg.AcceptanceWeight*acceptanceScore +
		s.cfg.IdleWeight*idleScore
}
