package service

import (
	"context"

	"hrgate-backend/internal/apperr"
	"hrgate-backend/internal/domain"
	"hrgate-backend/internal/geo"
)

// ZoneStore is the zone lookup surface the resolver needs.
type ZoneStore interface {
	ListForEmployee(ctx context.Context, employeeID int64) ([]domain.GeofenceZone, error)
}

// GeofenceService decides whether a coordinate falls inside one of an
// employee's assigned zones.
type GeofenceService struct {
	Zones ZoneStore
}

// GeofenceMatch is a successful resolution.
type GeofenceMatch struct {
	Zone       domain.GeofenceZone
	DistanceKm float64
}

// Resolve finds the matching zone for the employee at (lat, lon). Matching is
// boundary-inclusive (distance == radius matches). When the point lies inside
// several overlapping zones the closest center wins; fetch order never
// decides.
func (s GeofenceService) Resolve(ctx context.Context, employeeID int64, lat, lon float64) (*GeofenceMatch, error) {
	zones, err := s.Zones.ListForEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if len(zones) == 0 {
		return nil, apperr.NotFound("No area defined for this employee")
	}

	var best *GeofenceMatch
	for _, zone := range zones {
		d := geo.DistanceKm(lat, lon, zone.Latitude, zone.Longitude)
		if d > zone.RadiusKm {
			continue
		}
		if best == nil || d < best.DistanceKm {
			best = &GeofenceMatch{Zone: zone, DistanceKm: d}
		}
	}
	if best == nil {
		return nil, apperr.Geofence("You are outside the allowed area")
	}
	return best, nil
}
