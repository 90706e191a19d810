package service

import (
	"context"
	"testing"

	"hrgate-backend/internal/apperr"
	"hrgate-backend/internal/domain"
)

type fakeZoneStore struct {
	zones []domain.GeofenceZone
	err   error
}

func (f fakeZoneStore) ListForEmployee(context.Context, int64) ([]domain.GeofenceZone, error) {
	return f.zones, f.err
}

func TestResolveInsideZone(t *testing.T) {
	svc := GeofenceService{Zones: fakeZoneStore{zones: []domain.GeofenceZone{
		{ID: 1, Name: "HQ Mumbai", Latitude: 19.0760, Longitude: 72.8777, RadiusKm: 0.5},
	}}}

	match, err := svc.Resolve(context.Background(), 5, 19.0760, 72.8800)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if match.Zone.Name != "HQ Mumbai" {
		t.Fatalf("zone=%q", match.Zone.Name)
	}
	if match.DistanceKm < 0.2 || match.DistanceKm > 0.3 {
		t.Fatalf("distance=%v, want ~0.24", match.DistanceKm)
	}
}

func TestResolveBoundaryInclusive(t *testing.T) {
	// Point due north of the center; 1 degree of latitude is ~111.19 km on
	// the sphere used by the distance function, so pick a radius just at it.
	svc := GeofenceService{Zones: fakeZoneStore{zones: []domain.GeofenceZone{
		{ID: 1, Name: "Wide", Latitude: 19.0, Longitude: 72.0, RadiusKm: 111.195},
	}}}

	if _, err := svc.Resolve(context.Background(), 5, 20.0, 72.0); err != nil {
		t.Fatalf("point at the boundary rejected: %v", err)
	}
}

func TestResolveOutsideAllZones(t *testing.T) {
	svc := GeofenceService{Zones: fakeZoneStore{zones: []domain.GeofenceZone{
		{ID: 1, Name: "HQ Mumbai", Latitude: 19.0760, Longitude: 72.8777, RadiusKm: 0.5},
	}}}

	_, err := svc.Resolve(context.Background(), 5, 28.6139, 77.2090) // Delhi
	if apperr.KindOf(err) != apperr.KindGeofence {
		t.Fatalf("err=%v, want geofence violation", err)
	}
}

func TestResolveNoZonesDefined(t *testing.T) {
	svc := GeofenceService{Zones: fakeZoneStore{}}

	_, err := svc.Resolve(context.Background(), 5, 19.0760, 72.8800)
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("err=%v, want not found", err)
	}
}

func TestResolveOverlappingZonesClosestCenterWins(t *testing.T) {
	// Both zones contain the point; Near's center is closer regardless of
	// list order.
	near := domain.GeofenceZone{ID: 2, Name: "Near", Latitude: 19.0770, Longitude: 72.8800, RadiusKm: 2}
	far := domain.GeofenceZone{ID: 1, Name: "Far", Latitude: 19.1000, Longitude: 72.9000, RadiusKm: 10}

	for _, zones := range [][]domain.GeofenceZone{{far, near}, {near, far}} {
		svc := GeofenceService{Zones: fakeZoneStore{zones: zones}}
		match, err := svc.Resolve(context.Background(), 5, 19.0760, 72.8800)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if match.Zone.Name != "Near" {
			t.Fatalf("zone=%q, want Near", match.Zone.Name)
		}
	}
}
