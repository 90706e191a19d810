package repository

import (
	"context"

	"hrgate-backend/internal/domain"
	"hrgate-backend/internal/erp"
	"hrgate-backend/internal/ports"
)

const modelZone = "hr.geofence.zone"

var zoneFields = []string{"name", "latitude", "longitude", "radius", "employee_ids", "client_id"}

type ZoneRepository struct {
	RPC ports.RPC
}

func (r ZoneRepository) decode(rec erp.Record) domain.GeofenceZone {
	z := domain.GeofenceZone{
		ID:          recInt64(rec, "id"),
		Name:        recString(rec, "name"),
		Latitude:    recFloat(rec, "latitude"),
		Longitude:   recFloat(rec, "longitude"),
		RadiusKm:    recFloat(rec, "radius"),
		EmployeeIDs: recIDs(rec, "employee_ids"),
	}
	if clientID, ok := recRefID(rec, "client_id"); ok {
		z.ClientID = &clientID
	}
	return z
}

// ListForEmployee returns every zone the employee is a member of.
func (r ZoneRepository) ListForEmployee(ctx context.Context, employeeID int64) ([]domain.GeofenceZone, error) {
	records, err := r.RPC.SearchRead(ctx, erp.Identity{}, modelZone,
		[]any{[]any{"employee_ids", "in", []int64{employeeID}}}, zoneFields, 0, nil)
	if err != nil {
		return nil, err
	}
	zones := make([]domain.GeofenceZone, 0, len(records))
	for _, rec := range records {
		zones = append(zones, r.decode(rec))
	}
	return zones, nil
}

// List returns every zone.
func (r ZoneRepository) List(ctx context.Context) ([]domain.GeofenceZone, error) {
	records, err := r.RPC.SearchRead(ctx, erp.Identity{}, modelZone, []any{}, zoneFields, 0, nil)
	if err != nil {
		return nil, err
	}
	zones := make([]domain.GeofenceZone, 0, len(records))
	for _, rec := range records {
		zones = append(zones, r.decode(rec))
	}
	return zones, nil
}

// ListForClient returns the tenant's zones.
func (r ZoneRepository) ListForClient(ctx context.Context, clientID int64) ([]domain.GeofenceZone, error) {
	records, err := r.RPC.SearchRead(ctx, erp.Identity{}, modelZone,
		[]any{[]any{"client_id", "=", clientID}}, zoneFields, 0, nil)
	if err != nil {
		return nil, err
	}
	zones := make([]domain.GeofenceZone, 0, len(records))
	for _, rec := range records {
		zones = append(zones, r.decode(rec))
	}
	return zones, nil
}

func (r ZoneRepository) GetByID(ctx context.Context, id int64) (*domain.GeofenceZone, error) {
	records, err := r.RPC.Read(ctx, erp.Identity{}, modelZone, []int64{id}, zoneFields)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	z := r.decode(records[0])
	return &z, nil
}

type CreateZoneParams struct {
	Name        string
	Latitude    float64
	Longitude   float64
	RadiusKm    float64
	EmployeeIDs []int64
	ClientID    int64
}

func (r ZoneRepository) Create(ctx context.Context, as erp.Identity, p CreateZoneParams) (int64, error) {
	values := map[string]any{
		"name":      p.Name,
		"latitude":  p.Latitude,
		"longitude": p.Longitude,
		"radius":    p.RadiusKm,
		"client_id": p.ClientID,
	}
	if len(p.EmployeeIDs) > 0 {
		// (6, 0, ids) replaces the member set.
		values["employee_ids"] = []any{[]any{6, 0, p.EmployeeIDs}}
	}
	return r.RPC.Create(ctx, as, modelZone, values, nil)
}

func (r ZoneRepository) Update(ctx context.Context, id int64, values map[string]any) error {
	if ids, ok := values["employee_ids"].([]int64); ok {
		values["employee_ids"] = []any{[]any{6, 0, ids}}
	}
	return r.RPC.Write(ctx, erp.Identity{}, modelZone, values, id)
}

func (r ZoneRepository) Delete(ctx context.Context, id int64) error {
	return r.RPC.Unlink(ctx, erp.Identity{}, modelZone, id)
}
