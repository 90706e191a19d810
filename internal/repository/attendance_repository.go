package repository

import (
	"context"
	"time"

	"hrgate-backend/internal/domain"
	"hrgate-backend/internal/erp"
	"hrgate-backend/internal/ports"
	"hrgate-backend/internal/timeutil"
)

const modelAttendance = "hr.attendance"

var attendanceFields = []string{
	"employee_id", "check_in", "check_out",
	"checkin_latitude", "checkin_longitude",
	"checkout_latitude", "checkout_longitude",
	"location", "worked_hours",
	"check_in_image", "check_out_image", "device_info",
}

type AttendanceRepository struct {
	RPC ports.RPC
}

func (r AttendanceRepository) decode(rec erp.Record) domain.AttendanceRecord {
	a := domain.AttendanceRecord{
		ID:            recInt64(rec, "id"),
		CheckInLat:    recFloat(rec, "checkin_latitude"),
		CheckInLon:    recFloat(rec, "checkin_longitude"),
		Location:      recString(rec, "location"),
		WorkedHours:   recFloat(rec, "worked_hours"),
		CheckInImage:  recString(rec, "check_in_image"),
		CheckOutImage: recString(rec, "check_out_image"),
		DeviceInfo:    recString(rec, "device_info"),
	}
	if id, ok := recRefID(rec, "employee_id"); ok {
		a.EmployeeID = id
	}
	if ref, ok := rec["employee_id"].([]any); ok && len(ref) > 1 {
		if name, ok := ref[1].(string); ok {
			a.EmployeeName = name
		}
	}
	if t := recTime(rec, "check_in"); t != nil {
		a.CheckIn = *t
	}
	a.CheckOut = recTime(rec, "check_out")
	if lat, ok := rec["checkout_latitude"].(float64); ok && a.CheckOut != nil {
		lon := recFloat(rec, "checkout_longitude")
		a.CheckOutLat = &lat
		a.CheckOutLon = &lon
	}
	return a
}

// OpenRecord returns the employee's record with no checkout yet.
// ErrNotFound when the employee has no open record.
func (r AttendanceRepository) OpenRecord(ctx context.Context, employeeID int64) (*domain.AttendanceRecord, error) {
	records, err := r.RPC.SearchRead(ctx, erp.Identity{}, modelAttendance,
		[]any{
			[]any{"employee_id", "=", employeeID},
			[]any{"check_out", "=", false},
		},
		attendanceFields, 1, map[string]any{"order": "check_in desc"})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	rec := r.decode(records[0])
	return &rec, nil
}

// LatestInRange returns the employee's most recent record whose check-in
// falls within [start, end). Used for same-day consolidation.
func (r AttendanceRepository) LatestInRange(ctx context.Context, employeeID int64, start, end time.Time) (*domain.AttendanceRecord, error) {
	records, err := r.RPC.SearchRead(ctx, erp.Identity{}, modelAttendance,
		[]any{
			[]any{"employee_id", "=", employeeID},
			[]any{"check_in", ">=", start.UTC().Format(timeutil.ERPLayout)},
			[]any{"check_in", "<", end.UTC().Format(timeutil.ERPLayout)},
		},
		attendanceFields, 1, map[string]any{"order": "check_in desc"})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	rec := r.decode(records[0])
	return &rec, nil
}

func (r AttendanceRepository) GetByID(ctx context.Context, id int64) (*domain.AttendanceRecord, error) {
	records, err := r.RPC.Read(ctx, erp.Identity{}, modelAttendance, []int64{id}, attendanceFields)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	rec := r.decode(records[0])
	return &rec, nil
}

type CreateAttendanceParams struct {
	EmployeeID int64
	CheckIn    string // UTC, ERP layout
	Latitude   float64
	Longitude  float64
	Location   string // "lon,lat"
	Image      string
	DeviceInfo string
}

// Create opens a new attendance record. The acting identity carries audit
// attribution on the ERP side.
func (r AttendanceRepository) Create(ctx context.Context, as erp.Identity, p CreateAttendanceParams) (int64, error) {
	values := map[string]any{
		"employee_id":       p.EmployeeID,
		"check_in":          p.CheckIn,
		"check_out":         false,
		"checkin_latitude":  p.Latitude,
		"checkin_longitude": p.Longitude,
		"location":          p.Location,
	}
	if p.Image != "" {
		values["check_in_image"] = p.Image
	}
	if p.DeviceInfo != "" {
		values["device_info"] = p.DeviceInfo
	}
	return r.RPC.Create(ctx, as, modelAttendance, values, nil)
}

type CheckoutParams struct {
	CheckOut    string // UTC, ERP layout
	Latitude    float64
	Longitude   float64
	Image       string
	WorkedHours float64
}

// SetCheckout closes an open record.
func (r AttendanceRepository) SetCheckout(ctx context.Context, as erp.Identity, id int64, p CheckoutParams) error {
	values := map[string]any{
		"check_out":          p.CheckOut,
		"checkout_latitude":  p.Latitude,
		"checkout_longitude": p.Longitude,
		"worked_hours":       p.WorkedHours,
	}
	if p.Image != "" {
		values["check_out_image"] = p.Image
	}
	return r.RPC.Write(ctx, as, modelAttendance, values, id)
}

// Reopen overwrites a closed record's check-in fields and resets its checkout
// fields (same-day re-check-in consolidation).
func (r AttendanceRepository) Reopen(ctx context.Context, as erp.Identity, id int64, p CreateAttendanceParams) error {
	values := map[string]any{
		"check_in":           p.CheckIn,
		"check_out":          false,
		"checkin_latitude":   p.Latitude,
		"checkin_longitude":  p.Longitude,
		"checkout_latitude":  false,
		"checkout_longitude": false,
		"check_out_image":    false,
		"worked_hours":       0,
		"location":           p.Location,
	}
	if p.Image != "" {
		values["check_in_image"] = p.Image
	}
	return r.RPC.Write(ctx, as, modelAttendance, values, id)
}

// ListByEmployee returns a page of the employee's history, newest first,
// optionally restricted to [start, end).
func (r AttendanceRepository) ListByEmployee(ctx context.Context, employeeID int64, start, end *time.Time, limit, offset int) ([]domain.AttendanceRecord, int64, error) {
	filter := []any{[]any{"employee_id", "=", employeeID}}
	if start != nil {
		filter = append(filter, []any{"check_in", ">=", start.UTC().Format(timeutil.ERPLayout)})
	}
	if end != nil {
		filter = append(filter, []any{"check_in", "<", end.UTC().Format(timeutil.ERPLayout)})
	}

	total, err := r.RPC.SearchCount(ctx, erp.Identity{}, modelAttendance, filter)
	if err != nil {
		return nil, 0, err
	}

	kwargs := map[string]any{"order": "check_in desc"}
	if offset > 0 {
		kwargs["offset"] = offset
	}
	records, err := r.RPC.SearchRead(ctx, erp.Identity{}, modelAttendance, filter, attendanceFields, limit, kwargs)
	if err != nil {
		return nil, 0, err
	}
	items := make([]domain.AttendanceRecord, 0, len(records))
	for _, rec := range records {
		items = append(items, r.decode(rec))
	}
	return items, total, nil
}

// ListByEmployees returns all records for a set of employees within
// [start, end), newest first. Used by the tenant dashboard.
func (r AttendanceRepository) ListByEmployees(ctx context.Context, employeeIDs []int64, start, end *time.Time) ([]domain.AttendanceRecord, error) {
	if len(employeeIDs) == 0 {
		return []domain.AttendanceRecord{}, nil
	}
	filter := []any{[]any{"employee_id", "in", employeeIDs}}
	if start != nil {
		filter = append(filter, []any{"check_in", ">=", start.UTC().Format(timeutil.ERPLayout)})
	}
	if end != nil {
		filter = append(filter, []any{"check_in", "<", end.UTC().Format(timeutil.ERPLayout)})
	}
	records, err := r.RPC.SearchRead(ctx, erp.Identity{}, modelAttendance, filter, attendanceFields, 0,
		map[string]any{"order": "check_in desc"})
	if err != nil {
		return nil, err
	}
	items := make([]domain.AttendanceRecord, 0, len(records))
	for _, rec := range records {
		items = append(items, r.decode(rec))
	}
	return items, nil
}

// Update merge-writes arbitrary fields onto a record (administrative
// correction endpoint).
func (r AttendanceRepository) Update(ctx context.Context, id int64, values map[string]any) error {
	return r.RPC.Write(ctx, erp.Identity{}, modelAttendance, values, id)
}

// Delete removes a record. Administrative operation; the attendance flow
// itself never deletes.
func (r AttendanceRepository) Delete(ctx context.Context, id int64) error {
	return r.RPC.Unlink(ctx, erp.Identity{}, modelAttendance, id)
}
