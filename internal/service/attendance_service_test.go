package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"hrgate-backend/internal/apperr"
	"hrgate-backend/internal/domain"
	"hrgate-backend/internal/erp"
	"hrgate-backend/internal/repository"
	"hrgate-backend/internal/timeutil"
)

// memStore is an in-memory AttendanceStore mimicking the ERP's behavior,
// used to drive full check-in/check-out sequences.
type memStore struct {
	nextID  int64
	records []*domain.AttendanceRecord
}

func (m *memStore) OpenRecord(_ context.Context, employeeID int64) (*domain.AttendanceRecord, error) {
	for i := len(m.records) - 1; i >= 0; i-- {
		rec := m.records[i]
		if rec.EmployeeID == employeeID && rec.CheckOut == nil {
			copied := *rec
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) LatestInRange(_ context.Context, employeeID int64, start, end time.Time) (*domain.AttendanceRecord, error) {
	var latest *domain.AttendanceRecord
	for _, rec := range m.records {
		if rec.EmployeeID != employeeID {
			continue
		}
		if rec.CheckIn.Before(start) || !rec.CheckIn.Before(end) {
			continue
		}
		if latest == nil || rec.CheckIn.After(latest.CheckIn) {
			latest = rec
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	copied := *latest
	return &copied, nil
}

func (m *memStore) GetByID(_ context.Context, id int64) (*domain.AttendanceRecord, error) {
	for _, rec := range m.records {
		if rec.ID == id {
			copied := *rec
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) Create(_ context.Context, _ erp.Identity, p repository.CreateAttendanceParams) (int64, error) {
	m.nextID++
	checkIn, _ := time.ParseInLocation(timeutil.ERPLayout, p.CheckIn, time.UTC)
	m.records = append(m.records, &domain.AttendanceRecord{
		ID:         m.nextID,
		EmployeeID: p.EmployeeID,
		CheckIn:    checkIn,
		CheckInLat: p.Latitude,
		CheckInLon: p.Longitude,
		Location:   p.Location,
	})
	return m.nextID, nil
}

func (m *memStore) SetCheckout(_ context.Context, _ erp.Identity, id int64, p repository.CheckoutParams) error {
	for _, rec := range m.records {
		if rec.ID == id {
			checkOut, _ := time.ParseInLocation(timeutil.ERPLayout, p.CheckOut, time.UTC)
			rec.CheckOut = &checkOut
			rec.CheckOutLat = &p.Latitude
			rec.CheckOutLon = &p.Longitude
			rec.WorkedHours = p.WorkedHours
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *memStore) Reopen(_ context.Context, _ erp.Identity, id int64, p repository.CreateAttendanceParams) error {
	for _, rec := range m.records {
		if rec.ID == id {
			checkIn, _ := time.ParseInLocation(timeutil.ERPLayout, p.CheckIn, time.UTC)
			rec.CheckIn = checkIn
			rec.CheckOut = nil
			rec.CheckOutLat = nil
			rec.CheckOutLon = nil
			rec.WorkedHours = 0
			rec.Location = p.Location
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *memStore) ListByEmployee(_ context.Context, employeeID int64, start, end *time.Time, limit, offset int) ([]domain.AttendanceRecord, int64, error) {
	var out []domain.AttendanceRecord
	for _, rec := range m.records {
		if rec.EmployeeID == employeeID {
			out = append(out, *rec)
		}
	}
	return out, int64(len(out)), nil
}

func (m *memStore) ListByEmployees(_ context.Context, employeeIDs []int64, start, end *time.Time) ([]domain.AttendanceRecord, error) {
	var out []domain.AttendanceRecord
	for _, rec := range m.records {
		for _, id := range employeeIDs {
			if rec.EmployeeID == id {
				out = append(out, *rec)
			}
		}
	}
	return out, nil
}

func (m *memStore) Update(_ context.Context, id int64, values map[string]any) error { return nil }
func (m *memStore) Delete(_ context.Context, id int64) error                        { return nil }

func (m *memStore) openCount(employeeID int64) int {
	count := 0
	for _, rec := range m.records {
		if rec.EmployeeID == employeeID && rec.CheckOut == nil {
			count++
		}
	}
	return count
}

type fakeEmployeeStore struct {
	employee *domain.Employee
}

func (f fakeEmployeeStore) GetByUserID(_ context.Context, userID int64) (*domain.Employee, error) {
	if f.employee == nil || f.employee.UserID != userID {
		return nil, repository.ErrNotFound
	}
	return f.employee, nil
}

func (f fakeEmployeeStore) GetByID(_ context.Context, id int64) (*domain.Employee, error) {
	if f.employee == nil || f.employee.ID != id {
		return nil, repository.ErrNotFound
	}
	return f.employee, nil
}

func (f fakeEmployeeStore) GetUserByLogin(_ context.Context, login string) (int64, string, error) {
	if f.employee == nil || f.employee.WorkEmail != login {
		return 0, "", repository.ErrNotFound
	}
	return f.employee.UserID, f.employee.Name, nil
}

func (f fakeEmployeeStore) ListForClient(_ context.Context, clientID int64) ([]domain.Employee, error) {
	if f.employee == nil {
		return nil, nil
	}
	return []domain.Employee{*f.employee}, nil
}

func (f fakeEmployeeStore) ResolveClientID(_ context.Context, userID int64) (int64, error) {
	return 500, nil
}

type fakeGeofence struct {
	match *GeofenceMatch
	err   error
}

func (f fakeGeofence) Resolve(_ context.Context, employeeID int64, lat, lon float64) (*GeofenceMatch, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.match, nil
}

var testEmployee = &domain.Employee{ID: 5, Name: "Asha", UserID: 42, WorkEmail: "asha@example.com"}

func newTestAttendanceService(t *testing.T, store AttendanceStore, fence GeofenceResolver) *AttendanceService {
	t.Helper()
	times, err := timeutil.NewConverter("Asia/Kolkata")
	if err != nil {
		t.Fatalf("NewConverter: %v", err)
	}
	svc := NewAttendanceService(store, fakeEmployeeStore{employee: testEmployee}, fence,
		times, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	svc.now = func() time.Time { return time.Date(2024, 3, 15, 4, 0, 0, 0, time.UTC) } // 09:30 IST
	return svc
}

func insideZone() fakeGeofence {
	return fakeGeofence{match: &GeofenceMatch{
		Zone:       domain.GeofenceZone{ID: 1, Name: "HQ Mumbai", Latitude: 19.0760, Longitude: 72.8777, RadiusKm: 0.5},
		DistanceKm: 0.27,
	}}
}

func TestMarkCheckInCreatesRecord(t *testing.T) {
	store := &memStore{}
	svc := newTestAttendanceService(t, store, insideZone())

	result, err := svc.Mark(context.Background(), MarkInput{
		Email: "asha@example.com", Latitude: 19.0760, Longitude: 72.8800,
	})
	if err != nil {
		t.Fatalf("Mark: %v", err)
	}
	if result.Action != domain.ActionCheckIn {
		t.Fatalf("action=%s, want CHECK_IN", result.Action)
	}
	if result.Area != "HQ Mumbai" {
		t.Fatalf("area=%q", result.Area)
	}
	if result.CheckInTime != "2024-03-15 09:30:00" {
		t.Fatalf("check-in time=%q, want display timezone", result.CheckInTime)
	}
	if store.openCount(5) != 1 {
		t.Fatalf("open records=%d, want 1", store.openCount(5))
	}
}

func TestMarkSecondCheckInRejected(t *testing.T) {
	store := &memStore{}
	svc := newTestAttendanceService(t, store, insideZone())

	if _, err := svc.Mark(context.Background(), MarkInput{
		Email: "asha@example.com", Latitude: 19.0760, Longitude: 72.8800,
		CheckIn: "2024-03-15 09:30:00",
	}); err != nil {
		t.Fatalf("first Mark: %v", err)
	}

	_, err := svc.Mark(context.Background(), MarkInput{
		Email: "asha@example.com", Latitude: 19.0760, Longitude: 72.8800,
		CheckIn: "2024-03-15 09:45:00",
	})
	if apperr.KindOf(err) != apperr.KindStateConflict {
		t.Fatalf("err=%v, want state conflict", err)
	}
	if store.openCount(5) != 1 {
		t.Fatalf("open records=%d after rejected re-check-in, want 1", store.openCount(5))
	}
}

func TestMarkCheckOutClosesRecord(t *testing.T) {
	store := &memStore{}
	svc := newTestAttendanceService(t, store, insideZone())

	if _, err := svc.Mark(context.Background(), MarkInput{
		Email: "asha@example.com", Latitude: 19.0760, Longitude: 72.8800,
	}); err != nil {
		t.Fatalf("check-in: %v", err)
	}

	result, err := svc.Mark(context.Background(), MarkInput{
		Email: "asha@example.com", Latitude: 19.0760, Longitude: 72.8800,
		CheckOut: "2024-03-15 10:30:00", // one hour after 09:30 IST
	})
	if err != nil {
		t.Fatalf("check-out: %v", err)
	}
	if result.Action != domain.ActionCheckOut {
		t.Fatalf("action=%s, want CHECK_OUT", result.Action)
	}
	if result.WorkedHours < 0.99 || result.WorkedHours > 1.01 {
		t.Fatalf("worked hours=%v, want ~1.00", result.WorkedHours)
	}
	if store.openCount(5) != 0 {
		t.Fatalf("open records=%d after checkout, want 0", store.openCount(5))
	}
}

func TestMarkImplicitDirectionFollowsState(t *testing.T) {
	store := &memStore{}
	svc := newTestAttendanceService(t, store, insideZone())

	first, err := svc.Mark(context.Background(), MarkInput{Email: "asha@example.com", Latitude: 19.0760, Longitude: 72.8800})
	if err != nil {
		t.Fatalf("first Mark: %v", err)
	}
	if first.Action != domain.ActionCheckIn {
		t.Fatalf("first action=%s", first.Action)
	}

	svc.now = func() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) }
	second, err := svc.Mark(context.Background(), MarkInput{Email: "asha@example.com", Latitude: 19.0760, Longitude: 72.8800})
	if err != nil {
		t.Fatalf("second Mark: %v", err)
	}
	if second.Action != domain.ActionCheckOut {
		t.Fatalf("second action=%s, want CHECK_OUT", second.Action)
	}
}

func TestMarkCheckOutOrderingGuard(t *testing.T) {
	store := &memStore{}
	svc := newTestAttendanceService(t, store, insideZone())

	if _, err := svc.Mark(context.Background(), MarkInput{
		Email: "asha@example.com", Latitude: 19.0760, Longitude: 72.8800,
	}); err != nil {
		t.Fatalf("check-in: %v", err)
	}

	_, err := svc.Mark(context.Background(), MarkInput{
		Email: "asha@example.com", Latitude: 19.0760, Longitude: 72.8800,
		CheckOut: "2024-03-15 09:00:00", // before the 09:30 IST check-in
	})
	if apperr.KindOf(err) != apperr.KindStateConflict {
		t.Fatalf("err=%v, want state conflict", err)
	}
}

func TestMarkCheckOutWithoutOpenRecord(t *testing.T) {
	store := &memStore{}
	svc := newTestAttendanceService(t, store, insideZone())

	_, err := svc.Mark(context.Background(), MarkInput{
		Email: "asha@example.com", Latitude: 19.0760, Longitude: 72.8800,
		CheckOut: "2024-03-15 18:00:00",
	})
	if apperr.KindOf(err) != apperr.KindStateConflict {
		t.Fatalf("err=%v, want state conflict", err)
	}
}

func TestMarkLatitudeBounds(t *testing.T) {
	svc := newTestAttendanceService(t, &memStore{}, insideZone())

	_, err := svc.Mark(context.Background(), MarkInput{Email: "asha@example.com", Latitude: 95, Longitude: 72.88})
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("err=%v, want validation error", err)
	}
}

func TestMarkGeofenceErrorsPropagate(t *testing.T) {
	svc := newTestAttendanceService(t, &memStore{}, fakeGeofence{err: apperr.Geofence("You are outside the allowed area")})

	_, err := svc.Mark(context.Background(), MarkInput{Email: "asha@example.com", Latitude: 19, Longitude: 72})
	if apperr.KindOf(err) != apperr.KindGeofence {
		t.Fatalf("err=%v, want geofence violation", err)
	}
}

func TestMarkUnknownUser(t *testing.T) {
	svc := newTestAttendanceService(t, &memStore{}, insideZone())

	_, err := svc.Mark(context.Background(), MarkInput{Email: "nobody@example.com", Latitude: 19, Longitude: 72})
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("err=%v, want not found", err)
	}
}

// Serialized sequences must never leave more than one open record (P1).
func TestSingleOpenRecordInvariant(t *testing.T) {
	store := &memStore{}
	svc := newTestAttendanceService(t, store, insideZone())

	inputs := []MarkInput{
		{Email: "asha@example.com", Latitude: 19.0760, Longitude: 72.8800},
		{Email: "asha@example.com", Latitude: 19.0760, Longitude: 72.8800, CheckIn: "2024-03-15 09:40:00"},
		{Email: "asha@example.com", Latitude: 19.0760, Longitude: 72.8800, CheckOut: "2024-03-15 11:00:00"},
		{Email: "asha@example.com", Latitude: 19.0760, Longitude: 72.8800, CheckOut: "2024-03-15 12:00:00"},
		{Email: "asha@example.com", Latitude: 19.0760, Longitude: 72.8800, CheckIn: "2024-03-15 13:00:00"},
	}
	for _, in := range inputs {
		_, _ = svc.Mark(context.Background(), in)
		if got := store.openCount(5); got > 1 {
			t.Fatalf("open records=%d after %+v, want at most 1", got, in)
		}
	}
}

func TestAdminSameDayRecheckInConsolidates(t *testing.T) {
	store := &memStore{}
	svc := newTestAttendanceService(t, store, insideZone())

	// Complete a morning cycle.
	if _, err := svc.AdminMark(context.Background(), AdminMarkInput{
		EmployeeID: 5, Action: "check_in", Timestamp: "2024-03-15 09:00:00",
	}); err != nil {
		t.Fatalf("check-in: %v", err)
	}
	if _, err := svc.AdminMark(context.Background(), AdminMarkInput{
		EmployeeID: 5, Action: "check_out", Timestamp: "2024-03-15 13:00:00",
	}); err != nil {
		t.Fatalf("check-out: %v", err)
	}

	// Afternoon re-check-in reuses the same row.
	result, err := svc.AdminMark(context.Background(), AdminMarkInput{
		EmployeeID: 5, Action: "check_in", Timestamp: "2024-03-15 14:00:00",
	})
	if err != nil {
		t.Fatalf("re-check-in: %v", err)
	}
	if len(store.records) != 1 {
		t.Fatalf("records=%d, want same-day consolidation into 1", len(store.records))
	}
	if result.RecordID != store.records[0].ID {
		t.Fatalf("re-check-in record id=%d", result.RecordID)
	}
	if store.records[0].CheckOut != nil {
		t.Fatal("checkout fields not reset on re-check-in")
	}

	// Next day gets a fresh row.
	if _, err := svc.AdminMark(context.Background(), AdminMarkInput{
		EmployeeID: 5, Action: "check_out", Timestamp: "2024-03-15 18:00:00",
	}); err != nil {
		t.Fatalf("evening check-out: %v", err)
	}
	if _, err := svc.AdminMark(context.Background(), AdminMarkInput{
		EmployeeID: 5, Action: "check_in", Timestamp: "2024-03-16 09:00:00",
	}); err != nil {
		t.Fatalf("next-day check-in: %v", err)
	}
	if len(store.records) != 2 {
		t.Fatalf("records=%d, want a new row on the next day", len(store.records))
	}
}

func TestAdminRecheckInOrderingGuard(t *testing.T) {
	store := &memStore{}
	svc := newTestAttendanceService(t, store, insideZone())

	if _, err := svc.AdminMark(context.Background(), AdminMarkInput{
		EmployeeID: 5, Action: "check_in", Timestamp: "2024-03-15 09:00:00",
	}); err != nil {
		t.Fatalf("check-in: %v", err)
	}
	if _, err := svc.AdminMark(context.Background(), AdminMarkInput{
		EmployeeID: 5, Action: "check_out", Timestamp: "2024-03-15 13:00:00",
	}); err != nil {
		t.Fatalf("check-out: %v", err)
	}

	_, err := svc.AdminMark(context.Background(), AdminMarkInput{
		EmployeeID: 5, Action: "check_in", Timestamp: "2024-03-15 12:00:00", // before the 13:00 checkout
	})
	if apperr.KindOf(err) != apperr.KindStateConflict {
		t.Fatalf("err=%v, want state conflict", err)
	}
}

func TestAdminCheckOutGuards(t *testing.T) {
	store := &memStore{}
	svc := newTestAttendanceService(t, store, insideZone())

	// No record today at all.
	_, err := svc.AdminMark(context.Background(), AdminMarkInput{
		EmployeeID: 5, Action: "check_out", Timestamp: "2024-03-15 18:00:00",
	})
	if apperr.KindOf(err) != apperr.KindStateConflict {
		t.Fatalf("err=%v, want state conflict for missing check-in", err)
	}

	// Already closed.
	if _, err := svc.AdminMark(context.Background(), AdminMarkInput{
		EmployeeID: 5, Action: "check_in", Timestamp: "2024-03-15 09:00:00",
	}); err != nil {
		t.Fatalf("check-in: %v", err)
	}
	if _, err := svc.AdminMark(context.Background(), AdminMarkInput{
		EmployeeID: 5, Action: "check_out", Timestamp: "2024-03-15 13:00:00",
	}); err != nil {
		t.Fatalf("check-out: %v", err)
	}
	_, err = svc.AdminMark(context.Background(), AdminMarkInput{
		EmployeeID: 5, Action: "check_out", Timestamp: "2024-03-15 14:00:00",
	})
	if apperr.KindOf(err) != apperr.KindStateConflict {
		t.Fatalf("err=%v, want state conflict for double checkout", err)
	}
}

func TestStatus(t *testing.T) {
	store := &memStore{}
	svc := newTestAttendanceService(t, store, insideZone())

	status, err := svc.Status(context.Background(), 42)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.CheckedIn {
		t.Fatal("expected not checked in")
	}

	if _, err := svc.Mark(context.Background(), MarkInput{
		Email: "asha@example.com", Latitude: 19.0760, Longitude: 72.8800,
	}); err != nil {
		t.Fatalf("Mark: %v", err)
	}
	status, err = svc.Status(context.Background(), 42)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.CheckedIn {
		t.Fatal("expected checked in")
	}
}

func TestUpdateRecordValidation(t *testing.T) {
	store := &memStore{}
	svc := newTestAttendanceService(t, store, insideZone())
	if _, err := svc.Mark(context.Background(), MarkInput{
		Email: "asha@example.com", Latitude: 19.0760, Longitude: 72.8800,
	}); err != nil {
		t.Fatalf("Mark: %v", err)
	}

	cases := []struct {
		name   string
		id     int64
		fields map[string]any
		kind   apperr.Kind
	}{
		{"unknown record", 999, map[string]any{"location": "x"}, apperr.KindNotFound},
		{"unknown field", 1, map[string]any{"employee_id": 9}, apperr.KindValidation},
		{"bad timestamp", 1, map[string]any{"check_in": "not-a-time"}, apperr.KindValidation},
		{"empty payload", 1, map[string]any{}, apperr.KindValidation},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.UpdateRecord(context.Background(), tt.id, tt.fields)
			if apperr.KindOf(err) != tt.kind {
				t.Fatalf("err=%v, want kind %v", err, tt.kind)
			}
		})
	}

	if err := svc.UpdateRecord(context.Background(), 1, map[string]any{"check_in": "2024-03-15 08:00:00"}); err != nil {
		t.Fatalf("valid update rejected: %v", err)
	}
}

func TestMarkStoreErrorPropagates(t *testing.T) {
	svc := newTestAttendanceService(t, &failingStore{}, insideZone())

	_, err := svc.Mark(context.Background(), MarkInput{Email: "asha@example.com", Latitude: 19.0760, Longitude: 72.8800})
	if err == nil || apperr.KindOf(err) != apperr.KindInternal {
		t.Fatalf("err=%v, want internal", err)
	}
}

type failingStore struct{ memStore }

func (failingStore) OpenRecord(context.Context, int64) (*domain.AttendanceRecord, error) {
	return nil, errors.New("erp unavailable")
}
