package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"hrgate-backend/internal/apperr"
	"hrgate-backend/internal/domain"
	"hrgate-backend/internal/erp"
	"hrgate-backend/internal/repository"
	"hrgate-backend/internal/timeutil"
)

// AttendanceStore is the record access surface of the state machine.
type AttendanceStore interface {
	OpenRecord(ctx context.Context, employeeID int64) (*domain.AttendanceRecord, error)
	LatestInRange(ctx context.Context, employeeID int64, start, end time.Time) (*domain.AttendanceRecord, error)
	GetByID(ctx context.Context, id int64) (*domain.AttendanceRecord, error)
	Create(ctx context.Context, as erp.Identity, p repository.CreateAttendanceParams) (int64, error)
	SetCheckout(ctx context.Context, as erp.Identity, id int64, p repository.CheckoutParams) error
	Reopen(ctx context.Context, as erp.Identity, id int64, p repository.CreateAttendanceParams) error
	ListByEmployee(ctx context.Context, employeeID int64, start, end *time.Time, limit, offset int) ([]domain.AttendanceRecord, int64, error)
	ListByEmployees(ctx context.Context, employeeIDs []int64, start, end *time.Time) ([]domain.AttendanceRecord, error)
	Update(ctx context.Context, id int64, values map[string]any) error
	Delete(ctx context.Context, id int64) error
}

// EmployeeStore resolves users, employees and tenant scope.
type EmployeeStore interface {
	GetByUserID(ctx context.Context, userID int64) (*domain.Employee, error)
	GetByID(ctx context.Context, id int64) (*domain.Employee, error)
	GetUserByLogin(ctx context.Context, login string) (int64, string, error)
	ListForClient(ctx context.Context, clientID int64) ([]domain.Employee, error)
	ResolveClientID(ctx context.Context, userID int64) (int64, error)
}

// GeofenceResolver matches a coordinate against an employee's zones.
type GeofenceResolver interface {
	Resolve(ctx context.Context, employeeID int64, lat, lon float64) (*GeofenceMatch, error)
}

// AttendanceService implements the check-in/check-out state machine. State is
// evaluated fresh on every request from the record's own check_out field;
// requests for one employee are serialized with a keyed lock because the
// open-record search and the following write are separate ERP round trips.
type AttendanceService struct {
	Store     AttendanceStore
	Employees EmployeeStore
	Geofence  GeofenceResolver
	Times     *timeutil.Converter
	Logger    *slog.Logger

	locks *keyedMutex
	now   func() time.Time
}

func NewAttendanceService(store AttendanceStore, employees EmployeeStore, geofence GeofenceResolver, times *timeutil.Converter, logger *slog.Logger) *AttendanceService {
	return &AttendanceService{
		Store:     store,
		Employees: employees,
		Geofence:  geofence,
		Times:     times,
		Logger:    logger,
		locks:     newKeyedMutex(),
		now:       time.Now,
	}
}

// MarkInput is the unified geofenced mark-attendance request.
type MarkInput struct {
	Email     string
	Latitude  float64
	Longitude float64
	Image     string
	CheckIn   string // optional explicit timestamp, display timezone
	CheckOut  string // optional explicit timestamp, display timezone
	Device    string
	As        erp.Identity
}

// MarkResult is the outcome of a mark-attendance request.
type MarkResult struct {
	Action       domain.AttendanceAction
	RecordID     int64
	CheckInTime  string
	CheckOutTime string
	WorkedHours  float64
	Location     string
	DistanceKm   float64
	Area         string
}

func validateCoordinates(lat, lon float64) error {
	if lat < -90 || lat > 90 {
		return apperr.Validation("Latitude must be between -90 and 90")
	}
	if lon < -180 || lon > 180 {
		return apperr.Validation("Longitude must be between -180 and 180")
	}
	return nil
}

// Mark runs the unified geofenced flow. An explicit check_out timestamp
// forces the checkout path and an explicit check_in the check-in path;
// with neither, the direction follows the current state (open record means
// checkout). Geofence presence is mandatory in both directions.
func (s *AttendanceService) Mark(ctx context.Context, in MarkInput) (*MarkResult, error) {
	if err := validateCoordinates(in.Latitude, in.Longitude); err != nil {
		return nil, err
	}

	userID, _, err := s.Employees.GetUserByLogin(ctx, in.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, err
	}
	employee, err := s.Employees.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("Employee not found for this user")
		}
		return nil, err
	}

	s.locks.Lock(employee.ID)
	defer s.locks.Unlock(employee.ID)

	match, err := s.Geofence.Resolve(ctx, employee.ID, in.Latitude, in.Longitude)
	if err != nil {
		return nil, err
	}

	open, err := s.Store.OpenRecord(ctx, employee.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	switch {
	case in.CheckOut != "":
		return s.markCheckOut(ctx, in, open, match)
	case in.CheckIn != "" && open != nil:
		return nil, apperr.StateConflict("Already checked in")
	case open != nil:
		return s.markCheckOut(ctx, in, open, match)
	default:
		return s.markCheckIn(ctx, in, employee, match)
	}
}

func (s *AttendanceService) markCheckIn(ctx context.Context, in MarkInput, employee *domain.Employee, match *GeofenceMatch) (*MarkResult, error) {
	checkIn := s.now().UTC()
	if in.CheckIn != "" {
		t, err := s.Times.ParseInput(in.CheckIn)
		if err != nil {
			return nil, apperr.Validation("Invalid check_in timestamp")
		}
		checkIn = t
	}

	location := fmt.Sprintf("%v,%v", in.Longitude, in.Latitude)
	id, err := s.Store.Create(ctx, in.As, repository.CreateAttendanceParams{
		EmployeeID: employee.ID,
		CheckIn:    s.Times.ToStorage(checkIn),
		Latitude:   in.Latitude,
		Longitude:  in.Longitude,
		Location:   location,
		Image:      in.Image,
		DeviceInfo: in.Device,
	})
	if err != nil {
		return nil, err
	}
	s.Logger.Info("attendance check-in", "employee_id", employee.ID, "record_id", id, "zone", match.Zone.Name)

	return &MarkResult{
		Action:      domain.ActionCheckIn,
		RecordID:    id,
		CheckInTime: s.Times.ToDisplay(checkIn),
		Location:    location,
		DistanceKm:  match.DistanceKm,
		Area:        match.Zone.Name,
	}, nil
}

func (s *AttendanceService) markCheckOut(ctx context.Context, in MarkInput, open *domain.AttendanceRecord, match *GeofenceMatch) (*MarkResult, error) {
	if open == nil {
		return nil, apperr.StateConflict("No active check-in found")
	}
	if !open.Open() {
		return nil, apperr.StateConflict("Already checked out")
	}

	checkOut := s.now().UTC()
	if in.CheckOut != "" {
		t, err := s.Times.ParseInput(in.CheckOut)
		if err != nil {
			return nil, apperr.Validation("Invalid check_out timestamp")
		}
		checkOut = t
	}
	if !checkOut.After(open.CheckIn) {
		return nil, apperr.StateConflict("Check-out time must be after check-in time")
	}

	worked := checkOut.Sub(open.CheckIn).Hours()
	err := s.Store.SetCheckout(ctx, in.As, open.ID, repository.CheckoutParams{
		CheckOut:    s.Times.ToStorage(checkOut),
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
		Image:       in.Image,
		WorkedHours: worked,
	})
	if err != nil {
		return nil, err
	}
	s.Logger.Info("attendance check-out", "employee_id", open.EmployeeID, "record_id", open.ID, "worked_hours", worked)

	return &MarkResult{
		Action:       domain.ActionCheckOut,
		RecordID:     open.ID,
		CheckInTime:  s.Times.ToDisplay(open.CheckIn),
		CheckOutTime: s.Times.ToDisplay(checkOut),
		WorkedHours:  worked,
		Location:     open.Location,
		DistanceKm:   match.DistanceKm,
		Area:         match.Zone.Name,
	}, nil
}

// AdminMarkInput is the back-office entry path: explicit direction, no
// geofencing, same-day re-check-in consolidation.
type AdminMarkInput struct {
	EmployeeID int64
	Action     string // "check_in" or "check_out"
	Timestamp  string // optional, display timezone
	Latitude   float64
	Longitude  float64
	As         erp.Identity
}

// AdminMark applies a back-office check-in or check-out. A check-in on a day
// whose latest record is already closed reuses that record (day boundary,
// not open/closed, is the row identity key within a day).
func (s *AttendanceService) AdminMark(ctx context.Context, in AdminMarkInput) (*MarkResult, error) {
	if in.Action != "check_in" && in.Action != "check_out" {
		return nil, apperr.Validation("action must be check_in or check_out")
	}

	employee, err := s.Employees.GetByID(ctx, in.EmployeeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("Employee not found")
		}
		return nil, err
	}

	when := s.now().UTC()
	if in.Timestamp != "" {
		t, err := s.Times.ParseInput(in.Timestamp)
		if err != nil {
			return nil, apperr.Validation("Invalid timestamp")
		}
		when = t
	}

	s.locks.Lock(employee.ID)
	defer s.locks.Unlock(employee.ID)

	dayStart, dayEnd := s.displayDayBounds(when)
	latest, err := s.Store.LatestInRange(ctx, employee.ID, dayStart, dayEnd)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	if in.Action == "check_out" {
		return s.adminCheckOut(ctx, in, latest)
	}
	return s.adminCheckIn(ctx, in, employee, latest, when)
}

func (s *AttendanceService) adminCheckIn(ctx context.Context, in AdminMarkInput, employee *domain.Employee, latest *domain.AttendanceRecord, when time.Time) (*MarkResult, error) {
	// An open record from any day blocks a new check-in.
	open, err := s.Store.OpenRecord(ctx, employee.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if open != nil {
		return nil, apperr.StateConflict("Already checked in")
	}

	location := fmt.Sprintf("%v,%v", in.Longitude, in.Latitude)
	params := repository.CreateAttendanceParams{
		EmployeeID: employee.ID,
		CheckIn:    s.Times.ToStorage(when),
		Latitude:   in.Latitude,
		Longitude:  in.Longitude,
		Location:   location,
	}

	if latest != nil && latest.CheckOut != nil {
		// Same-day re-check-in: reuse the closed record.
		if !when.After(*latest.CheckOut) {
			return nil, apperr.StateConflict("Check-in time must be after the previous check-out")
		}
		if err := s.Store.Reopen(ctx, in.As, latest.ID, params); err != nil {
			return nil, err
		}
		s.Logger.Info("attendance re-check-in", "employee_id", employee.ID, "record_id", latest.ID)
		return &MarkResult{
			Action:      domain.ActionCheckIn,
			RecordID:    latest.ID,
			CheckInTime: s.Times.ToDisplay(when),
			Location:    location,
		}, nil
	}

	id, err := s.Store.Create(ctx, in.As, params)
	if err != nil {
		return nil, err
	}
	s.Logger.Info("attendance check-in", "employee_id", employee.ID, "record_id", id, "source", "admin")
	return &MarkResult{
		Action:      domain.ActionCheckIn,
		RecordID:    id,
		CheckInTime: s.Times.ToDisplay(when),
		Location:    location,
	}, nil
}

func (s *AttendanceService) adminCheckOut(ctx context.Context, in AdminMarkInput, latest *domain.AttendanceRecord) (*MarkResult, error) {
	if latest == nil {
		return nil, apperr.StateConflict("No active check-in found for today")
	}
	if latest.CheckOut != nil {
		return nil, apperr.StateConflict("Already checked out")
	}

	when := s.now().UTC()
	if in.Timestamp != "" {
		t, err := s.Times.ParseInput(in.Timestamp)
		if err != nil {
			return nil, apperr.Validation("Invalid timestamp")
		}
		when = t
	}
	if !when.After(latest.CheckIn) {
		return nil, apperr.StateConflict("Check-out time must be after check-in time")
	}

	worked := when.Sub(latest.CheckIn).Hours()
	err := s.Store.SetCheckout(ctx, in.As, latest.ID, repository.CheckoutParams{
		CheckOut:    s.Times.ToStorage(when),
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
		WorkedHours: worked,
	})
	if err != nil {
		return nil, err
	}
	return &MarkResult{
		Action:       domain.ActionCheckOut,
		RecordID:     latest.ID,
		CheckInTime:  s.Times.ToDisplay(latest.CheckIn),
		CheckOutTime: s.Times.ToDisplay(when),
		WorkedHours:  worked,
		Location:     latest.Location,
	}, nil
}

// displayDayBounds returns the UTC instants bounding t's calendar day in the
// display timezone.
func (s *AttendanceService) displayDayBounds(t time.Time) (time.Time, time.Time) {
	local := t.In(s.Times.Location())
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.Times.Location())
	return start.UTC(), start.Add(24 * time.Hour).UTC()
}

// StatusResult is the current open/closed state for a user.
type StatusResult struct {
	CheckedIn   bool
	RecordID    int64
	CheckInTime string
}

// Status reports whether the user's employee currently has an open record.
func (s *AttendanceService) Status(ctx context.Context, userID int64) (*StatusResult, error) {
	employee, err := s.Employees.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("Employee not found for this user")
		}
		return nil, err
	}
	open, err := s.Store.OpenRecord(ctx, employee.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &StatusResult{CheckedIn: false}, nil
		}
		return nil, err
	}
	return &StatusResult{
		CheckedIn:   true,
		RecordID:    open.ID,
		CheckInTime: s.Times.ToDisplay(open.CheckIn),
	}, nil
}

// HistoryEntry is one attendance row rendered for responses.
type HistoryEntry struct {
	ID          int64
	CheckIn     string
	CheckOut    string
	WorkedHours float64
	Location    string
}

// History returns a page of the user's attendance, newest first, optionally
// filtered to a month.
func (s *AttendanceService) History(ctx context.Context, userID int64, month, year, page, pageSize int) ([]HistoryEntry, int64, error) {
	employee, err := s.Employees.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, 0, apperr.NotFound("Employee not found for this user")
		}
		return nil, 0, err
	}

	var start, end *time.Time
	if month >= 1 && month <= 12 && year > 0 {
		from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, s.Times.Location()).UTC()
		to := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, s.Times.Location()).AddDate(0, 1, 0).UTC()
		start, end = &from, &to
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 31
	}

	records, total, err := s.Store.ListByEmployee(ctx, employee.ID, start, end, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, err
	}
	entries := make([]HistoryEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, s.toHistoryEntry(rec))
	}
	return entries, total, nil
}

func (s *AttendanceService) toHistoryEntry(rec domain.AttendanceRecord) HistoryEntry {
	entry := HistoryEntry{
		ID:          rec.ID,
		CheckIn:     s.Times.ToDisplay(rec.CheckIn),
		WorkedHours: rec.WorkedHours,
		Location:    rec.Location,
	}
	if rec.CheckOut != nil {
		entry.CheckOut = s.Times.ToDisplay(*rec.CheckOut)
	}
	return entry
}

// AdminRow is one dashboard row.
type AdminRow struct {
	ID           int64
	EmployeeID   int64
	EmployeeName string
	CheckIn      string
	CheckOut     string
	WorkedHours  float64
	Location     string
}

// AdminSummary aggregates the tenant dashboard.
type AdminSummary struct {
	TotalEmployees   int
	PresentToday     int
	OpenRecords      int
	TotalWorkedHours float64
	Rows             []AdminRow
}

// AdminList builds the tenant-wide attendance dashboard for [start, end).
// Everything is filtered through the tenant's employee set; records of other
// tenants are unreachable by construction.
func (s *AttendanceService) AdminList(ctx context.Context, clientID int64, start, end *time.Time) (*AdminSummary, error) {
	employees, err := s.Employees.ListForClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(employees))
	names := make(map[int64]string, len(employees))
	for _, e := range employees {
		ids = append(ids, e.ID)
		names[e.ID] = e.Name
	}

	records, err := s.Store.ListByEmployees(ctx, ids, start, end)
	if err != nil {
		return nil, err
	}

	summary := &AdminSummary{
		TotalEmployees: len(employees),
		Rows:           make([]AdminRow, 0, len(records)),
	}
	today := s.Times.DisplayDate(s.now())
	presentToday := map[int64]struct{}{}
	for _, rec := range records {
		row := AdminRow{
			ID:           rec.ID,
			EmployeeID:   rec.EmployeeID,
			EmployeeName: rec.EmployeeName,
			CheckIn:      s.Times.ToDisplay(rec.CheckIn),
			WorkedHours:  rec.WorkedHours,
			Location:     rec.Location,
		}
		if name, ok := names[rec.EmployeeID]; ok && row.EmployeeName == "" {
			row.EmployeeName = name
		}
		if rec.CheckOut != nil {
			row.CheckOut = s.Times.ToDisplay(*rec.CheckOut)
			summary.TotalWorkedHours += rec.WorkedHours
		} else {
			summary.OpenRecords++
		}
		if s.Times.DisplayDate(rec.CheckIn) == today {
			presentToday[rec.EmployeeID] = struct{}{}
		}
		summary.Rows = append(summary.Rows, row)
	}
	summary.PresentToday = len(presentToday)
	return summary, nil
}

// UpdateRecord merge-writes correction fields onto a record. Timestamp fields
// are normalized through the shared converter before persisting.
func (s *AttendanceService) UpdateRecord(ctx context.Context, id int64, fields map[string]any) error {
	if _, err := s.Store.GetByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("Attendance record not found")
		}
		return err
	}
	values := map[string]any{}
	for key, value := range fields {
		switch key {
		case "check_in", "check_out":
			str, ok := value.(string)
			if !ok || str == "" {
				return apperr.Validation("Invalid " + key + " timestamp")
			}
			t, err := s.Times.ParseInput(str)
			if err != nil {
				return apperr.Validation("Invalid " + key + " timestamp")
			}
			values[key] = s.Times.ToStorage(t)
		case "checkin_latitude", "checkin_longitude", "checkout_latitude", "checkout_longitude", "location", "worked_hours", "device_info":
			values[key] = value
		default:
			return apperr.Validation("Field " + key + " cannot be updated")
		}
	}
	if len(values) == 0 {
		return apperr.Validation("No updatable fields supplied")
	}
	return s.Store.Update(ctx, id, values)
}

// DeleteRecord removes a record (administrative operation).
func (s *AttendanceService) DeleteRecord(ctx context.Context, id int64) error {
	if _, err := s.Store.GetByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("Attendance record not found")
		}
		return err
	}
	return s.Store.Delete(ctx, id)
}
