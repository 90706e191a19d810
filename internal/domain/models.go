package domain

import "time"

// Enumerations
const (
	ActionCheckIn  AttendanceAction = "CHECK_IN"
	ActionCheckOut AttendanceAction = "CHECK_OUT"

	RegularizationRequested RegularizationState = "requested"
	RegularizationApproved  RegularizationState = "approved"
	RegularizationRejected  RegularizationState = "rejected"
	RegularizationCancelled RegularizationState = "cancelled"
)

type AttendanceAction string
type RegularizationState string

// regularizationTransitions is the allowed state transition table. The state
// field is closed: updates outside this table are rejected.
var regularizationTransitions = map[RegularizationState][]RegularizationState{
	RegularizationRequested: {RegularizationApproved, RegularizationRejected, RegularizationCancelled},
	RegularizationApproved:  {RegularizationCancelled},
}

// Valid reports whether s is a known regularization state.
func (s RegularizationState) Valid() bool {
	switch s {
	case RegularizationRequested, RegularizationApproved, RegularizationRejected, RegularizationCancelled:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to next is allowed.
func (s RegularizationState) CanTransition(next RegularizationState) bool {
	for _, allowed := range regularizationTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Employee is the ERP employee linked 1:1 to a user account.
type Employee struct {
	ID        int64
	Name      string
	UserID    int64
	WorkEmail string
}

// GeofenceZone is a named circular area within which attendance marking is
// permitted. Shared by many employees.
type GeofenceZone struct {
	ID          int64
	Name        string
	Latitude    float64
	Longitude   float64
	RadiusKm    float64
	EmployeeIDs []int64
	ClientID    *int64
}

// AttendanceRecord mirrors the ERP attendance row. CheckOut == nil marks the
// record as open; at most one open record may exist per employee.
type AttendanceRecord struct {
	ID            int64
	EmployeeID    int64
	EmployeeName  string
	CheckIn       time.Time
	CheckOut      *time.Time
	CheckInLat    float64
	CheckInLon    float64
	CheckOutLat   *float64
	CheckOutLon   *float64
	Location      string // "lon,lat" of the check-in point
	WorkedHours   float64
	CheckInImage  string
	CheckOutImage string
	DeviceInfo    string
}

// Open reports whether the record has no checkout yet.
func (a AttendanceRecord) Open() bool { return a.CheckOut == nil }

// RegularizationRequest is an after-the-fact attendance correction request,
// scoped to a tenant. (employee, from, to, tenant) tuples are unique.
type RegularizationRequest struct {
	ID         int64
	EmployeeID int64
	Reason     string
	FromDate   string
	ToDate     string
	CategoryID int64
	State      RegularizationState
	ClientID   int64
}

// TokenRecord is a bearer token row in the gateway's local store. The store
// decides validity; expiry is never checked client-side.
type TokenRecord struct {
	ID       int64
	UserName string
	UserID   int64
	Token    string
	Expiry   time.Time
}

// Expired reports whether the token has passed its expiry at the given instant.
func (t TokenRecord) Expired(now time.Time) bool {
	return !t.Expiry.After(now)
}
