package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"hrgate-backend/internal/apperr"
	"hrgate-backend/internal/erp"
	"hrgate-backend/internal/server/authctx"
	"hrgate-backend/internal/service"
	"hrgate-backend/internal/timeutil"

	"github.com/go-chi/chi/v5"
	"github.com/xuri/excelize/v2"
)

// TenantResolver derives the caller's client scope.
type TenantResolver interface {
	ResolveTenant(ctx context.Context, userID int64) (int64, error)
}

type AttendanceHandler struct {
	Service *service.AttendanceService
	Tenants TenantResolver
	Times   *timeutil.Converter
	Logger  *slog.Logger
}

func (h AttendanceHandler) RegisterRoutes(r chi.Router) {
	// Route spelling is kept for client compatibility.
	r.Post("/employee/attandence", h.mark)
	r.Get("/checkin_checkout_status", h.status)
	r.Get("/user/attendance", h.history)
}

func (h AttendanceHandler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/create/attendance", h.adminMark)
	r.Get("/admin/attendances", h.adminList)
	r.Get("/admin/attendances/export", h.adminExport)
	r.Put("/update/attendance/{id}", h.update)
	r.Delete("/delete/attendance/{id}", h.delete)
}

type markAttendanceRequest struct {
	Email      string   `json:"email" validate:"required,email"`
	Latitude   *float64 `json:"latitude" validate:"required"`
	Longitude  *float64 `json:"longitude" validate:"required"`
	Image      string   `json:"image"`
	CheckIn    string   `json:"check_in"`
	CheckOut   string   `json:"check_out"`
	DeviceInfo string   `json:"device_info"`
}

func (h AttendanceHandler) mark(w http.ResponseWriter, r *http.Request) {
	var req markAttendanceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, err)
		return
	}

	result, err := h.Service.Mark(r.Context(), service.MarkInput{
		Email:     req.Email,
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
		Image:     req.Image,
		CheckIn:   req.CheckIn,
		CheckOut:  req.CheckOut,
		Device:    req.DeviceInfo,
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInternal {
			h.Logger.Error("mark attendance failed", "err", err)
		}
		writeAppError(w, err)
		return
	}

	// Legacy response shape, kept for mobile client compatibility.
	data := map[string]any{
		"attendance_id": result.RecordID,
		"check_in_time": result.CheckInTime,
		"location":      result.Location,
		"distance":      result.DistanceKm,
		"area":          result.Area,
	}
	if result.CheckOutTime != "" {
		data["check_out_time"] = result.CheckOutTime
		data["worked_hours"] = fmt.Sprintf("%.2f hours", result.WorkedHours)
	}
	writeRawJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"statuscode": http.StatusOK,
		"action":     string(result.Action),
		"status":     "ok",
		"data":       data,
	})
}

func markResultPayload(result *service.MarkResult) map[string]any {
	payload := map[string]any{
		"action":        string(result.Action),
		"attendance_id": result.RecordID,
		"check_in":      result.CheckInTime,
		"location":      result.Location,
		"area":          result.Area,
		"distance_km":   result.DistanceKm,
	}
	if result.CheckOutTime != "" {
		payload["check_out"] = result.CheckOutTime
		payload["worked_hours"] = result.WorkedHours
	}
	return payload
}

func (h AttendanceHandler) status(w http.ResponseWriter, r *http.Request) {
	user := authctx.FromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "authentication_error", "unauthorized")
		return
	}
	status, err := h.Service.Status(r.Context(), user.ID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	payload := map[string]any{"checked_in": status.CheckedIn}
	if status.CheckedIn {
		payload["attendance_id"] = status.RecordID
		payload["check_in"] = status.CheckInTime
	}
	writeJSON(w, http.StatusOK, payload)
}

func (h AttendanceHandler) history(w http.ResponseWriter, r *http.Request) {
	user := authctx.FromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "authentication_error", "unauthorized")
		return
	}
	month := intQuery(r, "month", 0)
	year := intQuery(r, "year", 0)
	page := intQuery(r, "page", 1)
	pageSize := intQuery(r, "page_size", 31)

	entries, total, err := h.Service.History(r.Context(), user.ID, month, year, page, pageSize)
	if err != nil {
		writeAppError(w, err)
		return
	}
	rows := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, map[string]any{
			"id":           e.ID,
			"check_in":     e.CheckIn,
			"check_out":    e.CheckOut,
			"worked_hours": e.WorkedHours,
			"location":     e.Location,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total":   total,
		"page":    page,
		"records": rows,
	})
}

type adminMarkRequest struct {
	EmployeeID int64   `json:"employee_id" validate:"required"`
	Action     string  `json:"action" validate:"required,oneof=check_in check_out"`
	Timestamp  string  `json:"timestamp"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
}

func (h AttendanceHandler) adminMark(w http.ResponseWriter, r *http.Request) {
	var req adminMarkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, err)
		return
	}
	result, err := h.Service.AdminMark(r.Context(), service.AdminMarkInput{
		EmployeeID: req.EmployeeID,
		Action:     req.Action,
		Timestamp:  req.Timestamp,
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
		As:         actingIdentity(r),
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, markResultPayload(result))
}

func (h AttendanceHandler) adminList(w http.ResponseWriter, r *http.Request) {
	summary, err := h.tenantSummary(r)
	if err != nil {
		writeAppError(w, err)
		return
	}
	rows := make([]map[string]any, 0, len(summary.Rows))
	for _, row := range summary.Rows {
		rows = append(rows, map[string]any{
			"id":            row.ID,
			"employee_id":   row.EmployeeID,
			"employee_name": row.EmployeeName,
			"check_in":      row.CheckIn,
			"check_out":     row.CheckOut,
			"worked_hours":  row.WorkedHours,
			"location":      row.Location,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_employees":    summary.TotalEmployees,
		"present_today":      summary.PresentToday,
		"open_records":       summary.OpenRecords,
		"total_worked_hours": summary.TotalWorkedHours,
		"records":            rows,
	})
}

func (h AttendanceHandler) adminExport(w http.ResponseWriter, r *http.Request) {
	summary, err := h.tenantSummary(r)
	if err != nil {
		writeAppError(w, err)
		return
	}
	f, err := buildAttendanceWorkbook(summary.Rows)
	if err != nil {
		h.Logger.Error("build attendance workbook failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="attendances.xlsx"`)
	if err := f.Write(w); err != nil {
		h.Logger.Error("write attendance workbook failed", "err", err)
	}
}

func (h AttendanceHandler) tenantSummary(r *http.Request) (*service.AdminSummary, error) {
	user := authctx.FromContext(r.Context())
	if user == nil {
		return nil, apperr.Unauthorized("unauthorized")
	}
	clientID, err := h.Tenants.ResolveTenant(r.Context(), user.ID)
	if err != nil {
		return nil, err
	}
	start, err := h.parseDateQuery(r, "start_date")
	if err != nil {
		return nil, err
	}
	end, err := h.parseDateQuery(r, "end_date")
	if err != nil {
		return nil, err
	}
	if start != nil && end != nil && start.After(*end) {
		return nil, apperr.Validation("start_date must be before end_date")
	}
	return h.Service.AdminList(r.Context(), clientID, start, end)
}

func buildAttendanceWorkbook(rows []service.AdminRow) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := "Attendance"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	header := []string{"ID", "Employee ID", "Employee", "Check In", "Check Out", "Worked Hours", "Location"}
	for c, v := range header {
		cell, _ := excelize.CoordinatesToCellName(c+1, 1)
		_ = f.SetCellValue(sheet, cell, v)
	}
	for i, row := range rows {
		values := []any{row.ID, row.EmployeeID, row.EmployeeName, row.CheckIn, row.CheckOut, row.WorkedHours, row.Location}
		for c, v := range values {
			cell, _ := excelize.CoordinatesToCellName(c+1, i+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	_ = f.SetColWidth(sheet, "A", "B", 12)
	_ = f.SetColWidth(sheet, "C", "C", 28)
	_ = f.SetColWidth(sheet, "D", "E", 22)
	_ = f.SetColWidth(sheet, "F", "F", 14)
	_ = f.SetColWidth(sheet, "G", "G", 24)
	return f, nil
}

func (h AttendanceHandler) update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeAppError(w, err)
		return
	}
	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeAppError(w, apperr.Validation("Invalid request payload"))
		return
	}
	if err := h.Service.UpdateRecord(r.Context(), id, fields); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"updated": true})
}

func (h AttendanceHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if err := h.Service.DeleteRecord(r.Context(), id); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

// parseDateQuery reads an optional YYYY-MM-DD query parameter as the start of
// that day in the display timezone.
func (h AttendanceHandler) parseDateQuery(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(timeutil.DateLayout, raw, h.Times.Location())
	if err != nil {
		return nil, apperr.Validation("Invalid " + name + " format, expected YYYY-MM-DD")
	}
	utc := t.UTC()
	return &utc, nil
}

func idParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("Invalid id")
	}
	return id, nil
}

func intQuery(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// actingIdentity lets back-office clients attribute ERP writes to a specific
// ERP user instead of the service account.
func actingIdentity(r *http.Request) erp.Identity {
	uidStr := r.Header.Get("X-Erp-Uid")
	password := r.Header.Get("X-Erp-Password")
	if uidStr == "" || password == "" {
		return erp.Identity{}
	}
	uid, err := strconv.ParseInt(uidStr, 10, 64)
	if err != nil {
		return erp.Identity{}
	}
	return erp.Identity{UID: uid, Password: password}
}
