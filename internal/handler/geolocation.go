package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"hrgate-backend/internal/apperr"
	"hrgate-backend/internal/domain"
	"hrgate-backend/internal/repository"
	"hrgate-backend/internal/server/authctx"

	"github.com/go-chi/chi/v5"
)

type GeoLocationHandler struct {
	Zones   repository.ZoneRepository
	Tenants TenantResolver
	Logger  *slog.Logger
}

// RegisterPublicRoutes exposes the read endpoint without authentication, for
// device provisioning.
func (h GeoLocationHandler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/geoLocation", h.list)
}

func (h GeoLocationHandler) RegisterRoutes(r chi.Router) {
	r.Post("/create/geoLocation", h.create)
	r.Put("/geoLocation/{id}", h.update)
	r.Delete("/geoLocation/{id}", h.delete)
}

func (h GeoLocationHandler) list(w http.ResponseWriter, r *http.Request) {
	var (
		zones []domain.GeofenceZone
		err   error
	)
	switch {
	case r.URL.Query().Get("employee_id") != "":
		zones, err = h.Zones.ListForEmployee(r.Context(), int64(intQuery(r, "employee_id", 0)))
	case r.URL.Query().Get("client_id") != "":
		zones, err = h.Zones.ListForClient(r.Context(), int64(intQuery(r, "client_id", 0)))
	default:
		zones, err = h.Zones.List(r.Context())
	}
	if err != nil {
		h.Logger.Error("list zones failed", "err", err)
		writeAppError(w, err)
		return
	}
	rows := make([]map[string]any, 0, len(zones))
	for _, z := range zones {
		rows = append(rows, zonePayload(z))
	}
	writeJSON(w, http.StatusOK, rows)
}

type createZoneRequest struct {
	Name        string   `json:"name" validate:"required"`
	Latitude    *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude   *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
	RadiusKm    *float64 `json:"radius_km" validate:"required,gt=0"`
	EmployeeIDs []int64  `json:"employee_ids"`
	ClientID    int64    `json:"client_id"`
}

func (h GeoLocationHandler) create(w http.ResponseWriter, r *http.Request) {
	user := authctx.FromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "authentication_error", "unauthorized")
		return
	}
	var req createZoneRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, err)
		return
	}

	clientID := req.ClientID
	if clientID == 0 {
		resolved, err := h.Tenants.ResolveTenant(r.Context(), user.ID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		clientID = resolved
	}

	id, err := h.Zones.Create(r.Context(), actingIdentity(r), repository.CreateZoneParams{
		Name:        req.Name,
		Latitude:    *req.Latitude,
		Longitude:   *req.Longitude,
		RadiusKm:    *req.RadiusKm,
		EmployeeIDs: req.EmployeeIDs,
		ClientID:    clientID,
	})
	if err != nil {
		h.Logger.Error("create zone failed", "err", err)
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

type updateZoneRequest struct {
	Name        *string  `json:"name"`
	Latitude    *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude   *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	RadiusKm    *float64 `json:"radius_km" validate:"omitempty,gt=0"`
	EmployeeIDs []int64  `json:"employee_ids"`
}

func (h GeoLocationHandler) update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeAppError(w, err)
		return
	}
	var req updateZoneRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, err)
		return
	}

	values := map[string]any{}
	if req.Name != nil {
		values["name"] = *req.Name
	}
	if req.Latitude != nil {
		values["latitude"] = *req.Latitude
	}
	if req.Longitude != nil {
		values["longitude"] = *req.Longitude
	}
	if req.RadiusKm != nil {
		values["radius"] = *req.RadiusKm
	}
	if req.EmployeeIDs != nil {
		values["employee_ids"] = req.EmployeeIDs
	}
	if len(values) == 0 {
		writeAppError(w, apperr.Validation("No updatable fields supplied"))
		return
	}

	if _, err := h.Zones.GetByID(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeAppError(w, apperr.NotFound("Geofence zone not found"))
			return
		}
		writeAppError(w, err)
		return
	}
	if err := h.Zones.Update(r.Context(), id, values); err != nil {
		h.Logger.Error("update zone failed", "zone_id", id, "err", err)
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"updated": true})
}

func (h GeoLocationHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if _, err := h.Zones.GetByID(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeAppError(w, apperr.NotFound("Geofence zone not found"))
			return
		}
		writeAppError(w, err)
		return
	}
	if err := h.Zones.Delete(r.Context(), id); err != nil {
		h.Logger.Error("delete zone failed", "zone_id", id, "err", err)
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func zonePayload(z domain.GeofenceZone) map[string]any {
	payload := map[string]any{
		"id":           z.ID,
		"name":         z.Name,
		"latitude":     z.Latitude,
		"longitude":    z.Longitude,
		"radius_km":    z.RadiusKm,
		"employee_ids": z.EmployeeIDs,
	}
	if z.ClientID != nil {
		payload["client_id"] = *z.ClientID
	}
	return payload
}
