package handler

import (
	"net/http"

	"hrgate-backend/internal/apperr"
	"hrgate-backend/internal/domain"
	"hrgate-backend/internal/server/authctx"
	"hrgate-backend/internal/service"

	"github.com/go-chi/chi/v5"
)

type RegularizationHandler struct {
	Service service.RegularizationService
	Tenants TenantResolver
}

func (h RegularizationHandler) RegisterRoutes(r chi.Router) {
	r.Post("/create/regularization", h.create)
	r.Get("/regularizations", h.list)
	r.Put("/update/regularization/{id}", h.update)
}

type createRegularizationRequest struct {
	EmployeeID int64  `json:"employee_id" validate:"required"`
	Reason     string `json:"reason" validate:"required"`
	FromDate   string `json:"from_date" validate:"required,datetime=2006-01-02"`
	ToDate     string `json:"to_date" validate:"required,datetime=2006-01-02"`
	CategoryID int64  `json:"category_id"`
}

func (h RegularizationHandler) create(w http.ResponseWriter, r *http.Request) {
	user := authctx.FromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "authentication_error", "unauthorized")
		return
	}
	var req createRegularizationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, err)
		return
	}
	if req.FromDate > req.ToDate {
		writeAppError(w, apperr.Validation("from_date must not be after to_date"))
		return
	}
	clientID, err := h.Tenants.ResolveTenant(r.Context(), user.ID)
	if err != nil {
		writeAppError(w, err)
		return
	}

	id, err := h.Service.Create(r.Context(), service.CreateRegularizationInput{
		EmployeeID: req.EmployeeID,
		Reason:     req.Reason,
		FromDate:   req.FromDate,
		ToDate:     req.ToDate,
		CategoryID: req.CategoryID,
		ClientID:   clientID,
		As:         actingIdentity(r),
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": id, "state": string(domain.RegularizationRequested)})
}

func (h RegularizationHandler) list(w http.ResponseWriter, r *http.Request) {
	user := authctx.FromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "authentication_error", "unauthorized")
		return
	}
	clientID, err := h.Tenants.ResolveTenant(r.Context(), user.ID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	requests, err := h.Service.List(r.Context(), clientID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	rows := make([]map[string]any, 0, len(requests))
	for _, req := range requests {
		rows = append(rows, map[string]any{
			"id":          req.ID,
			"employee_id": req.EmployeeID,
			"reason":      req.Reason,
			"from_date":   req.FromDate,
			"to_date":     req.ToDate,
			"category_id": req.CategoryID,
			"state":       string(req.State),
		})
	}
	writeJSON(w, http.StatusOK, rows)
}

type updateRegularizationRequest struct {
	Reason   *string `json:"reason"`
	FromDate *string `json:"from_date" validate:"omitempty,datetime=2006-01-02"`
	ToDate   *string `json:"to_date" validate:"omitempty,datetime=2006-01-02"`
	State    *string `json:"state"`
}

func (h RegularizationHandler) update(w http.ResponseWriter, r *http.Request) {
	user := authctx.FromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "authentication_error", "unauthorized")
		return
	}
	id, err := idParam(r)
	if err != nil {
		writeAppError(w, err)
		return
	}
	var req updateRegularizationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, err)
		return
	}
	clientID, err := h.Tenants.ResolveTenant(r.Context(), user.ID)
	if err != nil {
		writeAppError(w, err)
		return
	}

	err = h.Service.Update(r.Context(), service.UpdateRegularizationInput{
		ID:       id,
		ClientID: clientID,
		Reason:   req.Reason,
		FromDate: req.FromDate,
		ToDate:   req.ToDate,
		State:    req.State,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"updated": true})
}
