package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"hrgate-backend/internal/ports"

	"github.com/go-chi/chi/v5"
)

// HealthHandler probes the local store and the ERP endpoint.
type HealthHandler struct {
	DB  ports.HealthChecker
	ERP ports.HealthChecker
}

func (h HealthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.handleHealth)
}

func (h HealthHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	db := "ok"
	erp := "ok"
	if err := h.DB.Health(ctx); err != nil {
		db = "unreachable"
		status = "degraded"
	}
	if err := h.ERP.Health(ctx); err != nil {
		erp = "unreachable"
		status = "degraded"
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": status,
		"db":     db,
		"erp":    erp,
	})
}
