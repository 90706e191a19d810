package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"hrgate-backend/internal/domain"
	"hrgate-backend/internal/erp"
	"hrgate-backend/internal/repository"
	"hrgate-backend/internal/server/authctx"
	"hrgate-backend/internal/service"

	"github.com/go-chi/chi/v5"
)

type staticTenant struct{ id int64 }

func (s staticTenant) ResolveTenant(context.Context, int64) (int64, error) { return s.id, nil }

type stubRegStore struct {
	request *domain.RegularizationRequest
	exists  bool
}

func (s *stubRegStore) ExistsTuple(context.Context, int64, string, string, int64) (bool, error) {
	return s.exists, nil
}

func (s *stubRegStore) Create(context.Context, erp.Identity, repository.CreateRegularizationParams) (int64, error) {
	return 31, nil
}

func (s *stubRegStore) ListForClient(context.Context, int64) ([]domain.RegularizationRequest, error) {
	if s.request == nil {
		return nil, nil
	}
	return []domain.RegularizationRequest{*s.request}, nil
}

func (s *stubRegStore) GetByID(_ context.Context, id int64) (*domain.RegularizationRequest, error) {
	if s.request == nil || s.request.ID != id {
		return nil, repository.ErrNotFound
	}
	return s.request, nil
}

func (s *stubRegStore) Update(context.Context, int64, map[string]any) error { return nil }

func newRegularizationRouter(store *stubRegStore, tenantID int64) chi.Router {
	h := RegularizationHandler{
		Service: service.RegularizationService{Store: store},
		Tenants: staticTenant{id: tenantID},
	}
	r := chi.NewRouter()
	// Simulate the authenticated group.
	r.Group(func(pr chi.Router) {
		pr.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				ctx := authctx.WithCurrentUser(req.Context(), authctx.CurrentUser{ID: 42, Email: "asha@example.com"})
				next.ServeHTTP(w, req.WithContext(ctx))
			})
		})
		h.RegisterRoutes(pr)
	})
	return r
}

func TestRegularizationCreateEndpoint(t *testing.T) {
	r := newRegularizationRouter(&stubRegStore{}, 500)

	rec := postJSON(t, r, "/create/regularization",
		`{"employee_id":5,"reason":"forgot badge","from_date":"2024-03-10","to_date":"2024-03-11"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	resp := decodeEnvelope(t, rec)
	data := resp.Data.(map[string]any)
	if data["state"] != "requested" {
		t.Fatalf("state=%v", data["state"])
	}
}

func TestRegularizationCreateEndpointInvertedPeriod(t *testing.T) {
	r := newRegularizationRouter(&stubRegStore{}, 500)

	rec := postJSON(t, r, "/create/regularization",
		`{"employee_id":5,"reason":"x","from_date":"2024-03-12","to_date":"2024-03-11"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestRegularizationCreateEndpointDuplicate(t *testing.T) {
	r := newRegularizationRouter(&stubRegStore{exists: true}, 500)

	rec := postJSON(t, r, "/create/regularization",
		`{"employee_id":5,"reason":"x","from_date":"2024-03-10","to_date":"2024-03-11"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	resp := decodeEnvelope(t, rec)
	if resp.Error == nil || resp.Error.Status != "duplicate" {
		t.Fatalf("error=%+v", resp.Error)
	}
}

// A request belonging to another tenant reads as absent, not forbidden.
func TestRegularizationUpdateEndpointForeignTenant(t *testing.T) {
	store := &stubRegStore{request: &domain.RegularizationRequest{
		ID: 9, EmployeeID: 5, ClientID: 500, State: domain.RegularizationRequested,
	}}
	r := newRegularizationRouter(store, 999)

	req := httptest.NewRequest(http.MethodPut, "/update/regularization/9",
		strings.NewReader(`{"state":"approved"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestRegularizationUpdateEndpointApprove(t *testing.T) {
	store := &stubRegStore{request: &domain.RegularizationRequest{
		ID: 9, EmployeeID: 5, ClientID: 500, State: domain.RegularizationRequested,
	}}
	r := newRegularizationRouter(store, 500)

	req := httptest.NewRequest(http.MethodPut, "/update/regularization/9",
		strings.NewReader(`{"state":"approved"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
}
