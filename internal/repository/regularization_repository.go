package repository

import (
	"context"

	"hrgate-backend/internal/domain"
	"hrgate-backend/internal/erp"
	"hrgate-backend/internal/ports"
)

const modelRegularization = "hr.attendance.regularization"

var regularizationFields = []string{
	"employee_id", "reg_reason", "from_date", "to_date",
	"reg_category", "state_select", "client_id",
}

type RegularizationRepository struct {
	RPC ports.RPC
}

func (r RegularizationRepository) decode(rec erp.Record) domain.RegularizationRequest {
	req := domain.RegularizationRequest{
		ID:       recInt64(rec, "id"),
		Reason:   recString(rec, "reg_reason"),
		FromDate: recString(rec, "from_date"),
		ToDate:   recString(rec, "to_date"),
		State:    domain.RegularizationState(recString(rec, "state_select")),
	}
	if id, ok := recRefID(rec, "employee_id"); ok {
		req.EmployeeID = id
	}
	if id, ok := recRefID(rec, "reg_category"); ok {
		req.CategoryID = id
	}
	if id, ok := recRefID(rec, "client_id"); ok {
		req.ClientID = id
	}
	return req
}

// ExistsTuple reports whether a request with the same
// (employee, from, to, tenant) tuple already exists.
func (r RegularizationRepository) ExistsTuple(ctx context.Context, employeeID int64, fromDate, toDate string, clientID int64) (bool, error) {
	count, err := r.RPC.SearchCount(ctx, erp.Identity{}, modelRegularization, []any{
		[]any{"employee_id", "=", employeeID},
		[]any{"from_date", "=", fromDate},
		[]any{"to_date", "=", toDate},
		[]any{"client_id", "=", clientID},
	})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

type CreateRegularizationParams struct {
	EmployeeID int64
	Reason     string
	FromDate   string
	ToDate     string
	CategoryID int64
	ClientID   int64
}

func (r RegularizationRepository) Create(ctx context.Context, as erp.Identity, p CreateRegularizationParams) (int64, error) {
	return r.RPC.Create(ctx, as, modelRegularization, map[string]any{
		"employee_id":  p.EmployeeID,
		"reg_reason":   p.Reason,
		"from_date":    p.FromDate,
		"to_date":      p.ToDate,
		"reg_category": p.CategoryID,
		"state_select": string(domain.RegularizationRequested),
		"client_id":    p.ClientID,
	}, nil)
}

// ListForClient returns every request in the tenant, unfiltered by employee
// or state.
func (r RegularizationRepository) ListForClient(ctx context.Context, clientID int64) ([]domain.RegularizationRequest, error) {
	records, err := r.RPC.SearchRead(ctx, erp.Identity{}, modelRegularization,
		[]any{[]any{"client_id", "=", clientID}}, regularizationFields, 0, nil)
	if err != nil {
		return nil, err
	}
	items := make([]domain.RegularizationRequest, 0, len(records))
	for _, rec := range records {
		items = append(items, r.decode(rec))
	}
	return items, nil
}

func (r RegularizationRepository) GetByID(ctx context.Context, id int64) (*domain.RegularizationRequest, error) {
	records, err := r.RPC.Read(ctx, erp.Identity{}, modelRegularization, []int64{id}, regularizationFields)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	req := r.decode(records[0])
	return &req, nil
}

func (r RegularizationRepository) Update(ctx context.Context, id int64, values map[string]any) error {
	return r.RPC.Write(ctx, erp.Identity{}, modelRegularization, values, id)
}
