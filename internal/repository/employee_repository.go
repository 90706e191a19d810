package repository

import (
	"context"
	"fmt"

	"hrgate-backend/internal/domain"
	"hrgate-backend/internal/erp"
	"hrgate-backend/internal/ports"
)

const (
	modelEmployee = "hr.employee"
	modelUsers    = "res.users"
)

var employeeFields = []string{"name", "user_id", "work_email"}

type EmployeeRepository struct {
	RPC ports.RPC
}

func (r EmployeeRepository) decode(rec erp.Record) *domain.Employee {
	e := &domain.Employee{
		ID:        recInt64(rec, "id"),
		Name:      recString(rec, "name"),
		WorkEmail: recString(rec, "work_email"),
	}
	if uid, ok := recRefID(rec, "user_id"); ok {
		e.UserID = uid
	}
	return e
}

func (r EmployeeRepository) GetByUserID(ctx context.Context, userID int64) (*domain.Employee, error) {
	records, err := r.RPC.SearchRead(ctx, erp.Identity{}, modelEmployee,
		[]any{[]any{"user_id", "=", userID}}, employeeFields, 1, nil)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return r.decode(records[0]), nil
}

func (r EmployeeRepository) GetByID(ctx context.Context, id int64) (*domain.Employee, error) {
	records, err := r.RPC.Read(ctx, erp.Identity{}, modelEmployee, []int64{id}, employeeFields)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return r.decode(records[0]), nil
}

// GetUserByLogin resolves an ERP user by login (email).
func (r EmployeeRepository) GetUserByLogin(ctx context.Context, login string) (id int64, name string, err error) {
	records, err := r.RPC.SearchRead(ctx, erp.Identity{}, modelUsers,
		[]any{[]any{"login", "=", login}}, []string{"name", "login", "partner_id"}, 1, nil)
	if err != nil {
		return 0, "", err
	}
	if len(records) == 0 {
		return 0, "", ErrNotFound
	}
	return recInt64(records[0], "id"), recString(records[0], "name"), nil
}

// ResolveClientID derives the tenant scope from the authenticated user's
// linked partner identity. Every tenant-scoped read and write filters by it.
func (r EmployeeRepository) ResolveClientID(ctx context.Context, userID int64) (int64, error) {
	records, err := r.RPC.Read(ctx, erp.Identity{}, modelUsers, []int64{userID}, []string{"partner_id"})
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, ErrNotFound
	}
	partnerID, ok := recRefID(records[0], "partner_id")
	if !ok {
		return 0, fmt.Errorf("user %d has no linked partner", userID)
	}
	return partnerID, nil
}

// ListForClient returns the tenant's employees.
func (r EmployeeRepository) ListForClient(ctx context.Context, clientID int64) ([]domain.Employee, error) {
	records, err := r.RPC.SearchRead(ctx, erp.Identity{}, modelEmployee,
		[]any{[]any{"client_id", "=", clientID}}, employeeFields, 0, nil)
	if err != nil {
		return nil, err
	}
	items := make([]domain.Employee, 0, len(records))
	for _, rec := range records {
		items = append(items, *r.decode(rec))
	}
	return items, nil
}

// SetUserPassword updates the ERP user's password (reset flow).
func (r EmployeeRepository) SetUserPassword(ctx context.Context, userID int64, password string) error {
	return r.RPC.Write(ctx, erp.Identity{}, modelUsers, map[string]any{"password": password}, userID)
}
