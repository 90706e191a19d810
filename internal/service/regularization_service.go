package service

import (
	"context"
	"errors"

	"hrgate-backend/internal/apperr"
	"hrgate-backend/internal/domain"
	"hrgate-backend/internal/erp"
	"hrgate-backend/internal/repository"
)

// RegularizationStore is the request persistence surface.
type RegularizationStore interface {
	ExistsTuple(ctx context.Context, employeeID int64, fromDate, toDate string, clientID int64) (bool, error)
	Create(ctx context.Context, as erp.Identity, p repository.CreateRegularizationParams) (int64, error)
	ListForClient(ctx context.Context, clientID int64) ([]domain.RegularizationRequest, error)
	GetByID(ctx context.Context, id int64) (*domain.RegularizationRequest, error)
	Update(ctx context.Context, id int64, values map[string]any) error
}

// RegularizationService handles after-the-fact attendance correction
// requests, scoped to the tenant.
type RegularizationService struct {
	Store RegularizationStore
}

type CreateRegularizationInput struct {
	EmployeeID int64
	Reason     string
	FromDate   string
	ToDate     string
	CategoryID int64
	ClientID   int64
	As         erp.Identity
}

// Create files a new request in state "requested". An identical
// (employee, from, to, tenant) tuple is rejected as a duplicate.
func (s RegularizationService) Create(ctx context.Context, in CreateRegularizationInput) (int64, error) {
	exists, err := s.Store.ExistsTuple(ctx, in.EmployeeID, in.FromDate, in.ToDate, in.ClientID)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, apperr.Duplicate("A regularization request for this period already exists")
	}
	return s.Store.Create(ctx, in.As, repository.CreateRegularizationParams{
		EmployeeID: in.EmployeeID,
		Reason:     in.Reason,
		FromDate:   in.FromDate,
		ToDate:     in.ToDate,
		CategoryID: in.CategoryID,
		ClientID:   in.ClientID,
	})
}

// List returns all of the tenant's requests.
func (s RegularizationService) List(ctx context.Context, clientID int64) ([]domain.RegularizationRequest, error) {
	return s.Store.ListForClient(ctx, clientID)
}

type UpdateRegularizationInput struct {
	ID       int64
	ClientID int64
	Reason   *string
	FromDate *string
	ToDate   *string
	State    *string
}

// Update merge-writes fields. The state field is closed: only transitions in
// the domain table are accepted, and the request must belong to the caller's
// tenant.
func (s RegularizationService) Update(ctx context.Context, in UpdateRegularizationInput) error {
	current, err := s.Store.GetByID(ctx, in.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("Regularization request not found")
		}
		return err
	}
	if current.ClientID != in.ClientID {
		return apperr.NotFound("Regularization request not found")
	}

	values := map[string]any{}
	if in.Reason != nil {
		values["reg_reason"] = *in.Reason
	}
	if in.FromDate != nil {
		values["from_date"] = *in.FromDate
	}
	if in.ToDate != nil {
		values["to_date"] = *in.ToDate
	}
	if in.State != nil {
		next := domain.RegularizationState(*in.State)
		if !next.Valid() {
			return apperr.Validation("Unknown state " + *in.State)
		}
		if !current.State.CanTransition(next) {
			return apperr.StateConflict("Cannot move request from " + string(current.State) + " to " + string(next))
		}
		values["state_select"] = string(next)
	}
	if len(values) == 0 {
		return apperr.Validation("No updatable fields supplied")
	}

	// Changing the period must not collide with another request's tuple.
	if in.FromDate != nil || in.ToDate != nil {
		from, to := current.FromDate, current.ToDate
		if in.FromDate != nil {
			from = *in.FromDate
		}
		if in.ToDate != nil {
			to = *in.ToDate
		}
		if from != current.FromDate || to != current.ToDate {
			exists, err := s.Store.ExistsTuple(ctx, current.EmployeeID, from, to, current.ClientID)
			if err != nil {
				return err
			}
			if exists {
				return apperr.Duplicate("A regularization request for this period already exists")
			}
		}
	}

	return s.Store.Update(ctx, in.ID, values)
}
