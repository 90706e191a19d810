package ports

import (
	"context"
	"encoding/json"

	"hrgate-backend/internal/erp"
)

// HealthChecker is used to probe dependencies.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// RPC is the ERP access surface the repositories consume.
type RPC interface {
	Authenticate(ctx context.Context) (int64, error)
	Login(ctx context.Context, login, password string) (int64, error)
	ExecuteKw(ctx context.Context, as erp.Identity, model, method string, args []any, kwargs map[string]any) (json.RawMessage, error)
	Search(ctx context.Context, as erp.Identity, model string, domain []any, fields []string, limit int) ([]erp.Record, error)
	Read(ctx context.Context, as erp.Identity, model string, ids []int64, fields []string) ([]erp.Record, error)
	SearchRead(ctx context.Context, as erp.Identity, model string, domain []any, fields []string, limit int, kwargs map[string]any) ([]erp.Record, error)
	SearchCount(ctx context.Context, as erp.Identity, model string, domain []any) (int64, error)
	Create(ctx context.Context, as erp.Identity, model string, values map[string]any, execCtx map[string]any) (int64, error)
	Write(ctx context.Context, as erp.Identity, model string, values map[string]any, ids ...int64) error
	Unlink(ctx context.Context, as erp.Identity, model string, ids ...int64) error
	CallMethod(ctx context.Context, as erp.Identity, model, method string, ids []int64, execCtx map[string]any) (json.RawMessage, error)
}
