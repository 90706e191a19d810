package repository

import (
	"context"
	"errors"
	"time"

	"hrgate-backend/internal/db"
	"hrgate-backend/internal/domain"

	"github.com/jackc/pgx/v5"
)

// TokenRepository is the gateway-local bearer token store. One active token
// per user name; the store is the sole authority on validity.
type TokenRepository struct {
	DB *db.Postgres
}

func (r TokenRepository) GetByToken(ctx context.Context, token string) (*domain.TokenRecord, error) {
	row := r.DB.Pool.QueryRow(ctx, `
		SELECT id, user_name, user_id, token, expiry
		FROM auth_tokens
		WHERE token = $1
	`, token)
	return scanToken(row)
}

func (r TokenRepository) GetByUserName(ctx context.Context, userName string) (*domain.TokenRecord, error) {
	row := r.DB.Pool.QueryRow(ctx, `
		SELECT id, user_name, user_id, token, expiry
		FROM auth_tokens
		WHERE user_name = $1
	`, userName)
	return scanToken(row)
}

// Upsert rotates the user's token row in place.
func (r TokenRepository) Upsert(ctx context.Context, userName string, userID int64, token string, expiry time.Time) (*domain.TokenRecord, error) {
	row := r.DB.Pool.QueryRow(ctx, `
		INSERT INTO auth_tokens (user_name, user_id, token, expiry)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_name)
		DO UPDATE SET user_id = EXCLUDED.user_id, token = EXCLUDED.token, expiry = EXCLUDED.expiry
		RETURNING id, user_name, user_id, token, expiry
	`, userName, userID, token, expiry)
	return scanToken(row)
}

func (r TokenRepository) Delete(ctx context.Context, token string) error {
	_, err := r.DB.Pool.Exec(ctx, `DELETE FROM auth_tokens WHERE token = $1`, token)
	return err
}

func scanToken(row pgx.Row) (*domain.TokenRecord, error) {
	var t domain.TokenRecord
	if err := row.Scan(&t.ID, &t.UserName, &t.UserID, &t.Token, &t.Expiry); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}
