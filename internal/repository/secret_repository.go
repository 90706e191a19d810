package repository

import (
	"context"
	"errors"
	"time"

	"hrgate-backend/internal/db"

	"github.com/jackc/pgx/v5"
)

// SecretRepository is a key-value store for short-lived secrets (reset
// codes). Values are stored hashed; expired keys read as absent.
// Concurrent writers are last-writer-wins.
type SecretRepository struct {
	DB *db.Postgres
}

func (r SecretRepository) Set(ctx context.Context, key, valueHash string, ttl time.Duration) error {
	_, err := r.DB.Pool.Exec(ctx, `
		INSERT INTO secrets (key, value_hash, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key)
		DO UPDATE SET value_hash = EXCLUDED.value_hash, expires_at = EXCLUDED.expires_at
	`, key, valueHash, time.Now().UTC().Add(ttl))
	return err
}

func (r SecretRepository) Get(ctx context.Context, key string) (string, error) {
	row := r.DB.Pool.QueryRow(ctx, `
		SELECT value_hash
		FROM secrets
		WHERE key = $1 AND expires_at > now()
	`, key)
	var hash string
	if err := row.Scan(&hash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return hash, nil
}

func (r SecretRepository) Delete(ctx context.Context, key string) error {
	_, err := r.DB.Pool.Exec(ctx, `DELETE FROM secrets WHERE key = $1`, key)
	return err
}
