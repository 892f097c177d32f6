package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avetra/identity/internal/domain/repository"
	"github.com/avetra/identity/internal/domain/user"
)

// removedIdentityRetention is how long logically removed identities are kept
// before the sweeper purges them.
const removedIdentityRetention = "30 days"

type IdentityRepository struct {
	pool *pgxpool.Pool
}

func NewIdentityRepository(pool *pgxpool.Pool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

func (r *IdentityRepository) FindByID(ctx context.Context, id uuid.UUID) (user.IdentityRecord, error) {
	var rec user.IdentityRecord
	row := r.pool.QueryRow(ctx, `
		SELECT id, user_id, provider, provider_user_id, email, name, scopes, access_token,
			refresh_token, token_expires_at, password_hash, removed, created_at, updated_at
		FROM identities WHERE id = $1
	`, id)
	err := row.Scan(&rec.ID, &rec.UserID, &rec.Provider, &rec.ProviderUserID, &rec.Email,
		&rec.Name, &rec.Scopes, &rec.AccessToken, &rec.RefreshToken, &rec.TokenExpiresAt,
		&rec.PasswordHash, &rec.Removed, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return rec, repository.ErrNotFound
	}
	return rec, err
}

func (r *IdentityRepository) DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	res, err := r.pool.Exec(ctx, `DELETE FROM identities WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected(), nil
}

func (r *IdentityRepository) DeleteRemoved(ctx context.Context) (int64, error) {
	res, err := r.pool.Exec(ctx, `
		DELETE FROM identities
		WHERE removed AND updated_at < now() - $1::interval
	`, removedIdentityRetention)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected(), nil
}

var _ repository.IdentityRepository = (*IdentityRepository)(nil)
