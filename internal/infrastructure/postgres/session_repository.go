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

// SessionRepository handles bulk session maintenance. Session creation and
// revocation go through the aggregate; this covers listing and hard deletes.
type SessionRepository struct {
	pool *pgxpool.Pool
}

func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

const sessionColumns = `id, user_id, token, ip_address, user_agent, impersonated_by, expires_at, created_at, updated_at`

func (r *SessionRepository) FindByID(ctx context.Context, id uuid.UUID) (user.SessionRecord, error) {
	var rec user.SessionRecord
	row := r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	err := row.Scan(&rec.ID, &rec.UserID, &rec.Token, &rec.IPAddress, &rec.UserAgent,
		&rec.ImpersonatedBy, &rec.ExpiresAt, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return rec, repository.ErrNotFound
	}
	return rec, err
}

func (r *SessionRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]user.SessionRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []user.SessionRecord
	for rows.Next() {
		var rec user.SessionRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Token, &rec.IPAddress, &rec.UserAgent,
			&rec.ImpersonatedBy, &rec.ExpiresAt, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DeleteExpired purges sessions whose expiry has passed. Run periodically by
// the sweeper.
func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= now()`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected(), nil
}

func (r *SessionRepository) DeleteByUser(ctx context.Context, userID uuid.UUID, exceptSessionID *uuid.UUID) (int64, error) {
	res, err := r.pool.Exec(ctx, `
		DELETE FROM sessions
		WHERE user_id = $1 AND ($2::uuid IS NULL OR id <> $2)
	`, userID, exceptSessionID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected(), nil
}

var _ repository.SessionRepository = (*SessionRepository)(nil)
