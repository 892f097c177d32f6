package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avetra/identity/internal/domain/repository"
	"github.com/avetra/identity/internal/domain/user"
)

const uniqueViolation = "23505"

// UserRepository persists the User aggregate. Save writes the user row and
// upserts identities and sessions in one transaction, guarded by an
// optimistic version check.
type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `id, email, first_name, last_name, role, is_active, is_email_verified,
	is_anonymous, banned, ban_reason, ban_expires, image, anonymous_account_id,
	last_login_at, created_at, updated_at, version`

func (r *UserRepository) Save(ctx context.Context, u *user.User) error {
	rec := u.Record()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var email any
	if rec.Email != "" {
		email = rec.Email
	}

	if rec.Version == 0 {
		_, err = tx.Exec(ctx, `
			INSERT INTO users (`+userColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, 1)
		`, rec.ID, email, rec.FirstName, rec.LastName, rec.Role, rec.IsActive, rec.IsEmailVerified,
			rec.IsAnonymous, rec.Banned, rec.BanReason, rec.BanExpires, rec.Image, rec.AnonymousAccountID,
			rec.LastLoginAt, rec.CreatedAt, rec.UpdatedAt)
		if err != nil {
			return translateErr(err)
		}
	} else {
		res, err := tx.Exec(ctx, `
			UPDATE users SET
				email = $2, first_name = $3, last_name = $4, role = $5, is_active = $6,
				is_email_verified = $7, is_anonymous = $8, banned = $9, ban_reason = $10,
				ban_expires = $11, image = $12, anonymous_account_id = $13, last_login_at = $14,
				updated_at = $15, version = version + 1
			WHERE id = $1 AND version = $16
		`, rec.ID, email, rec.FirstName, rec.LastName, rec.Role, rec.IsActive,
			rec.IsEmailVerified, rec.IsAnonymous, rec.Banned, rec.BanReason,
			rec.BanExpires, rec.Image, rec.AnonymousAccountID, rec.LastLoginAt,
			rec.UpdatedAt, rec.Version)
		if err != nil {
			return translateErr(err)
		}
		if res.RowsAffected() == 0 {
			// Concurrently modified or deleted since load.
			return repository.ErrConflict
		}
	}

	for _, ir := range rec.Identities {
		_, err = tx.Exec(ctx, `
			INSERT INTO identities (id, user_id, provider, provider_user_id, email, name, scopes,
				access_token, refresh_token, token_expires_at, password_hash, removed, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			ON CONFLICT (id) DO UPDATE SET
				email = EXCLUDED.email, name = EXCLUDED.name, scopes = EXCLUDED.scopes,
				access_token = EXCLUDED.access_token, refresh_token = EXCLUDED.refresh_token,
				token_expires_at = EXCLUDED.token_expires_at, password_hash = EXCLUDED.password_hash,
				removed = EXCLUDED.removed, updated_at = EXCLUDED.updated_at
		`, ir.ID, ir.UserID, ir.Provider, ir.ProviderUserID, ir.Email, ir.Name, ir.Scopes,
			ir.AccessToken, ir.RefreshToken, ir.TokenExpiresAt, ir.PasswordHash, ir.Removed,
			ir.CreatedAt, ir.UpdatedAt)
		if err != nil {
			return translateErr(err)
		}
	}

	for _, sr := range rec.Sessions {
		_, err = tx.Exec(ctx, `
			INSERT INTO sessions (id, user_id, token, ip_address, user_agent, impersonated_by,
				expires_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO UPDATE SET
				expires_at = EXCLUDED.expires_at, updated_at = EXCLUDED.updated_at
		`, sr.ID, sr.UserID, sr.Token, sr.IPAddress, sr.UserAgent, sr.ImpersonatedBy,
			sr.ExpiresAt, sr.CreatedAt, sr.UpdatedAt)
		if err != nil {
			return translateErr(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	u.MarkPersisted()
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	return r.load(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email user.Email) (*user.User, error) {
	return r.load(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email.String())
}

func (r *UserRepository) FindBySessionID(ctx context.Context, sessionID uuid.UUID) (*user.User, error) {
	return r.load(ctx, `
		SELECT `+prefixed(userColumns, "u.")+`
		FROM users u JOIN sessions s ON s.user_id = u.id
		WHERE s.id = $1`, sessionID)
}

func (r *UserRepository) FindByIdentityID(ctx context.Context, identityID uuid.UUID) (*user.User, error) {
	return r.load(ctx, `
		SELECT `+prefixed(userColumns, "u.")+`
		FROM users u JOIN identities i ON i.user_id = u.id
		WHERE i.id = $1`, identityID)
}

func (r *UserRepository) FindByProviderIdentity(ctx context.Context, provider user.Provider, providerUserID string) (*user.User, error) {
	return r.load(ctx, `
		SELECT `+prefixed(userColumns, "u.")+`
		FROM users u JOIN identities i ON i.user_id = u.id
		WHERE i.provider = $1 AND i.provider_user_id = $2 AND NOT i.removed`,
		string(provider), providerUserID)
}

func (r *UserRepository) EmailExists(ctx context.Context, email user.Email, excludeUserID *uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM users
			WHERE email = $1 AND ($2::uuid IS NULL OR id <> $2)
		)`, email.String(), excludeUserID).Scan(&exists)
	return exists, err
}

func (r *UserRepository) load(ctx context.Context, query string, args ...any) (*user.User, error) {
	rec, err := r.scanUser(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if rec.Identities, err = r.loadIdentities(ctx, rec.ID); err != nil {
		return nil, err
	}
	if rec.Sessions, err = r.loadSessions(ctx, rec.ID); err != nil {
		return nil, err
	}
	return user.Reconstitute(rec), nil
}

func (r *UserRepository) scanUser(ctx context.Context, query string, args ...any) (user.UserRecord, error) {
	var rec user.UserRecord
	var email *string
	row := r.pool.QueryRow(ctx, query, args...)
	err := row.Scan(&rec.ID, &email, &rec.FirstName, &rec.LastName, &rec.Role, &rec.IsActive,
		&rec.IsEmailVerified, &rec.IsAnonymous, &rec.Banned, &rec.BanReason, &rec.BanExpires,
		&rec.Image, &rec.AnonymousAccountID, &rec.LastLoginAt, &rec.CreatedAt, &rec.UpdatedAt,
		&rec.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return rec, repository.ErrNotFound
	}
	if err != nil {
		return rec, err
	}
	if email != nil {
		rec.Email = *email
	}
	return rec, nil
}

func (r *UserRepository) loadIdentities(ctx context.Context, userID uuid.UUID) ([]user.IdentityRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, provider, provider_user_id, email, name, scopes, access_token,
			refresh_token, token_expires_at, password_hash, removed, created_at, updated_at
		FROM identities WHERE user_id = $1 ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []user.IdentityRecord
	for rows.Next() {
		var ir user.IdentityRecord
		if err := rows.Scan(&ir.ID, &ir.UserID, &ir.Provider, &ir.ProviderUserID, &ir.Email,
			&ir.Name, &ir.Scopes, &ir.AccessToken, &ir.RefreshToken, &ir.TokenExpiresAt,
			&ir.PasswordHash, &ir.Removed, &ir.CreatedAt, &ir.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, ir)
	}
	return out, rows.Err()
}

func (r *UserRepository) loadSessions(ctx context.Context, userID uuid.UUID) ([]user.SessionRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, token, ip_address, user_agent, impersonated_by, expires_at, created_at, updated_at
		FROM sessions WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []user.SessionRecord
	for rows.Next() {
		var sr user.SessionRecord
		if err := rows.Scan(&sr.ID, &sr.UserID, &sr.Token, &sr.IPAddress, &sr.UserAgent,
			&sr.ImpersonatedBy, &sr.ExpiresAt, &sr.CreatedAt, &sr.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, sr)
	}
	return out, rows.Err()
}

// prefixed qualifies each column in a comma-separated list with a table
// alias, for use in join queries.
func prefixed(columns, alias string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func translateErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return repository.ErrConflict
	}
	return err
}

var _ repository.UserRepository = (*UserRepository)(nil)
