// Package repository declares the persistence ports consumed by the domain
// and application layers. Implementations live under
// internal/infrastructure.
package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/avetra/identity/internal/domain/user"
)

var (
	// ErrNotFound is returned when no row matches the lookup.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when an optimistic concurrency check fails or
	// a unique constraint is violated. Retryable by the caller; never mapped
	// to a domain error.
	ErrConflict = errors.New("conflicting write detected")
)

// UserRepository persists the User aggregate as one transactional unit:
// Save writes the user row plus its identities and sessions atomically and
// enforces the version check.
type UserRepository interface {
	Save(ctx context.Context, u *user.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*user.User, error)
	FindByEmail(ctx context.Context, email user.Email) (*user.User, error)
	FindBySessionID(ctx context.Context, sessionID uuid.UUID) (*user.User, error)
	FindByIdentityID(ctx context.Context, identityID uuid.UUID) (*user.User, error)
	FindByProviderIdentity(ctx context.Context, provider user.Provider, providerUserID string) (*user.User, error)
	EmailExists(ctx context.Context, email user.Email, excludeUserID *uuid.UUID) (bool, error)
}

// IdentityRepository covers identity maintenance outside aggregate saves.
type IdentityRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (user.IdentityRecord, error)
	DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error)
	// DeleteRemoved purges identities that were logically unlinked longer
	// than the retention window ago.
	DeleteRemoved(ctx context.Context) (int64, error)
}

// SessionRepository covers bulk session maintenance used by the sweeper and
// logout-everywhere flows.
type SessionRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (user.SessionRecord, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]user.SessionRecord, error)
	DeleteExpired(ctx context.Context) (int64, error)
	DeleteByUser(ctx context.Context, userID uuid.UUID, exceptSessionID *uuid.UUID) (int64, error)
}
