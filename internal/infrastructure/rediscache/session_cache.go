// Package rediscache holds the advisory read-through session cache. The
// database-backed session expiry is the source of truth; everything here may
// be stale and callers must treat a miss as "ask the database".
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/avetra/identity/internal/domain/user"
)

func sessionKey(id uuid.UUID) string { return "session:" + id.String() }

type cachedSession struct {
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionCache caches session liveness for low-latency credential checks.
type SessionCache struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *SessionCache {
	return &SessionCache{rdb: rdb}
}

// Put stores the session keyed by id. The cache entry expires with the
// session itself, so stale entries age out on their own.
func (c *SessionCache) Put(ctx context.Context, rec user.SessionRecord) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	ttl := time.Until(rec.ExpiresAt)
	if ttl <= 0 {
		return c.Delete(ctx, rec.ID)
	}
	b, err := json.Marshal(cachedSession{UserID: rec.UserID.String(), ExpiresAt: rec.ExpiresAt})
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, sessionKey(rec.ID), b, ttl).Err()
}

// Lookup returns the cached owner of a live session. found=false means the
// cache has no opinion, not that the session is dead.
func (c *SessionCache) Lookup(ctx context.Context, sessionID uuid.UUID) (userID string, found bool, err error) {
	if c == nil || c.rdb == nil {
		return "", false, nil
	}
	b, err := c.rdb.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	var cs cachedSession
	if err := json.Unmarshal(b, &cs); err != nil {
		return "", false, err
	}
	if time.Now().After(cs.ExpiresAt) {
		return "", false, nil
	}
	return cs.UserID, true, nil
}

// Delete drops the cache entry. Deleting a missing key is a no-op.
func (c *SessionCache) Delete(ctx context.Context, sessionID uuid.UUID) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Del(ctx, sessionKey(sessionID)).Err()
}
