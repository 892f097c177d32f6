// Package application orchestrates one use case per call against a single
// User aggregate. Handlers here own timeouts and collaborator wiring; every
// invariant check lives inside the aggregate.
package application

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/storage"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/avetra/identity/config"
	"github.com/avetra/identity/internal/domain/repository"
	"github.com/avetra/identity/internal/domain/user"
	"github.com/avetra/identity/internal/infrastructure/rediscache"
	"github.com/avetra/identity/pkg/helpers"
)

// Application-level errors. Domain errors pass through untranslated;
// infrastructure failures keep their own types and are retryable.
var (
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// Bounded timeouts for the CPU-bound hash step and the persistence call.
// A timeout surfaces as context.DeadlineExceeded, never as a domain error.
const (
	hashTimeout    = 5 * time.Second
	persistTimeout = 5 * time.Second
)

type Deps struct {
	Users      repository.UserRepository
	Sessions   repository.SessionRepository
	Identities repository.IdentityRepository

	Cache  *rediscache.SessionCache
	Redis  *redis.Client
	Logger *logrus.Logger
	JWT    *helpers.JWTManager

	// Events publishes drained domain events; Email enqueues mail jobs for
	// the worker. Both are best-effort.
	Events *helpers.RabbitPublisher
	Email  *helpers.RabbitPublisher

	GCS          *storage.Client
	GCSBucket    string
	ES           *elasticsearch.Client
	ESUsersIndex string

	Cfg *config.Config
}

type Service struct {
	Deps
}

func NewService(d Deps) *Service {
	return &Service{Deps: d}
}

// hashPassword runs the slow hash off the calling goroutine so the bounded
// timeout actually applies.
func (s *Service) hashPassword(ctx context.Context, p user.PlainPassword) (user.Password, error) {
	ctx, cancel := context.WithTimeout(ctx, hashTimeout)
	defer cancel()

	type result struct {
		pw  user.Password
		err error
	}
	ch := make(chan result, 1)
	go func() {
		pw, err := p.Hash()
		ch <- result{pw: pw, err: err}
	}()
	select {
	case <-ctx.Done():
		return user.Password{}, ctx.Err()
	case r := <-ch:
		return r.pw, r.err
	}
}

// save persists the aggregate under the persistence timeout and then drains
// and publishes its domain events.
func (s *Service) save(ctx context.Context, u *user.User) error {
	sctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()
	if err := s.Users.Save(sctx, u); err != nil {
		return err
	}
	s.publishEvents(ctx, u.PullEvents())
	return nil
}

type eventEnvelope struct {
	Name    string     `json:"name"`
	At      time.Time  `json:"at"`
	Payload user.Event `json:"payload"`
}

func (s *Service) publishEvents(ctx context.Context, events []user.Event) {
	if s.Events == nil || len(events) == 0 {
		return
	}
	for _, e := range events {
		env := eventEnvelope{Name: e.EventName(), At: e.OccurredAt(), Payload: e}
		if err := s.Events.PublishJSON(ctx, env); err != nil && s.Logger != nil {
			s.Logger.WithError(err).WithField("event", e.EventName()).Warn("publish domain event failed")
		}
	}
}

// dropSessionCache removes the cache entries of every terminated session so
// the advisory cache cannot outlive a revocation.
func (s *Service) dropSessionCache(ctx context.Context, u *user.User) {
	if s.Cache == nil {
		return
	}
	for _, sess := range u.Sessions() {
		if !sess.IsExpired() {
			continue
		}
		if err := s.Cache.Delete(ctx, sess.ID()); err != nil && s.Logger != nil {
			s.Logger.WithError(err).WithField("session_id", sess.ID()).Warn("session cache delete failed")
		}
	}
}

func (s *Service) loadUser(ctx context.Context, id uuid.UUID) (*user.User, error) {
	u, err := s.Users.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return u, err
}
