package router

import (
	appuser "github.com/avetra/identity/internal/application"
	"github.com/avetra/identity/internal/container"
	pginfra "github.com/avetra/identity/internal/infrastructure/postgres"
	handlers "github.com/avetra/identity/internal/interface/http"
	"github.com/avetra/identity/internal/router/modules"
)

// InitModules builds the repositories, application service and handlers
// from the container singletons and registers every feature module.
// Called once during startup.
func InitModules(r *Registry) {
	cfg := container.GetConfig()
	pool := container.GetPGPool()

	users := pginfra.NewUserRepository(pool)
	sessions := pginfra.NewSessionRepository(pool)
	identities := pginfra.NewIdentityRepository(pool)

	service := appuser.NewService(appuser.Deps{
		Users:      users,
		Sessions:   sessions,
		Identities: identities,

		Cache:  container.GetSessionCache(),
		Redis:  container.GetRedis(),
		Logger: container.GetLogger(),
		JWT:    container.GetJWT(),

		Events: container.GetEventPub(),
		Email:  container.GetEmailPub(),

		GCS:          container.GetGCS(),
		GCSBucket:    cfg.GCSBucket,
		ES:           container.GetES(),
		ESUsersIndex: cfg.ESUsersIndex,

		Cfg: cfg,
	})

	authHandler := handlers.NewAuthHandler(service, container.GetLogger(), cfg.CookieDomain, cfg.CookieSecure)
	userHandler := handlers.NewUserHandler(service, container.GetLogger())
	adminHandler := handlers.NewAdminHandler(service, container.GetLogger())

	r.Add(modules.NewAuthModule(authHandler, sessions))
	r.Add(modules.NewUserModule(userHandler, sessions))
	r.Add(modules.NewAdminModule(adminHandler, users, sessions))
	if cfg.DebugMetricsEnabled {
		r.Add(modules.NewDebugModule())
	}
}
