// Seeds a local admin account through the domain factories so the seeded
// row satisfies every aggregate invariant.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/avetra/identity/config"
	"github.com/avetra/identity/internal/domain/repository"
	"github.com/avetra/identity/internal/domain/user"
	pginfra "github.com/avetra/identity/internal/infrastructure/postgres"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx := context.Background()
	pool, err := pginfra.NewPool(ctx, cfg.PostgresDSN(), cfg.DBMaxConns, cfg.DBMinConns, cfg.DBMaxConnLife)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	users := pginfra.NewUserRepository(pool)

	email := "admin@example.com"
	password := "Admin123!"

	em, err := user.NewEmail(email)
	if err != nil {
		log.Fatalf("bad seed email: %v", err)
	}
	if _, err := users.FindByEmail(ctx, em); err == nil {
		fmt.Printf("admin user already present: %s\n", email)
		return
	} else if !errors.Is(err, repository.ErrNotFound) {
		log.Fatalf("lookup failed: %v", err)
	}

	plain, err := user.NewPassword(password)
	if err != nil {
		log.Fatalf("bad seed password: %v", err)
	}
	hashed, err := plain.Hash()
	if err != nil {
		log.Fatalf("hash failed: %v", err)
	}

	u, err := user.New(uuid.New(), email, "Admin", "", user.RoleAdmin)
	if err != nil {
		log.Fatalf("create user failed: %v", err)
	}
	if _, err := u.CreateIdentity(uuid.New(), user.ProviderCredential, em.String(), user.IdentityOptions{
		Email:    em.String(),
		Password: &hashed,
	}); err != nil {
		log.Fatalf("create identity failed: %v", err)
	}
	u.VerifyEmail()

	if err := users.Save(ctx, u); err != nil {
		log.Fatalf("save failed: %v", err)
	}
	fmt.Printf("seeded admin: id=%s email=%s password=%s\n", u.ID(), email, password)
}
