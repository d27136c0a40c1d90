package main

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"storefront_back_end/internal/config"
	"storefront_back_end/internal/database"
	"storefront_back_end/internal/logger"
	"storefront_back_end/internal/models"
	"storefront_back_end/internal/repository"
	"storefront_back_end/internal/utils"
)

// seed : rôles, permissions et compte admin initial (ADMIN_EMAIL / ADMIN_PASSWORD)
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Configuration invalide: %v", err)
	}
	zl, err := logger.New(cfg.App.Env)
	if err != nil {
		log.Fatalf("❌ Impossible d'initialiser le logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := database.ConnectPostgres(ctx, cfg.Postgres, zl)
	if err != nil {
		zl.Fatal("❌ Connexion Postgres impossible", zap.Error(err))
	}
	defer pool.Close()

	err = repository.RunInTx(ctx, pool, func(tx pgx.Tx) error {
		grants := repository.NewGrantRepository(tx)
		if err := grants.SeedGrants(ctx); err != nil {
			return err
		}
		return seedAdmin(ctx, repository.NewUserRepository(tx), grants, zl)
	})
	if err != nil {
		zl.Fatal("❌ Seed échoué", zap.Error(err))
	}
	zl.Info("✅ Seed terminé",
		zap.Int("roles", len(models.DefaultRoles)),
		zap.Int("permissions", len(models.DefaultPermissions)))
}

func seedAdmin(ctx context.Context, users *repository.UserRepository, grants *repository.GrantRepository, zl *zap.Logger) error {
	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		zl.Warn("⚠️ ADMIN_EMAIL / ADMIN_PASSWORD absents, pas de compte admin")
		return nil
	}

	admin, err := users.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		hash, err := utils.HashPassword(password)
		if err != nil {
			return err
		}
		admin, err = users.Create(ctx, models.User{Email: email, Name: "Administrator", PasswordHash: hash})
		if err != nil {
			return err
		}
		zl.Info("👤 Compte admin créé", zap.String("email", logger.MaskEmail(email)))
	case err != nil:
		return err
	}

	for _, role := range []string{models.RoleAdmin, models.RoleSeller, models.RoleCustomer} {
		if err := grants.AssignRoleByName(ctx, admin.ID, role); err != nil {
			return err
		}
	}
	return nil
}
