package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/agromart/agromart-backend/internal/auth"
	"github.com/agromart/agromart-backend/internal/catalog"
	"github.com/agromart/agromart-backend/internal/users"
	"github.com/agromart/agromart-backend/pkg/config"
	"github.com/agromart/agromart-backend/pkg/db"
	"github.com/agromart/agromart-backend/pkg/logger"
	"github.com/agromart/agromart-backend/pkg/migrate"
	"github.com/agromart/agromart-backend/pkg/security"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "seed"})

	_ = godotenv.Load()

	file := flag.String("file", "", "catalog seed file (defaults to AGROMART_SEED_CATALOG_FILE)")
	skipAdmin := flag.Bool("skip-admin", false, "do not create or promote the admin account")
	flag.Parse()

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "seed",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	path := *file
	if path == "" {
		path = cfg.Seed.CatalogFile
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"file": path,
	})

	seedFile, err := catalog.LoadFile(path)
	requireResource(ctx, logg, "seed file", err)

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	requireResource(ctx, logg, "dev migrations", migrate.MaybeRunDev(ctx, cfg, logg, dbClient))

	seeder, err := catalog.NewSeeder(dbClient, logg)
	requireResource(ctx, logg, "seeder", err)

	result, err := seeder.Apply(ctx, seedFile)
	requireResource(ctx, logg, "catalog seed", err)
	logg.Info(logg.WithFields(ctx, map[string]any{
		"categories_created": result.CategoriesCreated,
		"categories_updated": result.CategoriesUpdated,
		"products_created":   result.ProductsCreated,
		"products_updated":   result.ProductsUpdated,
		"coupons_created":    result.CouponsCreated,
		"coupons_updated":    result.CouponsUpdated,
	}), "catalog seeded")

	if *skipAdmin || seedFile.Admin == nil {
		return
	}

	bootstrapper, err := auth.NewAdminBootstrapper(users.NewRepository(dbClient.DB()), security.NewHasher(cfg.Password))
	requireResource(ctx, logg, "admin bootstrapper", err)

	admin, created, err := bootstrapper.Ensure(ctx, auth.AdminAccount{
		Name:     seedFile.Admin.Name,
		Email:    seedFile.Admin.Email,
		Password: seedFile.Admin.Password,
	})
	requireResource(ctx, logg, "admin account", err)
	logg.Info(logg.WithFields(ctx, map[string]any{
		"admin_email": admin.Email,
		"created":     created,
	}), "admin account ready")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
