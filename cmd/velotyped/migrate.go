package main

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/velotype/velotype/internal/storage/postgres"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the persistence schema idempotently and exit",
		RunE:  runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fatalf("load config: %w", err)
	}
	if !cfg.StorageEnabled() {
		return fatalf("DATABASE_URL is not configured")
	}

	ctx := context.Background()
	pgCfg := postgres.DefaultConfig()
	pgCfg.DSN = cfg.DatabaseURL
	pgCfg.QueryTimeout = cfg.QueryTimeout

	gw, err := postgres.Open(ctx, pgCfg)
	if err != nil {
		return fatalf("open database: %w", err)
	}
	defer gw.Close()

	if err := gw.Migrate(ctx); err != nil {
		return fatalf("apply schema: %w", err)
	}

	log.Info().Msg("velotyped: schema migrated")
	return nil
}
