package main

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/velotype/velotype/internal/auth"
	"github.com/velotype/velotype/internal/config"
	"github.com/velotype/velotype/internal/daily"
	"github.com/velotype/velotype/internal/httpapi"
	"github.com/velotype/velotype/internal/match"
	"github.com/velotype/velotype/internal/matchmaking"
	"github.com/velotype/velotype/internal/storage"
	"github.com/velotype/velotype/internal/storage/postgres"
	"github.com/velotype/velotype/internal/telemetry"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the matchmaking and match-orchestration server",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fatalf("load config: %w", err)
	}

	ctx := context.Background()

	gateway, closeGateway, err := openGateway(ctx, cfg)
	if err != nil {
		return fatalf("open storage: %w", err)
	}
	defer closeGateway()

	revocation, err := auth.NewRevocationStore(cfg.RevocationStorePath)
	if err != nil {
		return fatalf("open revocation store: %w", err)
	}
	verifier := auth.NewVerifier(cfg.AuthSecret, revocation)

	telem := telemetry.New()
	manager := match.NewManager(gateway, telem)
	mm := matchmaking.NewService()

	dailySvc, err := daily.NewService(gateway, cfg.DailyResetTimezone)
	if err != nil {
		return fatalf("build daily service: %w", err)
	}

	serverCfg := httpapi.DefaultServerConfig()
	serverCfg.Port = cfg.Port
	serverCfg.AllowedOrigin = cfg.CORSOrigin

	srv := httpapi.NewServer(serverCfg, verifier, mm, manager, gateway, telem, dailySvc)

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			serverErr <- err
		}
	}()
	log.Info().Int("port", cfg.Port).Str("env", cfg.Environment).Msg("velotyped: serving")

	sigCtx, cancel := context.WithCancel(ctx)
	go func() { waitForSignal(sigCtx); cancel() }()

	select {
	case <-sigCtx.Done():
		log.Info().Msg("velotyped: shutdown signal received")
	case err := <-serverErr:
		return fatalf("server error: %w", err)
	}

	return gracefulShutdown(srv, manager)
}

// gracefulShutdown stops the HTTP/WS listener first (no new connections
// or queue joins are admitted), then gives in-progress matches up to
// ReconnectGraceMs to finish naturally before closing whatever rooms
// remain — an in-progress match that outlives the drain window is
// treated the same as one orphaned by a hard restart (spec §5: "treated
// as abandoned").
func gracefulShutdown(srv *httpapi.Server, manager *match.Manager) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("velotyped: http shutdown error")
	}

	deadline := time.Now().Add(match.ReconnectGraceMs * time.Millisecond)
	for manager.Count() > 0 && time.Now().Before(deadline) {
		time.Sleep(200 * time.Millisecond)
	}

	if remaining := manager.Count(); remaining > 0 {
		log.Warn().Int("rooms", remaining).Msg("velotyped: closing unfinished matches at shutdown deadline")
		manager.CloseAll()
	}

	log.Info().Msg("velotyped: shutdown complete")
	return nil
}

func openGateway(ctx context.Context, cfg *config.AppConfig) (storage.Gateway, func(), error) {
	if !cfg.StorageEnabled() {
		log.Warn().Msg("velotyped: DATABASE_URL not set, using in-memory storage (no persistence across restarts)")
		return storage.NewMemoryGateway(), func() {}, nil
	}

	pgCfg := postgres.DefaultConfig()
	pgCfg.DSN = cfg.DatabaseURL
	pgCfg.QueryTimeout = cfg.QueryTimeout

	gw, err := postgres.Open(ctx, pgCfg)
	if err != nil {
		return nil, nil, err
	}
	if err := gw.Migrate(ctx); err != nil {
		gw.Close()
		return nil, nil, fatalf("migrate schema: %w", err)
	}
	return gw, func() { gw.Close() }, nil
}
