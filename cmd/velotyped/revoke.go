package main

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/velotype/velotype/internal/auth"
)

func newRevokeCmd() *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "revoke <token>",
		Short: "Add a bearer token to the revocation store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return fatalf("load config: %w", err)
			}

			store, err := auth.NewRevocationStore(cfg.RevocationStorePath)
			if err != nil {
				return fatalf("open revocation store: %w", err)
			}

			if err := store.Revoke(args[0], time.Now().Add(ttl)); err != nil {
				return fatalf("revoke token: %w", err)
			}

			log.Info().Str("path", cfg.RevocationStorePath).Dur("ttl", ttl).Msg("velotyped: token revoked")
			return nil
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "how long the revocation entry is retained (should cover the token's own remaining lifetime)")
	return cmd
}
