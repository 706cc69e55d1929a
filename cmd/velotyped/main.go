// Command velotyped runs the VeloType match server: cobra root command
// plus serve/migrate/revoke subcommands, grounded on the teacher's
// cmd/cryptorun/main.go (cobra root, zerolog console writer, TTY
// detection) and cmd/test_server/main.go (signal-driven graceful
// shutdown).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/velotype/velotype/internal/config"
)

const version = "v0.1.0"

func main() {
	configureLogging()

	rootCmd := &cobra.Command{
		Use:     "velotyped",
		Short:   "VeloType ranked-match server",
		Version: version,
	}
	rootCmd.PersistentFlags().String("config", "", "path to a YAML config file (optional; env vars override)")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newRevokeCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// configureLogging picks a human console writer when attached to a TTY
// (local development) and structured JSON otherwise (the usual
// container/systemd deployment), the same branch the teacher's CLI makes
// for its own interactive-vs-automation split.
func configureLogging() {
	zerolog.TimeFieldFormat = time.RFC3339
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func loadConfig(cmd *cobra.Command) (*config.AppConfig, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

func waitForSignal(ctx context.Context) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}
}

func fatalf(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}
