package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"storyforest/api/internal/config"
	"storyforest/api/internal/logger"
	"storyforest/api/internal/store"
)

var (
	cfg config.Config
	log *slog.Logger

	rootCmd = &cobra.Command{
		Use:           "storyforest-api",
		Short:         "Branching story API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg = config.Load()
			log = logger.New(logger.Config{
				Format:      cfg.LogFormat,
				Environment: cfg.Environment,
				Level:       logger.ParseLevel(cfg.LogLevel),
				AddSource:   cfg.Environment != "production",
			})
			slog.SetDefault(log)
		},
	}
)

func main() {
	rootCmd.AddCommand(serveCmd, migrateCmd, tokenCmd)
	rootCmd.RunE = serveCmd.RunE

	if err := rootCmd.Execute(); err != nil {
		if log != nil {
			log.Error("command failed", "error", err)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

// openDB connects to Postgres; the caller closes the handle.
func openDB(ctx context.Context) (*sql.DB, error) {
	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	return db, nil
}
