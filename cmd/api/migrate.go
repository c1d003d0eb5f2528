package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"storyforest/api/internal/app"
	"storyforest/api/internal/store"
)

var (
	tokenTTL time.Duration

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
	}

	migrateUpCmd = &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			if err := store.ApplyMigrations(cmd.Context(), db, cfg.MigrationsDir); err != nil {
				return err
			}
			log.Info("migrations applied", "dir", cfg.MigrationsDir)
			return nil
		},
	}

	migrateDownCmd = &cobra.Command{
		Use:   "down",
		Short: "Roll back the latest applied migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			version, err := store.RollbackLast(cmd.Context(), db, cfg.MigrationsDir)
			if err != nil {
				return err
			}
			if version == "" {
				log.Info("nothing to roll back")
				return nil
			}
			log.Info("migration rolled back", "version", version)
			return nil
		},
	}

	migrateStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "List migrations and whether each is applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			states, err := store.MigrationStatus(cmd.Context(), db, cfg.MigrationsDir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, state := range states {
				mark := "pending"
				if state.Applied {
					mark = "applied"
				}
				fmt.Fprintf(out, "%-8s %s\n", mark, state.Version)
			}
			return nil
		},
	}

	// tokenCmd signs a bearer token for an existing user, for local testing.
	tokenCmd = &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue a bearer token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || userID <= 0 {
				return fmt.Errorf("invalid user id %q", args[0])
			}
			db, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			dataStore := store.NewPostgresStore(db)
			user, err := dataStore.GetUserByID(cmd.Context(), userID)
			if err != nil {
				return err
			}
			token, err := app.New(cfg, dataStore, app.Deps{Logger: log}).IssueToken(user, tokenTTL)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
)

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
}
