package main

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/hospital-bulk/internal/history"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply import history schema migrations",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if !cfg.Database.Enabled() {
		return withExitCode(exitUsage, errors.New("--dsn or DATABASE_URL is required"))
	}

	pool, err := history.NewPool(ctx, cfg.Database)
	if err != nil {
		return withExitCode(exitDBConn, err)
	}
	defer pool.Close()

	if err := history.ApplyMigrations(ctx, pool); err != nil {
		return err
	}

	slog.Info("all migrations applied successfully")
	return nil
}
