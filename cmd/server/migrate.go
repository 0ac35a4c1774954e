package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"credauth/backend/internal/config"
	"credauth/backend/internal/infrastructure/postgres"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long:  `Apply all pending migrations to the PostgreSQL user store.`,
		RunE:  runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	databaseURL, err := config.DatabaseURL()
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	cmd.Println("Connecting to database...")
	db, err := postgres.New(ctx, databaseURL)
	if err != nil {
		return oops.With("operation", "connect to database").Wrap(err)
	}
	defer db.Close()

	cmd.Println("Running migrations...")
	if err := db.Migrate(ctx); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
	}

	cmd.Println("Migrations completed successfully")
	return nil
}
