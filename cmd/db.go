package cmd

import (
	"embed"
	"strconv"

	migrate "github.com/rubenv/sql-migrate"
	"github.com/spf13/cobra"

	"github.com/nordbank/banking-platform-backend/db"
	authmigrations "github.com/nordbank/banking-platform-backend/db/migrations/auth-migrations"
	bankingmigrations "github.com/nordbank/banking-platform-backend/db/migrations/banking-migrations"
	"github.com/nordbank/banking-platform-backend/internal/logger"
)

func dbCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database schema migration helpers",
		Run: func(cmd *cobra.Command, args []string) {
			if err := cmd.Help(); err != nil {
				logger.DefaultLogger.Fatalf("displaying help: %v", err)
			}
		},
	}

	cmd.AddCommand(migrateCommand("migrate", "banking", bankingmigrations.FS, db.BankingMigrationsTableName))
	cmd.AddCommand(migrateCommand("auth-migrate", "authentication", authmigrations.FS, db.AuthMigrationsTableName))

	return cmd
}

// migrateCommand builds an up/down command pair over one migration set. The
// banking and auth sets are tracked in separate tables so they can move
// independently.
func migrateCommand(use, desc string, migrationFiles embed.FS, tableName db.MigrationTableName) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: "Schema migration commands for the " + desc + " tables",
		Run: func(cmd *cobra.Command, args []string) {
			if err := cmd.Help(); err != nil {
				logger.DefaultLogger.Fatalf("displaying help: %v", err)
			}
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up [count]",
		Short: "Apply pending " + desc + " migrations",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			runMigration(args, migrate.Up, migrationFiles, tableName)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down count",
		Short: "Roll back " + desc + " migrations",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			runMigration(args, migrate.Down, migrationFiles, tableName)
		},
	})

	return cmd
}

func runMigration(args []string, dir migrate.MigrationDirection, migrationFiles embed.FS, tableName db.MigrationTableName) {
	count := 0
	if len(args) > 0 {
		var err error
		count, err = strconv.Atoi(args[0])
		if err != nil {
			logger.DefaultLogger.Fatalf("invalid migration count %q: %v", args[0], err)
		}
	}

	applied, err := db.Migrate(globalOpts.DatabaseURL, dir, count, migrationFiles, tableName)
	if err != nil {
		logger.DefaultLogger.Fatalf("running migrations: %v", err)
	}
	if applied == 0 {
		logger.DefaultLogger.Info("no migrations applied")
		return
	}
	logger.DefaultLogger.Infof("successfully applied %d migrations", applied)
}
