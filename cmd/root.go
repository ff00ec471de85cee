package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nordbank/banking-platform-backend/internal/logger"
)

// globalOptions holds the configuration shared by every subcommand. Values
// are resolved by viper from flags first and environment variables second
// (flag --database-url maps to DATABASE_URL).
type globalOptions struct {
	LogLevel    string
	Environment string
	DatabaseURL string
	Version     string
	GitCommit   string

	SentryDSN        string
	CrashTrackerType string
}

var globalOpts globalOptions

// SetupCLI builds the command tree. version and gitCommit are stamped by the
// build and surface in the health endpoint and crash reports.
func SetupCLI(version, gitCommit string) *cobra.Command {
	globalOpts.Version = version
	globalOpts.GitCommit = gitCommit

	rootCmd := &cobra.Command{
		Use:     "banking-platform",
		Short:   "Core banking platform backend",
		Long:    "Core banking platform backend: double-entry ledger, SEPA and SWIFT payment pipelines, AML monitoring, and customer registry.",
		Version: version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			globalOpts.LogLevel = viper.GetString("log-level")
			globalOpts.Environment = viper.GetString("environment")
			globalOpts.DatabaseURL = viper.GetString("database-url")
			globalOpts.SentryDSN = viper.GetString("sentry-dsn")
			globalOpts.CrashTrackerType = viper.GetString("crash-tracker-type")

			logger.SetLevel(globalOpts.LogLevel)
		},
		Run: func(cmd *cobra.Command, args []string) {
			if err := cmd.Help(); err != nil {
				logger.DefaultLogger.Fatalf("displaying help: %v", err)
			}
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.String("log-level", "TRACE", `log level ("TRACE", "DEBUG", "INFO", "WARN", "ERROR", "FATAL", "PANIC")`)
	pf.String("environment", "development", "the environment this instance runs in, stamped on logs and metrics")
	pf.String("database-url", "postgres://localhost:5432/banking?sslmode=disable", "Postgres DB URL")
	pf.String("sentry-dsn", "", "the DSN (client key) of the Sentry project")
	pf.String("crash-tracker-type", "DRY_RUN", `crash tracker type ("SENTRY", "DRY_RUN")`)

	if err := viper.BindPFlags(pf); err != nil {
		logger.DefaultLogger.Fatalf("binding persistent flags: %v", err)
	}
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(serveCommand())
	rootCmd.AddCommand(dbCommand())

	return rootCmd
}

// bindCommandFlags binds a subcommand's local flags into viper so they pick
// up environment variables the same way the persistent flags do.
func bindCommandFlags(cmd *cobra.Command) {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		logger.DefaultLogger.Fatalf("binding flags for %s: %v", cmd.Use, err)
	}
}
