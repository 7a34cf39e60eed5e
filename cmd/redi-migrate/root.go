package main

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rediwo/redi-migrate/internal/cli"
	"github.com/rediwo/redi-migrate/logger"
	"github.com/rediwo/redi-migrate/registry"
	"github.com/rediwo/redi-migrate/types"
)

var (
	cfg *cli.Config

	cfgFile       string
	dbURL         string
	migrationsDir string
	logLevel      string
)

var rootCmd = &cobra.Command{
	Use:   "redi-migrate",
	Short: "Schema migration engine with constraint-aware field alterations",
	Long: `redi-migrate - schema migration engine

Applies versioned SQL migrations and model-driven schema changes against
SQLite, PostgreSQL and MySQL, reconciling indexes and constraints from the
declared model state instead of dropping and recreating them.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "version" {
			return nil
		}

		var err error
		cfg, _, err = cli.LoadConfig(cfgFile)
		if err != nil {
			return err
		}

		level := logger.ParseLogLevel(resolveString(logLevel, cfg.LogLevel))
		log := logger.NewDefaultLogger("redi-migrate")
		log.SetLevel(level)
		logger.SetGlobalLogger(log)

		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: auto-discover redi-migrate.yaml)")
	pf.StringVar(&dbURL, "db", "", "database URI (sqlite://, postgres://, mysql://)")
	pf.StringVar(&migrationsDir, "dir", "", "migrations directory (default: migrations)")
	pf.StringVar(&logLevel, "log-level", "", "log level: none, error, warn, info, debug")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(rollbackCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openDatabase resolves the database URI and opens it through the registry
func openDatabase() (*sql.DB, types.Dialect, error) {
	uri := resolveString(dbURL, cfg.Database.URL)
	if uri == "" {
		return nil, nil, fmt.Errorf("no database URI: set --db, REDI_MIGRATE_DATABASE_URL or database.url in redi-migrate.yaml")
	}
	return registry.Open(uri)
}

func resolveMigrationsDir() string {
	return resolveString(migrationsDir, cfg.MigrationsDir)
}

// resolveString returns the first non-empty value, implementing the
// flag > config > default precedence
func resolveString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
