package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/rediwo/redi-migrate/migration"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply all pending migrations",
	Example: `  # Apply pending migrations
  redi-migrate migrate --db sqlite://./app.db --dir migrations`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, dialect, err := openDatabase()
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		runner := migration.NewRunner(db, dialect, migration.NewFileManager(resolveMigrationsDir()))
		return runner.RunMigrations(context.Background())
	},
}
