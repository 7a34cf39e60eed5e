package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/rediwo/redi-migrate/migration"
)

var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Roll back the last applied migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, dialect, err := openDatabase()
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		runner := migration.NewRunner(db, dialect, migration.NewFileManager(resolveMigrationsDir()))
		return runner.RollbackMigration(context.Background())
	},
}
