package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rediwo/redi-migrate/migration"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, dialect, err := openDatabase()
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		runner := migration.NewRunner(db, dialect, migration.NewFileManager(resolveMigrationsDir()))
		applied, pending, err := runner.Status(context.Background())
		if err != nil {
			return err
		}

		if len(applied) == 0 {
			fmt.Println("No migrations applied.")
		} else {
			fmt.Printf("Applied migrations (%d):\n", len(applied))
			for _, m := range applied {
				fmt.Printf("  %s  %s  (%s)\n", m.Version, m.Name, m.AppliedAt.Format("2006-01-02 15:04:05"))
			}
		}

		if len(pending) == 0 {
			fmt.Println("No pending migrations.")
		} else {
			fmt.Printf("Pending migrations (%d):\n", len(pending))
			for _, m := range pending {
				fmt.Printf("  %s  %s\n", m.Version, m.Name)
			}
		}

		tables, err := dialect.GetTables(context.Background(), db)
		if err != nil {
			return err
		}
		fmt.Printf("Database tables (%d):\n", len(tables))
		for _, table := range tables {
			fmt.Printf("  %s\n", table)
		}

		return nil
	},
}
