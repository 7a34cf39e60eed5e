package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rediwo/redi-migrate/migration"
)

var generateCmd = &cobra.Command{
	Use:   "generate <name>",
	Short: "Create a new empty migration",
	Args:  cobra.ExactArgs(1),
	Example: `  # Scaffold a migration
  redi-migrate generate add_user_email_index`,
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		version := migration.GenerateVersion()

		// Checksum stays empty until the SQL is final; the runner computes
		// and records it at apply time
		file := &migration.MigrationFile{
			Version: version,
			Name:    name,
			UpSQL:   "-- " + name + "\n",
			DownSQL: "-- revert " + name + "\n",
			Metadata: migration.MigrationMetadata{
				Version:   version,
				Name:      name,
				CreatedAt: time.Now().UTC(),
			},
		}

		fm := migration.NewFileManager(resolveMigrationsDir())
		if err := fm.WriteMigration(file); err != nil {
			return err
		}

		fmt.Printf("Created migration %s_%s\n", version, name)
		return nil
	},
}
