package migration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rediwo/redi-migrate/logger"
	"github.com/rediwo/redi-migrate/types"
)

// Runner executes file-based migrations: versioned up/down SQL scripts with
// history recording. Each migration runs in its own transaction.
type Runner struct {
	db          *sql.DB
	dialect     types.Dialect
	history     *HistoryManager
	fileManager *FileManager
	log         logger.Logger
}

// NewRunner creates a new migration runner
func NewRunner(db *sql.DB, dialect types.Dialect, fileManager *FileManager) *Runner {
	return &Runner{
		db:          db,
		dialect:     dialect,
		history:     NewHistoryManager(db, dialect),
		fileManager: fileManager,
		log:         logger.GetGlobalLogger(),
	}
}

// RunMigrations applies all pending migrations in version order
func (r *Runner) RunMigrations(ctx context.Context) error {
	if err := r.history.Ensure(ctx); err != nil {
		return fmt.Errorf("failed to ensure migrations table: %w", err)
	}

	applied, err := r.history.AppliedVersions(ctx)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	pending, err := r.fileManager.GetPendingMigrations(applied)
	if err != nil {
		return fmt.Errorf("failed to get pending migrations: %w", err)
	}

	if len(pending) == 0 {
		r.log.Info("No pending migrations.")
		return nil
	}

	r.log.Info("Found %d pending migration(s):", len(pending))
	for _, m := range pending {
		r.log.Info("  - %s: %s", m.Version, m.Name)
	}

	for _, migration := range pending {
		if err := r.applyMigration(ctx, migration); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", migration.Version, err)
		}
	}

	r.log.Info("Successfully applied %d migration(s).", len(pending))
	return nil
}

// RollbackMigration rolls back the last applied migration
func (r *Runner) RollbackMigration(ctx context.Context) error {
	if err := r.history.Ensure(ctx); err != nil {
		return fmt.Errorf("failed to ensure migrations table: %w", err)
	}

	last, err := r.history.Last(ctx)
	if err != nil {
		return fmt.Errorf("failed to get last migration: %w", err)
	}
	if last == nil {
		return fmt.Errorf("no migrations to rollback")
	}

	migration, err := r.fileManager.ReadMigration(last.Version)
	if err != nil {
		return fmt.Errorf("failed to read migration file: %w", err)
	}

	r.log.Info("Rolling back migration %s: %s", migration.Version, migration.Name)

	if err := r.executeScript(ctx, migration.DownSQL); err != nil {
		return fmt.Errorf("failed to execute down SQL: %w", err)
	}
	if err := r.history.Remove(ctx, migration.Version); err != nil {
		return fmt.Errorf("failed to remove migration record: %w", err)
	}

	r.log.Info("Rollback completed successfully.")
	return nil
}

// Status returns the pending migrations and the applied history
func (r *Runner) Status(ctx context.Context) ([]AppliedMigration, []*MigrationFile, error) {
	if err := r.history.Ensure(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to ensure migrations table: %w", err)
	}

	applied, err := r.history.Applied(ctx)
	if err != nil {
		return nil, nil, err
	}

	versions := make(map[string]bool, len(applied))
	for _, m := range applied {
		versions[m.Version] = true
	}

	pending, err := r.fileManager.GetPendingMigrations(versions)
	if err != nil {
		return nil, nil, err
	}

	return applied, pending, nil
}

// applyMigration executes one migration's forward SQL and records it
func (r *Runner) applyMigration(ctx context.Context, migration *MigrationFile) error {
	r.log.Info("Applying migration %s: %s", migration.Version, migration.Name)

	if migration.Metadata.Checksum != "" {
		if actual := ComputeChecksum(migration.UpSQL); actual != migration.Metadata.Checksum {
			return fmt.Errorf("checksum mismatch: metadata has %s, up.sql hashes to %s",
				migration.Metadata.Checksum, actual)
		}
	}

	if err := r.executeScript(ctx, migration.UpSQL); err != nil {
		return fmt.Errorf("failed to execute up SQL: %w", err)
	}

	checksum := migration.Metadata.Checksum
	if checksum == "" {
		checksum = ComputeChecksum(migration.UpSQL)
	}
	if err := r.history.Record(ctx, migration.Version, migration.Name, checksum); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	return nil
}

// executeScript runs a SQL script statement by statement inside one
// schema-editing transaction
func (r *Runner) executeScript(ctx context.Context, script string) error {
	statements := splitSQLStatements(script)

	return Edit(ctx, r.db, r.dialect, func(e *SchemaEditor) error {
		for _, stmt := range statements {
			if err := e.exec(stmt); err != nil {
				return err
			}
		}
		return nil
	})
}

// splitSQLStatements splits a SQL script into individual statements,
// dropping comment-only lines
func splitSQLStatements(script string) []string {
	var statements []string
	var current strings.Builder

	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "--") {
			continue
		}

		current.WriteString(line)
		current.WriteString("\n")

		if strings.HasSuffix(trimmed, ";") {
			stmt := strings.TrimSpace(current.String())
			if stmt != "" && stmt != ";" {
				statements = append(statements, strings.TrimSuffix(stmt, ";"))
			}
			current.Reset()
		}
	}

	if stmt := strings.TrimSpace(current.String()); stmt != "" {
		statements = append(statements, stmt)
	}

	return statements
}
