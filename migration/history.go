package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rediwo/redi-migrate/types"
)

// HistoryTableName is the table recording applied migrations
const HistoryTableName = "redi_migrations"

// AppliedMigration is one row of the migration history table
type AppliedMigration struct {
	ID        int64
	Version   string
	Name      string
	AppliedAt time.Time
	Checksum  string
}

// HistoryManager manages migration history in the database
type HistoryManager struct {
	db      *sql.DB
	dialect types.Dialect
}

// NewHistoryManager creates a new history manager
func NewHistoryManager(db *sql.DB, dialect types.Dialect) *HistoryManager {
	return &HistoryManager{db: db, dialect: dialect}
}

// Ensure creates the migration history table if it doesn't exist
func (h *HistoryManager) Ensure(ctx context.Context) error {
	query := `CREATE TABLE IF NOT EXISTS ` + HistoryTableName + ` (
		id ` + h.idColumnType() + `,
		version VARCHAR(255) NOT NULL UNIQUE,
		name VARCHAR(255),
		applied_at TIMESTAMP NOT NULL,
		checksum VARCHAR(64)
	)`

	_, err := h.db.ExecContext(ctx, query)
	return err
}

// Applied returns all applied migrations in application order
func (h *HistoryManager) Applied(ctx context.Context) ([]AppliedMigration, error) {
	query := `SELECT id, version, name, applied_at, checksum FROM ` + HistoryTableName + ` ORDER BY id`

	rows, err := h.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var migrations []AppliedMigration
	for rows.Next() {
		var m AppliedMigration
		if err := rows.Scan(&m.ID, &m.Version, &m.Name, &m.AppliedAt, &m.Checksum); err != nil {
			return nil, err
		}
		migrations = append(migrations, m)
	}

	return migrations, rows.Err()
}

// AppliedVersions returns the set of applied migration versions
func (h *HistoryManager) AppliedVersions(ctx context.Context) (map[string]bool, error) {
	migrations, err := h.Applied(ctx)
	if err != nil {
		return nil, err
	}
	versions := make(map[string]bool, len(migrations))
	for _, m := range migrations {
		versions[m.Version] = true
	}
	return versions, nil
}

// Record inserts a new row into the history
func (h *HistoryManager) Record(ctx context.Context, version, name, checksum string) error {
	query := fmt.Sprintf(`INSERT INTO %s (version, name, applied_at, checksum) VALUES (%s, %s, %s, %s)`,
		HistoryTableName,
		h.placeholder(1), h.placeholder(2), h.placeholder(3), h.placeholder(4))
	_, err := h.db.ExecContext(ctx, query, version, name, time.Now().UTC(), checksum)
	return err
}

// IsApplied checks if a migration version has been applied
func (h *HistoryManager) IsApplied(ctx context.Context, version string) (bool, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE version = %s`, HistoryTableName, h.placeholder(1))

	var count int
	if err := h.db.QueryRowContext(ctx, query, version).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// Last returns the most recently applied migration, or nil when the history
// is empty
func (h *HistoryManager) Last(ctx context.Context) (*AppliedMigration, error) {
	query := `SELECT id, version, name, applied_at, checksum FROM ` + HistoryTableName + ` ORDER BY id DESC LIMIT 1`

	var m AppliedMigration
	err := h.db.QueryRowContext(ctx, query).Scan(&m.ID, &m.Version, &m.Name, &m.AppliedAt, &m.Checksum)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Remove deletes a migration row, used when rolling back
func (h *HistoryManager) Remove(ctx context.Context, version string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE version = %s`, HistoryTableName, h.placeholder(1))
	_, err := h.db.ExecContext(ctx, query, version)
	return err
}

// placeholder formats the dialect's positional parameter marker
func (h *HistoryManager) placeholder(n int) string {
	if h.dialect.GetDriverType() == types.DriverPostgreSQL {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// idColumnType picks the auto-increment primary key column definition
func (h *HistoryManager) idColumnType() string {
	switch h.dialect.GetDriverType() {
	case types.DriverPostgreSQL:
		return "BIGSERIAL PRIMARY KEY"
	case types.DriverMySQL:
		return "BIGINT PRIMARY KEY AUTO_INCREMENT"
	default:
		return "INTEGER PRIMARY KEY AUTOINCREMENT"
	}
}

// GenerateVersion generates a new migration version based on timestamp
func GenerateVersion() string {
	return time.Now().UTC().Format("20060102150405")
}
