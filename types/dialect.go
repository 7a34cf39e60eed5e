package types

import (
	"context"
	"database/sql"

	"github.com/rediwo/redi-migrate/schema"
)

// Execer is the minimal interface needed for schema editing operations.
// Implemented by *sql.DB, *sql.Tx, and *sql.Conn.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Dialect defines database-specific operations that each driver must implement.
// Dialects are stateless: introspection runs against the Execer passed in, so a
// schema-editing transaction sees its own uncommitted DDL.
type Dialect interface {
	// Driver identification and capabilities
	GetDriverType() DriverType
	QuoteIdentifier(name string) string

	// SupportsPartialIndexes reports whether the dialect can create filtered
	// unique indexes (CREATE UNIQUE INDEX ... WHERE ...). Dialects without
	// them fall back to plain unique indexes, which is only correct where the
	// engine permits multiple NULLs in a unique index (MySQL does).
	SupportsPartialIndexes() bool

	// SupportsAlterColumn reports whether columns can be altered in place.
	// Dialects returning false (SQLite) rebuild the table instead.
	SupportsAlterColumn() bool

	// SupportsRenameIndex reports whether indexes can be renamed in place.
	// Dialects returning false rewrite index definitions automatically when
	// the underlying column or table is renamed.
	SupportsRenameIndex() bool

	// Introspection
	GetTables(ctx context.Context, q Execer) ([]string, error)

	// GetConstraints returns exactly one entry per physically distinct
	// constraint object on the table, keyed by constraint name. It returns an
	// error when the table does not exist.
	GetConstraints(ctx context.Context, q Execer, tableName string) (map[string]ConstraintInfo, error)

	// DDL generation
	CreateTableSQL(model *schema.Model) (string, error)
	DropTableSQL(tableName string) string
	RenameTableSQL(oldName, newName string) string

	AddColumnSQL(tableName string, field schema.FieldDescriptor) (string, error)
	DropColumnSQL(tableName, columnName string) string
	RenameColumnSQL(tableName, oldName, newName string) string

	// AlterColumnSQL generates the statements that change a column's type,
	// nullability or default. The model carries the desired post-alteration
	// state so rebuild-based dialects can regenerate the whole table.
	AlterColumnSQL(model *schema.Model, oldField, newField schema.FieldDescriptor) ([]string, error)

	CreateIndexSQL(tableName, indexName string, columns []string, unique bool, condition string) string
	DropIndexSQL(tableName, indexName string) string
	RenameIndexSQL(tableName, oldName, newName string) string

	AddUniqueConstraintSQL(tableName, constraintName string, columns []string) string
	AddForeignKeySQL(tableName, constraintName, column, refTable, refColumn, onDelete string) string
	DropConstraintSQL(tableName, constraintName string, kind ConstraintKind) string

	// NotNullCondition builds the partial-index predicate enforcing uniqueness
	// only over rows where every listed column is non-NULL
	NotNullCondition(columns []string) string
}
