package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rediwo/redi-migrate/registry"
	"github.com/rediwo/redi-migrate/types"
)

func init() {
	registry.Register(string(types.DriverSQLite), Open)
}

// Open opens a SQLite database from a URI such as sqlite:///path/to/db.sqlite
// or sqlite://:memory:
func Open(uri string) (*sql.DB, types.Dialect, error) {
	path, err := parseURI(uri)
	if err != nil {
		return nil, nil, err
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Foreign key enforcement is off by default in SQLite
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to enable foreign key constraints: %w", err)
	}

	return db, NewDialect(), nil
}

func parseURI(uri string) (string, error) {
	rest, found := strings.CutPrefix(uri, "sqlite://")
	if !found {
		return "", fmt.Errorf("invalid SQLite URI %q: expected sqlite:// scheme", uri)
	}
	if rest == "" {
		return "", fmt.Errorf("invalid SQLite URI %q: missing database path", uri)
	}
	return rest, nil
}
