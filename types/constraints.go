package types

import (
	"sort"
	"strings"
)

// ConstraintKind classifies a catalog constraint object
type ConstraintKind string

const (
	ConstraintIndex       ConstraintKind = "index"
	ConstraintUniqueIndex ConstraintKind = "unique_index"
	ConstraintUnique      ConstraintKind = "unique"
	ConstraintPrimaryKey  ConstraintKind = "primary_key"
	ConstraintForeignKey  ConstraintKind = "foreign_key"
	ConstraintCheck       ConstraintKind = "check"
)

// ConstraintInfo describes one physically distinct constraint object as reported
// by catalog introspection. The database is the source of truth; the engine never
// mutates a ConstraintInfo after it is produced.
type ConstraintInfo struct {
	Name    string
	Kind    ConstraintKind
	Columns []string // participating columns, in catalog order

	// IndexBacked is true when the object is reported by the catalog as an
	// index, including filtered unique indexes that also enforce uniqueness.
	// Plain unique constraints, primary keys and foreign keys report false.
	IndexBacked bool

	// Condition holds the partial-index predicate when the catalog exposes one
	Condition string
}

// Unique reports whether the constraint enforces uniqueness
func (c ConstraintInfo) Unique() bool {
	switch c.Kind {
	case ConstraintUniqueIndex, ConstraintUnique, ConstraintPrimaryKey:
		return true
	}
	return false
}

// ColumnSet returns the unordered column-set key used to match logical
// requirements against physical constraints (names are dialect-generated,
// so matching is always by column-set, never by name).
func (c ConstraintInfo) ColumnSet() string {
	return ColumnSetKey(c.Columns)
}

// ColumnSetKey builds a canonical key from a list of column names
func ColumnSetKey(columns []string) string {
	normalized := make([]string, len(columns))
	for i, col := range columns {
		normalized[i] = strings.ToLower(col)
	}
	sort.Strings(normalized)
	return strings.Join(normalized, ",")
}
