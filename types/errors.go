package types

import (
	"fmt"
	"strings"
)

// TableNotFoundError is returned by introspection when the target table does
// not exist in the catalog
type TableNotFoundError struct {
	Table string
}

func (e *TableNotFoundError) Error() string {
	return fmt.Sprintf("table %s does not exist", e.Table)
}

// ConstraintResolutionError reports a catalog inconsistency: a required drop
// could not be matched to exactly one live constraint. Silently skipping the
// drop is never acceptable; it is how duplicate indexes and lost indexes are
// born, so the fault aborts the migration step.
type ConstraintResolutionError struct {
	Table   string
	Columns []string
	Kind    ConstraintKind
	Found   []string // names of the matching live constraints
}

func (e *ConstraintResolutionError) Error() string {
	return fmt.Sprintf("expected exactly 1 %s constraint on %s(%s), found %d (%s)",
		e.Kind, e.Table, strings.Join(e.Columns, ", "), len(e.Found), strings.Join(e.Found, ", "))
}

// IndexCountError reports a violated index-count invariant detected by a
// strict alter-field post-check
type IndexCountError struct {
	Table    string
	Column   string
	Expected int
	Actual   int
}

func (e *IndexCountError) Error() string {
	return fmt.Sprintf("expected %d index(es) covering %s.%s after alteration, found %d",
		e.Expected, e.Table, e.Column, e.Actual)
}
