package schema

import (
	"github.com/rediwo/redi-migrate/utils"
)

type FieldType string

const (
	FieldTypeString   FieldType = "string"
	FieldTypeInt      FieldType = "int"
	FieldTypeInt64    FieldType = "int64"
	FieldTypeFloat    FieldType = "float"
	FieldTypeBool     FieldType = "bool"
	FieldTypeDateTime FieldType = "datetime"
	FieldTypeJSON     FieldType = "json"
	FieldTypeDecimal  FieldType = "decimal"
)

// KeepIndexComment is the descriptive-comment sentinel that retains the
// backing index of a foreign key whose database constraint is being dropped.
// Kept for compatibility with deployments that drive the policy through the
// comment channel; new code should set KeepIndexOnConstraintDrop instead.
const KeepIndexComment = "fk_on_delete_keep_index"

// ForeignKey describes the relation side of a field
type ForeignKey struct {
	Table    string
	Column   string
	OnDelete string

	// Constraint is false when the relation is declarative only and no
	// database-level FOREIGN KEY constraint should exist
	Constraint bool
}

// FieldDescriptor is the declared state of one column. Descriptors are
// immutable once constructed: a field alteration is modeled as a transition
// from an old descriptor to a new one, never in-place mutation.
type FieldDescriptor struct {
	Name          string
	Type          FieldType
	Map           string // explicit column name mapping; defaults to snake_case of Name
	PrimaryKey    bool
	AutoIncrement bool
	Nullable      bool
	Unique        bool
	DbIndex       bool
	Default       any
	Comment       string
	ForeignKey    *ForeignKey

	// KeepIndexOnConstraintDrop retains the FK backing index when the field's
	// database constraint is dropped, replacing the comment-sentinel channel
	KeepIndexOnConstraintDrop bool
}

// GetColumnName returns the actual database column name for this field
func (f FieldDescriptor) GetColumnName() string {
	if f.Map != "" {
		return f.Map
	}
	return utils.ToSnakeCase(f.Name)
}

// IsForeignKey reports whether the field declares a relation
func (f FieldDescriptor) IsForeignKey() bool {
	return f.ForeignKey != nil
}

// HasDbConstraint reports whether the field requires a database-level
// FOREIGN KEY constraint
func (f FieldDescriptor) HasDbConstraint() bool {
	return f.ForeignKey != nil && f.ForeignKey.Constraint
}

// RetainsIndexOnConstraintDrop reports whether the backing index should
// survive dropping the field's FK constraint. The explicit option and the
// legacy comment sentinel are equivalent; an empty or unrecognized comment
// does not retain.
func (f FieldDescriptor) RetainsIndexOnConstraintDrop() bool {
	return f.KeepIndexOnConstraintDrop || f.Comment == KeepIndexComment
}

// Clone returns a deep copy of the descriptor
func (f FieldDescriptor) Clone() FieldDescriptor {
	c := f
	if f.ForeignKey != nil {
		fk := *f.ForeignKey
		c.ForeignKey = &fk
	}
	return c
}
