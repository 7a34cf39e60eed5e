package migration

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rediwo/redi-migrate/schema"
	"github.com/rediwo/redi-migrate/types"
)

// CauseKind names the reason a field requires a constraint
type CauseKind string

const (
	CauseDBIndex           CauseKind = "db_index"
	CauseIndexTogether     CauseKind = "index_together"
	CauseUniqueNullable    CauseKind = "unique_nullable"
	CauseUnique            CauseKind = "unique"
	CauseUniqueTogether    CauseKind = "unique_together"
	CauseConditionalUnique CauseKind = "conditional_unique"
	CauseForeignKey        CauseKind = "foreign_key"
)

// Requirement is one reason a field needs a physical constraint. Multiple
// causes may point at the same physical constraint; requirements are deduped
// by signature so the invariant is one constraint per distinct column-set
// requirement, not one per cause.
type Requirement struct {
	Cause   CauseKind
	Kind    types.ConstraintKind
	Columns []string // participating columns, in declaration order

	// Condition is an explicit predicate from a conditional unique constraint
	Condition string

	// Name is the declared constraint name, carried for conditional unique
	// constraints so two requirements over the same column-set with different
	// predicates materialize under distinct index names
	Name string

	// FilterNulls requests a generated NOT-NULL predicate over the nullable
	// participating columns, emulating ANSI NULL-tolerant uniqueness on
	// dialects whose native unique constraints reject duplicate NULLs
	FilterNulls bool

	// NullableColumns are the participating columns the NOT-NULL predicate
	// must cover when FilterNulls is set
	NullableColumns []string

	// Foreign key target, set only for Kind == ConstraintForeignKey
	RefTable  string
	RefColumn string
	OnDelete  string
}

// IndexBacked reports whether the requirement materializes as a catalog index
func (r Requirement) IndexBacked() bool {
	return r.Kind == types.ConstraintIndex || r.Kind == types.ConstraintUniqueIndex
}

// ColumnSet returns the unordered column-set key of the requirement
func (r Requirement) ColumnSet() string {
	return types.ColumnSetKey(r.Columns)
}

// Signature identifies the physical constraint a requirement maps to. Two
// causes with the same signature share one constraint.
func (r Requirement) Signature() string {
	return fmt.Sprintf("%s|%s|%s", r.Kind, r.ColumnSet(), r.Condition)
}

func (r Requirement) String() string {
	return fmt.Sprintf("%s(%s)", r.Cause, strings.Join(r.Columns, ","))
}

// RequiredSet is a set of requirements keyed by signature. Set semantics
// prevent the duplicate-index fault by construction.
type RequiredSet map[string]Requirement

// Add inserts a requirement, deduplicating by signature
func (s RequiredSet) Add(r Requirement) {
	s[r.Signature()] = r
}

// IndexBacked returns only the index-backed requirements
func (s RequiredSet) IndexBacked() RequiredSet {
	out := make(RequiredSet)
	for sig, r := range s {
		if r.IndexBacked() {
			out[sig] = r
		}
	}
	return out
}

// Sorted returns the requirements in deterministic signature order
func (s RequiredSet) Sorted() []Requirement {
	sigs := make([]string, 0, len(s))
	for sig := range s {
		sigs = append(sigs, sig)
	}
	sort.Strings(sigs)
	out := make([]Requirement, len(sigs))
	for i, sig := range sigs {
		out[i] = s[sig]
	}
	return out
}

// Classify derives the complete required-constraint set for one field of a
// model. All rules are additive; a field may accumulate several causes.
//
// Primary keys and unique non-nullable fields get catalog-level constraints
// that introspection does not report as index-backed, so they contribute
// non-index requirements (or none at all for the primary key itself) and are
// never double-counted against the index invariant.
func Classify(m *schema.Model, f schema.FieldDescriptor) (RequiredSet, error) {
	required := make(RequiredSet)
	column := f.GetColumnName()

	// Rule 1: db_index. The primary key's backing structure is owned by the
	// PK constraint, never counted here.
	if f.DbIndex && !f.PrimaryKey {
		required.Add(Requirement{
			Cause:   CauseDBIndex,
			Kind:    types.ConstraintIndex,
			Columns: []string{column},
		})
	}

	// Rule 2: index_together membership
	for _, group := range m.IndexTogether {
		if !containsField(group, f.Name) {
			continue
		}
		columns, err := m.MapFieldNamesToColumns(group)
		if err != nil {
			return nil, err
		}
		required.Add(Requirement{
			Cause:   CauseIndexTogether,
			Kind:    types.ConstraintIndex,
			Columns: columns,
		})
	}

	// Rule 3: unique+nullable becomes a filtered unique index, not a plain
	// unique constraint: ANSI semantics would otherwise reject the second
	// NULL. Unique non-nullable stays a plain constraint.
	if f.Unique && !f.PrimaryKey {
		if f.Nullable {
			required.Add(Requirement{
				Cause:           CauseUniqueNullable,
				Kind:            types.ConstraintUniqueIndex,
				Columns:         []string{column},
				FilterNulls:     true,
				NullableColumns: []string{column},
			})
		} else {
			required.Add(Requirement{
				Cause:   CauseUnique,
				Kind:    types.ConstraintUnique,
				Columns: []string{column},
			})
		}
	}

	// Rule 4: unique_together membership. Filtered unique index when any
	// member is nullable, plain unique constraint when none are.
	for _, group := range m.UniqueTogether {
		if !containsField(group, f.Name) {
			continue
		}
		columns, err := m.MapFieldNamesToColumns(group)
		if err != nil {
			return nil, err
		}
		nullable, err := nullableColumns(m, group)
		if err != nil {
			return nil, err
		}
		if len(nullable) > 0 {
			required.Add(Requirement{
				Cause:           CauseUniqueTogether,
				Kind:            types.ConstraintUniqueIndex,
				Columns:         columns,
				FilterNulls:     true,
				NullableColumns: nullable,
			})
		} else {
			required.Add(Requirement{
				Cause:   CauseUniqueTogether,
				Kind:    types.ConstraintUnique,
				Columns: columns,
			})
		}
	}

	// Rule 5: conditional unique constraints are filtered unique indexes
	for _, c := range m.Constraints {
		if c.Condition == "" || !containsField(c.Fields, f.Name) {
			continue
		}
		columns, err := m.MapFieldNamesToColumns(c.Fields)
		if err != nil {
			return nil, err
		}
		required.Add(Requirement{
			Cause:     CauseConditionalUnique,
			Kind:      types.ConstraintUniqueIndex,
			Columns:   columns,
			Condition: c.Condition,
			Name:      c.Name,
		})
	}

	// Foreign key constraint, when the relation is database-enforced
	if f.HasDbConstraint() {
		required.Add(Requirement{
			Cause:     CauseForeignKey,
			Kind:      types.ConstraintForeignKey,
			Columns:   []string{column},
			RefTable:  f.ForeignKey.Table,
			RefColumn: f.ForeignKey.Column,
			OnDelete:  f.ForeignKey.OnDelete,
		})
	}

	return required, nil
}

// ClassifyModel unions the per-field requirements of every field. Signature
// keying collapses group causes shared between members into one requirement.
func ClassifyModel(m *schema.Model) (RequiredSet, error) {
	required := make(RequiredSet)
	for _, f := range m.Fields {
		fieldSet, err := Classify(m, f)
		if err != nil {
			return nil, err
		}
		for sig, r := range fieldSet {
			required[sig] = r
		}
	}
	return required, nil
}

func containsField(group []string, name string) bool {
	for _, n := range group {
		if n == name {
			return true
		}
	}
	return false
}

func nullableColumns(m *schema.Model, group []string) ([]string, error) {
	var out []string
	for _, name := range group {
		field, err := m.GetField(name)
		if err != nil {
			return nil, err
		}
		if field.Nullable {
			out = append(out, field.GetColumnName())
		}
	}
	return out, nil
}
