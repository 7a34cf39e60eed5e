package migration

import (
	"sort"
	"strings"

	"github.com/rediwo/redi-migrate/schema"
	"github.com/rediwo/redi-migrate/types"
)

// DropOp binds a requirement that is no longer needed to the physical
// constraint that satisfies it today
type DropOp struct {
	Constraint  types.ConstraintInfo
	Requirement Requirement
}

// FieldDiff is the ordered outcome of comparing two field classifications.
// All drops execute before the column alteration, all creates after it: the
// database may reject altering a column while a dependent constraint exists.
// Operations are transient; they are generated and consumed within a single
// alter-field call.
type FieldDiff struct {
	Drops   []DropOp
	Creates []Requirement
}

// Differ computes the minimal constraint operations for a field alteration
type Differ struct {
	model *schema.Model
}

// NewDiffer creates a differ for one model's alter-field call
func NewDiffer(model *schema.Model) *Differ {
	return &Differ{model: model}
}

// DiffField compares the old and new field classifications against the live
// constraints of the model's table. Requirements present in both states are
// left untouched: dropping a constraint that is still required, only to
// recreate it, is exactly the churn this engine exists to prevent.
func (d *Differ) DiffField(oldField, newField schema.FieldDescriptor, live map[string]types.ConstraintInfo) (*FieldDiff, error) {
	before, err := Classify(d.model, oldField)
	if err != nil {
		return nil, err
	}
	after, err := d.RequiredAfter(oldField, newField)
	if err != nil {
		return nil, err
	}

	diff := &FieldDiff{}

	for sig, req := range before {
		if _, still := after[sig]; still {
			continue
		}
		constraint, err := resolveConstraint(d.model.TableName, req, live)
		if err != nil {
			return nil, err
		}
		diff.Drops = append(diff.Drops, DropOp{Constraint: constraint, Requirement: req})
	}

	for sig, req := range after {
		if _, had := before[sig]; had {
			continue
		}
		diff.Creates = append(diff.Creates, req)
	}

	// Deterministic ordering so repeated runs of the same logical operation
	// emit identical statement sequences
	sort.Slice(diff.Drops, func(i, j int) bool {
		return diff.Drops[i].Constraint.Name < diff.Drops[j].Constraint.Name
	})
	sort.Slice(diff.Creates, func(i, j int) bool {
		return diff.Creates[i].Signature() < diff.Creates[j].Signature()
	})

	return diff, nil
}

// RequiredAfter computes the post-alteration requirement set for a field.
//
// A foreign key altered to drop its database constraint keeps the index
// requirement on paper (the relation is still declared and indexed), but the
// default policy drops the backing index with the constraint. The retention
// option, or the legacy comment sentinel, overrides that.
func (d *Differ) RequiredAfter(oldField, newField schema.FieldDescriptor) (RequiredSet, error) {
	after, err := Classify(d.model, newField)
	if err != nil {
		return nil, err
	}

	if oldField.HasDbConstraint() && newField.IsForeignKey() && !newField.HasDbConstraint() {
		if !newField.RetainsIndexOnConstraintDrop() {
			indexReq := Requirement{
				Cause:   CauseDBIndex,
				Kind:    types.ConstraintIndex,
				Columns: []string{newField.GetColumnName()},
			}
			delete(after, indexReq.Signature())
		}
	}

	return after, nil
}

// resolveConstraint matches a requirement to exactly one live constraint by
// column-set and kind class. Anything other than exactly one match is a
// catalog inconsistency and aborts the step; a silent skip here is where
// duplicate-index and lost-index defects come from.
func resolveConstraint(table string, req Requirement, live map[string]types.ConstraintInfo) (types.ConstraintInfo, error) {
	columnSet := req.ColumnSet()

	var matches []types.ConstraintInfo
	for _, c := range live {
		if c.ColumnSet() != columnSet {
			continue
		}
		if !constraintSatisfies(c, req) {
			continue
		}
		matches = append(matches, c)
	}

	// A column-set can legitimately carry more than one unique index when the
	// indexes differ in predicate, e.g. a generated NOT-NULL filter alongside
	// a declared conditional unique constraint. The predicate then picks the
	// one this requirement owns.
	if len(matches) > 1 {
		matches = narrowByCondition(matches, req)
	}

	if len(matches) != 1 {
		names := make([]string, len(matches))
		for i, c := range matches {
			names[i] = c.Name
		}
		sort.Strings(names)
		return types.ConstraintInfo{}, &types.ConstraintResolutionError{
			Table:   table,
			Columns: req.Columns,
			Kind:    req.Kind,
			Found:   names,
		}
	}

	return matches[0], nil
}

// narrowByCondition keeps the matches whose stored predicate equals the
// requirement's. When no predicate agrees, the original matches come back
// unchanged and the caller reports the ambiguity.
func narrowByCondition(matches []types.ConstraintInfo, req Requirement) []types.ConstraintInfo {
	want := normalizeCondition(requiredCondition(req))
	var out []types.ConstraintInfo
	for _, c := range matches {
		if normalizeCondition(c.Condition) == want {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return matches
	}
	return out
}

// requiredCondition reconstructs the predicate a requirement materializes
// with: the explicit condition, or the NOT-NULL filter over the nullable
// participating columns
func requiredCondition(req Requirement) string {
	if req.Condition != "" {
		return req.Condition
	}
	if req.FilterNulls {
		parts := make([]string, len(req.NullableColumns))
		for i, c := range req.NullableColumns {
			parts[i] = c + " IS NOT NULL"
		}
		return strings.Join(parts, " AND ")
	}
	return ""
}

// normalizeCondition strips identifier quoting, grouping parentheses and
// whitespace differences so predicates compare across dialect renderings
func normalizeCondition(cond string) string {
	var b strings.Builder
	for _, r := range cond {
		switch r {
		case '`', '"', '[', ']', '(', ')':
		default:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(strings.ToLower(b.String())), " ")
}

// constraintSatisfies reports whether a live constraint is the physical
// realization of a requirement. Names are dialect-generated and ignored.
func constraintSatisfies(c types.ConstraintInfo, req Requirement) bool {
	switch req.Kind {
	case types.ConstraintIndex:
		return c.IndexBacked && !c.Unique()
	case types.ConstraintUniqueIndex:
		// Filtered unique indexes always introspect as index-backed. A
		// dialect without partial indexes realizes the requirement as a
		// plain unique index, which still introspects as index-backed.
		return c.IndexBacked && c.Unique()
	case types.ConstraintUnique:
		// Engines without standalone unique constraints (MySQL) realize them
		// as unique indexes, which introspect as index-backed
		return c.Unique()
	case types.ConstraintForeignKey:
		return c.Kind == types.ConstraintForeignKey
	default:
		return false
	}
}
