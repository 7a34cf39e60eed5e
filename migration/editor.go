package migration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rediwo/redi-migrate/logger"
	"github.com/rediwo/redi-migrate/schema"
	"github.com/rediwo/redi-migrate/types"
	"github.com/rediwo/redi-migrate/utils"
)

// SchemaEditor executes constraint and column DDL against one schema-editing
// session. It never owns the transaction: the caller provides the scope (see
// Edit), so editors can be nested inside a larger migration step.
type SchemaEditor struct {
	ctx     context.Context
	q       types.Execer
	dialect types.Dialect
	log     logger.Logger
}

// NewSchemaEditor creates an editor bound to an existing session or transaction
func NewSchemaEditor(ctx context.Context, q types.Execer, dialect types.Dialect) *SchemaEditor {
	return &SchemaEditor{
		ctx:     ctx,
		q:       q,
		dialect: dialect,
		log:     logger.GetGlobalLogger(),
	}
}

// Edit runs fn inside a schema-editing transaction. The transaction commits
// when fn returns nil and rolls back on error or panic, so a failed step
// leaves the schema in its pre-step state.
func Edit(ctx context.Context, db *sql.DB, dialect types.Dialect, fn func(*SchemaEditor) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin schema-editing transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(NewSchemaEditor(ctx, tx, dialect))
	return err
}

// exec runs one DDL statement, reporting the originating database error
// verbatim alongside the statement that triggered it
func (e *SchemaEditor) exec(statement string) error {
	e.log.LogDDL(statement)
	if _, err := e.q.ExecContext(e.ctx, statement); err != nil {
		return fmt.Errorf("DDL failed: %s: %w", statement, err)
	}
	return nil
}

// CreateModel creates the model's table along with every required index.
// Plain unique constraints, the primary key and foreign keys are embedded in
// the CREATE TABLE statement; index-backed requirements follow as separate
// CREATE INDEX statements.
func (e *SchemaEditor) CreateModel(model *schema.Model) error {
	if err := model.Validate(); err != nil {
		return err
	}

	createSQL, err := e.dialect.CreateTableSQL(model)
	if err != nil {
		return err
	}
	if err := e.exec(createSQL); err != nil {
		return err
	}

	required, err := ClassifyModel(model)
	if err != nil {
		return err
	}
	for _, req := range required.IndexBacked().Sorted() {
		if err := e.createRequirement(model.TableName, req); err != nil {
			return err
		}
	}

	return nil
}

// DeleteModel drops the model's table and everything on it
func (e *SchemaEditor) DeleteModel(model *schema.Model) error {
	return e.exec(e.dialect.DropTableSQL(model.TableName))
}

// AlterField transitions a column from its old descriptor to its new one.
//
// Ordering is the heart of the operation: every constraint drop executes
// before the column alteration (the database may reject altering a column
// that a unique index still depends on), and every create executes after it.
// Requirements present in both classifications are left completely untouched.
//
// With strict set, the editor re-introspects after the alteration and
// verifies the index-count invariant for the altered column.
func (e *SchemaEditor) AlterField(model *schema.Model, oldField, newField schema.FieldDescriptor, strict bool) error {
	table := model.TableName

	live, err := e.dialect.GetConstraints(e.ctx, e.q, table)
	if err != nil {
		return err
	}

	differ := NewDiffer(model)
	diff, err := differ.DiffField(oldField, newField, live)
	if err != nil {
		return err
	}

	columnChanged := columnNeedsAlter(oldField, newField)

	if e.needsRebuild(columnChanged, diff) {
		return e.rebuildTable(model, oldField, newField, diff, strict)
	}

	for _, drop := range diff.Drops {
		if err := e.dropConstraint(table, drop.Constraint); err != nil {
			return err
		}
	}

	if columnChanged {
		stmts, err := e.dialect.AlterColumnSQL(model, oldField, newField)
		if err != nil {
			return err
		}
		for _, stmt := range stmts {
			if err := e.exec(stmt); err != nil {
				return err
			}
		}
	}

	for _, req := range diff.Creates {
		if err := e.createRequirement(table, req); err != nil {
			return err
		}
	}

	if strict {
		return e.verifyFieldIndexes(model, oldField, newField)
	}
	return nil
}

// RenameField renames a column. The backing indexes are renamed in place (or
// rewritten automatically by the dialect); a rename is never expressed as
// drop-then-create, which is how indexes get dropped and forgotten.
func (e *SchemaEditor) RenameField(model *schema.Model, oldField, newField schema.FieldDescriptor) error {
	table := model.TableName
	oldCol := oldField.GetColumnName()
	newCol := newField.GetColumnName()
	if oldCol == newCol {
		return nil
	}

	var affected []types.ConstraintInfo
	if e.dialect.SupportsRenameIndex() {
		live, err := e.dialect.GetConstraints(e.ctx, e.q, table)
		if err != nil {
			return err
		}
		for _, c := range live {
			if c.IndexBacked && containsColumn(c.Columns, oldCol) {
				affected = append(affected, c)
			}
		}
	}

	if err := e.exec(e.dialect.RenameColumnSQL(table, oldCol, newCol)); err != nil {
		return err
	}

	for _, c := range affected {
		columns := replaceColumn(c.Columns, oldCol, newCol)
		newName := utils.GenerateIndexName(table, columns, c.Unique(), "")
		if newName == c.Name {
			continue
		}
		if err := e.exec(e.dialect.RenameIndexSQL(table, c.Name, newName)); err != nil {
			return err
		}
	}

	return nil
}

// RenameTable renames the model's table, renaming indexes whose generated
// names embed the table name where the dialect allows it
func (e *SchemaEditor) RenameTable(model *schema.Model, oldTableName string) error {
	newTableName := model.TableName
	if oldTableName == newTableName {
		return nil
	}

	var affected []types.ConstraintInfo
	if e.dialect.SupportsRenameIndex() {
		live, err := e.dialect.GetConstraints(e.ctx, e.q, oldTableName)
		if err != nil {
			return err
		}
		for _, c := range live {
			if c.IndexBacked {
				affected = append(affected, c)
			}
		}
	}

	if err := e.exec(e.dialect.RenameTableSQL(oldTableName, newTableName)); err != nil {
		return err
	}

	for _, c := range affected {
		newName := utils.GenerateIndexName(newTableName, c.Columns, c.Unique(), "")
		if newName == c.Name {
			continue
		}
		if err := e.exec(e.dialect.RenameIndexSQL(newTableName, c.Name, newName)); err != nil {
			return err
		}
	}

	return nil
}

// AddField adds a column and creates its required constraints
func (e *SchemaEditor) AddField(model *schema.Model, field schema.FieldDescriptor) error {
	addSQL, err := e.dialect.AddColumnSQL(model.TableName, field)
	if err != nil {
		return err
	}
	if err := e.exec(addSQL); err != nil {
		return err
	}

	required, err := Classify(model, field)
	if err != nil {
		return err
	}

	// Rebuild-based dialects cannot ADD CONSTRAINT; plain unique and foreign
	// key constraints land in the remade table definition instead
	if !e.dialect.SupportsAlterColumn() && hasPlainRequirement(required) {
		return e.rebuildFromModel(model)
	}

	for _, req := range required.Sorted() {
		if err := e.createRequirement(model.TableName, req); err != nil {
			return err
		}
	}
	return nil
}

// RemoveField drops a column after dropping every constraint that depends on it
func (e *SchemaEditor) RemoveField(model *schema.Model, field schema.FieldDescriptor) error {
	table := model.TableName

	required, err := Classify(model, field)
	if err != nil {
		return err
	}

	// Rebuild-based dialects cannot DROP CONSTRAINT; the remade table simply
	// omits the column and everything attached to it
	if !e.dialect.SupportsAlterColumn() && hasPlainRequirement(required) {
		return e.rebuildFromModel(model)
	}

	live, err := e.dialect.GetConstraints(e.ctx, e.q, table)
	if err != nil {
		return err
	}
	for _, req := range required.Sorted() {
		constraint, err := resolveConstraint(table, req, live)
		if err != nil {
			return err
		}
		if err := e.dropConstraint(table, constraint); err != nil {
			return err
		}
	}

	return e.exec(e.dialect.DropColumnSQL(table, field.GetColumnName()))
}

func hasPlainRequirement(required RequiredSet) bool {
	for _, req := range required {
		if !req.IndexBacked() {
			return true
		}
	}
	return false
}

// AlterUniqueTogether reconciles the model's composite uniqueness groups from
// oldGroups to the groups declared on the model
func (e *SchemaEditor) AlterUniqueTogether(model *schema.Model, oldGroups [][]string) error {
	before, err := uniqueTogetherRequirements(model, oldGroups)
	if err != nil {
		return err
	}
	after, err := uniqueTogetherRequirements(model, model.UniqueTogether)
	if err != nil {
		return err
	}
	return e.applyRequirementDelta(model, before, after)
}

// AlterIndexTogether reconciles the model's composite index groups from
// oldGroups to the groups declared on the model
func (e *SchemaEditor) AlterIndexTogether(model *schema.Model, oldGroups [][]string) error {
	before, err := indexTogetherRequirements(model, oldGroups)
	if err != nil {
		return err
	}
	after, err := indexTogetherRequirements(model, model.IndexTogether)
	if err != nil {
		return err
	}
	return e.applyRequirementDelta(model, before, after)
}

// AddConstraint creates a named unique constraint. A non-empty condition
// produces a filtered unique index; otherwise a plain unique constraint.
func (e *SchemaEditor) AddConstraint(model *schema.Model, c schema.UniqueConstraint) error {
	req, err := constraintRequirement(model, c)
	if err != nil {
		return err
	}
	if req.Kind == types.ConstraintUnique && !e.dialect.SupportsAlterColumn() {
		return e.rebuildFromModel(model)
	}
	return e.createRequirement(model.TableName, *req)
}

// RemoveConstraint drops a named unique constraint, resolving it against the
// live catalog by column-set
func (e *SchemaEditor) RemoveConstraint(model *schema.Model, c schema.UniqueConstraint) error {
	req, err := constraintRequirement(model, c)
	if err != nil {
		return err
	}
	if req.Kind == types.ConstraintUnique && !e.dialect.SupportsAlterColumn() {
		return e.rebuildFromModel(model)
	}

	live, err := e.dialect.GetConstraints(e.ctx, e.q, model.TableName)
	if err != nil {
		return err
	}
	constraint, err := resolveConstraint(model.TableName, *req, live)
	if err != nil {
		return err
	}
	return e.dropConstraint(model.TableName, constraint)
}

// applyRequirementDelta drops requirements no longer present and creates new
// ones; requirements in both sets are untouched
func (e *SchemaEditor) applyRequirementDelta(model *schema.Model, before, after RequiredSet) error {
	table := model.TableName

	touchesPlain := false
	for sig, req := range before {
		if _, still := after[sig]; !still && !req.IndexBacked() {
			touchesPlain = true
		}
	}
	for sig, req := range after {
		if _, had := before[sig]; !had && !req.IndexBacked() {
			touchesPlain = true
		}
	}
	if touchesPlain && !e.dialect.SupportsAlterColumn() {
		return e.rebuildFromModel(model)
	}

	live, err := e.dialect.GetConstraints(e.ctx, e.q, table)
	if err != nil {
		return err
	}

	for _, req := range before.Sorted() {
		if _, still := after[req.Signature()]; still {
			continue
		}
		constraint, err := resolveConstraint(table, req, live)
		if err != nil {
			return err
		}
		if err := e.dropConstraint(table, constraint); err != nil {
			return err
		}
	}

	for _, req := range after.Sorted() {
		if _, had := before[req.Signature()]; had {
			continue
		}
		if err := e.createRequirement(table, req); err != nil {
			return err
		}
	}

	return nil
}

// dropConstraint emits the statement matching the constraint's physical form
func (e *SchemaEditor) dropConstraint(table string, c types.ConstraintInfo) error {
	if c.IndexBacked {
		return e.exec(e.dialect.DropIndexSQL(table, c.Name))
	}
	return e.exec(e.dialect.DropConstraintSQL(table, c.Name, c.Kind))
}

// createRequirement materializes one requirement with a deterministic name
func (e *SchemaEditor) createRequirement(table string, req Requirement) error {
	switch req.Kind {
	case types.ConstraintIndex:
		name := utils.GenerateIndexName(table, req.Columns, false, "")
		return e.exec(e.dialect.CreateIndexSQL(table, name, req.Columns, false, ""))

	case types.ConstraintUniqueIndex:
		// A declared name takes precedence: a conditional unique constraint
		// may share its column-set with a generated filtered unique index, and
		// the generated name alone cannot tell the two apart
		name := utils.GenerateIndexName(table, req.Columns, true, req.Name)
		condition := req.Condition
		if condition == "" && req.FilterNulls && e.dialect.SupportsPartialIndexes() {
			condition = e.dialect.NotNullCondition(req.NullableColumns)
		}
		return e.exec(e.dialect.CreateIndexSQL(table, name, req.Columns, true, condition))

	case types.ConstraintUnique:
		name := utils.GenerateUniqueConstraintName(table, req.Columns)
		return e.exec(e.dialect.AddUniqueConstraintSQL(table, name, req.Columns))

	case types.ConstraintForeignKey:
		column := req.Columns[0]
		name := utils.GenerateForeignKeyName(table, column, req.RefTable)
		return e.exec(e.dialect.AddForeignKeySQL(table, name, column, req.RefTable, req.RefColumn, req.OnDelete))

	default:
		return fmt.Errorf("cannot create constraint of kind %s", req.Kind)
	}
}

// needsRebuild decides whether the dialect must remake the table for this
// alteration: rebuild-based dialects cannot alter columns or add/drop plain
// constraints in place
func (e *SchemaEditor) needsRebuild(columnChanged bool, diff *FieldDiff) bool {
	if e.dialect.SupportsAlterColumn() {
		return false
	}
	if columnChanged {
		return true
	}
	for _, drop := range diff.Drops {
		if !drop.Constraint.IndexBacked {
			return true
		}
	}
	for _, req := range diff.Creates {
		if !req.IndexBacked() {
			return true
		}
	}
	return false
}

// rebuildTable remakes the table from the new model state: create a shadow
// table, copy rows, drop the original (which drops its indexes), rename the
// shadow into place, then recreate every index-backed requirement. Index
// names are deterministic, so untouched indexes come back under their
// original names. Requirements the diff drops are excluded from recreation,
// the rebuild must not resurrect them.
func (e *SchemaEditor) rebuildTable(model *schema.Model, oldField, newField schema.FieldDescriptor, diff *FieldDiff, strict bool) error {
	excluded := make(map[string]bool, len(diff.Drops))
	for _, drop := range diff.Drops {
		excluded[drop.Requirement.Signature()] = true
	}

	if err := e.rebuildFromModelExcluding(model, excluded); err != nil {
		return err
	}
	if strict {
		return e.verifyFieldIndexes(model, oldField, newField)
	}
	return nil
}

func (e *SchemaEditor) rebuildFromModel(model *schema.Model) error {
	return e.rebuildFromModelExcluding(model, nil)
}

func (e *SchemaEditor) rebuildFromModelExcluding(model *schema.Model, excluded map[string]bool) error {
	table := model.TableName
	shadow := model.Clone().WithTableName(table + "__new")

	createSQL, err := e.dialect.CreateTableSQL(shadow)
	if err != nil {
		return err
	}
	if err := e.exec(createSQL); err != nil {
		return err
	}

	columns := make([]string, len(model.Fields))
	for i, f := range model.Fields {
		columns[i] = e.dialect.QuoteIdentifier(f.GetColumnName())
	}
	columnList := strings.Join(columns, ", ")

	copySQL := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s",
		e.dialect.QuoteIdentifier(shadow.TableName), columnList, columnList,
		e.dialect.QuoteIdentifier(table))
	if err := e.exec(copySQL); err != nil {
		return err
	}

	if err := e.exec(e.dialect.DropTableSQL(table)); err != nil {
		return err
	}
	if err := e.exec(e.dialect.RenameTableSQL(shadow.TableName, table)); err != nil {
		return err
	}

	required, err := ClassifyModel(model)
	if err != nil {
		return err
	}
	for _, req := range required.IndexBacked().Sorted() {
		if excluded[req.Signature()] {
			continue
		}
		if err := e.createRequirement(table, req); err != nil {
			return err
		}
	}
	return nil
}

// verifyFieldIndexes re-introspects and checks the index-count invariant for
// one field: the number of index-backed constraints covering its column must
// equal the number of distinct required-constraint causes after the
// alteration, retention policy included
func (e *SchemaEditor) verifyFieldIndexes(model *schema.Model, oldField, newField schema.FieldDescriptor) error {
	required, err := NewDiffer(model).RequiredAfter(oldField, newField)
	if err != nil {
		return err
	}
	expected := len(required.IndexBacked())

	// Column-sets of plain unique requirements: engines without standalone
	// unique constraints realize them as unique indexes, which must not count
	// against the index-backed total
	plainUniqueSets := make(map[string]bool)
	for _, req := range required {
		if req.Kind == types.ConstraintUnique {
			plainUniqueSets[req.ColumnSet()] = true
		}
	}

	live, err := e.dialect.GetConstraints(e.ctx, e.q, model.TableName)
	if err != nil {
		return err
	}

	column := newField.GetColumnName()
	actual := 0
	for _, c := range live {
		if !c.IndexBacked || !containsColumn(c.Columns, column) {
			continue
		}
		if c.Unique() && plainUniqueSets[c.ColumnSet()] {
			continue
		}
		actual++
	}

	if actual != expected {
		return &types.IndexCountError{
			Table:    model.TableName,
			Column:   column,
			Expected: expected,
			Actual:   actual,
		}
	}
	return nil
}

// columnNeedsAlter reports whether the column definition itself changed
func columnNeedsAlter(oldField, newField schema.FieldDescriptor) bool {
	if oldField.Type != newField.Type {
		return true
	}
	if oldField.Nullable != newField.Nullable {
		return true
	}
	if oldField.AutoIncrement != newField.AutoIncrement {
		return true
	}
	return !defaultValuesEqual(oldField.Default, newField.Default)
}

func defaultValuesEqual(existing, desired any) bool {
	if existing == nil && desired == nil {
		return true
	}
	if existing == nil || desired == nil {
		return false
	}
	return fmt.Sprintf("%v", existing) == fmt.Sprintf("%v", desired)
}

func containsColumn(columns []string, column string) bool {
	for _, c := range columns {
		if strings.EqualFold(c, column) {
			return true
		}
	}
	return false
}

func replaceColumn(columns []string, oldCol, newCol string) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		if strings.EqualFold(c, oldCol) {
			out[i] = newCol
		} else {
			out[i] = c
		}
	}
	return out
}

// uniqueTogetherRequirements builds the requirement set for a list of
// composite uniqueness groups
func uniqueTogetherRequirements(m *schema.Model, groups [][]string) (RequiredSet, error) {
	required := make(RequiredSet)
	for _, group := range groups {
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
	return required, nil
}

// indexTogetherRequirements builds the requirement set for a list of
// composite index groups
func indexTogetherRequirements(m *schema.Model, groups [][]string) (RequiredSet, error) {
	required := make(RequiredSet)
	for _, group := range groups {
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
	return required, nil
}

// constraintRequirement maps a declared unique constraint to its requirement
func constraintRequirement(m *schema.Model, c schema.UniqueConstraint) (*Requirement, error) {
	columns, err := m.MapFieldNamesToColumns(c.Fields)
	if err != nil {
		return nil, err
	}
	if c.Condition != "" {
		return &Requirement{
			Cause:     CauseConditionalUnique,
			Kind:      types.ConstraintUniqueIndex,
			Columns:   columns,
			Condition: c.Condition,
			Name:      c.Name,
		}, nil
	}
	return &Requirement{
		Cause:   CauseUnique,
		Kind:    types.ConstraintUnique,
		Columns: columns,
	}, nil
}
