package migration

import (
	"fmt"

	"github.com/rediwo/redi-migrate/schema"
)

// Operation is one declarative schema change. Operations advance the project
// state independently of the database, so the applier can compute the exact
// pre- and post-operation model snapshots before any DDL runs.
type Operation interface {
	// Describe returns a short human-readable label for logs and status output
	Describe() string

	// StateForwards mutates the in-memory project state to reflect the
	// operation. It must not touch the database.
	StateForwards(state *ProjectState) error

	// DatabaseForwards applies the operation's DDL. from is the state before
	// this operation, to the state after it.
	DatabaseForwards(e *SchemaEditor, from, to *ProjectState) error
}

// CreateModel creates a new table from a model declaration
type CreateModel struct {
	Model *schema.Model
}

func (op *CreateModel) Describe() string {
	return fmt.Sprintf("create model %s", op.Model.Name)
}

func (op *CreateModel) StateForwards(state *ProjectState) error {
	return state.AddModel(op.Model.Clone())
}

func (op *CreateModel) DatabaseForwards(e *SchemaEditor, from, to *ProjectState) error {
	model, err := to.Model(op.Model.Name)
	if err != nil {
		return err
	}
	return e.CreateModel(model)
}

// DeleteModel drops a model's table
type DeleteModel struct {
	ModelName string
}

func (op *DeleteModel) Describe() string {
	return fmt.Sprintf("delete model %s", op.ModelName)
}

func (op *DeleteModel) StateForwards(state *ProjectState) error {
	return state.RemoveModel(op.ModelName)
}

func (op *DeleteModel) DatabaseForwards(e *SchemaEditor, from, to *ProjectState) error {
	model, err := from.Model(op.ModelName)
	if err != nil {
		return err
	}
	return e.DeleteModel(model)
}

// AddField adds a field to an existing model
type AddField struct {
	ModelName string
	Field     schema.FieldDescriptor
}

func (op *AddField) Describe() string {
	return fmt.Sprintf("add field %s.%s", op.ModelName, op.Field.Name)
}

func (op *AddField) StateForwards(state *ProjectState) error {
	model, err := state.Model(op.ModelName)
	if err != nil {
		return err
	}
	if _, err := model.GetField(op.Field.Name); err == nil {
		return fmt.Errorf("field %s already exists on model %s", op.Field.Name, op.ModelName)
	}
	model.AddField(op.Field.Clone())
	return nil
}

func (op *AddField) DatabaseForwards(e *SchemaEditor, from, to *ProjectState) error {
	model, err := to.Model(op.ModelName)
	if err != nil {
		return err
	}
	field, err := model.GetField(op.Field.Name)
	if err != nil {
		return err
	}
	return e.AddField(model, *field)
}

// RemoveField removes a field from an existing model
type RemoveField struct {
	ModelName string
	FieldName string
}

func (op *RemoveField) Describe() string {
	return fmt.Sprintf("remove field %s.%s", op.ModelName, op.FieldName)
}

func (op *RemoveField) StateForwards(state *ProjectState) error {
	model, err := state.Model(op.ModelName)
	if err != nil {
		return err
	}
	return removeModelField(model, op.FieldName)
}

func (op *RemoveField) DatabaseForwards(e *SchemaEditor, from, to *ProjectState) error {
	fromModel, err := from.Model(op.ModelName)
	if err != nil {
		return err
	}
	field, err := fromModel.GetField(op.FieldName)
	if err != nil {
		return err
	}
	toModel, err := to.Model(op.ModelName)
	if err != nil {
		return err
	}
	return e.RemoveField(toModel, *field)
}

// AlterField replaces a field's descriptor, reconciling its constraints.
// Strict re-verifies the field's index count against the live catalog after
// the alteration.
type AlterField struct {
	ModelName string
	FieldName string
	NewField  schema.FieldDescriptor
	Strict    bool
}

func (op *AlterField) Describe() string {
	return fmt.Sprintf("alter field %s.%s", op.ModelName, op.FieldName)
}

func (op *AlterField) StateForwards(state *ProjectState) error {
	model, err := state.Model(op.ModelName)
	if err != nil {
		return err
	}
	if op.NewField.Name != op.FieldName {
		return fmt.Errorf("alter field cannot rename %s to %s", op.FieldName, op.NewField.Name)
	}
	return replaceModelField(model, op.NewField.Clone())
}

func (op *AlterField) DatabaseForwards(e *SchemaEditor, from, to *ProjectState) error {
	fromModel, err := from.Model(op.ModelName)
	if err != nil {
		return err
	}
	oldField, err := fromModel.GetField(op.FieldName)
	if err != nil {
		return err
	}
	toModel, err := to.Model(op.ModelName)
	if err != nil {
		return err
	}
	newField, err := toModel.GetField(op.FieldName)
	if err != nil {
		return err
	}
	return e.AlterField(toModel, *oldField, *newField, op.Strict)
}

// RenameField renames a field and its column, keeping backing indexes alive
type RenameField struct {
	ModelName    string
	OldFieldName string
	NewFieldName string
}

func (op *RenameField) Describe() string {
	return fmt.Sprintf("rename field %s.%s to %s", op.ModelName, op.OldFieldName, op.NewFieldName)
}

func (op *RenameField) StateForwards(state *ProjectState) error {
	model, err := state.Model(op.ModelName)
	if err != nil {
		return err
	}
	field, err := model.GetField(op.OldFieldName)
	if err != nil {
		return err
	}
	if _, err := model.GetField(op.NewFieldName); err == nil {
		return fmt.Errorf("field %s already exists on model %s", op.NewFieldName, op.ModelName)
	}
	renamed := field.Clone()
	renamed.Name = op.NewFieldName
	if err := replaceModelFieldByName(model, op.OldFieldName, renamed); err != nil {
		return err
	}
	renameInGroups(model.UniqueTogether, op.OldFieldName, op.NewFieldName)
	renameInGroups(model.IndexTogether, op.OldFieldName, op.NewFieldName)
	for i := range model.Constraints {
		renameInGroup(model.Constraints[i].Fields, op.OldFieldName, op.NewFieldName)
	}
	return nil
}

func (op *RenameField) DatabaseForwards(e *SchemaEditor, from, to *ProjectState) error {
	fromModel, err := from.Model(op.ModelName)
	if err != nil {
		return err
	}
	oldField, err := fromModel.GetField(op.OldFieldName)
	if err != nil {
		return err
	}
	toModel, err := to.Model(op.ModelName)
	if err != nil {
		return err
	}
	newField, err := toModel.GetField(op.NewFieldName)
	if err != nil {
		return err
	}
	return e.RenameField(toModel, *oldField, *newField)
}

// RenameTable changes a model's backing table name
type RenameTable struct {
	ModelName    string
	NewTableName string
}

func (op *RenameTable) Describe() string {
	return fmt.Sprintf("rename table of %s to %s", op.ModelName, op.NewTableName)
}

func (op *RenameTable) StateForwards(state *ProjectState) error {
	model, err := state.Model(op.ModelName)
	if err != nil {
		return err
	}
	model.TableName = op.NewTableName
	return nil
}

func (op *RenameTable) DatabaseForwards(e *SchemaEditor, from, to *ProjectState) error {
	fromModel, err := from.Model(op.ModelName)
	if err != nil {
		return err
	}
	toModel, err := to.Model(op.ModelName)
	if err != nil {
		return err
	}
	return e.RenameTable(toModel, fromModel.TableName)
}

// AlterUniqueTogether replaces a model's composite uniqueness groups
type AlterUniqueTogether struct {
	ModelName      string
	UniqueTogether [][]string
}

func (op *AlterUniqueTogether) Describe() string {
	return fmt.Sprintf("alter unique_together on %s", op.ModelName)
}

func (op *AlterUniqueTogether) StateForwards(state *ProjectState) error {
	model, err := state.Model(op.ModelName)
	if err != nil {
		return err
	}
	model.UniqueTogether = cloneGroups(op.UniqueTogether)
	return nil
}

func (op *AlterUniqueTogether) DatabaseForwards(e *SchemaEditor, from, to *ProjectState) error {
	fromModel, err := from.Model(op.ModelName)
	if err != nil {
		return err
	}
	toModel, err := to.Model(op.ModelName)
	if err != nil {
		return err
	}
	return e.AlterUniqueTogether(toModel, fromModel.UniqueTogether)
}

// AlterIndexTogether replaces a model's composite index groups
type AlterIndexTogether struct {
	ModelName     string
	IndexTogether [][]string
}

func (op *AlterIndexTogether) Describe() string {
	return fmt.Sprintf("alter index_together on %s", op.ModelName)
}

func (op *AlterIndexTogether) StateForwards(state *ProjectState) error {
	model, err := state.Model(op.ModelName)
	if err != nil {
		return err
	}
	model.IndexTogether = cloneGroups(op.IndexTogether)
	return nil
}

func (op *AlterIndexTogether) DatabaseForwards(e *SchemaEditor, from, to *ProjectState) error {
	fromModel, err := from.Model(op.ModelName)
	if err != nil {
		return err
	}
	toModel, err := to.Model(op.ModelName)
	if err != nil {
		return err
	}
	return e.AlterIndexTogether(toModel, fromModel.IndexTogether)
}

// AddConstraint declares a named unique constraint on a model
type AddConstraint struct {
	ModelName  string
	Constraint schema.UniqueConstraint
}

func (op *AddConstraint) Describe() string {
	return fmt.Sprintf("add constraint %s on %s", op.Constraint.Name, op.ModelName)
}

func (op *AddConstraint) StateForwards(state *ProjectState) error {
	model, err := state.Model(op.ModelName)
	if err != nil {
		return err
	}
	if _, err := model.GetConstraint(op.Constraint.Name); err == nil {
		return fmt.Errorf("constraint %s already exists on model %s", op.Constraint.Name, op.ModelName)
	}
	model.AddConstraint(op.Constraint)
	return nil
}

func (op *AddConstraint) DatabaseForwards(e *SchemaEditor, from, to *ProjectState) error {
	model, err := to.Model(op.ModelName)
	if err != nil {
		return err
	}
	c, err := model.GetConstraint(op.Constraint.Name)
	if err != nil {
		return err
	}
	return e.AddConstraint(model, *c)
}

// RemoveConstraint drops a named unique constraint from a model
type RemoveConstraint struct {
	ModelName      string
	ConstraintName string
}

func (op *RemoveConstraint) Describe() string {
	return fmt.Sprintf("remove constraint %s from %s", op.ConstraintName, op.ModelName)
}

func (op *RemoveConstraint) StateForwards(state *ProjectState) error {
	model, err := state.Model(op.ModelName)
	if err != nil {
		return err
	}
	for i, c := range model.Constraints {
		if c.Name == op.ConstraintName {
			model.Constraints = append(model.Constraints[:i], model.Constraints[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("constraint %s not found on model %s", op.ConstraintName, op.ModelName)
}

func (op *RemoveConstraint) DatabaseForwards(e *SchemaEditor, from, to *ProjectState) error {
	fromModel, err := from.Model(op.ModelName)
	if err != nil {
		return err
	}
	c, err := fromModel.GetConstraint(op.ConstraintName)
	if err != nil {
		return err
	}
	toModel, err := to.Model(op.ModelName)
	if err != nil {
		return err
	}
	return e.RemoveConstraint(toModel, *c)
}

func removeModelField(model *schema.Model, name string) error {
	for i, f := range model.Fields {
		if f.Name == name {
			model.Fields = append(model.Fields[:i], model.Fields[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("field %s not found on model %s", name, model.Name)
}

func replaceModelField(model *schema.Model, field schema.FieldDescriptor) error {
	return replaceModelFieldByName(model, field.Name, field)
}

func replaceModelFieldByName(model *schema.Model, oldName string, field schema.FieldDescriptor) error {
	for i, f := range model.Fields {
		if f.Name == oldName {
			model.Fields[i] = field
			return nil
		}
	}
	return fmt.Errorf("field %s not found on model %s", oldName, model.Name)
}

func renameInGroups(groups [][]string, oldName, newName string) {
	for _, group := range groups {
		renameInGroup(group, oldName, newName)
	}
}

func renameInGroup(group []string, oldName, newName string) {
	for i, n := range group {
		if n == oldName {
			group[i] = newName
		}
	}
}

func cloneGroups(groups [][]string) [][]string {
	out := make([][]string, len(groups))
	for i, g := range groups {
		out[i] = append([]string(nil), g...)
	}
	return out
}
