package migration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rediwo/redi-migrate/schema"
)

func baseState(t *testing.T) *ProjectState {
	t.Helper()
	state := NewProjectState()
	model := schema.New("User").
		AddField(schema.FieldDescriptor{Name: "id", Type: schema.FieldTypeInt64, PrimaryKey: true}).
		AddField(schema.FieldDescriptor{Name: "email", Type: schema.FieldTypeString})
	require.NoError(t, state.AddModel(model))
	return state
}

func TestOperations_StateForwards(t *testing.T) {
	tests := []struct {
		name    string
		op      Operation
		wantErr string
		check   func(t *testing.T, state *ProjectState)
	}{
		{
			name: "create model",
			op:   &CreateModel{Model: schema.New("Post").AddField(schema.FieldDescriptor{Name: "id", Type: schema.FieldTypeInt64, PrimaryKey: true})},
			check: func(t *testing.T, state *ProjectState) {
				_, err := state.Model("Post")
				assert.NoError(t, err)
			},
		},
		{
			name:    "create duplicate model",
			op:      &CreateModel{Model: schema.New("User")},
			wantErr: "already exists",
		},
		{
			name: "delete model",
			op:   &DeleteModel{ModelName: "User"},
			check: func(t *testing.T, state *ProjectState) {
				_, err := state.Model("User")
				assert.Error(t, err)
			},
		},
		{
			name: "add field",
			op:   &AddField{ModelName: "User", Field: schema.FieldDescriptor{Name: "age", Type: schema.FieldTypeInt}},
			check: func(t *testing.T, state *ProjectState) {
				model, err := state.Model("User")
				require.NoError(t, err)
				_, err = model.GetField("age")
				assert.NoError(t, err)
			},
		},
		{
			name:    "add duplicate field",
			op:      &AddField{ModelName: "User", Field: schema.FieldDescriptor{Name: "email", Type: schema.FieldTypeString}},
			wantErr: "already exists",
		},
		{
			name: "remove field",
			op:   &RemoveField{ModelName: "User", FieldName: "email"},
			check: func(t *testing.T, state *ProjectState) {
				model, err := state.Model("User")
				require.NoError(t, err)
				_, err = model.GetField("email")
				assert.Error(t, err)
			},
		},
		{
			name:    "remove missing field",
			op:      &RemoveField{ModelName: "User", FieldName: "ghost"},
			wantErr: "not found",
		},
		{
			name: "alter field",
			op: &AlterField{
				ModelName: "User", FieldName: "email",
				NewField: schema.FieldDescriptor{Name: "email", Type: schema.FieldTypeString, Unique: true},
			},
			check: func(t *testing.T, state *ProjectState) {
				model, err := state.Model("User")
				require.NoError(t, err)
				field, err := model.GetField("email")
				require.NoError(t, err)
				assert.True(t, field.Unique)
			},
		},
		{
			name: "alter field cannot rename",
			op: &AlterField{
				ModelName: "User", FieldName: "email",
				NewField: schema.FieldDescriptor{Name: "mail", Type: schema.FieldTypeString},
			},
			wantErr: "cannot rename",
		},
		{
			name: "rename table",
			op:   &RenameTable{ModelName: "User", NewTableName: "accounts"},
			check: func(t *testing.T, state *ProjectState) {
				model, err := state.Model("User")
				require.NoError(t, err)
				assert.Equal(t, "accounts", model.TableName)
			},
		},
		{
			name: "alter unique together",
			op:   &AlterUniqueTogether{ModelName: "User", UniqueTogether: [][]string{{"id", "email"}}},
			check: func(t *testing.T, state *ProjectState) {
				model, err := state.Model("User")
				require.NoError(t, err)
				assert.Equal(t, [][]string{{"id", "email"}}, model.UniqueTogether)
			},
		},
		{
			name: "add constraint",
			op: &AddConstraint{ModelName: "User", Constraint: schema.UniqueConstraint{
				Name: "uniq_email", Fields: []string{"email"},
			}},
			check: func(t *testing.T, state *ProjectState) {
				model, err := state.Model("User")
				require.NoError(t, err)
				_, err = model.GetConstraint("uniq_email")
				assert.NoError(t, err)
			},
		},
		{
			name:    "remove missing constraint",
			op:      &RemoveConstraint{ModelName: "User", ConstraintName: "nope"},
			wantErr: "not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := baseState(t)
			err := tt.op.StateForwards(state)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, state)
			}
		})
	}
}

func TestRenameField_StateRewritesGroupMemberships(t *testing.T) {
	state := NewProjectState()
	model := schema.New("Booking").
		AddField(schema.FieldDescriptor{Name: "id", Type: schema.FieldTypeInt64, PrimaryKey: true}).
		AddField(schema.FieldDescriptor{Name: "roomId", Type: schema.FieldTypeInt64}).
		AddField(schema.FieldDescriptor{Name: "day", Type: schema.FieldTypeDateTime}).
		AddUniqueTogether("roomId", "day").
		AddIndexTogether("roomId", "day").
		AddConstraint(schema.UniqueConstraint{Name: "c", Fields: []string{"roomId"}, Condition: "active = 1"})
	require.NoError(t, state.AddModel(model))

	op := &RenameField{ModelName: "Booking", OldFieldName: "roomId", NewFieldName: "suiteId"}
	require.NoError(t, op.StateForwards(state))

	got, err := state.Model("Booking")
	require.NoError(t, err)

	_, err = got.GetField("suiteId")
	assert.NoError(t, err)
	assert.Equal(t, [][]string{{"suiteId", "day"}}, got.UniqueTogether)
	assert.Equal(t, [][]string{{"suiteId", "day"}}, got.IndexTogether)
	assert.Equal(t, []string{"suiteId"}, got.Constraints[0].Fields)
}

func TestProjectState_CloneIsDeep(t *testing.T) {
	state := baseState(t)
	clone := state.Clone()

	model, err := clone.Model("User")
	require.NoError(t, err)
	model.TableName = "mutated"
	model.Fields[0].Name = "mutated"

	original, err := state.Model("User")
	require.NoError(t, err)
	assert.Equal(t, "users", original.TableName)
	assert.Equal(t, "id", original.Fields[0].Name)
}

func TestOperationStatus_String(t *testing.T) {
	assert.Equal(t, "unapplied", StatusUnapplied.String())
	assert.Equal(t, "applying", StatusApplying.String())
	assert.Equal(t, "applied", StatusApplied.String())
	assert.Equal(t, "failed", StatusFailed.String())
}
