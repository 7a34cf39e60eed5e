package migration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rediwo/redi-migrate/schema"
	"github.com/rediwo/redi-migrate/types"
)

// recordingExecer captures every statement the editor executes
type recordingExecer struct {
	statements []string
}

func (r *recordingExecer) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	r.statements = append(r.statements, query)
	return nil, nil
}

func (r *recordingExecer) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return nil, fmt.Errorf("unexpected query: %s", query)
}

func (r *recordingExecer) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return nil
}

// fakeDialect answers introspection from a canned constraint map and renders
// DDL as plain unquoted statements
type fakeDialect struct {
	partial     bool
	alterColumn bool
	renameIndex bool
	constraints map[string]types.ConstraintInfo
}

func (d *fakeDialect) GetDriverType() types.DriverType   { return "fake" }
func (d *fakeDialect) QuoteIdentifier(name string) string { return name }
func (d *fakeDialect) SupportsPartialIndexes() bool       { return d.partial }
func (d *fakeDialect) SupportsAlterColumn() bool          { return d.alterColumn }
func (d *fakeDialect) SupportsRenameIndex() bool          { return d.renameIndex }

func (d *fakeDialect) GetTables(ctx context.Context, q types.Execer) ([]string, error) {
	return nil, nil
}

func (d *fakeDialect) GetConstraints(ctx context.Context, q types.Execer, tableName string) (map[string]types.ConstraintInfo, error) {
	out := make(map[string]types.ConstraintInfo, len(d.constraints))
	for k, v := range d.constraints {
		out[k] = v
	}
	return out, nil
}

func (d *fakeDialect) CreateTableSQL(model *schema.Model) (string, error) {
	return "CREATE TABLE " + model.TableName, nil
}

func (d *fakeDialect) DropTableSQL(tableName string) string {
	return "DROP TABLE " + tableName
}

func (d *fakeDialect) RenameTableSQL(oldName, newName string) string {
	return fmt.Sprintf("RENAME TABLE %s TO %s", oldName, newName)
}

func (d *fakeDialect) AddColumnSQL(tableName string, field schema.FieldDescriptor) (string, error) {
	return fmt.Sprintf("ADD COLUMN %s.%s", tableName, field.GetColumnName()), nil
}

func (d *fakeDialect) DropColumnSQL(tableName, columnName string) string {
	return fmt.Sprintf("DROP COLUMN %s.%s", tableName, columnName)
}

func (d *fakeDialect) RenameColumnSQL(tableName, oldName, newName string) string {
	return fmt.Sprintf("RENAME COLUMN %s.%s TO %s", tableName, oldName, newName)
}

func (d *fakeDialect) AlterColumnSQL(model *schema.Model, oldField, newField schema.FieldDescriptor) ([]string, error) {
	return []string{fmt.Sprintf("ALTER COLUMN %s.%s", model.TableName, newField.GetColumnName())}, nil
}

func (d *fakeDialect) CreateIndexSQL(tableName, indexName string, columns []string, unique bool, condition string) string {
	kw := "INDEX"
	if unique {
		kw = "UNIQUE INDEX"
	}
	stmt := fmt.Sprintf("CREATE %s %s ON %s (%s)", kw, indexName, tableName, strings.Join(columns, ", "))
	if condition != "" {
		stmt += " WHERE " + condition
	}
	return stmt
}

func (d *fakeDialect) DropIndexSQL(tableName, indexName string) string {
	return "DROP INDEX " + indexName
}

func (d *fakeDialect) RenameIndexSQL(tableName, oldName, newName string) string {
	return fmt.Sprintf("RENAME INDEX %s TO %s", oldName, newName)
}

func (d *fakeDialect) AddUniqueConstraintSQL(tableName, constraintName string, columns []string) string {
	return fmt.Sprintf("ADD CONSTRAINT %s UNIQUE (%s)", constraintName, strings.Join(columns, ", "))
}

func (d *fakeDialect) AddForeignKeySQL(tableName, constraintName, column, refTable, refColumn, onDelete string) string {
	return fmt.Sprintf("ADD CONSTRAINT %s FOREIGN KEY (%s)", constraintName, column)
}

func (d *fakeDialect) DropConstraintSQL(tableName, constraintName string, kind types.ConstraintKind) string {
	return "DROP CONSTRAINT " + constraintName
}

func (d *fakeDialect) NotNullCondition(columns []string) string {
	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = c + " IS NOT NULL"
	}
	return strings.Join(parts, " AND ")
}

func newTestEditor(dialect types.Dialect) (*SchemaEditor, *recordingExecer) {
	exec := &recordingExecer{}
	return NewSchemaEditor(context.Background(), exec, dialect), exec
}

func TestAlterField_DropsBeforeAlterBeforeCreates(t *testing.T) {
	model := schema.New("User").
		AddField(schema.FieldDescriptor{Name: "id", Type: schema.FieldTypeInt64, PrimaryKey: true}).
		AddField(schema.FieldDescriptor{Name: "email", Type: schema.FieldTypeString, Unique: true})

	dialect := &fakeDialect{
		partial:     true,
		alterColumn: true,
		renameIndex: true,
		constraints: map[string]types.ConstraintInfo{
			"uniq_users_email": {
				Name: "uniq_users_email", Kind: types.ConstraintUniqueIndex,
				Columns: []string{"email"}, IndexBacked: true,
				Condition: "email IS NOT NULL",
			},
		},
	}
	editor, exec := newTestEditor(dialect)

	oldField := schema.FieldDescriptor{Name: "email", Type: schema.FieldTypeString, Unique: true, Nullable: true}
	newField := schema.FieldDescriptor{Name: "email", Type: schema.FieldTypeString, Unique: true}

	err := editor.AlterField(model, oldField, newField, false)
	require.NoError(t, err)

	require.Len(t, exec.statements, 3)
	assert.Equal(t, "DROP INDEX uniq_users_email", exec.statements[0])
	assert.Equal(t, "ALTER COLUMN users.email", exec.statements[1])
	assert.Equal(t, "ADD CONSTRAINT uc_users_email UNIQUE (email)", exec.statements[2])
}

func TestAlterField_UntouchedRequirementsStayUntouched(t *testing.T) {
	model := schema.New("User").
		AddField(schema.FieldDescriptor{Name: "id", Type: schema.FieldTypeInt64, PrimaryKey: true}).
		AddField(schema.FieldDescriptor{Name: "email", Type: schema.FieldTypeString, DbIndex: true})

	dialect := &fakeDialect{
		partial:     true,
		alterColumn: true,
		renameIndex: true,
		constraints: map[string]types.ConstraintInfo{
			"idx_users_email": {
				Name: "idx_users_email", Kind: types.ConstraintIndex,
				Columns: []string{"email"}, IndexBacked: true,
			},
		},
	}
	editor, exec := newTestEditor(dialect)

	oldField := schema.FieldDescriptor{Name: "email", Type: schema.FieldTypeString, DbIndex: true}
	newField := schema.FieldDescriptor{Name: "email", Type: schema.FieldTypeJSON, DbIndex: true}

	err := editor.AlterField(model, oldField, newField, false)
	require.NoError(t, err)

	// Just the column alteration, no index drop or create
	require.Len(t, exec.statements, 1)
	assert.Equal(t, "ALTER COLUMN users.email", exec.statements[0])
}

func TestAlterField_RebuildWhenAlterColumnUnsupported(t *testing.T) {
	model := schema.New("User").
		AddField(schema.FieldDescriptor{Name: "id", Type: schema.FieldTypeInt64, PrimaryKey: true}).
		AddField(schema.FieldDescriptor{Name: "email", Type: schema.FieldTypeString, DbIndex: true})

	dialect := &fakeDialect{
		partial: true,
		constraints: map[string]types.ConstraintInfo{
			"idx_users_email": {
				Name: "idx_users_email", Kind: types.ConstraintIndex,
				Columns: []string{"email"}, IndexBacked: true,
			},
		},
	}
	editor, exec := newTestEditor(dialect)

	oldField := schema.FieldDescriptor{Name: "email", Type: schema.FieldTypeString, DbIndex: true}
	newField := schema.FieldDescriptor{Name: "email", Type: schema.FieldTypeJSON, DbIndex: true}

	err := editor.AlterField(model, oldField, newField, false)
	require.NoError(t, err)

	require.Len(t, exec.statements, 5)
	assert.Equal(t, "CREATE TABLE users__new", exec.statements[0])
	assert.Contains(t, exec.statements[1], "INSERT INTO users__new")
	assert.Equal(t, "DROP TABLE users", exec.statements[2])
	assert.Equal(t, "RENAME TABLE users__new TO users", exec.statements[3])
	// Deterministic naming brings the index back under its original name
	assert.Equal(t, "CREATE INDEX idx_users_email ON users (email)", exec.statements[4])
}

func TestRenameField_RenamesIndexInPlace(t *testing.T) {
	model := schema.New("User").
		AddField(schema.FieldDescriptor{Name: "id", Type: schema.FieldTypeInt64, PrimaryKey: true}).
		AddField(schema.FieldDescriptor{Name: "contactEmail", Type: schema.FieldTypeString, DbIndex: true})

	dialect := &fakeDialect{
		partial:     true,
		alterColumn: true,
		renameIndex: true,
		constraints: map[string]types.ConstraintInfo{
			"idx_users_email": {
				Name: "idx_users_email", Kind: types.ConstraintIndex,
				Columns: []string{"email"}, IndexBacked: true,
			},
		},
	}
	editor, exec := newTestEditor(dialect)

	oldField := schema.FieldDescriptor{Name: "email", Type: schema.FieldTypeString, DbIndex: true}
	newField := schema.FieldDescriptor{Name: "contactEmail", Type: schema.FieldTypeString, DbIndex: true}

	err := editor.RenameField(model, oldField, newField)
	require.NoError(t, err)

	require.Len(t, exec.statements, 2)
	assert.Equal(t, "RENAME COLUMN users.email TO contact_email", exec.statements[0])
	assert.Equal(t, "RENAME INDEX idx_users_email TO idx_users_contact_email", exec.statements[1])

	for _, stmt := range exec.statements {
		assert.NotContains(t, stmt, "DROP")
		assert.NotContains(t, stmt, "CREATE")
	}
}

func TestRenameField_NoIndexRenameWhenDialectRewrites(t *testing.T) {
	model := schema.New("User").
		AddField(schema.FieldDescriptor{Name: "id", Type: schema.FieldTypeInt64, PrimaryKey: true}).
		AddField(schema.FieldDescriptor{Name: "contactEmail", Type: schema.FieldTypeString, DbIndex: true})

	// renameIndex off: the engine rewrites index definitions on its own
	dialect := &fakeDialect{partial: true, alterColumn: true}
	editor, exec := newTestEditor(dialect)

	oldField := schema.FieldDescriptor{Name: "email", Type: schema.FieldTypeString, DbIndex: true}
	newField := schema.FieldDescriptor{Name: "contactEmail", Type: schema.FieldTypeString, DbIndex: true}

	err := editor.RenameField(model, oldField, newField)
	require.NoError(t, err)

	require.Len(t, exec.statements, 1)
	assert.Equal(t, "RENAME COLUMN users.email TO contact_email", exec.statements[0])
}

func TestAlterField_StrictVerifiesIndexCount(t *testing.T) {
	model := schema.New("User").
		AddField(schema.FieldDescriptor{Name: "id", Type: schema.FieldTypeInt64, PrimaryKey: true}).
		AddField(schema.FieldDescriptor{Name: "email", Type: schema.FieldTypeString})

	// Live catalog stays stale: the index requirement exists but introspection
	// keeps reporting nothing index-backed
	dialect := &fakeDialect{
		partial:     true,
		alterColumn: true,
		renameIndex: true,
		constraints: map[string]types.ConstraintInfo{},
	}
	editor, _ := newTestEditor(dialect)

	oldField := schema.FieldDescriptor{Name: "email", Type: schema.FieldTypeString}
	newField := schema.FieldDescriptor{Name: "email", Type: schema.FieldTypeString, DbIndex: true}

	err := editor.AlterField(model, oldField, newField, true)

	var countErr *types.IndexCountError
	require.ErrorAs(t, err, &countErr)
	assert.Equal(t, 1, countErr.Expected)
	assert.Equal(t, 0, countErr.Actual)
}

func TestCreateModel_EmbedsPlainConstraintsAndCreatesIndexes(t *testing.T) {
	model := schema.New("User").
		AddField(schema.FieldDescriptor{Name: "id", Type: schema.FieldTypeInt64, PrimaryKey: true}).
		AddField(schema.FieldDescriptor{Name: "email", Type: schema.FieldTypeString, Unique: true}).
		AddField(schema.FieldDescriptor{Name: "name", Type: schema.FieldTypeString, DbIndex: true})

	dialect := &fakeDialect{partial: true, alterColumn: true, renameIndex: true}
	editor, exec := newTestEditor(dialect)

	err := editor.CreateModel(model)
	require.NoError(t, err)

	require.Len(t, exec.statements, 2)
	assert.Equal(t, "CREATE TABLE users", exec.statements[0])
	assert.Equal(t, "CREATE INDEX idx_users_name ON users (name)", exec.statements[1])
}

func conditionalCodeModel() *schema.Model {
	return schema.New("Account").
		AddField(schema.FieldDescriptor{Name: "id", Type: schema.FieldTypeInt64, PrimaryKey: true}).
		AddField(schema.FieldDescriptor{Name: "code", Type: schema.FieldTypeString, Unique: true, Nullable: true}).
		AddConstraint(schema.UniqueConstraint{Name: "accounts_code_nonblank", Fields: []string{"code"}, Condition: "code <> ''"})
}

func TestCreateModel_ConditionalUniqueBesideNullableUnique(t *testing.T) {
	dialect := &fakeDialect{partial: true, alterColumn: true, renameIndex: true}
	editor, exec := newTestEditor(dialect)

	err := editor.CreateModel(conditionalCodeModel())
	require.NoError(t, err)

	// Both unique indexes cover code; the declared constraint name keeps
	// them distinct
	require.Len(t, exec.statements, 3)
	assert.Equal(t, "CREATE TABLE accounts", exec.statements[0])
	assert.ElementsMatch(t, []string{
		"CREATE UNIQUE INDEX uniq_accounts_code ON accounts (code) WHERE code IS NOT NULL",
		"CREATE UNIQUE INDEX accounts_code_nonblank ON accounts (code) WHERE code <> ''",
	}, exec.statements[1:])
}

func TestRemoveConstraint_ConditionalAmongSameColumnUniques(t *testing.T) {
	model := conditionalCodeModel()
	dialect := &fakeDialect{
		partial:     true,
		alterColumn: true,
		renameIndex: true,
		constraints: map[string]types.ConstraintInfo{
			"uniq_accounts_code": {
				Name: "uniq_accounts_code", Kind: types.ConstraintUniqueIndex,
				Columns: []string{"code"}, IndexBacked: true,
				Condition: "code IS NOT NULL",
			},
			"accounts_code_nonblank": {
				Name: "accounts_code_nonblank", Kind: types.ConstraintUniqueIndex,
				Columns: []string{"code"}, IndexBacked: true,
				Condition: "code <> ''",
			},
		},
	}
	editor, exec := newTestEditor(dialect)

	c, err := model.GetConstraint("accounts_code_nonblank")
	require.NoError(t, err)

	err = editor.RemoveConstraint(model, *c)
	require.NoError(t, err)

	require.Len(t, exec.statements, 1)
	assert.Equal(t, "DROP INDEX accounts_code_nonblank", exec.statements[0])
}

func TestAlterUniqueTogether_Delta(t *testing.T) {
	model := schema.New("Booking").
		AddField(schema.FieldDescriptor{Name: "id", Type: schema.FieldTypeInt64, PrimaryKey: true}).
		AddField(schema.FieldDescriptor{Name: "roomId", Type: schema.FieldTypeInt64}).
		AddField(schema.FieldDescriptor{Name: "guestId", Type: schema.FieldTypeInt64, Nullable: true}).
		AddUniqueTogether("roomId", "guestId")

	dialect := &fakeDialect{
		partial:     true,
		alterColumn: true,
		renameIndex: true,
		constraints: map[string]types.ConstraintInfo{},
	}
	editor, exec := newTestEditor(dialect)

	err := editor.AlterUniqueTogether(model, nil)
	require.NoError(t, err)

	require.Len(t, exec.statements, 1)
	assert.Equal(t,
		"CREATE UNIQUE INDEX uniq_bookings_room_id_guest_id ON bookings (room_id, guest_id) WHERE guest_id IS NOT NULL",
		exec.statements[0])
}
