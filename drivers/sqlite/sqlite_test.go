package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rediwo/redi-migrate/logger"
	"github.com/rediwo/redi-migrate/migration"
	"github.com/rediwo/redi-migrate/schema"
	"github.com/rediwo/redi-migrate/types"
)

func openTestDB(t *testing.T) (*sql.DB, types.Dialect) {
	t.Helper()
	db, dialect, err := Open("sqlite://" + filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, dialect
}

func createModels(t *testing.T, db *sql.DB, dialect types.Dialect, models ...*schema.Model) {
	t.Helper()
	err := migration.Edit(context.Background(), db, dialect, func(e *migration.SchemaEditor) error {
		for _, m := range models {
			if err := e.CreateModel(m); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func testUserModel() *schema.Model {
	return schema.New("User").
		AddField(schema.FieldDescriptor{Name: "id", Type: schema.FieldTypeInt64, PrimaryKey: true, AutoIncrement: true}).
		AddField(schema.FieldDescriptor{Name: "email", Type: schema.FieldTypeString, Unique: true}).
		AddField(schema.FieldDescriptor{Name: "nickname", Type: schema.FieldTypeString, Unique: true, Nullable: true}).
		AddField(schema.FieldDescriptor{Name: "name", Type: schema.FieldTypeString, DbIndex: true})
}

func testPostModel(constraint bool, keepIndex bool) *schema.Model {
	return schema.New("Post").
		AddField(schema.FieldDescriptor{Name: "id", Type: schema.FieldTypeInt64, PrimaryKey: true, AutoIncrement: true}).
		AddField(schema.FieldDescriptor{
			Name: "userId", Type: schema.FieldTypeInt64, DbIndex: true,
			ForeignKey:                &schema.ForeignKey{Table: "users", Column: "id", OnDelete: "CASCADE", Constraint: constraint},
			KeepIndexOnConstraintDrop: keepIndex,
		})
}

// findByColumns returns the live constraints covering exactly the given
// column set
func findByColumns(live map[string]types.ConstraintInfo, columns ...string) []types.ConstraintInfo {
	var out []types.ConstraintInfo
	key := types.ColumnSetKey(columns)
	for _, c := range live {
		if c.ColumnSet() == key {
			out = append(out, c)
		}
	}
	return out
}

func TestGetConstraints_Classification(t *testing.T) {
	db, dialect := openTestDB(t)
	createModels(t, db, dialect, testUserModel(), testPostModel(true, false))
	ctx := context.Background()

	t.Run("missing table", func(t *testing.T) {
		_, err := dialect.GetConstraints(ctx, db, "nope")
		var notFound *types.TableNotFoundError
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, "nope", notFound.Table)
	})

	live, err := dialect.GetConstraints(ctx, db, "users")
	require.NoError(t, err)

	t.Run("plain unique is not index-backed", func(t *testing.T) {
		matches := findByColumns(live, "email")
		require.Len(t, matches, 1)
		assert.Equal(t, types.ConstraintUnique, matches[0].Kind)
		assert.False(t, matches[0].IndexBacked)
	})

	t.Run("nullable unique is a filtered unique index", func(t *testing.T) {
		matches := findByColumns(live, "nickname")
		require.Len(t, matches, 1)
		assert.Equal(t, types.ConstraintUniqueIndex, matches[0].Kind)
		assert.True(t, matches[0].IndexBacked)
		assert.Contains(t, matches[0].Condition, "IS NOT NULL")
	})

	t.Run("db_index is a plain index", func(t *testing.T) {
		matches := findByColumns(live, "name")
		require.Len(t, matches, 1)
		assert.Equal(t, types.ConstraintIndex, matches[0].Kind)
		assert.True(t, matches[0].IndexBacked)
		assert.False(t, matches[0].Unique())
	})

	t.Run("foreign key and its index", func(t *testing.T) {
		posts, err := dialect.GetConstraints(ctx, db, "posts")
		require.NoError(t, err)

		matches := findByColumns(posts, "user_id")
		require.Len(t, matches, 2)

		kinds := map[types.ConstraintKind]bool{}
		for _, c := range matches {
			kinds[c.Kind] = true
		}
		assert.True(t, kinds[types.ConstraintForeignKey])
		assert.True(t, kinds[types.ConstraintIndex])
	})
}

func TestGetTables_ListsUserTables(t *testing.T) {
	db, dialect := openTestDB(t)
	createModels(t, db, dialect, testUserModel(), testPostModel(true, false))

	tables, err := dialect.GetTables(context.Background(), db)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"users", "posts"}, tables)
}

func TestCreateModel_ConditionalUniqueOnNullableUniqueColumn(t *testing.T) {
	db, dialect := openTestDB(t)
	ctx := context.Background()

	// The same column carries a NOT-NULL filtered unique index and a declared
	// conditional unique constraint; both must come up under distinct names
	model := schema.New("Account").
		AddField(schema.FieldDescriptor{Name: "id", Type: schema.FieldTypeInt64, PrimaryKey: true, AutoIncrement: true}).
		AddField(schema.FieldDescriptor{Name: "code", Type: schema.FieldTypeString, Unique: true, Nullable: true}).
		AddConstraint(schema.UniqueConstraint{Name: "accounts_code_nonblank", Fields: []string{"code"}, Condition: "code <> ''"})

	createModels(t, db, dialect, model)

	live, err := dialect.GetConstraints(ctx, db, "accounts")
	require.NoError(t, err)

	matches := findByColumns(live, "code")
	require.Len(t, matches, 2)
	names := make([]string, len(matches))
	for i, c := range matches {
		names[i] = c.Name
	}
	assert.ElementsMatch(t, []string{"uniq_accounts_code", "accounts_code_nonblank"}, names)

	// Dropping the declared constraint resolves by predicate and leaves the
	// NOT-NULL filtered index in place
	c, err := model.GetConstraint("accounts_code_nonblank")
	require.NoError(t, err)
	err = migration.Edit(ctx, db, dialect, func(e *migration.SchemaEditor) error {
		return e.RemoveConstraint(model, *c)
	})
	require.NoError(t, err)

	live, err = dialect.GetConstraints(ctx, db, "accounts")
	require.NoError(t, err)
	matches = findByColumns(live, "code")
	require.Len(t, matches, 1)
	assert.Equal(t, "uniq_accounts_code", matches[0].Name)
}

func TestAlterField_NullableUniqueToNonNull(t *testing.T) {
	db, dialect := openTestDB(t)
	model := testUserModel()
	createModels(t, db, dialect, model)
	ctx := context.Background()

	_, err := db.ExecContext(ctx,
		"INSERT INTO `users` (`email`, `nickname`, `name`) VALUES ('a@x.com', 'al', 'Al')")
	require.NoError(t, err)

	oldField := schema.FieldDescriptor{Name: "nickname", Type: schema.FieldTypeString, Unique: true, Nullable: true}
	newField := schema.FieldDescriptor{Name: "nickname", Type: schema.FieldTypeString, Unique: true}

	altered := model.Clone()
	field, err := altered.GetField("nickname")
	require.NoError(t, err)
	*field = newField

	err = migration.Edit(ctx, db, dialect, func(e *migration.SchemaEditor) error {
		return e.AlterField(altered, oldField, newField, true)
	})
	require.NoError(t, err)

	live, err := dialect.GetConstraints(ctx, db, "users")
	require.NoError(t, err)

	matches := findByColumns(live, "nickname")
	require.Len(t, matches, 1)
	assert.Equal(t, types.ConstraintUnique, matches[0].Kind)
	assert.False(t, matches[0].IndexBacked)

	// Table rebuild preserved the data
	var nickname string
	require.NoError(t, db.QueryRowContext(ctx, "SELECT `nickname` FROM `users`").Scan(&nickname))
	assert.Equal(t, "al", nickname)

	// The untouched index on name survived under its deterministic name
	nameMatches := findByColumns(live, "name")
	require.Len(t, nameMatches, 1)
	assert.Equal(t, "idx_users_name", nameMatches[0].Name)
}

// ddlRecorder captures executed DDL through the logging hook
type ddlRecorder struct {
	logger.Logger
	statements []string
}

func (r *ddlRecorder) LogDDL(statement string) {
	r.statements = append(r.statements, statement)
}

func TestAlterField_NoOpEmitsNoDDL(t *testing.T) {
	db, dialect := openTestDB(t)
	model := testUserModel()
	createModels(t, db, dialect, model)

	recorder := &ddlRecorder{Logger: logger.NewNullLogger()}
	prev := logger.SetGlobalLogger(recorder)
	defer logger.SetGlobalLogger(prev)

	field := schema.FieldDescriptor{Name: "name", Type: schema.FieldTypeString, DbIndex: true}

	err := migration.Edit(context.Background(), db, dialect, func(e *migration.SchemaEditor) error {
		return e.AlterField(model, field, field, true)
	})
	require.NoError(t, err)

	assert.Empty(t, recorder.statements)
}

func TestRenameField_IndexFollowsColumn(t *testing.T) {
	db, dialect := openTestDB(t)
	model := testUserModel()
	createModels(t, db, dialect, model)
	ctx := context.Background()

	oldField := schema.FieldDescriptor{Name: "name", Type: schema.FieldTypeString, DbIndex: true}
	newField := schema.FieldDescriptor{Name: "fullName", Type: schema.FieldTypeString, DbIndex: true}

	renamed := model.Clone()
	field, err := renamed.GetField("name")
	require.NoError(t, err)
	*field = newField

	err = migration.Edit(ctx, db, dialect, func(e *migration.SchemaEditor) error {
		return e.RenameField(renamed, oldField, newField)
	})
	require.NoError(t, err)

	live, err := dialect.GetConstraints(ctx, db, "users")
	require.NoError(t, err)

	// SQLite rewrites the index definition when the column is renamed
	assert.Empty(t, findByColumns(live, "name"))
	matches := findByColumns(live, "full_name")
	require.Len(t, matches, 1)
	assert.True(t, matches[0].IndexBacked)
}

func TestAlterField_ForeignKeyConstraintDrop(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*sql.DB, types.Dialect) {
		db, dialect := openTestDB(t)
		createModels(t, db, dialect, testUserModel(), testPostModel(true, false))
		_, err := db.ExecContext(ctx,
			"INSERT INTO `users` (`email`, `nickname`, `name`) VALUES ('a@x.com', 'al', 'Al')")
		require.NoError(t, err)
		_, err = db.ExecContext(ctx, "INSERT INTO `posts` (`user_id`) VALUES (1)")
		require.NoError(t, err)
		return db, dialect
	}

	alter := func(t *testing.T, db *sql.DB, dialect types.Dialect, keepIndex bool) {
		newModel := testPostModel(false, keepIndex)
		oldField := testPostModel(true, false).Fields[1]
		newField := newModel.Fields[1]

		err := migration.Edit(ctx, db, dialect, func(e *migration.SchemaEditor) error {
			return e.AlterField(newModel, oldField, newField, true)
		})
		require.NoError(t, err)
	}

	t.Run("default drops constraint and backing index", func(t *testing.T) {
		db, dialect := setup(t)
		alter(t, db, dialect, false)

		live, err := dialect.GetConstraints(ctx, db, "posts")
		require.NoError(t, err)
		assert.Empty(t, findByColumns(live, "user_id"))

		var userID int64
		require.NoError(t, db.QueryRowContext(ctx, "SELECT `user_id` FROM `posts`").Scan(&userID))
		assert.Equal(t, int64(1), userID)
	})

	t.Run("retention option keeps the index", func(t *testing.T) {
		db, dialect := setup(t)
		alter(t, db, dialect, true)

		live, err := dialect.GetConstraints(ctx, db, "posts")
		require.NoError(t, err)

		matches := findByColumns(live, "user_id")
		require.Len(t, matches, 1)
		assert.Equal(t, types.ConstraintIndex, matches[0].Kind)
	})
}

func TestApplier_PlanLifecycle(t *testing.T) {
	db, dialect := openTestDB(t)
	ctx := context.Background()

	history := migration.NewHistoryManager(db, dialect)
	require.NoError(t, history.Ensure(ctx))
	applier := migration.NewApplier(db, dialect, history)

	t.Run("successful plan applies and records", func(t *testing.T) {
		plan := &migration.Plan{
			Version: "20260101000000",
			Name:    "create_users",
			Operations: []migration.Operation{
				&migration.CreateModel{Model: testUserModel()},
				&migration.AddField{ModelName: "User", Field: schema.FieldDescriptor{
					Name: "age", Type: schema.FieldTypeInt, Nullable: true,
				}},
			},
		}

		state, results, err := applier.Apply(ctx, migration.NewProjectState(), plan)
		require.NoError(t, err)

		for _, r := range results {
			assert.Equal(t, migration.StatusApplied, r.Status)
		}

		model, err := state.Model("User")
		require.NoError(t, err)
		_, err = model.GetField("age")
		assert.NoError(t, err)

		applied, err := history.IsApplied(ctx, "20260101000000")
		require.NoError(t, err)
		assert.True(t, applied)
	})

	t.Run("failing plan rolls back everything", func(t *testing.T) {
		plan := &migration.Plan{
			Version: "20260102000000",
			Name:    "broken",
			Operations: []migration.Operation{
				&migration.CreateModel{Model: schema.New("Tag").
					AddField(schema.FieldDescriptor{Name: "id", Type: schema.FieldTypeInt64, PrimaryKey: true})},
				&migration.AddField{ModelName: "Tag", Field: schema.FieldDescriptor{Name: "id", Type: schema.FieldTypeInt}},
			},
		}

		_, results, err := applier.Apply(ctx, migration.NewProjectState(), plan)
		require.Error(t, err)

		assert.Equal(t, migration.StatusApplied, results[0].Status)
		assert.Equal(t, migration.StatusFailed, results[1].Status)

		// The transaction rolled back the table created by the first operation
		_, err = dialect.GetConstraints(ctx, db, "tags")
		var notFound *types.TableNotFoundError
		assert.ErrorAs(t, err, &notFound)

		applied, err := history.IsApplied(ctx, "20260102000000")
		require.NoError(t, err)
		assert.False(t, applied)
	})
}

func TestRunner_FileMigrations(t *testing.T) {
	db, dialect := openTestDB(t)
	ctx := context.Background()

	dir := t.TempDir()
	fm := migration.NewFileManager(dir)

	upSQL := "CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT);\n"
	require.NoError(t, fm.WriteMigration(&migration.MigrationFile{
		Version: "20260101000000",
		Name:    "create_notes",
		UpSQL:   upSQL,
		DownSQL: "DROP TABLE notes;\n",
		Metadata: migration.MigrationMetadata{
			Version:  "20260101000000",
			Name:     "create_notes",
			Checksum: migration.ComputeChecksum(upSQL),
		},
	}))

	runner := migration.NewRunner(db, dialect, fm)
	require.NoError(t, runner.RunMigrations(ctx))

	applied, pending, err := runner.Status(ctx)
	require.NoError(t, err)
	assert.Len(t, applied, 1)
	assert.Empty(t, pending)

	// Applying again is a no-op
	require.NoError(t, runner.RunMigrations(ctx))

	require.NoError(t, runner.RollbackMigration(ctx))

	applied, pending, err = runner.Status(ctx)
	require.NoError(t, err)
	assert.Empty(t, applied)
	assert.Len(t, pending, 1)

	_, err = dialect.GetConstraints(ctx, db, "notes")
	var notFound *types.TableNotFoundError
	assert.ErrorAs(t, err, &notFound)
}
