package base

import (
	"fmt"
	"strings"

	"github.com/rediwo/redi-migrate/schema"
	"github.com/rediwo/redi-migrate/types"
	"github.com/rediwo/redi-migrate/utils"
)

// SpecificDialect is the part of a dialect that differs between engines.
// Each driver implements it and embeds a Dialect built around it.
type SpecificDialect interface {
	GetDriverType() types.DriverType
	QuoteIdentifier(name string) string

	// MapFieldType converts a field descriptor to the engine's column type
	MapFieldType(field schema.FieldDescriptor) (string, error)

	// AutoIncrementClause returns the clause appended to an auto-increment
	// primary key column, or "" when the mapped type already implies it
	AutoIncrementClause() string

	// FormatDefaultValue renders a default value as a SQL literal
	FormatDefaultValue(value any) string
}

// Dialect implements the DDL generation shared by every engine. Drivers embed
// it and shadow the statements their engine spells differently.
type Dialect struct {
	specific SpecificDialect
}

// NewDialect creates the shared dialect core around a driver's specifics
func NewDialect(specific SpecificDialect) *Dialect {
	return &Dialect{specific: specific}
}

// CreateTableSQL builds the CREATE TABLE statement for a model. Plain unique
// constraints and foreign keys are embedded as named table-level clauses so
// rebuild-based engines get them without ALTER TABLE; index-backed
// requirements are intentionally not included, they are created separately.
func (d *Dialect) CreateTableSQL(model *schema.Model) (string, error) {
	var defs []string

	for _, field := range model.Fields {
		def, err := d.ColumnDefinition(field, true)
		if err != nil {
			return "", err
		}
		defs = append(defs, def)
	}

	constraints, err := d.tableConstraints(model)
	if err != nil {
		return "", err
	}
	defs = append(defs, constraints...)

	return fmt.Sprintf("CREATE TABLE %s (%s)",
		d.specific.QuoteIdentifier(model.TableName),
		strings.Join(defs, ", ")), nil
}

// tableConstraints renders the named plain unique and foreign key clauses a
// model's required-constraint set demands
func (d *Dialect) tableConstraints(model *schema.Model) ([]string, error) {
	var clauses []string

	seen := make(map[string]bool)
	addUnique := func(columns []string) {
		key := types.ColumnSetKey(columns)
		if seen[key] {
			return
		}
		seen[key] = true
		name := utils.GenerateUniqueConstraintName(model.TableName, columns)
		clauses = append(clauses, fmt.Sprintf("CONSTRAINT %s UNIQUE (%s)",
			d.specific.QuoteIdentifier(name), d.quoteAll(columns)))
	}

	for _, field := range model.Fields {
		if field.Unique && !field.Nullable && !field.PrimaryKey {
			addUnique([]string{field.GetColumnName()})
		}
	}

	for _, group := range model.UniqueTogether {
		columns, err := model.MapFieldNamesToColumns(group)
		if err != nil {
			return nil, err
		}
		allNonNull := true
		for _, name := range group {
			field, err := model.GetField(name)
			if err != nil {
				return nil, err
			}
			if field.Nullable {
				allNonNull = false
				break
			}
		}
		if allNonNull {
			addUnique(columns)
		}
	}

	for _, c := range model.Constraints {
		if c.Condition != "" {
			continue
		}
		columns, err := model.MapFieldNamesToColumns(c.Fields)
		if err != nil {
			return nil, err
		}
		addUnique(columns)
	}

	for _, field := range model.Fields {
		if !field.HasDbConstraint() {
			continue
		}
		column := field.GetColumnName()
		name := utils.GenerateForeignKeyName(model.TableName, column, field.ForeignKey.Table)
		clause := fmt.Sprintf("CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
			d.specific.QuoteIdentifier(name),
			d.specific.QuoteIdentifier(column),
			d.specific.QuoteIdentifier(field.ForeignKey.Table),
			d.specific.QuoteIdentifier(field.ForeignKey.Column))
		if field.ForeignKey.OnDelete != "" {
			clause += " ON DELETE " + field.ForeignKey.OnDelete
		}
		clauses = append(clauses, clause)
	}

	return clauses, nil
}

// ColumnDefinition renders one column clause. inlinePK controls whether the
// PRIMARY KEY marker is emitted; it must be off for ADD COLUMN statements.
func (d *Dialect) ColumnDefinition(field schema.FieldDescriptor, inlinePK bool) (string, error) {
	columnType, err := d.specific.MapFieldType(field)
	if err != nil {
		return "", err
	}

	parts := []string{d.specific.QuoteIdentifier(field.GetColumnName()), columnType}

	if field.PrimaryKey && inlinePK {
		parts = append(parts, "PRIMARY KEY")
		if field.AutoIncrement {
			if clause := d.specific.AutoIncrementClause(); clause != "" {
				parts = append(parts, clause)
			}
		}
	} else if !field.Nullable {
		parts = append(parts, "NOT NULL")
	}

	if field.Default != nil {
		parts = append(parts, "DEFAULT "+d.specific.FormatDefaultValue(field.Default))
	}

	return strings.Join(parts, " "), nil
}

func (d *Dialect) DropTableSQL(tableName string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", d.specific.QuoteIdentifier(tableName))
}

func (d *Dialect) RenameTableSQL(oldName, newName string) string {
	return fmt.Sprintf("ALTER TABLE %s RENAME TO %s",
		d.specific.QuoteIdentifier(oldName), d.specific.QuoteIdentifier(newName))
}

func (d *Dialect) AddColumnSQL(tableName string, field schema.FieldDescriptor) (string, error) {
	def, err := d.ColumnDefinition(field, false)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s",
		d.specific.QuoteIdentifier(tableName), def), nil
}

func (d *Dialect) DropColumnSQL(tableName, columnName string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s",
		d.specific.QuoteIdentifier(tableName), d.specific.QuoteIdentifier(columnName))
}

func (d *Dialect) RenameColumnSQL(tableName, oldName, newName string) string {
	return fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s",
		d.specific.QuoteIdentifier(tableName),
		d.specific.QuoteIdentifier(oldName),
		d.specific.QuoteIdentifier(newName))
}

func (d *Dialect) CreateIndexSQL(tableName, indexName string, columns []string, unique bool, condition string) string {
	keyword := "INDEX"
	if unique {
		keyword = "UNIQUE INDEX"
	}
	stmt := fmt.Sprintf("CREATE %s %s ON %s (%s)",
		keyword,
		d.specific.QuoteIdentifier(indexName),
		d.specific.QuoteIdentifier(tableName),
		d.quoteAll(columns))
	if condition != "" {
		stmt += " WHERE " + condition
	}
	return stmt
}

func (d *Dialect) DropIndexSQL(tableName, indexName string) string {
	return fmt.Sprintf("DROP INDEX %s", d.specific.QuoteIdentifier(indexName))
}

func (d *Dialect) RenameIndexSQL(tableName, oldName, newName string) string {
	return fmt.Sprintf("ALTER INDEX %s RENAME TO %s",
		d.specific.QuoteIdentifier(oldName), d.specific.QuoteIdentifier(newName))
}

func (d *Dialect) AddUniqueConstraintSQL(tableName, constraintName string, columns []string) string {
	return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s UNIQUE (%s)",
		d.specific.QuoteIdentifier(tableName),
		d.specific.QuoteIdentifier(constraintName),
		d.quoteAll(columns))
}

func (d *Dialect) AddForeignKeySQL(tableName, constraintName, column, refTable, refColumn, onDelete string) string {
	stmt := fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		d.specific.QuoteIdentifier(tableName),
		d.specific.QuoteIdentifier(constraintName),
		d.specific.QuoteIdentifier(column),
		d.specific.QuoteIdentifier(refTable),
		d.specific.QuoteIdentifier(refColumn))
	if onDelete != "" {
		stmt += " ON DELETE " + onDelete
	}
	return stmt
}

func (d *Dialect) DropConstraintSQL(tableName, constraintName string, kind types.ConstraintKind) string {
	return fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s",
		d.specific.QuoteIdentifier(tableName),
		d.specific.QuoteIdentifier(constraintName))
}

// NotNullCondition builds the partial-index predicate over nullable columns
func (d *Dialect) NotNullCondition(columns []string) string {
	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = d.specific.QuoteIdentifier(c) + " IS NOT NULL"
	}
	return strings.Join(parts, " AND ")
}

func (d *Dialect) quoteAll(columns []string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = d.specific.QuoteIdentifier(c)
	}
	return strings.Join(quoted, ", ")
}
