package mysql

import (
	"fmt"
	"strings"

	"github.com/rediwo/redi-migrate/drivers/base"
	"github.com/rediwo/redi-migrate/schema"
	"github.com/rediwo/redi-migrate/types"
)

// Dialect implements types.Dialect for MySQL
type Dialect struct {
	*base.Dialect
}

// NewDialect creates the MySQL dialect
func NewDialect() *Dialect {
	d := &Dialect{}
	d.Dialect = base.NewDialect(d)
	return d
}

func (d *Dialect) GetDriverType() types.DriverType {
	return types.DriverMySQL
}

func (d *Dialect) QuoteIdentifier(name string) string {
	return fmt.Sprintf("`%s`", name)
}

// MySQL has no partial indexes. Unique indexes still admit multiple NULLs, so
// NULL-tolerant uniqueness requirements degrade to plain unique indexes
// without losing the semantics.
func (d *Dialect) SupportsPartialIndexes() bool { return false }
func (d *Dialect) SupportsAlterColumn() bool    { return true }
func (d *Dialect) SupportsRenameIndex() bool    { return true }

// MapFieldType converts a field type to MySQL column type
func (d *Dialect) MapFieldType(field schema.FieldDescriptor) (string, error) {
	switch field.Type {
	case schema.FieldTypeString:
		return "VARCHAR(255)", nil
	case schema.FieldTypeInt:
		return "INT", nil
	case schema.FieldTypeInt64:
		return "BIGINT", nil
	case schema.FieldTypeFloat:
		return "DOUBLE", nil
	case schema.FieldTypeBool:
		return "BOOLEAN", nil
	case schema.FieldTypeDateTime:
		return "DATETIME", nil
	case schema.FieldTypeJSON:
		return "JSON", nil
	case schema.FieldTypeDecimal:
		return "DECIMAL(65,30)", nil
	default:
		return "", fmt.Errorf("unsupported field type for MySQL: %s", field.Type)
	}
}

func (d *Dialect) AutoIncrementClause() string {
	return "AUTO_INCREMENT"
}

func (d *Dialect) FormatDefaultValue(value any) string {
	switch v := value.(type) {
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	default:
		return fmt.Sprintf("%v", v)
	}
}

// AlterColumnSQL rewrites the whole column definition in one MODIFY COLUMN
func (d *Dialect) AlterColumnSQL(model *schema.Model, oldField, newField schema.FieldDescriptor) ([]string, error) {
	def, err := d.ColumnDefinition(newField, false)
	if err != nil {
		return nil, err
	}
	return []string{fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s",
		d.QuoteIdentifier(model.TableName), def)}, nil
}

// CreateIndexSQL drops the unsupported WHERE clause; the caller only passes a
// condition when SupportsPartialIndexes is true
func (d *Dialect) CreateIndexSQL(tableName, indexName string, columns []string, unique bool, condition string) string {
	return d.Dialect.CreateIndexSQL(tableName, indexName, columns, unique, "")
}

func (d *Dialect) DropIndexSQL(tableName, indexName string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP INDEX %s",
		d.QuoteIdentifier(tableName), d.QuoteIdentifier(indexName))
}

func (d *Dialect) RenameIndexSQL(tableName, oldName, newName string) string {
	return fmt.Sprintf("ALTER TABLE %s RENAME INDEX %s TO %s",
		d.QuoteIdentifier(tableName), d.QuoteIdentifier(oldName), d.QuoteIdentifier(newName))
}

// DropConstraintSQL picks the statement by constraint kind: MySQL spells
// foreign key and unique drops differently
func (d *Dialect) DropConstraintSQL(tableName, constraintName string, kind types.ConstraintKind) string {
	table := d.QuoteIdentifier(tableName)
	name := d.QuoteIdentifier(constraintName)
	switch kind {
	case types.ConstraintForeignKey:
		return fmt.Sprintf("ALTER TABLE %s DROP FOREIGN KEY %s", table, name)
	case types.ConstraintUnique, types.ConstraintUniqueIndex, types.ConstraintIndex:
		return fmt.Sprintf("ALTER TABLE %s DROP INDEX %s", table, name)
	default:
		return fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s", table, name)
	}
}
