package postgresql

import (
	"fmt"
	"strings"

	"github.com/rediwo/redi-migrate/drivers/base"
	"github.com/rediwo/redi-migrate/schema"
	"github.com/rediwo/redi-migrate/types"
)

// Dialect implements types.Dialect for PostgreSQL
type Dialect struct {
	*base.Dialect
}

// NewDialect creates the PostgreSQL dialect
func NewDialect() *Dialect {
	d := &Dialect{}
	d.Dialect = base.NewDialect(d)
	return d
}

func (d *Dialect) GetDriverType() types.DriverType {
	return types.DriverPostgreSQL
}

func (d *Dialect) QuoteIdentifier(name string) string {
	return fmt.Sprintf(`"%s"`, name)
}

func (d *Dialect) SupportsPartialIndexes() bool { return true }
func (d *Dialect) SupportsAlterColumn() bool    { return true }
func (d *Dialect) SupportsRenameIndex() bool    { return true }

// MapFieldType converts a field type to PostgreSQL column type
func (d *Dialect) MapFieldType(field schema.FieldDescriptor) (string, error) {
	if field.AutoIncrement && field.PrimaryKey {
		if field.Type == schema.FieldTypeInt64 {
			return "BIGSERIAL", nil
		}
		return "SERIAL", nil
	}

	switch field.Type {
	case schema.FieldTypeString:
		return "TEXT", nil
	case schema.FieldTypeInt:
		return "INTEGER", nil
	case schema.FieldTypeInt64:
		return "BIGINT", nil
	case schema.FieldTypeFloat:
		return "DOUBLE PRECISION", nil
	case schema.FieldTypeBool:
		return "BOOLEAN", nil
	case schema.FieldTypeDateTime:
		return "TIMESTAMP", nil
	case schema.FieldTypeJSON:
		return "JSONB", nil
	case schema.FieldTypeDecimal:
		return "DECIMAL(65,30)", nil
	default:
		return "", fmt.Errorf("unsupported field type for PostgreSQL: %s", field.Type)
	}
}

// AutoIncrementClause is empty: SERIAL types carry the sequence themselves
func (d *Dialect) AutoIncrementClause() string {
	return ""
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

// AlterColumnSQL alters type, nullability and default in separate statements
func (d *Dialect) AlterColumnSQL(model *schema.Model, oldField, newField schema.FieldDescriptor) ([]string, error) {
	table := d.QuoteIdentifier(model.TableName)
	column := d.QuoteIdentifier(newField.GetColumnName())

	var stmts []string

	if oldField.Type != newField.Type {
		columnType, err := d.MapFieldType(newField)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s USING %s::%s",
			table, column, columnType, column, columnType))
	}

	if oldField.Nullable != newField.Nullable {
		if newField.Nullable {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP NOT NULL", table, column))
		} else {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET NOT NULL", table, column))
		}
	}

	if !defaultsEqual(oldField.Default, newField.Default) {
		if newField.Default == nil {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP DEFAULT", table, column))
		} else {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET DEFAULT %s",
				table, column, d.FormatDefaultValue(newField.Default)))
		}
	}

	return stmts, nil
}

func defaultsEqual(a, b any) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}
