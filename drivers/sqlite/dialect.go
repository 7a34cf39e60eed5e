package sqlite

import (
	"fmt"
	"strings"

	"github.com/rediwo/redi-migrate/drivers/base"
	"github.com/rediwo/redi-migrate/schema"
	"github.com/rediwo/redi-migrate/types"
)

// Dialect implements types.Dialect for SQLite
type Dialect struct {
	*base.Dialect
}

// NewDialect creates the SQLite dialect
func NewDialect() *Dialect {
	d := &Dialect{}
	d.Dialect = base.NewDialect(d)
	return d
}

func (d *Dialect) GetDriverType() types.DriverType {
	return types.DriverSQLite
}

func (d *Dialect) QuoteIdentifier(name string) string {
	return fmt.Sprintf("`%s`", name)
}

// SQLite has partial indexes but no in-place column alteration or index
// rename; structural changes go through a table rebuild
func (d *Dialect) SupportsPartialIndexes() bool { return true }
func (d *Dialect) SupportsAlterColumn() bool    { return false }
func (d *Dialect) SupportsRenameIndex() bool    { return false }

// MapFieldType converts a field type to SQLite column type
func (d *Dialect) MapFieldType(field schema.FieldDescriptor) (string, error) {
	switch field.Type {
	case schema.FieldTypeString:
		return "TEXT", nil
	case schema.FieldTypeInt, schema.FieldTypeInt64:
		return "INTEGER", nil
	case schema.FieldTypeFloat:
		return "REAL", nil
	case schema.FieldTypeBool:
		return "BOOLEAN", nil
	case schema.FieldTypeDateTime:
		return "DATETIME", nil
	case schema.FieldTypeJSON:
		return "TEXT", nil
	case schema.FieldTypeDecimal:
		return "DECIMAL", nil
	default:
		return "", fmt.Errorf("unsupported field type for SQLite: %s", field.Type)
	}
}

func (d *Dialect) AutoIncrementClause() string {
	return "AUTOINCREMENT"
}

func (d *Dialect) FormatDefaultValue(value any) string {
	switch v := value.(type) {
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	case bool:
		if v {
			return "1"
		}
		return "0"
	default:
		return fmt.Sprintf("%v", v)
	}
}

// AlterColumnSQL is never reached: SupportsAlterColumn is false, so column
// alterations go through the table rebuild path instead
func (d *Dialect) AlterColumnSQL(model *schema.Model, oldField, newField schema.FieldDescriptor) ([]string, error) {
	return nil, fmt.Errorf("SQLite cannot alter column %s in place; table rebuild required", oldField.GetColumnName())
}
