package schema

import (
	"fmt"

	"github.com/rediwo/redi-migrate/utils"
)

// UniqueConstraint is a named uniqueness requirement over a set of fields,
// optionally restricted by a raw SQL condition. A non-empty condition makes
// the constraint a filtered unique index at the database level.
type UniqueConstraint struct {
	Name      string
	Fields    []string
	Condition string
}

// Model is the declared state of one table: its fields plus the composite
// index and uniqueness groups defined over them
type Model struct {
	Name           string
	TableName      string
	Fields         []FieldDescriptor
	UniqueTogether [][]string
	IndexTogether  [][]string
	Constraints    []UniqueConstraint
}

func New(name string) *Model {
	return &Model{
		Name:      name,
		TableName: ModelNameToTableName(name),
	}
}

// ModelNameToTableName converts model name to default table name (pluralized, snake_case)
func ModelNameToTableName(modelName string) string {
	return utils.Pluralize(utils.ToSnakeCase(modelName))
}

func (m *Model) WithTableName(name string) *Model {
	m.TableName = name
	return m
}

func (m *Model) AddField(field FieldDescriptor) *Model {
	m.Fields = append(m.Fields, field)
	return m
}

func (m *Model) AddUniqueTogether(fields ...string) *Model {
	m.UniqueTogether = append(m.UniqueTogether, fields)
	return m
}

func (m *Model) AddIndexTogether(fields ...string) *Model {
	m.IndexTogether = append(m.IndexTogether, fields)
	return m
}

func (m *Model) AddConstraint(c UniqueConstraint) *Model {
	m.Constraints = append(m.Constraints, c)
	return m
}

func (m *Model) GetField(name string) (*FieldDescriptor, error) {
	for i := range m.Fields {
		if m.Fields[i].Name == name {
			return &m.Fields[i], nil
		}
	}
	return nil, fmt.Errorf("field %s not found in model %s", name, m.Name)
}

func (m *Model) GetPrimaryKey() (*FieldDescriptor, error) {
	for i := range m.Fields {
		if m.Fields[i].PrimaryKey {
			return &m.Fields[i], nil
		}
	}
	return nil, fmt.Errorf("model %s has no primary key", m.Name)
}

// GetConstraint returns a named unique constraint
func (m *Model) GetConstraint(name string) (*UniqueConstraint, error) {
	for i := range m.Constraints {
		if m.Constraints[i].Name == name {
			return &m.Constraints[i], nil
		}
	}
	return nil, fmt.Errorf("constraint %s not found in model %s", name, m.Name)
}

// MapFieldNamesToColumns converts a slice of field names to database column names
func (m *Model) MapFieldNamesToColumns(fieldNames []string) ([]string, error) {
	columns := make([]string, len(fieldNames))
	for i, name := range fieldNames {
		field, err := m.GetField(name)
		if err != nil {
			return nil, err
		}
		columns[i] = field.GetColumnName()
	}
	return columns, nil
}

func (m *Model) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("model name cannot be empty")
	}
	if m.TableName == "" {
		return fmt.Errorf("table name cannot be empty")
	}
	if len(m.Fields) == 0 {
		return fmt.Errorf("model must have at least one field")
	}

	seen := make(map[string]bool)
	primaryKeys := 0
	for _, field := range m.Fields {
		if seen[field.Name] {
			return fmt.Errorf("duplicate field %s in model %s", field.Name, m.Name)
		}
		seen[field.Name] = true
		if field.PrimaryKey {
			primaryKeys++
		}
	}
	if primaryKeys > 1 {
		return fmt.Errorf("model %s can only have one primary key", m.Name)
	}

	for _, group := range m.UniqueTogether {
		for _, name := range group {
			if !seen[name] {
				return fmt.Errorf("unique_together field %s not found in model %s", name, m.Name)
			}
		}
	}
	for _, group := range m.IndexTogether {
		for _, name := range group {
			if !seen[name] {
				return fmt.Errorf("index_together field %s not found in model %s", name, m.Name)
			}
		}
	}
	for _, c := range m.Constraints {
		if c.Name == "" {
			return fmt.Errorf("unnamed constraint in model %s", m.Name)
		}
		for _, name := range c.Fields {
			if !seen[name] {
				return fmt.Errorf("constraint %s field %s not found in model %s", c.Name, name, m.Name)
			}
		}
	}

	return nil
}

// Clone returns a deep copy of the model so that state snapshots never alias
func (m *Model) Clone() *Model {
	c := &Model{
		Name:      m.Name,
		TableName: m.TableName,
	}
	c.Fields = make([]FieldDescriptor, len(m.Fields))
	for i, f := range m.Fields {
		c.Fields[i] = f.Clone()
	}
	c.UniqueTogether = cloneGroups(m.UniqueTogether)
	c.IndexTogether = cloneGroups(m.IndexTogether)
	if m.Constraints != nil {
		c.Constraints = make([]UniqueConstraint, len(m.Constraints))
		for i, uc := range m.Constraints {
			c.Constraints[i] = UniqueConstraint{
				Name:      uc.Name,
				Fields:    append([]string(nil), uc.Fields...),
				Condition: uc.Condition,
			}
		}
	}
	return c
}

func cloneGroups(groups [][]string) [][]string {
	if groups == nil {
		return nil
	}
	c := make([][]string, len(groups))
	for i, g := range groups {
		c[i] = append([]string(nil), g...)
	}
	return c
}
