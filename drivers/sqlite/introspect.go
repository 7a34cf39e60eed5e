package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/rediwo/redi-migrate/types"
	"github.com/rediwo/redi-migrate/utils"
)

// GetTables returns all user table names
func (d *Dialect) GetTables(ctx context.Context, q types.Execer) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// GetConstraints introspects one table through the PRAGMA interface.
//
// index_list origins map to constraint classes: 'c' is an explicitly created
// index and counts as index-backed, 'u' is the implicit index behind a table
// level UNIQUE constraint and does not, 'pk' is the primary key. Foreign keys
// come from foreign_key_list; SQLite does not report their declared names, so
// they are keyed under the deterministic generated name.
func (d *Dialect) GetConstraints(ctx context.Context, q types.Execer, tableName string) (map[string]types.ConstraintInfo, error) {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, tableName).Scan(&count)
	if err != nil {
		return nil, fmt.Errorf("failed to check table existence: %w", err)
	}
	if count == 0 {
		return nil, &types.TableNotFoundError{Table: tableName}
	}

	constraints := make(map[string]types.ConstraintInfo)

	if err := d.collectIndexes(ctx, q, tableName, constraints); err != nil {
		return nil, err
	}
	if err := d.collectForeignKeys(ctx, q, tableName, constraints); err != nil {
		return nil, err
	}

	return constraints, nil
}

func (d *Dialect) collectIndexes(ctx context.Context, q types.Execer, tableName string, constraints map[string]types.ConstraintInfo) error {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA index_list(%s)", d.QuoteIdentifier(tableName)))
	if err != nil {
		return fmt.Errorf("failed to list indexes for %s: %w", tableName, err)
	}
	defer rows.Close()

	type indexEntry struct {
		name    string
		unique  bool
		origin  string
		partial bool
	}
	var indexes []indexEntry
	for rows.Next() {
		var (
			seq             int
			name, origin    string
			unique, partial int
		)
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			return err
		}
		indexes = append(indexes, indexEntry{name: name, unique: unique == 1, origin: origin, partial: partial == 1})
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, idx := range indexes {
		columns, err := d.indexColumns(ctx, q, idx.name)
		if err != nil {
			return err
		}

		info := types.ConstraintInfo{
			Name:    idx.name,
			Columns: columns,
		}

		switch idx.origin {
		case "pk":
			info.Kind = types.ConstraintPrimaryKey
		case "u":
			info.Kind = types.ConstraintUnique
		default: // 'c', explicitly created
			info.IndexBacked = true
			if idx.unique {
				info.Kind = types.ConstraintUniqueIndex
			} else {
				info.Kind = types.ConstraintIndex
			}
			if idx.partial {
				condition, err := d.indexCondition(ctx, q, idx.name)
				if err != nil {
					return err
				}
				info.Condition = condition
			}
		}

		constraints[info.Name] = info
	}
	return nil
}

func (d *Dialect) indexColumns(ctx context.Context, q types.Execer, indexName string) ([]string, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA index_info(%s)", d.QuoteIdentifier(indexName)))
	if err != nil {
		return nil, fmt.Errorf("failed to get columns of index %s: %w", indexName, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var seqno, cid int
		var name string
		if err := rows.Scan(&seqno, &cid, &name); err != nil {
			return nil, err
		}
		columns = append(columns, name)
	}
	return columns, rows.Err()
}

// indexCondition recovers a partial index predicate from the stored SQL,
// the PRAGMA interface does not expose it
func (d *Dialect) indexCondition(ctx context.Context, q types.Execer, indexName string) (string, error) {
	var createSQL string
	err := q.QueryRowContext(ctx,
		`SELECT sql FROM sqlite_master WHERE type = 'index' AND name = ?`, indexName).Scan(&createSQL)
	if err != nil {
		return "", fmt.Errorf("failed to get definition of index %s: %w", indexName, err)
	}

	upper := strings.ToUpper(createSQL)
	pos := strings.LastIndex(upper, " WHERE ")
	if pos < 0 {
		return "", nil
	}
	return strings.TrimSpace(createSQL[pos+len(" WHERE "):]), nil
}

func (d *Dialect) collectForeignKeys(ctx context.Context, q types.Execer, tableName string, constraints map[string]types.ConstraintInfo) error {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%s)", d.QuoteIdentifier(tableName)))
	if err != nil {
		return fmt.Errorf("failed to list foreign keys for %s: %w", tableName, err)
	}
	defer rows.Close()

	type fkEntry struct {
		refTable string
		columns  []string
	}
	groups := make(map[int]*fkEntry)
	var order []int

	for rows.Next() {
		var (
			id, seq                                int
			refTable, from, to, onUpdate, onDelete string
			match                                  string
		)
		if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return err
		}
		entry, ok := groups[id]
		if !ok {
			entry = &fkEntry{refTable: refTable}
			groups[id] = entry
			order = append(order, id)
		}
		entry.columns = append(entry.columns, from)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, id := range order {
		entry := groups[id]
		name := utils.GenerateForeignKeyName(tableName, entry.columns[0], entry.refTable)
		constraints[name] = types.ConstraintInfo{
			Name:    name,
			Kind:    types.ConstraintForeignKey,
			Columns: entry.columns,
		}
	}
	return nil
}
