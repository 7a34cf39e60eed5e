package mysql

import (
	"context"
	"fmt"

	"github.com/rediwo/redi-migrate/types"
)

// GetTables returns all table names in the current database
func (d *Dialect) GetTables(ctx context.Context, q types.Execer) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE'
		ORDER BY table_name`)
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

// GetConstraints introspects one table from information_schema.
//
// MySQL realizes every unique structure as an index, so unique entries report
// as index-backed unique indexes. The PRIMARY index maps to the primary key
// constraint. Foreign keys come from table_constraints; their implicit
// backing indexes share the constraint name in statistics and are skipped so
// one physical structure never produces two entries.
func (d *Dialect) GetConstraints(ctx context.Context, q types.Execer, tableName string) (map[string]types.ConstraintInfo, error) {
	var count int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM information_schema.tables
		WHERE table_schema = DATABASE() AND table_name = ?`, tableName).Scan(&count)
	if err != nil {
		return nil, fmt.Errorf("failed to check table existence: %w", err)
	}
	if count == 0 {
		return nil, &types.TableNotFoundError{Table: tableName}
	}

	constraints := make(map[string]types.ConstraintInfo)

	foreignKeys, err := d.collectForeignKeys(ctx, q, tableName, constraints)
	if err != nil {
		return nil, err
	}
	if err := d.collectIndexes(ctx, q, tableName, foreignKeys, constraints); err != nil {
		return nil, err
	}

	return constraints, nil
}

func (d *Dialect) collectForeignKeys(ctx context.Context, q types.Execer, tableName string, constraints map[string]types.ConstraintInfo) (map[string]bool, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT kcu.constraint_name, kcu.column_name
		FROM information_schema.key_column_usage kcu
		JOIN information_schema.table_constraints tc
		  ON tc.constraint_schema = kcu.constraint_schema
		 AND tc.constraint_name = kcu.constraint_name
		 AND tc.table_name = kcu.table_name
		WHERE kcu.table_schema = DATABASE()
		  AND kcu.table_name = ?
		  AND tc.constraint_type = 'FOREIGN KEY'
		ORDER BY kcu.constraint_name, kcu.ordinal_position`, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to list foreign keys for %s: %w", tableName, err)
	}
	defer rows.Close()

	names := make(map[string]bool)
	for rows.Next() {
		var name, column string
		if err := rows.Scan(&name, &column); err != nil {
			return nil, err
		}
		names[name] = true

		info, ok := constraints[name]
		if !ok {
			info = types.ConstraintInfo{Name: name, Kind: types.ConstraintForeignKey}
		}
		info.Columns = append(info.Columns, column)
		constraints[name] = info
	}
	return names, rows.Err()
}

func (d *Dialect) collectIndexes(ctx context.Context, q types.Execer, tableName string, foreignKeys map[string]bool, constraints map[string]types.ConstraintInfo) error {
	rows, err := q.QueryContext(ctx, `
		SELECT index_name, non_unique, column_name
		FROM information_schema.statistics
		WHERE table_schema = DATABASE() AND table_name = ?
		ORDER BY index_name, seq_in_index`, tableName)
	if err != nil {
		return fmt.Errorf("failed to list indexes for %s: %w", tableName, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			name, column string
			nonUnique    int
		)
		if err := rows.Scan(&name, &nonUnique, &column); err != nil {
			return err
		}

		// The implicit index behind a foreign key shares the constraint name
		if foreignKeys[name] {
			continue
		}

		info, ok := constraints[name]
		if !ok {
			info = types.ConstraintInfo{Name: name}
			if name == "PRIMARY" {
				info.Kind = types.ConstraintPrimaryKey
			} else {
				info.IndexBacked = true
				if nonUnique == 0 {
					info.Kind = types.ConstraintUniqueIndex
				} else {
					info.Kind = types.ConstraintIndex
				}
			}
		}
		info.Columns = append(info.Columns, column)
		constraints[name] = info
	}
	return rows.Err()
}
