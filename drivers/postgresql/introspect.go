package postgresql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/rediwo/redi-migrate/types"
)

// GetTables returns all table names in the current schema
func (d *Dialect) GetTables(ctx context.Context, q types.Execer) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
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

// GetConstraints introspects one table from the system catalogs.
//
// pg_constraint rows are catalog-level constraints: unique and primary key
// constraints own their backing index, so they report as non-index-backed.
// pg_index rows without an owning constraint are freestanding indexes and
// report as index-backed, with the partial predicate recovered via
// pg_get_expr.
func (d *Dialect) GetConstraints(ctx context.Context, q types.Execer, tableName string) (map[string]types.ConstraintInfo, error) {
	var count int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_name = $1`, tableName).Scan(&count)
	if err != nil {
		return nil, fmt.Errorf("failed to check table existence: %w", err)
	}
	if count == 0 {
		return nil, &types.TableNotFoundError{Table: tableName}
	}

	constraints := make(map[string]types.ConstraintInfo)

	if err := d.collectCatalogConstraints(ctx, q, tableName, constraints); err != nil {
		return nil, err
	}
	if err := d.collectFreestandingIndexes(ctx, q, tableName, constraints); err != nil {
		return nil, err
	}

	return constraints, nil
}

func (d *Dialect) collectCatalogConstraints(ctx context.Context, q types.Execer, tableName string, constraints map[string]types.ConstraintInfo) error {
	rows, err := q.QueryContext(ctx, `
		SELECT c.conname, c.contype::text, array_agg(a.attname ORDER BY k.ord)
		FROM pg_constraint c
		JOIN pg_class t ON t.oid = c.conrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		CROSS JOIN LATERAL unnest(c.conkey) WITH ORDINALITY AS k(attnum, ord)
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = k.attnum
		WHERE t.relname = $1 AND n.nspname = current_schema()
		GROUP BY c.conname, c.contype`, tableName)
	if err != nil {
		return fmt.Errorf("failed to list constraints for %s: %w", tableName, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			name, conType string
			columns       []string
		)
		if err := rows.Scan(&name, &conType, pq.Array(&columns)); err != nil {
			return err
		}

		info := types.ConstraintInfo{Name: name, Columns: columns}
		switch conType {
		case "p":
			info.Kind = types.ConstraintPrimaryKey
		case "u":
			info.Kind = types.ConstraintUnique
		case "f":
			info.Kind = types.ConstraintForeignKey
		case "c":
			info.Kind = types.ConstraintCheck
		default:
			continue
		}
		constraints[name] = info
	}
	return rows.Err()
}

func (d *Dialect) collectFreestandingIndexes(ctx context.Context, q types.Execer, tableName string, constraints map[string]types.ConstraintInfo) error {
	rows, err := q.QueryContext(ctx, `
		SELECT i.relname,
		       ix.indisunique,
		       pg_get_expr(ix.indpred, ix.indrelid, true),
		       array_agg(a.attname ORDER BY k.ord)
		FROM pg_index ix
		JOIN pg_class i ON i.oid = ix.indexrelid
		JOIN pg_class t ON t.oid = ix.indrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		CROSS JOIN LATERAL unnest(ix.indkey::int2[]) WITH ORDINALITY AS k(attnum, ord)
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = k.attnum
		WHERE t.relname = $1 AND n.nspname = current_schema()
		  AND NOT EXISTS (
			SELECT 1 FROM pg_constraint c WHERE c.conindid = ix.indexrelid
		  )
		GROUP BY i.relname, ix.indisunique, ix.indpred, ix.indrelid`, tableName)
	if err != nil {
		return fmt.Errorf("failed to list indexes for %s: %w", tableName, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			name      string
			unique    bool
			condition sql.NullString
			columns   []string
		)
		if err := rows.Scan(&name, &unique, &condition, pq.Array(&columns)); err != nil {
			return err
		}

		info := types.ConstraintInfo{
			Name:        name,
			Columns:     columns,
			IndexBacked: true,
			Condition:   condition.String,
		}
		if unique {
			info.Kind = types.ConstraintUniqueIndex
		} else {
			info.Kind = types.ConstraintIndex
		}
		constraints[name] = info
	}
	return rows.Err()
}
