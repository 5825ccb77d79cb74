package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Querier is the subset of pgxpool.Pool and pgx.Conn the loader needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const columnsQuery = `
	SELECT
		c.table_name,
		c.column_name,
		CASE WHEN c.data_type = 'USER-DEFINED' THEN c.udt_name ELSE c.data_type END,
		COALESCE(col_description(format('%I.%I', c.table_schema, c.table_name)::regclass::oid, c.ordinal_position), '')
	FROM information_schema.columns c
	JOIN information_schema.tables t
		ON t.table_schema = c.table_schema AND t.table_name = c.table_name
	WHERE c.table_schema = $1 AND t.table_type = 'BASE TABLE'
	ORDER BY c.table_name, c.ordinal_position`

// LoadPostgres introspects the tables of one schema. Tables come back in
// name order; keywords are not stored in the database, see WithKeywords.
func LoadPostgres(ctx context.Context, q Querier, schema string) (*Catalog, error) {
	rows, err := q.Query(ctx, columnsQuery, schema)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}
	defer rows.Close()

	var tables []Table
	for rows.Next() {
		var table string
		var col Column
		if err := rows.Scan(&table, &col.Name, &col.Type, &col.Description); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		if n := len(tables); n == 0 || tables[n-1].Name != table {
			tables = append(tables, Table{Name: table})
		}
		last := &tables[len(tables)-1]
		last.Columns = append(last.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("schema %q has no tables", schema)
	}
	return New(tables)
}
