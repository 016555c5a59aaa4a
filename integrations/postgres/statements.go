package postgres

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/TFMV/kirby/pkg/codec"
	"github.com/TFMV/kirby/pkg/core"
)

// tableExistsSQL takes the schema ($1, "" for current_schema()) and the exact table name ($2).
const tableExistsSQL = `SELECT 1
FROM information_schema.tables
WHERE table_schema = COALESCE(NULLIF($1, ''), current_schema())
  AND table_type = 'BASE TABLE'
  AND table_name = $2`

const pingSQL = `SELECT NOW()`

// qualify quotes table, prefixed with schema when one is set.
func qualify(schema, table string) string {
	if schema == "" {
		return pgx.Identifier{table}.Sanitize()
	}
	return pgx.Identifier{schema, table}.Sanitize()
}

// keyList renders ids as a parenthesised list of escaped literals.
func keyList(ids []string) string {
	lits := make([]string, len(ids))
	for i, id := range ids {
		lits[i] = codec.Encode(codec.TextValue(id))
	}
	return "(" + strings.Join(lits, ", ") + ")"
}

// keyFilter compares the key's text form, so a malformed identifier is a
// non-match instead of a cast error and the filter agrees with existingSQL.
func keyFilter(key string, ids []string) string {
	return pgx.Identifier{key}.Sanitize() + "::text IN " + keyList(ids)
}

func countSQL(schema, table, key string, ids []string) string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", qualify(schema, table), keyFilter(key, ids))
}

func existingSQL(schema, table, key string, ids []string) string {
	return fmt.Sprintf("SELECT %s::text FROM %s WHERE %s",
		pgx.Identifier{key}.Sanitize(), qualify(schema, table), keyFilter(key, ids))
}

func selectSQL(schema, table, key string, ids []string) string {
	return fmt.Sprintf("SELECT * FROM %s WHERE %s ORDER BY %s",
		qualify(schema, table), keyFilter(key, ids), pgx.Identifier{key}.Sanitize())
}

func deleteSQL(schema, table, key string, ids []string) string {
	return fmt.Sprintf("DELETE FROM %s WHERE %s", qualify(schema, table), keyFilter(key, ids))
}

// insertSQL builds one multi-row INSERT naming every column, so the destination
// may order its columns differently from the source.
func insertSQL(schema string, rows *core.RowSet) (string, error) {
	if rows.Len() == 0 {
		return "", fmt.Errorf("no rows to insert into %s", rows.Table)
	}

	cols := make([]string, len(rows.Columns))
	for i, c := range rows.Columns {
		cols[i] = pgx.Identifier{c.Name}.Sanitize()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", qualify(schema, rows.Table), strings.Join(cols, ", "))
	for i, row := range rows.Rows {
		if len(row) != len(cols) {
			return "", fmt.Errorf("row %d has %d values, want %d", i, len(row), len(cols))
		}
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		b.WriteString(strings.Join(codec.EncodeAll(row), ", "))
		b.WriteByte(')')
	}
	return b.String(), nil
}
