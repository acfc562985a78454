package storage

import (
	"fmt"
	"strings"

	"github.com/fgbm/exchange-log-parser/internal/core"
)

// Bind parameter ceilings per statement.
const (
	pgMaxParams    = 65535
	mssqlMaxParams = 2000 // server limit is 2100
	mssqlMaxRows   = 1000 // table value constructor limit
)

// schemaLockKey names the lock taken while creating tables so concurrent
// instances do not race on CREATE.
const schemaLockKey = "exchange_log_parser_schema"

func tableName(prefix string, def core.TableDefinition) string {
	return prefix + def.Info.Name
}

func indexName(prefix string, def core.TableDefinition) string {
	return prefix + def.Info.Name + "_unique_idx"
}

// prepareRows converts records to column values. Records repeating a key
// already seen in the batch are dropped.
func prepareRows(def core.TableDefinition, recs []core.Record) [][]any {
	rows := make([][]any, 0, len(recs))
	seen := make(map[string]struct{}, len(recs))
	for _, r := range recs {
		k := r.Key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		rows = append(rows, def.Row(r))
	}
	return rows
}

// chunkRows splits rows so no statement binds more than maxParams values
// or holds more than maxRows rows (0 means unlimited).
func chunkRows(rows [][]any, cols, maxParams, maxRows int) [][][]any {
	per := maxParams / cols
	if maxRows > 0 && per > maxRows {
		per = maxRows
	}
	if per < 1 {
		per = 1
	}
	var chunks [][][]any
	for len(rows) > 0 {
		n := min(per, len(rows))
		chunks = append(chunks, rows[:n])
		rows = rows[n:]
	}
	return chunks
}

func flatten(chunk [][]any) []any {
	if len(chunk) == 0 {
		return nil
	}
	args := make([]any, 0, len(chunk)*len(chunk[0]))
	for _, row := range chunk {
		args = append(args, row...)
	}
	return args
}

func quoteList(names []string, quote func(string) string) string {
	q := make([]string, len(names))
	for i, n := range names {
		q[i] = quote(n)
	}
	return strings.Join(q, ", ")
}

// valuesList renders "(p1, p2), (p3, p4)" using placeholder(i) with i starting at 1.
func valuesList(rows, cols int, placeholder func(int) string) string {
	var b strings.Builder
	n := 1
	for r := 0; r < rows; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := 0; c < cols; c++ {
			if c > 0 {
				b.WriteString(", ")
			}
			b.WriteString(placeholder(n))
			n++
		}
		b.WriteByte(')')
	}
	return b.String()
}

// PostgreSQL

func pgIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func pgType(c core.ColumnSpec) string {
	switch c.Type {
	case core.ColTimestamp:
		return "TIMESTAMPTZ"
	case core.ColInt:
		return "INTEGER"
	case core.ColBigInt:
		return "BIGINT"
	default:
		return "TEXT"
	}
}

func pgCreateTable(prefix string, def core.TableDefinition) []string {
	var cols []string
	cols = append(cols, "id BIGSERIAL PRIMARY KEY")
	for _, c := range def.Columns {
		col := pgIdent(c.Name) + " " + pgType(c)
		if c.NotNull {
			col += " NOT NULL"
		}
		cols = append(cols, col)
	}
	table := pgIdent(tableName(prefix, def))
	return []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n    %s\n)", table, strings.Join(cols, ",\n    ")),
		fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (%s)",
			pgIdent(indexName(prefix, def)), table, quoteList(def.KeyColumns(), pgIdent)),
	}
}

func pgInsert(prefix string, def core.TableDefinition, rows int) string {
	cols := def.ColumnNames()
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s ON CONFLICT (%s) DO NOTHING",
		pgIdent(tableName(prefix, def)),
		quoteList(cols, pgIdent),
		valuesList(rows, len(cols), func(i int) string { return fmt.Sprintf("$%d", i) }),
		quoteList(def.KeyColumns(), pgIdent),
	)
}

// SQL Server

func msIdent(s string) string {
	return "[" + strings.ReplaceAll(s, "]", "]]") + "]"
}

func msTable(prefix string, def core.TableDefinition) string {
	return "[dbo]." + msIdent(tableName(prefix, def))
}

func msType(c core.ColumnSpec) string {
	switch c.Type {
	case core.ColTimestamp:
		return "DATETIMEOFFSET(7)"
	case core.ColInt:
		return "INT"
	case core.ColBigInt:
		return "BIGINT"
	default:
		if c.Key {
			return fmt.Sprintf("NVARCHAR(%d)", msKeySize(c))
		}
		return "NVARCHAR(MAX)"
	}
}

func msKeySize(c core.ColumnSpec) int {
	if c.Size > 0 {
		return c.Size
	}
	return core.MaxKeyLen
}

func msCreateTable(prefix string, def core.TableDefinition) []string {
	var cols []string
	cols = append(cols, "[id] BIGINT IDENTITY(1,1) PRIMARY KEY")
	for _, c := range def.Columns {
		col := msIdent(c.Name) + " " + msType(c)
		if c.NotNull {
			col += " NOT NULL"
		} else {
			col += " NULL"
		}
		cols = append(cols, col)
	}
	table := msTable(prefix, def)
	object := strings.ReplaceAll(table, "'", "''")
	index := "IX_" + tableName(prefix, def) + "_unique"
	return []string{
		fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL\nCREATE TABLE %s (\n    %s\n)",
			object, table, strings.Join(cols, ",\n    ")),
		fmt.Sprintf("IF NOT EXISTS (SELECT 1 FROM sys.indexes WHERE name = N'%s' AND object_id = OBJECT_ID(N'%s'))\n"+
			"CREATE UNIQUE NONCLUSTERED INDEX %s ON %s (%s)",
			strings.ReplaceAll(index, "'", "''"), object, msIdent(index), table, quoteList(def.KeyColumns(), msIdent)),
	}
}

// msInsert inserts the VALUES rows whose key is not yet stored. UPDLOCK and
// HOLDLOCK keep a concurrent writer from inserting the same key between the
// check and the insert.
func msInsert(prefix string, def core.TableDefinition, rows int) string {
	cols := def.ColumnNames()
	table := msTable(prefix, def)
	colList := quoteList(cols, msIdent)

	keys := def.KeyColumns()
	match := make([]string, len(keys))
	for i, k := range keys {
		match[i] = fmt.Sprintf("dst.%s = src.%s", msIdent(k), msIdent(k))
	}

	return fmt.Sprintf("INSERT INTO %s (%s)\nSELECT %s FROM (VALUES %s) AS src (%s)\n"+
		"WHERE NOT EXISTS (SELECT 1 FROM %s AS dst WITH (UPDLOCK, HOLDLOCK) WHERE %s)",
		table, colList,
		colList,
		valuesList(rows, len(cols), func(i int) string { return fmt.Sprintf("@p%d", i) }),
		colList,
		table, strings.Join(match, " AND "),
	)
}
