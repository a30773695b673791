// Package ddl renders the dialect-neutral schema model into SQLite data
// definition statements: tables, indexes, views, and triggers.
package ddl

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/w8tcha/mssql2sqlite/internal/schema"
	"github.com/w8tcha/mssql2sqlite/internal/typemap"
)

// autoincrementColumn returns the name of the column eligible for
// "integer PRIMARY KEY AUTOINCREMENT", or "" if none qualifies: the table
// must have exactly one primary-key column, and that column must be an
// identity column of an integral source type.
func autoincrementColumn(t schema.Table) string {
	if len(t.PrimaryKey) != 1 {
		return ""
	}
	col, ok := t.Column(t.PrimaryKey[0])
	if !ok || !col.IsIdentity {
		return ""
	}
	if !typemap.IsIntegral(col.SourceType) {
		return ""
	}
	return col.Name
}

func columnClause(col schema.Column, autoincCol string) string {
	if autoincCol != "" && strings.EqualFold(col.Name, autoincCol) {
		return fmt.Sprintf("%s integer PRIMARY KEY AUTOINCREMENT", schema.QuoteIdent(col.Name))
	}

	emittedType := typemap.EmitColumnType(col.SourceType)
	if col.IsIdentity {
		emittedType = typemap.IdentityStorageType(col.SourceType)
	}

	var b strings.Builder
	b.WriteString(schema.QuoteIdent(col.Name))
	b.WriteByte(' ')
	b.WriteString(emittedType)
	if col.Length > 0 {
		fmt.Fprintf(&b, "(%d)", col.Length)
	}
	if !col.Nullable {
		b.WriteString(" NOT NULL")
	}
	if col.CaseSensitive == schema.CaseSensitivityFalse {
		b.WriteString(" COLLATE NOCASE")
	}
	if col.DefaultExpr != "" && typemap.ShouldEmitDefault(col.DefaultExpr) {
		fmt.Fprintf(&b, " DEFAULT %s", typemap.RenderDefaultValue(col.DefaultExpr))
	}
	return b.String()
}

// GenerateCreateTable renders a CREATE TABLE statement: columns in source
// ordinal order, then an optional standalone PRIMARY KEY clause (omitted
// when a column was emitted as AUTOINCREMENT), then one FOREIGN KEY clause
// per foreign key. No CASCADE clause is emitted; cascade semantics are
// handled by synthesized triggers.
func GenerateCreateTable(t schema.Table) string {
	autoincCol := autoincrementColumn(t)

	clauses := make([]string, 0, len(t.Columns)+1+len(t.ForeignKeys))
	for _, col := range t.Columns {
		clauses = append(clauses, columnClause(col, autoincCol))
	}

	if autoincCol == "" && len(t.PrimaryKey) > 0 {
		quoted := make([]string, len(t.PrimaryKey))
		for i, name := range t.PrimaryKey {
			quoted[i] = schema.QuoteIdent(name)
		}
		clauses = append(clauses, "PRIMARY KEY ("+strings.Join(quoted, ", ")+")")
	}

	for _, fk := range t.ForeignKeys {
		clauses = append(clauses, fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s(%s)",
			schema.QuoteIdent(fk.ColumnName), schema.QuoteIdent(fk.ForeignTableName), schema.QuoteIdent(fk.ForeignColumnName)))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (\n", schema.QuoteIdent(t.Name))
	for i, c := range clauses {
		b.WriteByte('\t')
		b.WriteString(c)
		if i < len(clauses)-1 {
			b.WriteByte(',')
		}
		b.WriteByte('\n')
	}
	b.WriteString(");")
	return b.String()
}

// GenerateCreateIndex renders a CREATE INDEX statement for a single
// non-primary-key index. The index name is the bracketed concatenation
// "tableName_indexName", matching the source's flat index namespace.
func GenerateCreateIndex(tableName string, idx schema.Index) string {
	uniqueKeyword := ""
	if idx.IsUnique {
		uniqueKeyword = "UNIQUE "
	}

	cols := make([]string, len(idx.Columns))
	for i, c := range idx.Columns {
		col := schema.QuoteIdent(c.ColumnName)
		if !c.Ascending {
			col += " DESC"
		}
		cols[i] = col
	}

	return fmt.Sprintf("CREATE %sINDEX %s ON %s (%s);",
		uniqueKeyword, schema.QuoteIdent(tableName+"_"+idx.Name), schema.QuoteIdent(tableName), strings.Join(cols, ", "))
}

// GenerateCreateTrigger wraps a synthesized trigger body in the fixed
// CREATE TRIGGER envelope.
func GenerateCreateTrigger(t schema.Trigger) string {
	return fmt.Sprintf("CREATE TRIGGER %s %s %s ON %s BEGIN %s END;",
		schema.QuoteIdent(t.Name), t.Timing.String(), t.Event.String(), schema.QuoteIdent(t.Table), t.Body)
}

// ViewFailureFunc mirrors the view-failure handler: given the view that
// failed to create and the error, it returns either a replacement DDL
// string to retry, or discard=true to drop the view and continue.
type ViewFailureFunc func(view schema.View, err error) (replacementSQL string, discard bool)

// CreateView executes a view's stored DDL verbatim against db. On failure,
// if onFailure is installed, it is consulted for a replacement statement
// (retried recursively) or a discard signal; an uninstalled handler makes
// any view failure fatal.
func CreateView(ctx context.Context, db *sql.DB, view schema.View, onFailure ViewFailureFunc) error {
	_, err := db.ExecContext(ctx, view.SQL)
	if err == nil {
		return nil
	}
	if onFailure == nil {
		return fmt.Errorf("create view %s: %w", view.Name, err)
	}

	replacement, discard := onFailure(view, err)
	if discard {
		return nil
	}
	return CreateView(ctx, db, schema.View{Name: view.Name, SQL: replacement}, onFailure)
}
