// Package source introspects a SQL Server database's catalog into the
// dialect-neutral schema model.
package source

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"regexp"
	"strings"

	_ "github.com/microsoft/go-mssqldb" // registers the "sqlserver" driver

	"github.com/w8tcha/mssql2sqlite/internal/schema"
	"github.com/w8tcha/mssql2sqlite/internal/typemap"
)

// OpenDB opens a connection to the source SQL Server using the
// "sqlserver" driver registered by github.com/microsoft/go-mssqldb.
func OpenDB(connString string) (*sql.DB, error) {
	db, err := sql.Open("sqlserver", connString)
	if err != nil {
		return nil, fmt.Errorf("open source connection: %w", err)
	}
	return db, nil
}

// ProgressFunc is invoked by Introspector.IntrospectDatabase after each
// table and each view, carrying a percent in [0, 100].
type ProgressFunc func(percent int, message string)

// CancelFunc returns a non-nil error once the caller has requested
// cancellation. It is polled after each table and each view.
type CancelFunc func() error

// Introspector reads catalog metadata from a source connection into a
// schema.Database.
type Introspector struct {
	db *sql.DB
}

// NewIntrospector wraps an already-open source connection.
func NewIntrospector(db *sql.DB) *Introspector {
	return &Introspector{db: db}
}

// IntrospectDatabase runs the fixed sequence of catalog queries described
// in the conversion design: tables, then per-table columns / primary key /
// collation / indexes / foreign keys, then views. Progress is reported
// 0-50% across tables and 50-100% across views; cancellation is checked
// after each table and each view.
func (in *Introspector) IntrospectDatabase(ctx context.Context, progress ProgressFunc, cancel CancelFunc) (*schema.Database, error) {
	tables, err := in.introspectTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("introspect tables: %w", err)
	}

	for i := range tables {
		t := &tables[i]

		cols, err := in.introspectColumns(ctx, t.SchemaName, t.Name)
		if err != nil {
			return nil, fmt.Errorf("introspect columns for %s.%s: %w", t.SchemaName, t.Name, err)
		}
		t.Columns = cols

		pk, err := in.introspectPrimaryKey(ctx, t.SchemaName, t.Name)
		if err != nil {
			return nil, fmt.Errorf("introspect primary key for %s.%s: %w", t.SchemaName, t.Name, err)
		}
		t.PrimaryKey = pk

		if err := in.applyCollation(ctx, t); err != nil {
			return nil, fmt.Errorf("introspect collation for %s.%s: %w", t.SchemaName, t.Name, err)
		}

		// The per-table index query is the sole non-fatal introspection
		// failure: log a warning and proceed with an empty index list.
		indexes, err := in.introspectIndexes(ctx, t.SchemaName, t.Name)
		if err != nil {
			log.Printf("warning: introspect indexes for %s.%s: %v; continuing without indexes", t.SchemaName, t.Name, err)
			indexes = nil
		}
		t.Indexes = indexes

		fks, err := in.introspectForeignKeys(ctx, t.SchemaName, t.Name)
		if err != nil {
			return nil, fmt.Errorf("introspect foreign keys for %s.%s: %w", t.SchemaName, t.Name, err)
		}
		t.ForeignKeys = fks

		if cancel != nil {
			if err := cancel(); err != nil {
				return nil, err
			}
		}
		if progress != nil {
			progress((i+1)*50/maxInt(len(tables), 1), fmt.Sprintf("introspected %s.%s", t.SchemaName, t.Name))
		}
	}

	views, err := in.introspectViews(ctx)
	if err != nil {
		return nil, fmt.Errorf("introspect views: %w", err)
	}
	for i := range views {
		if cancel != nil {
			if err := cancel(); err != nil {
				return nil, err
			}
		}
		if progress != nil {
			progress(50+(i+1)*50/maxInt(len(views), 1), fmt.Sprintf("introspected view %s", views[i].Name))
		}
	}

	return &schema.Database{Tables: tables, Views: views}, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// --- Table enumeration (spec step 1) ---

func (in *Introspector) introspectTables(ctx context.Context) ([]schema.Table, error) {
	rows, err := in.db.QueryContext(ctx, `
		SELECT TABLE_SCHEMA, TABLE_NAME
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_SCHEMA, TABLE_NAME
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []schema.Table
	for rows.Next() {
		var t schema.Table
		if err := rows.Scan(&t.SchemaName, &t.Name); err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

// --- Column enumeration (spec step 2) ---

func (in *Introspector) introspectColumns(ctx context.Context, schemaName, tableName string) ([]schema.Column, error) {
	rows, err := in.db.QueryContext(ctx, `
		SELECT COLUMN_NAME, ORDINAL_POSITION, COLUMN_DEFAULT, IS_NULLABLE,
		       DATA_TYPE, COLUMNPROPERTY(OBJECT_ID(TABLE_SCHEMA+'.'+TABLE_NAME), COLUMN_NAME, 'IsIdentity'),
		       COALESCE(CHARACTER_MAXIMUM_LENGTH, 0)
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = @p1 AND TABLE_NAME = @p2
		ORDER BY ORDINAL_POSITION
	`, schemaName, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []schema.Column
	for rows.Next() {
		var name, dataType, nullable string
		var ordinal int
		var dflt sql.NullString
		var isIdentity, charMaxLen int
		if err := rows.Scan(&name, &ordinal, &dflt, &nullable, &dataType, &isIdentity, &charMaxLen); err != nil {
			return nil, err
		}

		stored, err := typemap.MapType(dataType)
		if err != nil {
			return nil, err
		}

		col := schema.Column{
			Name:          name,
			SourceType:    stored,
			Length:        charMaxLen,
			Nullable:      strings.EqualFold(nullable, "YES"),
			IsIdentity:    isIdentity != 0,
			CaseSensitive: schema.CaseSensitivityUnknown,
		}
		if dflt.Valid {
			col.DefaultExpr = typemap.NormalizeDefault(strings.TrimSpace(dflt.String), stored)
			if !typemap.ShouldEmitDefault(col.DefaultExpr) {
				col.DefaultExpr = ""
			}
		}
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

// --- Primary key (spec step 3) ---

func (in *Introspector) introspectPrimaryKey(ctx context.Context, schemaName, tableName string) ([]string, error) {
	rows, err := in.db.QueryContext(ctx, `
		SELECT kcu.COLUMN_NAME
		FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
		JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
		  ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
		 AND tc.TABLE_SCHEMA = kcu.TABLE_SCHEMA
		WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY'
		  AND tc.TABLE_SCHEMA = @p1 AND tc.TABLE_NAME = @p2
		ORDER BY kcu.ORDINAL_POSITION
	`, schemaName, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pk []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		pk = append(pk, name)
	}
	return pk, rows.Err()
}

// --- Collation (spec step 4) ---

// CaseSensitivityFromMask examines bit 4 (the bit worth 0x08) of the
// second byte of a table-collation mask, as returned by the source's
// table-collation procedure. The bit numbering is 1-indexed from the
// least-significant bit, so bit 4 is mask[1] & 0x08.
func CaseSensitivityFromMask(mask []byte) schema.CaseSensitivity {
	if len(mask) < 2 {
		return schema.CaseSensitivityUnknown
	}
	if mask[1]&0x08 != 0 {
		return schema.CaseSensitivityFalse
	}
	return schema.CaseSensitivityTrue
}

func (in *Introspector) applyCollation(ctx context.Context, t *schema.Table) error {
	rows, err := in.db.QueryContext(ctx, `EXEC sp_tablecollations @p1`, t.SchemaName+"."+t.Name)
	if err != nil {
		return err
	}
	defer rows.Close()

	masks := make(map[string][]byte)
	for rows.Next() {
		var colName string
		var mask sql.RawBytes
		var ignore sql.RawBytes
		if err := rows.Scan(&ignore, &ignore, &colName, &ignore, &mask); err != nil {
			return err
		}
		cp := make([]byte, len(mask))
		copy(cp, mask)
		masks[colName] = cp
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for i := range t.Columns {
		mask, ok := masks[t.Columns[i].Name]
		if !ok || mask == nil {
			t.Columns[i].CaseSensitive = schema.CaseSensitivityUnknown
			continue
		}
		t.Columns[i].CaseSensitive = CaseSensitivityFromMask(mask)
	}
	return nil
}

// --- Indexes (spec step 5) ---

// indexKeyPattern matches one key-part of sp_helpindex's keys string: an
// identifier, optionally followed by "(-)" to mark descending order.
// Whitespace inside the identifier is tolerated.
var indexKeyPattern = regexp.MustCompile(`^\s*([A-Za-z0-9_ \[\]\.]+?)\s*(\(-\))?\s*$`)

// ParseIndexKeys parses an sp_helpindex-style comma-separated keys string
// into ordered index columns.
func ParseIndexKeys(keys string) ([]schema.IndexColumn, error) {
	var cols []schema.IndexColumn
	for _, part := range strings.Split(keys, ",") {
		m := indexKeyPattern.FindStringSubmatch(part)
		if m == nil {
			return nil, fmt.Errorf("cannot parse index key part %q", part)
		}
		name := strings.TrimSpace(m[1])
		if name == "" {
			return nil, fmt.Errorf("empty index key part in %q", keys)
		}
		cols = append(cols, schema.IndexColumn{
			ColumnName: name,
			Ascending:  m[2] == "",
		})
	}
	return cols, nil
}

// ParseIndexDescriptionFlags parses sp_helpindex's description string,
// a comma-separated list of flags, for "unique" and "primary key". The last
// flag carries the trailing "located on <filegroup>" text, so "unique" is
// matched as a word within a flag rather than as the whole flag.
func ParseIndexDescriptionFlags(description string) (isUnique, isPrimaryKey bool) {
	lower := strings.ToLower(description)
	for _, flag := range strings.Split(lower, ",") {
		flag = strings.TrimSpace(flag)
		for _, word := range strings.Fields(flag) {
			if word == "unique" {
				isUnique = true
			}
		}
		if strings.Contains(flag, "primary key") {
			isPrimaryKey = true
		}
	}
	return isUnique, isPrimaryKey
}

func (in *Introspector) introspectIndexes(ctx context.Context, schemaName, tableName string) ([]schema.Index, error) {
	rows, err := in.db.QueryContext(ctx, `EXEC sp_helpindex @p1`, schemaName+"."+tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var indexes []schema.Index
	for rows.Next() {
		var name, description, keys string
		if err := rows.Scan(&name, &description, &keys); err != nil {
			return nil, err
		}
		if strings.Contains(strings.ToLower(description), "primary key") {
			continue
		}
		unique, _ := ParseIndexDescriptionFlags(description)
		cols, err := ParseIndexKeys(keys)
		if err != nil {
			return nil, err
		}
		indexes = append(indexes, schema.Index{
			Name:     name,
			IsUnique: unique,
			Columns:  cols,
		})
	}
	return indexes, rows.Err()
}

// --- Foreign keys (spec step 6) ---

func (in *Introspector) introspectForeignKeys(ctx context.Context, schemaName, tableName string) ([]schema.ForeignKey, error) {
	rows, err := in.db.QueryContext(ctx, `
		SELECT kcu.COLUMN_NAME, kcu2.TABLE_NAME, kcu2.COLUMN_NAME,
		       rc.DELETE_RULE, col.IS_NULLABLE
		FROM INFORMATION_SCHEMA.REFERENTIAL_CONSTRAINTS rc
		JOIN INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
		  ON rc.CONSTRAINT_NAME = tc.CONSTRAINT_NAME AND rc.CONSTRAINT_SCHEMA = tc.CONSTRAINT_SCHEMA
		JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
		  ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME AND tc.TABLE_SCHEMA = kcu.TABLE_SCHEMA
		JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu2
		  ON rc.UNIQUE_CONSTRAINT_NAME = kcu2.CONSTRAINT_NAME AND kcu.ORDINAL_POSITION = kcu2.ORDINAL_POSITION
		JOIN INFORMATION_SCHEMA.COLUMNS col
		  ON col.TABLE_SCHEMA = kcu.TABLE_SCHEMA AND col.TABLE_NAME = kcu.TABLE_NAME AND col.COLUMN_NAME = kcu.COLUMN_NAME
		WHERE tc.TABLE_SCHEMA = @p1 AND tc.TABLE_NAME = @p2
		ORDER BY kcu.ORDINAL_POSITION
	`, schemaName, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fks []schema.ForeignKey
	for rows.Next() {
		var col, refTable, refCol, deleteRule, nullable string
		if err := rows.Scan(&col, &refTable, &refCol, &deleteRule, &nullable); err != nil {
			return nil, err
		}
		fks = append(fks, schema.ForeignKey{
			TableName:         tableName,
			ColumnName:        col,
			ForeignTableName:  refTable,
			ForeignColumnName: refCol,
			CascadeOnDelete:   strings.EqualFold(deleteRule, "CASCADE"),
			IsNullable:        strings.EqualFold(nullable, "YES"),
		})
	}
	return fks, rows.Err()
}

// --- Views ---

// dboPrefixPattern matches a leading "dbo." schema prefix, case-insensitive.
var dboPrefixPattern = regexp.MustCompile(`(?i)\bdbo\.`)

// StripDefaultSchemaPrefix removes occurrences of the source's default
// schema prefix ("dbo.", case-insensitive) from a view body.
func StripDefaultSchemaPrefix(sqlText string) string {
	return dboPrefixPattern.ReplaceAllString(sqlText, "")
}

// --- Supplemental: routine/trigger inventory for the end-of-run warning ---

// CollectSourceObjectNames lists stored procedure/function names and
// trigger names present in the source database. Their bodies are never
// translated; this exists only to power a single summary warning reported
// once introspection has finished.
func (in *Introspector) CollectSourceObjectNames(ctx context.Context) (routines, triggers []string, err error) {
	routineRows, err := in.db.QueryContext(ctx, `
		SELECT ROUTINE_NAME FROM INFORMATION_SCHEMA.ROUTINES ORDER BY ROUTINE_NAME
	`)
	if err != nil {
		return nil, nil, err
	}
	defer routineRows.Close()
	for routineRows.Next() {
		var name string
		if err := routineRows.Scan(&name); err != nil {
			return nil, nil, err
		}
		routines = append(routines, name)
	}
	if err := routineRows.Err(); err != nil {
		return nil, nil, err
	}

	triggerRows, err := in.db.QueryContext(ctx, `
		SELECT name FROM sys.triggers ORDER BY name
	`)
	if err != nil {
		return nil, nil, err
	}
	defer triggerRows.Close()
	for triggerRows.Next() {
		var name string
		if err := triggerRows.Scan(&name); err != nil {
			return nil, nil, err
		}
		triggers = append(triggers, name)
	}
	return routines, triggers, triggerRows.Err()
}

// SourceObjectWarning renders the single post-introspection summary warning for
// non-table source objects that were never migrated, or "" if there is
// nothing to warn about.
func SourceObjectWarning(routines, triggers []string) string {
	if len(routines) == 0 && len(triggers) == 0 {
		return ""
	}
	return fmt.Sprintf("%d routines and %d triggers were not migrated; see documentation", len(routines), len(triggers))
}

func (in *Introspector) introspectViews(ctx context.Context) ([]schema.View, error) {
	rows, err := in.db.QueryContext(ctx, `
		SELECT TABLE_NAME, VIEW_DEFINITION
		FROM INFORMATION_SCHEMA.VIEWS
		ORDER BY TABLE_NAME
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var views []schema.View
	for rows.Next() {
		var name, def string
		if err := rows.Scan(&name, &def); err != nil {
			return nil, err
		}
		views = append(views, schema.View{Name: name, SQL: StripDefaultSchemaPrefix(def)})
	}
	return views, rows.Err()
}
