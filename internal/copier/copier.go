// Package copier streams rows from the source connection into the
// destination, coercing each value to the destination column's affinity
// and committing in fixed-size batches.
package copier

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/w8tcha/mssql2sqlite/internal/schema"
)

// BatchSize is the number of rows committed per destination transaction.
const BatchSize = 1000

// ProgressFunc is invoked once per committed batch and once at end of
// table.
type ProgressFunc func(message string)

// CancelFunc returns a non-nil error once cancellation has been requested.
type CancelFunc func() error

// BuildSelectQuery renders the fixed source query for a table: its
// columns, in source ordinal order, against the schema-qualified table.
func BuildSelectQuery(t schema.Table) string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = schema.QuoteIdent(c.Name)
	}
	return fmt.Sprintf("SELECT %s FROM %s.%s", strings.Join(names, ", "), t.SchemaName, schema.QuoteIdent(t.Name))
}

// BuildInsertStatement renders the destination INSERT with one named
// parameter per column, in the same order as BuildSelectQuery's columns.
func BuildInsertStatement(t schema.Table, paramNames []string) string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = schema.QuoteIdent(c.Name)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		schema.QuoteIdent(t.Name), strings.Join(names, ", "), strings.Join(paramNames, ", "))
}

// CopyTable copies every row of t from src to dest, in the source's
// natural retrieval order, committing every BatchSize rows. Cancellation
// is checked at every batch boundary and once more after the final row; a
// cancelled copy rolls back only the in-flight, uncommitted batch.
func CopyTable(ctx context.Context, src, dest *sql.DB, t schema.Table, progress ProgressFunc, cancel CancelFunc) error {
	affinities := make([]Affinity, len(t.Columns))
	for i, c := range t.Columns {
		affinities[i] = AffinityForStoredType(c.SourceType)
	}

	columnNames := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		columnNames[i] = c.Name
	}
	paramNames := ParamNames(columnNames)
	insertSQL := BuildInsertStatement(t, paramNames)

	rows, err := src.QueryContext(ctx, BuildSelectQuery(t))
	if err != nil {
		return fmt.Errorf("query source table %s: %w", t.Name, err)
	}
	defer rows.Close()

	tx, stmt, err := beginBatch(ctx, dest, insertSQL)
	if err != nil {
		return err
	}

	scanDest := make([]any, len(t.Columns))
	scanBuf := make([]any, len(t.Columns))
	for i := range scanBuf {
		scanDest[i] = &scanBuf[i]
	}

	rowCount := 0
	for rows.Next() {
		if err := rows.Scan(scanDest...); err != nil {
			stmt.Close()
			tx.Rollback()
			return fmt.Errorf("scan row %d of %s: %w", rowCount, t.Name, err)
		}

		args := make([]any, len(scanBuf))
		for i, raw := range scanBuf {
			coerced, err := Coerce(raw, affinities[i])
			if err != nil {
				stmt.Close()
				tx.Rollback()
				return fmt.Errorf("coerce %s.%s row %d: %w", t.Name, columnNames[i], rowCount, err)
			}
			args[i] = sql.Named(strings.TrimPrefix(paramNames[i], "@"), coerced)
		}

		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			stmt.Close()
			tx.Rollback()
			return fmt.Errorf("insert into %s row %d: %w", t.Name, rowCount, err)
		}
		rowCount++

		if rowCount%BatchSize == 0 {
			if cancel != nil {
				if err := cancel(); err != nil {
					stmt.Close()
					tx.Rollback()
					return err
				}
			}
			stmt.Close()
			if err := tx.Commit(); err != nil {
				return fmt.Errorf("commit batch at row %d of %s: %w", rowCount, t.Name, err)
			}
			if progress != nil {
				progress(fmt.Sprintf("%s: %d rows copied", t.Name, rowCount))
			}
			tx, stmt, err = beginBatch(ctx, dest, insertSQL)
			if err != nil {
				return err
			}
		}
	}
	if err := rows.Err(); err != nil {
		stmt.Close()
		tx.Rollback()
		return fmt.Errorf("iterate rows of %s: %w", t.Name, err)
	}

	if cancel != nil {
		if err := cancel(); err != nil {
			stmt.Close()
			tx.Rollback()
			return err
		}
	}
	stmt.Close()
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("final commit of %s: %w", t.Name, err)
	}
	if progress != nil {
		progress(fmt.Sprintf("%s: %d rows copied", t.Name, rowCount))
	}
	return nil
}

func beginBatch(ctx context.Context, dest *sql.DB, insertSQL string) (*sql.Tx, *sql.Stmt, error) {
	tx, err := dest.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin batch transaction: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		tx.Rollback()
		return nil, nil, fmt.Errorf("prepare insert statement: %w", err)
	}
	return tx, stmt, nil
}
