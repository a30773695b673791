// Package engine orchestrates a single SQL Server → SQLite conversion:
// introspection, DDL emission, row copy, and FK-trigger synthesis, run on
// a background worker behind a small Coordinator.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/w8tcha/mssql2sqlite/internal/copier"
	"github.com/w8tcha/mssql2sqlite/internal/ddl"
	"github.com/w8tcha/mssql2sqlite/internal/schema"
	"github.com/w8tcha/mssql2sqlite/internal/source"
	"github.com/w8tcha/mssql2sqlite/internal/trigger"
	"github.com/w8tcha/mssql2sqlite/internal/typemap"
)

// Global progress ranges. DDL emission is pinned to end at 50, matching
// spec.md's "Progress 0-50% in this half" for the table-DDL loop; when a
// run is schema-only, row copy's range collapses to zero width and the
// trigger phase inherits the whole 50-100 remainder, matching "progress
// jumping from 50% to the triggers phase".
const (
	introspectionEnd = 20
	ddlEnd           = 50
	rowCopyEnd       = 95
)

// Convert validates opts and starts a conversion on a background worker.
// A configuration failure (missing connection string/destination path, or
// an unsupported password-encryption request) is returned synchronously
// and never reaches progress; everything else flows through progress on
// the worker goroutine.
func Convert(opts ConvertOptions, progress ProgressHandler, tableSel TableSelectionHandler, viewFail ViewFailureHandler) (*Coordinator, error) {
	if strings.TrimSpace(opts.SourceConnString) == "" {
		return nil, fmt.Errorf("%w: source connection string is required", ErrConfiguration)
	}
	if strings.TrimSpace(opts.DestPath) == "" {
		return nil, fmt.Errorf("%w: destination path is required", ErrConfiguration)
	}
	if opts.Password != "" {
		return nil, fmt.Errorf("%w: destination password-based encryption is not supported by this module's SQLite driver", ErrConfiguration)
	}

	c := &Coordinator{progress: progress}
	c.isActive.Store(true)
	go c.run(opts, tableSel, viewFail)
	return c, nil
}

func (c *Coordinator) run(opts ConvertOptions, tableSel TableSelectionHandler, viewFail ViewFailureHandler) {
	defer c.isActive.Store(false)

	if err := c.runPipeline(context.Background(), opts, tableSel, viewFail); err != nil {
		c.report(true, false, 100, err.Error())
		return
	}
	c.report(true, true, 100, "conversion complete")
}

func (c *Coordinator) runPipeline(ctx context.Context, opts ConvertOptions, tableSel TableSelectionHandler, viewFail ViewFailureHandler) error {
	// Step 1: delete the destination file if it already exists.
	if err := c.checkCancelled(); err != nil {
		return err
	}
	if _, err := os.Stat(opts.DestPath); err == nil {
		if err := os.Remove(opts.DestPath); err != nil {
			return fmt.Errorf("%w: remove existing destination file: %v", ErrConfiguration, err)
		}
	}

	// Step 2: introspect the source.
	if err := c.checkCancelled(); err != nil {
		return err
	}
	srcDB, err := source.OpenDB(opts.SourceConnString)
	if err != nil {
		return fmt.Errorf("%w: open source: %v", ErrIntrospection, err)
	}
	defer srcDB.Close()

	introspector := source.NewIntrospector(srcDB)
	db, err := introspector.IntrospectDatabase(ctx, func(percent int, message string) {
		c.report(false, true, rescale(percent, 0, introspectionEnd), message)
	}, c.checkCancelled)
	if err != nil {
		return classifyIntrospectionError(err)
	}

	if routines, triggers, werr := introspector.CollectSourceObjectNames(ctx); werr == nil {
		if warning := source.SourceObjectWarning(routines, triggers); warning != "" {
			c.report(false, true, introspectionEnd, warning)
		}
	}

	// Step 3: table selection.
	if err := c.checkCancelled(); err != nil {
		return err
	}
	if tableSel != nil {
		if selected := tableSel.SelectTables(db.Tables); selected != nil {
			db.Tables = selected
		}
	}

	// Step 4: create the destination file and apply its pragmas.
	if err := c.checkCancelled(); err != nil {
		return err
	}
	destDB, err := openDestination(ctx, opts.DestPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	// Step 5: emit table + index DDL.
	if err := c.emitTableDDL(ctx, destDB, db.Tables); err != nil {
		destDB.Close()
		return err
	}

	// Step 6: emit view DDL.
	if opts.CreateViews {
		if err := c.emitViewDDL(ctx, destDB, db.Views, viewFail); err != nil {
			destDB.Close()
			return err
		}
	}

	// The DDL connection is closed before a second connection is opened
	// for row copy and triggers, so the two phases never hold the same
	// destination file open at once.
	if err := destDB.Close(); err != nil {
		return fmt.Errorf("%w: close DDL connection: %v", ErrConfiguration, err)
	}
	destDB, err = reopenDestination(ctx, opts.DestPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	defer destDB.Close()

	// Step 7: copy rows.
	if !opts.SchemaOnly {
		if err := c.copyAllRows(ctx, srcDB, destDB, db.Tables); err != nil {
			return err
		}
	}

	// Step 8: synthesize and execute FK triggers.
	triggerStart := rowCopyEnd
	if opts.SchemaOnly {
		triggerStart = ddlEnd
	}
	if opts.CreateTriggers {
		if err := c.emitTriggers(ctx, destDB, *db, triggerStart); err != nil {
			return err
		}
	}

	return nil
}

func classifyIntrospectionError(err error) error {
	if isUnsupportedTypeError(err) {
		return fmt.Errorf("%w: %v", ErrUnsupportedType, err)
	}
	return fmt.Errorf("%w: %v", ErrIntrospection, err)
}

func isUnsupportedTypeError(err error) bool {
	return errors.Is(err, typemap.ErrUnsupportedSourceType)
}

// emitTableDDL creates every table and its non-primary-key indexes, in
// introspection order, scaling progress from introspectionEnd to ddlEnd.
// Views are emitted afterwards at ddlEnd without advancing the percentage.
func (c *Coordinator) emitTableDDL(ctx context.Context, destDB *sql.DB, tables []schema.Table) error {
	for i, t := range tables {
		if err := c.checkCancelled(); err != nil {
			return err
		}
		if _, err := destDB.ExecContext(ctx, ddl.GenerateCreateTable(t)); err != nil {
			return fmt.Errorf("%w: create table %s: %v", ErrDDL, t.Name, err)
		}
		for _, idx := range t.Indexes {
			if _, err := destDB.ExecContext(ctx, ddl.GenerateCreateIndex(t.Name, idx)); err != nil {
				return fmt.Errorf("%w: create index on %s: %v", ErrDDL, t.Name, err)
			}
		}
		percent := rescale((i+1)*100/max(len(tables), 1), introspectionEnd, ddlEnd)
		c.report(false, true, percent, fmt.Sprintf("created table %s", t.Name))
	}
	return nil
}

// emitViewDDL creates every view, consulting viewFail on failure. An
// uninstalled handler makes the first view failure fatal.
func (c *Coordinator) emitViewDDL(ctx context.Context, destDB *sql.DB, views []schema.View, viewFail ViewFailureHandler) error {
	var onFailure ddl.ViewFailureFunc
	if viewFail != nil {
		onFailure = viewFail.OnViewFailure
	}

	for i, v := range views {
		if err := c.checkCancelled(); err != nil {
			return err
		}
		if err := ddl.CreateView(ctx, destDB, v, onFailure); err != nil {
			return fmt.Errorf("%w: %v", ErrDDL, err)
		}
		percent := rescale((i+1)*100/max(len(views), 1), ddlEnd, ddlEnd)
		c.report(false, true, percent, fmt.Sprintf("created view %s", v.Name))
	}
	return nil
}

// copyAllRows copies every table's rows, spreading the tables across the
// ddlEnd-rowCopyEnd (50-95) global range; every message for a table carries
// that table's end percentage. A schema-only run never calls copyAllRows
// (see runPipeline).
func (c *Coordinator) copyAllRows(ctx context.Context, srcDB, destDB *sql.DB, tables []schema.Table) error {
	for i, t := range tables {
		if err := c.checkCancelled(); err != nil {
			return err
		}
		tableEnd := ddlEnd + (i+1)*(rowCopyEnd-ddlEnd)/max(len(tables), 1)

		err := copier.CopyTable(ctx, srcDB, destDB, t,
			func(message string) {
				c.report(false, true, tableEnd, message)
			},
			func() error {
				if err := c.checkCancelled(); err != nil {
					return err
				}
				return nil
			},
		)
		if err != nil {
			if errors.Is(err, ErrCancelled) {
				return err
			}
			if errors.Is(err, copier.ErrIllegalAffinity) {
				return fmt.Errorf("%w: %v", ErrIllegalAffinity, err)
			}
			return fmt.Errorf("%w: %v", ErrRowCopy, err)
		}
		c.report(false, true, tableEnd, fmt.Sprintf("copied table %s", t.Name))
	}
	return nil
}

// emitTriggers synthesizes and executes every foreign-key-emulation
// trigger, scaling progress from triggerStart to 100.
func (c *Coordinator) emitTriggers(ctx context.Context, destDB *sql.DB, db schema.Database, triggerStart int) error {
	triggers := trigger.SynthesizeAll(db)
	for i, t := range triggers {
		if err := c.checkCancelled(); err != nil {
			return err
		}
		if _, err := destDB.ExecContext(ctx, ddl.GenerateCreateTrigger(t)); err != nil {
			return fmt.Errorf("%w: create trigger %s: %v", ErrDDL, t.Name, err)
		}
		percent := rescale((i+1)*100/max(len(triggers), 1), triggerStart, 100)
		c.report(false, true, percent, fmt.Sprintf("created trigger %s", t.Name))
	}
	return nil
}

func rescale(percent, rangeStart, rangeEnd int) int {
	return rangeStart + percent*(rangeEnd-rangeStart)/100
}
