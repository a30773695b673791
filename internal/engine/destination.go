package engine

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// openDestination creates a brand-new destination file and applies the
// fixed connection-level settings. PRAGMA encoding is only honored by
// SQLite on a completely empty database, so it and the page size must be
// set before any table exists.
func openDestination(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open destination: %w", err)
	}

	if _, err := db.ExecContext(ctx, `PRAGMA encoding = "UTF-16"`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set destination encoding: %w", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA page_size = 4096`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set destination page size: %w", err)
	}
	return db, nil
}

// reopenDestination opens a second connection to an already-initialized
// destination file. It is used for the row-copy and trigger phases once
// the DDL connection has been closed, so the two phases never hold the
// file open at once and risk lock contention. The encoding/page-size
// pragmas are not reapplied here: they only take effect on an empty
// database, and by this point the schema already exists.
func reopenDestination(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("reopen destination: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("reopen destination: %w", err)
	}
	return db, nil
}
