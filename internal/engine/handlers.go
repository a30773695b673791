package engine

import "github.com/w8tcha/mssql2sqlite/internal/schema"

// ProgressHandler receives every progress event from a conversion run,
// invoked synchronously on the worker goroutine. The final invocation
// always has done=true, exactly once.
type ProgressHandler interface {
	OnProgress(done, success bool, percent int, message string)
}

// TableSelectionHandler is invoked once, after introspection and before
// DDL emission, with the full list of introspected tables. A nil return
// keeps the original list; a non-nil return replaces it.
type TableSelectionHandler interface {
	SelectTables(tables []schema.Table) []schema.Table
}

// ViewFailureHandler is consulted whenever a CREATE VIEW statement fails.
// It returns either a replacement DDL string to retry, or discard=true to
// drop the view and continue. If no handler is installed, a view failure
// is fatal.
type ViewFailureHandler interface {
	OnViewFailure(view schema.View, err error) (replacementSQL string, discard bool)
}

// ConvertOptions configures a single conversion run.
type ConvertOptions struct {
	SourceConnString string
	DestPath         string
	Password         string // "" = no encryption
	CreateTriggers   bool
	CreateViews      bool
	SchemaOnly       bool // supplemental: emit schema only, skip row copy
}
