// Package schema holds the dialect-neutral description of a source
// database: tables, columns, indexes, foreign keys, views, and the
// triggers synthesized to emulate them on the destination.
package schema

import "strings"

// CaseSensitivity is a tri-state sum type. Absent collation information
// must never be silently treated as case-insensitive, so "unknown" is a
// distinct value from "false".
type CaseSensitivity int

const (
	CaseSensitivityUnknown CaseSensitivity = iota
	CaseSensitivityTrue
	CaseSensitivityFalse
)

// Column is a single column as read from the source catalog, already
// carrying its SQLite-mapped type token (see package typemap).
type Column struct {
	Name          string
	SourceType    string // lowercased, already mapped to the SQLite-side token
	Length        int    // 0 = unspecified
	Nullable      bool
	DefaultExpr   string // "" = no default
	IsIdentity    bool
	CaseSensitive CaseSensitivity
}

// ForeignKey describes a single-column foreign key constraint.
type ForeignKey struct {
	TableName         string
	ColumnName        string
	ForeignTableName  string
	ForeignColumnName string
	CascadeOnDelete   bool
	IsNullable        bool // mirrors the owning column's nullability
}

// IndexColumn is one key-part of an Index.
type IndexColumn struct {
	ColumnName string
	Ascending  bool
}

// Index describes a non-primary-key index.
type Index struct {
	Name     string
	IsUnique bool
	Columns  []IndexColumn
}

// Table is the full introspected definition of one source table.
type Table struct {
	Name        string
	SchemaName  string
	Columns     []Column
	PrimaryKey  []string // ordered column names
	ForeignKeys []ForeignKey
	Indexes     []Index
}

// Column looks up a column by name, case-insensitively, as the source
// catalog's identifiers are not guaranteed to match the case used in
// PrimaryKey/Index/ForeignKey references.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Column{}, false
}

// TriggerTiming is BEFORE or AFTER.
type TriggerTiming int

const (
	Before TriggerTiming = iota
	After
)

func (t TriggerTiming) String() string {
	if t == After {
		return "AFTER"
	}
	return "BEFORE"
}

// TriggerEvent is INSERT, UPDATE, or DELETE.
type TriggerEvent int

const (
	Insert TriggerEvent = iota
	Update
	Delete
)

func (e TriggerEvent) String() string {
	switch e {
	case Update:
		return "UPDATE"
	case Delete:
		return "DELETE"
	default:
		return "INSERT"
	}
}

// Trigger is a synthesized or carried-over SQLite trigger definition.
type Trigger struct {
	Name   string
	Timing TriggerTiming
	Event  TriggerEvent
	Table  string
	Body   string // raw SQL fragment executed inside BEGIN ... END
}

// View is a source view, after dialect-neutralizing rewrites.
type View struct {
	Name string
	SQL  string
}

// Database holds every introspected schema object for a single source
// database.
type Database struct {
	Tables []Table
	Views  []View
}

// Table looks up a table by name.
func (d Database) Table(name string) (Table, bool) {
	for _, t := range d.Tables {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return Table{}, false
}

// QuoteIdent renders a SQLite-safe bracketed identifier. SQLite accepts
// unquoted identifiers freely, but the teacher's source generator always
// brackets names to sidestep reserved-word collisions outright, and the
// destination DDL in this module follows the same convention.
func QuoteIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}
