// Package trigger synthesizes the SQLite triggers that emulate foreign-key
// enforcement on a destination that was not given native FK constraints.
package trigger

import (
	"fmt"

	"github.com/w8tcha/mssql2sqlite/internal/schema"
)

// Synthesize builds the three triggers (insert guard, update guard, delete
// guard or cascade) for a single foreign key owned by table t.
func Synthesize(t schema.Table, fk schema.ForeignKey) []schema.Trigger {
	insertName := fmt.Sprintf("fki_%s_%s_%s_%s", t.Name, fk.ColumnName, fk.ForeignTableName, fk.ForeignColumnName)
	updateName := fmt.Sprintf("fku_%s_%s_%s_%s", t.Name, fk.ColumnName, fk.ForeignTableName, fk.ForeignColumnName)
	deleteName := fmt.Sprintf("fkd_%s_%s_%s_%s", t.Name, fk.ColumnName, fk.ForeignTableName, fk.ForeignColumnName)

	return []schema.Trigger{
		{
			Name:   insertName,
			Timing: schema.Before,
			Event:  schema.Insert,
			Table:  t.Name,
			Body:   guardBody(fk, insertName, "insert", "NEW"),
		},
		{
			Name:   updateName,
			Timing: schema.Before,
			Event:  schema.Update,
			Table:  t.Name,
			Body:   guardBody(fk, updateName, "update", "NEW"),
		},
		{
			Name:   deleteName,
			Timing: schema.Before,
			Event:  schema.Delete,
			Table:  fk.ForeignTableName,
			Body:   deleteBody(t, fk, deleteName),
		},
	}
}

// guardBody builds the insert/update trigger body: a ROLLBACK raised
// unless the referenced row exists. When the owning column is nullable,
// the check is guarded so that a NULL foreign key never rolls back.
func guardBody(fk schema.ForeignKey, triggerName, verb, rowVar string) string {
	message := fmt.Sprintf("%s on table %q violates foreign key constraint %q", verb, fk.TableName, triggerName)

	clause := fmt.Sprintf("(SELECT 1 FROM %s WHERE %s = %s.%s) IS NULL",
		schema.QuoteIdent(fk.ForeignTableName), schema.QuoteIdent(fk.ForeignColumnName), rowVar, fk.ColumnName)

	if fk.IsNullable {
		clause = fmt.Sprintf("%s.%s IS NOT NULL AND %s", rowVar, fk.ColumnName, clause)
	}

	return fmt.Sprintf("SELECT RAISE(ROLLBACK, '%s') WHERE %s;", message, clause)
}

// deleteBody builds the delete-guard trigger body on the referenced table:
// a ROLLBACK when referencing rows remain, or a cascading DELETE when the
// foreign key is configured to cascade.
func deleteBody(t schema.Table, fk schema.ForeignKey, triggerName string) string {
	if fk.CascadeOnDelete {
		return fmt.Sprintf("DELETE FROM %s WHERE %s = OLD.%s;",
			schema.QuoteIdent(t.Name), fk.ColumnName, fk.ForeignColumnName)
	}

	message := fmt.Sprintf("delete on table %q violates foreign key constraint %q", fk.ForeignTableName, triggerName)
	clause := fmt.Sprintf("(SELECT 1 FROM %s WHERE %s = OLD.%s) IS NOT NULL",
		schema.QuoteIdent(t.Name), fk.ColumnName, fk.ForeignColumnName)

	return fmt.Sprintf("SELECT RAISE(ROLLBACK, '%s') WHERE %s;", message, clause)
}

// SynthesizeAll builds every FK-emulation trigger for a whole database.
func SynthesizeAll(db schema.Database) []schema.Trigger {
	var triggers []schema.Trigger
	for _, t := range db.Tables {
		for _, fk := range t.ForeignKeys {
			triggers = append(triggers, Synthesize(t, fk)...)
		}
	}
	return triggers
}
