package ddl

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"
	"testing"

	"github.com/w8tcha/mssql2sqlite/internal/schema"
)

// failConn/failDriver stand in for a destination connection whose statements
// always fail, so CreateView's retry/discard protocol can be exercised
// without a real database.
type failConn struct{}

func (failConn) Prepare(query string) (driver.Stmt, error) { return nil, errors.New("boom") }
func (failConn) Close() error                              { return nil }
func (failConn) Begin() (driver.Tx, error)                 { return nil, errors.New("boom") }

type failDriver struct{}

func (failDriver) Open(name string) (driver.Conn, error) { return failConn{}, nil }

func init() { sql.Register("ddltestfail", failDriver{}) }

func openFailingDB(t *testing.T) *sql.DB {
	db, err := sql.Open("ddltestfail", "")
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	return db
}

func TestGenerateCreateTable_IntegerIdentityPK(t *testing.T) {
	// Boundary scenario 1.
	table := schema.Table{
		Name:       "T",
		Columns:    []schema.Column{{Name: "id", SourceType: "int", IsIdentity: true}, {Name: "name", SourceType: "nvarchar", Length: 50, Nullable: false}},
		PrimaryKey: []string{"id"},
	}

	got := GenerateCreateTable(table)

	if !strings.Contains(got, "[id] integer PRIMARY KEY AUTOINCREMENT") {
		t.Errorf("expected autoincrement id column, got:\n%s", got)
	}
	if strings.Contains(got, "PRIMARY KEY (") {
		t.Errorf("did not expect a standalone PRIMARY KEY clause, got:\n%s", got)
	}
	if !strings.Contains(got, "[name] nvarchar(50) NOT NULL") {
		t.Errorf("expected name column definition, got:\n%s", got)
	}
}

func TestGenerateCreateTable_CompositePKWithIdentity(t *testing.T) {
	// Boundary scenario 2. The identity column's source type (smallint, from
	// a source tinyint/smallint) must still be forced to integer even though
	// a composite PK never qualifies for AUTOINCREMENT.
	table := schema.Table{
		Name: "T",
		Columns: []schema.Column{
			{Name: "a", SourceType: "smallint", IsIdentity: true},
			{Name: "b", SourceType: "int"},
		},
		PrimaryKey: []string{"a", "b"},
	}

	got := GenerateCreateTable(table)

	if strings.Contains(got, "AUTOINCREMENT") {
		t.Errorf("a composite PK must not autoincrement, got:\n%s", got)
	}
	if !strings.Contains(got, "[a] integer") {
		t.Errorf("expected identity column a forced to integer, got:\n%s", got)
	}
	if strings.Contains(got, "[a] smallint") {
		t.Errorf("identity column a must not keep its original smallint storage type, got:\n%s", got)
	}
	if !strings.Contains(got, "PRIMARY KEY ([a], [b])") {
		t.Errorf("expected standalone composite primary key clause, got:\n%s", got)
	}
}

func TestGenerateCreateTable_NonIntegralIdentityForcedToIntegerNoAutoincrement(t *testing.T) {
	// Spec §4.2/§9: a sole-PK identity column whose source type is not
	// integral (e.g. numeric/decimal) still becomes integer, but never
	// qualifies for AUTOINCREMENT.
	table := schema.Table{
		Name: "T",
		Columns: []schema.Column{
			{Name: "id", SourceType: "numeric", IsIdentity: true},
			{Name: "name", SourceType: "varchar", Length: 50},
		},
		PrimaryKey: []string{"id"},
	}

	got := GenerateCreateTable(table)

	if strings.Contains(got, "AUTOINCREMENT") {
		t.Errorf("a non-integral identity column must not autoincrement, got:\n%s", got)
	}
	if !strings.Contains(got, "[id] integer") {
		t.Errorf("expected identity column id forced to integer, got:\n%s", got)
	}
	if strings.Contains(got, "[id] numeric") {
		t.Errorf("identity column id must not keep its original numeric storage type, got:\n%s", got)
	}
	if !strings.Contains(got, "PRIMARY KEY ([id])") {
		t.Errorf("expected standalone primary key clause since no autoincrement applies, got:\n%s", got)
	}
}

func TestGenerateCreateTable_BoolDefaultRewrite(t *testing.T) {
	// Boundary scenario 3.
	table := schema.Table{
		Name: "T",
		Columns: []schema.Column{
			{Name: "active", SourceType: "bit", Nullable: false, DefaultExpr: "(1)"},
		},
	}

	got := GenerateCreateTable(table)
	if !strings.Contains(got, "[active] bit NOT NULL DEFAULT 1") {
		t.Errorf("expected bool default rewritten to bare 1, got:\n%s", got)
	}
}

func TestGenerateCreateTable_GetdateMapping(t *testing.T) {
	// Boundary scenario 4.
	table := schema.Table{
		Name: "T",
		Columns: []schema.Column{
			{Name: "created", SourceType: "datetime", Nullable: true, DefaultExpr: "(CURRENT_TIMESTAMP)"},
		},
	}

	got := GenerateCreateTable(table)
	if !strings.Contains(got, "[created] datetime DEFAULT (CURRENT_TIMESTAMP)") {
		t.Errorf("expected GETDATE mapped to CURRENT_TIMESTAMP, got:\n%s", got)
	}
}

func TestGenerateCreateTable_ForeignKeyClause(t *testing.T) {
	table := schema.Table{
		Name: "Orders",
		Columns: []schema.Column{
			{Name: "id", SourceType: "int", IsIdentity: true},
			{Name: "customer_id", SourceType: "int"},
		},
		PrimaryKey: []string{"id"},
		ForeignKeys: []schema.ForeignKey{
			{ColumnName: "customer_id", ForeignTableName: "Customers", ForeignColumnName: "id"},
		},
	}

	got := GenerateCreateTable(table)
	if !strings.Contains(got, "FOREIGN KEY ([customer_id]) REFERENCES [Customers]([id])") {
		t.Errorf("expected foreign key clause, got:\n%s", got)
	}
	if strings.Contains(got, "CASCADE") {
		t.Errorf("foreign key clause must not carry a CASCADE keyword, got:\n%s", got)
	}
}

func TestGenerateCreateTable_CaseInsensitiveCollation(t *testing.T) {
	table := schema.Table{
		Name: "T",
		Columns: []schema.Column{
			{Name: "code", SourceType: "varchar", Length: 10, Nullable: false, CaseSensitive: schema.CaseSensitivityFalse},
		},
	}

	got := GenerateCreateTable(table)
	if !strings.Contains(got, "[code] varchar(10) NOT NULL COLLATE NOCASE") {
		t.Errorf("expected COLLATE NOCASE for case-insensitive column, got:\n%s", got)
	}
}

func TestGenerateCreateIndex(t *testing.T) {
	idx := schema.Index{
		Name:     "ix_name",
		IsUnique: true,
		Columns: []schema.IndexColumn{
			{ColumnName: "LastName", Ascending: true},
			{ColumnName: "FirstName", Ascending: false},
		},
	}

	got := GenerateCreateIndex("Users", idx)
	want := "CREATE UNIQUE INDEX [Users_ix_name] ON [Users] ([LastName], [FirstName] DESC);"
	if got != want {
		t.Errorf("GenerateCreateIndex() = %q, want %q", got, want)
	}
}

func TestGenerateCreateIndex_NonUnique(t *testing.T) {
	idx := schema.Index{Name: "ix_name", Columns: []schema.IndexColumn{{ColumnName: "Name", Ascending: true}}}
	got := GenerateCreateIndex("Users", idx)
	if strings.Contains(got, "UNIQUE") {
		t.Errorf("did not expect UNIQUE keyword, got: %s", got)
	}
}

func TestGenerateCreateTrigger(t *testing.T) {
	trig := schema.Trigger{
		Name:   "fki_Orders_customer_id_Customers_id",
		Timing: schema.Before,
		Event:  schema.Insert,
		Table:  "Orders",
		Body:   "SELECT 1;",
	}

	got := GenerateCreateTrigger(trig)
	want := "CREATE TRIGGER [fki_Orders_customer_id_Customers_id] BEFORE INSERT ON [Orders] BEGIN SELECT 1; END;"
	if got != want {
		t.Errorf("GenerateCreateTrigger() = %q, want %q", got, want)
	}
}

func TestCreateView_NoHandlerIsFatal(t *testing.T) {
	db := openFailingDB(t)
	defer db.Close()

	if err := CreateView(context.Background(), db, schema.View{Name: "v", SQL: "CREATE VIEW v AS SELECT 1"}, nil); err == nil {
		t.Fatal("expected a view failure with no installed handler to be fatal")
	}
}

func TestCreateView_DiscardSignal(t *testing.T) {
	db := openFailingDB(t)
	defer db.Close()

	// A stub failure func that always discards must suppress the error
	// regardless of the underlying execution failure.
	called := false
	onFailure := func(view schema.View, err error) (string, bool) {
		called = true
		return "", true
	}
	if err := CreateView(context.Background(), db, schema.View{Name: "v", SQL: "CREATE VIEW v AS SELECT 1"}, onFailure); err != nil {
		t.Fatalf("expected discard to suppress the error, got: %v", err)
	}
	if !called {
		t.Fatal("expected the failure handler to be consulted")
	}
}

func TestCreateView_ReplacementIsAlsoConsulted(t *testing.T) {
	db := openFailingDB(t)
	defer db.Close()

	attempts := 0
	onFailure := func(view schema.View, err error) (string, bool) {
		attempts++
		if attempts > 2 {
			return "", true // give up after a couple of retries
		}
		return view.SQL, false // retry with the same (still failing) SQL
	}
	err := CreateView(context.Background(), db, schema.View{Name: "v", SQL: "CREATE VIEW v AS SELECT 1"}, onFailure)
	if err != nil {
		t.Fatalf("expected eventual discard, got: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts before discard, got %d", attempts)
	}
}
