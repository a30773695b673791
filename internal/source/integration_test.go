//go:build integration

package source

import (
	"context"
	"os"
	"testing"
)

// TestIntrospectDatabaseAgainstLiveServer exercises the full catalog-query
// sequence against a real SQL Server instance. Set MSSQL2SQLITE_TEST_DSN to
// run it; otherwise it is skipped.
func TestIntrospectDatabaseAgainstLiveServer(t *testing.T) {
	dsn := os.Getenv("MSSQL2SQLITE_TEST_DSN")
	if dsn == "" {
		t.Skip("MSSQL2SQLITE_TEST_DSN not set")
	}

	db, err := OpenDB(dsn)
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	defer db.Close()

	in := NewIntrospector(db)
	dbSchema, err := in.IntrospectDatabase(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("IntrospectDatabase: %v", err)
	}
	if len(dbSchema.Tables) == 0 {
		t.Error("expected at least one table from live introspection")
	}
}
