package migrate

import (
	"database/sql"
	"testing"

	_ "github.com/duckdb/duckdb-go/v2"
)

const latestVersion = 2

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("duckdb", "")
	if err != nil {
		t.Fatalf("open duckdb: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunAppliesAllMigrations(t *testing.T) {
	t.Parallel()
	db := openTestDB(t)

	if err := NewRunner(db).Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	for _, table := range []string{"dataset", "samples", "route_hops", "schema_migrations"} {
		var name string
		err := db.QueryRow("SELECT table_name FROM information_schema.tables WHERE table_name = ?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestRunIsIdempotent(t *testing.T) {
	t.Parallel()
	db := openTestDB(t)
	r := NewRunner(db)

	if err := r.Run(); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if err := r.Run(); err != nil {
		t.Fatalf("second Run: %v", err)
	}

	cur, pending, err := r.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if cur != latestVersion || pending != 0 {
		t.Errorf("expected version=%d pending=0, got version=%d pending=%d", latestVersion, cur, pending)
	}
}

func TestStatusReportsCorrectly(t *testing.T) {
	t.Parallel()
	db := openTestDB(t)
	r := NewRunner(db)

	cur, pending, err := r.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if cur != 0 || pending != latestVersion {
		t.Errorf("before run: expected version=0 pending=%d, got version=%d pending=%d", latestVersion, cur, pending)
	}

	if err := r.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	cur, pending, err = r.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if cur != latestVersion || pending != 0 {
		t.Errorf("after run: expected version=%d pending=0, got version=%d pending=%d", latestVersion, cur, pending)
	}
}
