package migrate

import (
	"database/sql"
	"testing"

	_ "github.com/duckdb/duckdb-go/v2"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("duckdb", "")
	if err != nil {
		t.Fatalf("open duckdb: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func latestVersion(t *testing.T) int {
	t.Helper()
	migs, err := Migrations()
	if err != nil {
		t.Fatalf("Migrations: %v", err)
	}
	if len(migs) == 0 {
		t.Fatal("no embedded migrations")
	}
	return migs[len(migs)-1].Version
}

func TestMigrationsAreOrdered(t *testing.T) {
	migs, err := Migrations()
	if err != nil {
		t.Fatalf("Migrations: %v", err)
	}
	for i := 1; i < len(migs); i++ {
		if migs[i].Version <= migs[i-1].Version {
			t.Errorf("migration %s not after %s", migs[i].Name, migs[i-1].Name)
		}
	}
}

func TestRunAppliesAllMigrations(t *testing.T) {
	db := openTestDB(t)
	r := NewRunner(db)

	applied, err := r.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if applied != 4 {
		t.Errorf("applied = %d, want 4", applied)
	}

	for _, table := range []string{"logs", "schema_migrations"} {
		var name string
		err := db.QueryRow("SELECT table_name FROM information_schema.tables WHERE table_name = ?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}

	var id int64
	if err := db.QueryRow("INSERT INTO logs (timestamp, message, raw_log) VALUES ('t', 'm', 'm') RETURNING id").Scan(&id); err != nil {
		t.Fatalf("insert with sequence default: %v", err)
	}
	if id != 1 {
		t.Errorf("first id = %d, want 1", id)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	r := NewRunner(db)

	if _, err := r.Run(); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	applied, err := r.Run()
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if applied != 0 {
		t.Errorf("second Run applied %d, want 0", applied)
	}

	want := latestVersion(t)
	cur, pending, err := r.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if cur != want || pending != 0 {
		t.Errorf("expected version=%d pending=0, got version=%d pending=%d", want, cur, pending)
	}
}

func TestStatusReportsCorrectly(t *testing.T) {
	db := openTestDB(t)
	r := NewRunner(db)
	want := latestVersion(t)

	cur, pending, err := r.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if cur != 0 || pending != 4 {
		t.Errorf("before run: expected version=0 pending=4, got version=%d pending=%d", cur, pending)
	}

	if _, err := r.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	cur, pending, err = r.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if cur != want || pending != 0 {
		t.Errorf("after run: expected version=%d pending=0, got version=%d pending=%d", want, cur, pending)
	}
}
