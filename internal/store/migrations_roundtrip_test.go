package store

import (
	"context"
	"database/sql"
	"io/fs"
	"os"
	"slices"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// schemaTables is every table the migrations own, sorted.
var schemaTables = []string{
	"admin_audit",
	"assignment_audit",
	"attachments",
	"complaints",
	"departments",
	"feedback",
	"officers",
	"refresh_sessions",
	"revoked_access_tokens",
	"schema_migrations",
	"sla_notices",
	"timeline_events",
	"users",
}

var appendOnlyTriggers = []string{
	"trg_admin_audit_block_delete",
	"trg_admin_audit_block_update",
	"trg_assignment_audit_block_delete",
	"trg_assignment_audit_block_update",
	"trg_timeline_events_block_delete",
	"trg_timeline_events_block_update",
}

// TestSchemaSurvivesDownAndUp tears the schema down with the .down.sql files
// in reverse order and rebuilds it, then checks the rebuilt schema is whole.
func TestSchemaSurvivesDownAndUp(t *testing.T) {
	db := openIntegrationDB(t).db
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	migrations := os.DirFS(migrationsDir)
	if diff := cmp.Diff(schemaTables, listNames(t, ctx, db, `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = 'public' AND table_type = 'BASE TABLE'
	`)); diff != "" {
		t.Fatalf("tables after first up (-want +got):\n%s", diff)
	}

	if err := runDowns(ctx, db, migrations); err != nil {
		t.Fatalf("down migrations: %v", err)
	}
	if left := listNames(t, ctx, db, `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = 'public' AND table_name <> 'schema_migrations'
	`); len(left) != 0 {
		t.Fatalf("down migrations left tables behind: %v", left)
	}
	if _, err := db.ExecContext(ctx, `TRUNCATE schema_migrations`); err != nil {
		t.Fatalf("forget applied versions: %v", err)
	}

	// Twice: the second pass must find every version recorded and do nothing.
	for pass := 1; pass <= 2; pass++ {
		if err := ApplyMigrations(ctx, db, migrations); err != nil {
			t.Fatalf("up migrations, pass %d: %v", pass, err)
		}
	}

	if diff := cmp.Diff(schemaTables, listNames(t, ctx, db, `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = 'public' AND table_type = 'BASE TABLE'
	`)); diff != "" {
		t.Fatalf("tables after rebuild (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(appendOnlyTriggers, listNames(t, ctx, db, `
		SELECT DISTINCT trigger_name FROM information_schema.triggers
		WHERE trigger_schema = 'public'
	`)); diff != "" {
		t.Fatalf("append-only triggers after rebuild (-want +got):\n%s", diff)
	}

	ups, err := migrationFiles(migrations, ".up.sql")
	if err != nil {
		t.Fatalf("list up migrations: %v", err)
	}
	if diff := cmp.Diff(ups, listNames(t, ctx, db, `SELECT version FROM schema_migrations`)); diff != "" {
		t.Fatalf("recorded versions (-want +got):\n%s", diff)
	}
}

// runDowns applies the .down.sql files newest first.
func runDowns(ctx context.Context, db *sql.DB, fsys fs.FS) error {
	downs, err := migrationFiles(fsys, ".down.sql")
	if err != nil {
		return err
	}
	slices.Reverse(downs)
	for _, name := range downs {
		contents, err := fs.ReadFile(fsys, name)
		if err != nil {
			return err
		}
		if _, err := db.ExecContext(ctx, string(contents)); err != nil {
			return err
		}
	}
	return nil
}

// listNames runs a single-column query and returns its values sorted.
func listNames(t *testing.T, ctx context.Context, db *sql.DB, query string) []string {
	t.Helper()
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		t.Fatalf("query %q: %v", query, err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("scan: %v", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("iterate: %v", err)
	}
	slices.Sort(names)
	return names
}
