package migrations

import (
	"context"
	"database/sql"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	approvals "github.com/goliatone/go-approvals"
	_ "github.com/mattn/go-sqlite3"
)

func TestFilesystems_ReturnsPostgresAndSQLite(t *testing.T) {
	filesystems, err := Filesystems()
	if err != nil {
		t.Fatalf("filesystems: %v", err)
	}
	if len(filesystems) != 2 {
		t.Fatalf("expected 2 filesystems, got %d", len(filesystems))
	}

	found := map[string]bool{}
	for _, entry := range filesystems {
		matches, globErr := fs.Glob(entry.FS, "*.up.sql")
		if globErr != nil {
			t.Fatalf("glob %s: %v", entry.Dialect, globErr)
		}
		if len(matches) == 0 {
			t.Fatalf("expected %s migration files, got none", entry.Dialect)
		}
		found[entry.Dialect] = true
	}
	if !found[DialectPostgres] || !found[DialectSQLite] {
		t.Fatalf("expected postgres and sqlite filesystems, got %v", found)
	}
}

func TestRegister_UsesValidationTargets(t *testing.T) {
	var calls []string
	reg, err := Register(context.Background(), func(_ context.Context, dialect string, label string, _ fs.FS) error {
		if label != "go-approvals" {
			t.Fatalf("unexpected source label %q", label)
		}
		calls = append(calls, dialect)
		return nil
	}, WithValidationTargets(" SQLite "))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(calls) != 1 || calls[0] != DialectSQLite {
		t.Fatalf("expected a single sqlite registration, got %v", calls)
	}
	if len(reg.Filesystems) != 2 {
		t.Fatalf("expected both filesystems to be resolved")
	}

	if _, err := Register(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil register function")
	}
}

func TestActivityMigrationPair_ExistsForBothDialects(t *testing.T) {
	root := approvals.GetMigrationsFS()
	paths := []string{
		"data/sql/migrations/00001_approval_activity.up.sql",
		"data/sql/migrations/00001_approval_activity.down.sql",
		"data/sql/migrations/sqlite/00001_approval_activity.up.sql",
		"data/sql/migrations/sqlite/00001_approval_activity.down.sql",
	}
	for _, migrationPath := range paths {
		content, err := fs.ReadFile(root, migrationPath)
		if err != nil {
			t.Fatalf("read migration %s: %v", migrationPath, err)
		}
		if strings.TrimSpace(string(content)) == "" {
			t.Fatalf("expected migration %s to have SQL content", migrationPath)
		}
	}
}

func TestSQLiteActivityMigration_ApplyAndRollback(t *testing.T) {
	db, err := sql.Open("sqlite3", "file:migrations-activity?mode=memory&cache=shared&_foreign_keys=on")
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	defer func() { _ = db.Close() }()
	db.SetMaxOpenConns(1)

	sqliteMigrations, err := fs.Sub(approvals.GetMigrationsFS(), "data/sql/migrations/sqlite")
	if err != nil {
		t.Fatalf("resolve sqlite migrations: %v", err)
	}
	ctx := context.Background()

	if err := execSQLMigration(ctx, db, sqliteMigrations, "00001_approval_activity.up.sql"); err != nil {
		t.Fatalf("apply activity migration up: %v", err)
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO approval_activity_entries (id, backend, action, status) VALUES (?, ?, ?, ?)`,
		"act_1", "gateway", "APPROVE", "ok",
	); err != nil {
		t.Fatalf("insert activity row: %v", err)
	}
	if count := countSQLiteObjects(t, db, "index", "idx_approval_activity_created_at"); count != 1 {
		t.Fatalf("expected created_at index after up migration")
	}

	if err := execSQLMigration(ctx, db, sqliteMigrations, "00001_approval_activity.down.sql"); err != nil {
		t.Fatalf("apply activity migration down: %v", err)
	}
	if count := countSQLiteObjects(t, db, "table", "approval_activity_entries"); count != 0 {
		t.Fatalf("expected approval_activity_entries to be dropped after down migration")
	}
}

func countSQLiteObjects(t *testing.T, db *sql.DB, kind string, name string) int {
	t.Helper()
	var count int
	if err := db.QueryRowContext(
		context.Background(),
		`SELECT COUNT(*) FROM sqlite_master WHERE type=? AND name=?`,
		kind,
		name,
	).Scan(&count); err != nil {
		t.Fatalf("query sqlite_master for %s: %v", name, err)
	}
	return count
}

func execSQLMigration(ctx context.Context, db *sql.DB, fsys fs.FS, filename string) error {
	content, err := fs.ReadFile(fsys, filepath.Clean(filename))
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, string(content))
	return err
}
