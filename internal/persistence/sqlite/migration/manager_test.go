package migration

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"testing/fstest"
)

func openTempDB(t *testing.T) *sql.DB {
	t.Helper()
	cfg := TempFileTestSQLiteConfig(filepath.Join(t.TempDir(), "migrate.db"))
	db, err := NewConnectionManager(cfg).GetConnection()
	if err != nil {
		t.Fatalf("GetConnection: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestManager(db *sql.DB, files fstest.MapFS) MigrationManager {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewMigrationManager(NewFileScanner(), NewSQLiteExecutor(db), files, "migrations", logger)
}

func TestMigrationManager_RunMigrationsAppliesPendingOnce(t *testing.T) {
	ctx := context.Background()
	db := openTempDB(t)
	files := fstest.MapFS{
		"migrations/001_people.sql": {Data: []byte("CREATE TABLE people (id TEXT PRIMARY KEY, name TEXT NOT NULL);")},
		"migrations/002_badges.sql": {Data: []byte("CREATE TABLE badges (id TEXT PRIMARY KEY);\nCREATE INDEX idx_badges_id ON badges(id);")},
	}
	manager := newTestManager(db, files)

	if err := manager.RunMigrations(ctx); err != nil {
		t.Fatalf("RunMigrations returned error: %v", err)
	}
	if _, err := db.ExecContext(ctx, "INSERT INTO badges (id) VALUES ('B1')"); err != nil {
		t.Fatalf("expected badges table to exist: %v", err)
	}

	status, err := manager.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus returned error: %v", err)
	}
	if status.CurrentVersion != "002" || status.PendingCount != 0 || len(status.AppliedMigrations) != 2 {
		t.Fatalf("unexpected status %#v", status)
	}

	if err := manager.RunMigrations(ctx); err != nil {
		t.Fatalf("second RunMigrations returned error: %v", err)
	}
}

func TestMigrationManager_FailedMigrationIsNotRecorded(t *testing.T) {
	ctx := context.Background()
	db := openTempDB(t)
	files := fstest.MapFS{
		"migrations/001_ok.sql":     {Data: []byte("CREATE TABLE ok (id TEXT);")},
		"migrations/002_broken.sql": {Data: []byte("CREATE TABLE broken (id TEXT);\nINSERT INTO missing_table VALUES (1);")},
	}
	manager := newTestManager(db, files)

	err := manager.RunMigrations(ctx)
	if !errors.Is(err, ErrMigrationFailed) {
		t.Fatalf("expected ErrMigrationFailed, got %v", err)
	}

	pending, err := manager.GetPendingMigrations(ctx)
	if err != nil {
		t.Fatalf("GetPendingMigrations returned error: %v", err)
	}
	if len(pending) != 1 || pending[0].Version != "002" {
		t.Fatalf("expected only 002 pending, got %#v", pending)
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE name = 'broken'").Scan(&count); err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected failed migration to be rolled back")
	}
}

func TestMigrationManager_DetectsEditedMigration(t *testing.T) {
	ctx := context.Background()
	db := openTempDB(t)
	files := fstest.MapFS{
		"migrations/001_people.sql": {Data: []byte("CREATE TABLE people (id TEXT);")},
	}
	if err := newTestManager(db, files).RunMigrations(ctx); err != nil {
		t.Fatalf("RunMigrations returned error: %v", err)
	}

	files["migrations/001_people.sql"] = &fstest.MapFile{Data: []byte("CREATE TABLE people (id TEXT, extra TEXT);")}
	_, err := newTestManager(db, files).GetPendingMigrations(ctx)
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}
}

func TestMigrationManager_DetectsSequenceGap(t *testing.T) {
	db := openTempDB(t)
	files := fstest.MapFS{
		"migrations/001_a.sql": {Data: []byte("CREATE TABLE a (id TEXT);")},
		"migrations/003_c.sql": {Data: []byte("CREATE TABLE c (id TEXT);")},
	}

	_, err := newTestManager(db, files).GetPendingMigrations(context.Background())
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
}

func TestSQLiteConfig_DriverDSN(t *testing.T) {
	cfg := SQLiteConfig{DSN: "/tmp/x.db", EnableForeignKeys: true, ImmediateTx: true}
	got := cfg.DriverDSN()
	want := "file:/tmp/x.db?_pragma=foreign_keys%281%29&_txlock=immediate"
	if got != want {
		t.Fatalf("DriverDSN() = %q, want %q", got, want)
	}

	if dsn := (SQLiteConfig{DSN: ":memory:"}).DriverDSN(); dsn != ":memory:" {
		t.Fatalf("expected bare in-memory DSN, got %q", dsn)
	}
}

func TestConnectionManager_ValidateConfig(t *testing.T) {
	cases := map[string]SQLiteConfig{
		"empty dsn":     {},
		"journal mode":  {DSN: "x.db", JournalMode: "FAST"},
		"synchronous":   {DSN: "x.db", Synchronous: "SOMETIMES"},
		"negative pool": {DSN: "x.db", MaxOpenConns: -1},
		"negative busy": {DSN: "x.db", BusyTimeout: -1},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			if err := NewConnectionManager(cfg).ValidateConfig(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}

	if err := NewConnectionManager(DefaultSQLiteConfig("data/app.db")).ValidateConfig(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}
