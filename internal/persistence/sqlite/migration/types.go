package migration

import (
	"context"
	"io/fs"
	"time"
)

// Migration is one versioned SQL file.
type Migration struct {
	Version     string // e.g. "001"
	Description string
	SQL         string
	FilePath    string
	Checksum    string // sha256 of SQL, hex encoded
}

// AppliedMigration is a row of schema_migrations.
type AppliedMigration struct {
	Version       string
	AppliedAt     time.Time
	ExecutionTime time.Duration
	Checksum      string
}

// MigrationStatus describes the current migration state.
type MigrationStatus struct {
	CurrentVersion    string
	PendingCount      int
	AppliedMigrations []AppliedMigration
	PendingMigrations []Migration
}

// MigrationManager orchestrates the migration process.
type MigrationManager interface {
	RunMigrations(ctx context.Context) error
	GetPendingMigrations(ctx context.Context) ([]Migration, error)
	GetMigrationStatus(ctx context.Context) (*MigrationStatus, error)
}

// FileScanner reads and validates migration files.
type FileScanner interface {
	// ScanMigrations returns the migrations found in dir sorted by version.
	ScanMigrations(fsys fs.FS, dir string) ([]Migration, error)
	ValidateFileName(filename string) error
	ParseMigrationFile(fsys fs.FS, filePath string) (*Migration, error)
}

// Executor applies migrations and tracks them in schema_migrations.
type Executor interface {
	ExecuteMigration(ctx context.Context, migration Migration) error
	InitializeVersionTable(ctx context.Context) error
	RecordMigration(ctx context.Context, migration Migration, executionTime time.Duration) error
	GetAppliedVersions(ctx context.Context) ([]AppliedMigration, error)
}
