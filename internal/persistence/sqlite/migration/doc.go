// Package migration applies versioned SQL files to a SQLite database.
//
// Migration files are read from an fs.FS, usually an embed.FS compiled into
// the binary, and follow the naming convention {version}_{description}.sql
// (e.g. "001_initial_schema.sql"). An optional "-- Description:" header line
// overrides the description taken from the file name.
//
// Applied versions are tracked in the schema_migrations table together with
// the file checksum. Each migration runs in its own transaction.
//
// Example usage:
//
//	manager := NewMigrationManager(NewFileScanner(), NewSQLiteExecutor(db), files, "migrations", logger)
//	if err := manager.RunMigrations(ctx); err != nil {
//		return fmt.Errorf("migrate: %w", err)
//	}
package migration
