package sqlite

import (
	"context"
	"embed"
	"log/slog"

	"github.com/example/access-compliance/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrate applies the embedded schema migrations to the pool's database.
func Migrate(ctx context.Context, pool *ConnectionPool, logger *slog.Logger) error {
	manager := migration.NewMigrationManager(
		migration.NewFileScanner(),
		migration.NewSQLiteExecutor(pool.DB()),
		migrationFiles,
		"migrations",
		logger,
	)
	return manager.RunMigrations(ctx)
}

// Open creates a pool for config and migrates it.
func Open(ctx context.Context, config migration.SQLiteConfig, logger *slog.Logger) (*ConnectionPool, error) {
	pool, err := NewConnectionPool(config)
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, pool, logger); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
