package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// migrationDirs maps DB_DRIVER to the directory under migrationsRoot.
var migrationDirs = map[string]string{
	"postgres": "postgresql",
	"mysql":    "mysql",
}

// RunMigrations applies every pending migration when steps is 0, or rolls back -steps
// migrations when steps is negative. migrationsRoot holds the postgresql/ and mysql/ trees.
func RunMigrations(logger *slog.Logger, driver, connectionString, migrationsRoot string, steps int) error {
	dir, ok := migrationDirs[driver]
	if !ok {
		return fmt.Errorf("unsupported database driver: %s", driver)
	}
	if steps > 0 {
		return errors.New("steps must be zero (up) or negative (rollback)")
	}

	sourceURL := "file://" + filepath.ToSlash(filepath.Join(migrationsRoot, dir))
	m, err := migrate.New(sourceURL, databaseURL(driver, connectionString))
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer closeMigrate(m, logger)

	logger.Info("running database migrations",
		slog.String("driver", driver),
		slog.String("source", sourceURL),
		slog.Int("steps", steps),
	)

	if steps == 0 {
		err = m.Up()
	} else {
		err = m.Steps(steps)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		logger.Info("migrations completed, schema is empty")
	case err != nil:
		return fmt.Errorf("failed to read schema version: %w", err)
	default:
		logger.Info("migrations completed", slog.Uint64("version", uint64(version)), slog.Bool("dirty", dirty))
	}
	return nil
}

// databaseURL adds the mysql:// scheme golang-migrate needs to a go-sql-driver DSN.
func databaseURL(driver, connectionString string) string {
	if driver == "mysql" && !strings.HasPrefix(connectionString, "mysql://") {
		return "mysql://" + connectionString
	}
	return connectionString
}
