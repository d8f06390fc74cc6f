package db

import (
	"context"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	// necessary imports to wire up the postgres and sqlite drivers
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"

	// SQLiteSchema is the name sqlite gives the main database file
	SQLiteSchema = "main"
)

//go:embed migrations/*.sql
var migrations embed.FS

// NewConnection opens a postgres or sqlite database, waits until it answers
// and applies the embedded schema for the driver.
func NewConnection(ctx context.Context, driver, databaseURL, schema string, logger *zap.Logger) (*sqlx.DB, error) {
	dsn := databaseURL
	switch driver {
	case DriverPostgres:
	case DriverSQLite:
		var err error
		dsn, err = sqliteDSN(databaseURL)
		if err != nil {
			return nil, err
		}
		schema = SQLiteSchema
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == DriverSQLite {
		// sqlite allows a single writer; one connection avoids SQLITE_BUSY under load
		db.SetMaxOpenConns(1)
	}

	if err := pingWithRetry(ctx, db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := Migrate(ctx, db, schema); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("database ready", zap.String("driver", driver), zap.String("schema", schema))
	return db, nil
}

// Migrate creates the member_pings table and its indexes if they do not exist
func Migrate(ctx context.Context, db *sqlx.DB, schema string) error {
	raw, err := migrations.ReadFile("migrations/" + db.DriverName() + ".sql")
	if err != nil {
		return fmt.Errorf("no migrations for driver %s: %w", db.DriverName(), err)
	}

	script := strings.ReplaceAll(string(raw), "{{schema}}", schema)
	for _, stmt := range strings.Split(script, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply migration: %w", err)
		}
	}
	return nil
}

func pingWithRetry(ctx context.Context, db *sqlx.DB, logger *zap.Logger) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxInterval = 5 * time.Second
	policy.MaxElapsedTime = 30 * time.Second

	return backoff.RetryNotify(
		func() error { return db.PingContext(ctx) },
		backoff.WithContext(policy, ctx),
		func(err error, next time.Duration) {
			logger.Warn("database not reachable yet", zap.Error(err), zap.Duration("retry_in", next))
		},
	)
}

func sqliteDSN(path string) (string, error) {
	file, _, _ := strings.Cut(strings.TrimPrefix(path, "file:"), "?")
	if file != "" && file != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
			return "", fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_time_format=sqlite&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", nil
}
