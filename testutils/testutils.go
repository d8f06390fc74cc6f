package testutils

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"pingwatch/db"
	"pingwatch/models"
)

// TestDatabase is a migrated database private to one test
type TestDatabase struct {
	DB     *sqlx.DB
	Schema string
}

// LoadTestDatabaseURL returns the postgres URL used by integration tests, if configured
func LoadTestDatabaseURL() (string, bool) {
	_ = godotenv.Load("../.env.test")
	_ = godotenv.Load(".env.test")

	url := os.Getenv("TEST_DB_URL")
	return url, url != ""
}

// NewSQLiteTestDB opens a fresh sqlite file in the test's temp dir
func NewSQLiteTestDB(t *testing.T) *TestDatabase {
	t.Helper()

	path := filepath.Join(t.TempDir(), "pingwatch.db")
	conn, err := db.NewConnection(context.Background(), db.DriverSQLite, path, "", zaptest.NewLogger(t))
	require.NoError(t, err, "Failed to open sqlite test database")

	t.Cleanup(func() { conn.Close() })
	return &TestDatabase{DB: conn, Schema: db.SQLiteSchema}
}

// NewPostgresTestDB creates a uniquely named schema in TEST_DB_URL and drops it on cleanup.
// The test is skipped when TEST_DB_URL is not set.
func NewPostgresTestDB(t *testing.T) *TestDatabase {
	t.Helper()

	url, ok := LoadTestDatabaseURL()
	if !ok {
		t.Skip("TEST_DB_URL is not set")
	}

	schema := "pingwatch_test_" + strings.ReplaceAll(uuid.New().String(), "-", "")
	conn, err := db.NewConnection(context.Background(), db.DriverPostgres, url, schema, zaptest.NewLogger(t))
	require.NoError(t, err, "Failed to open postgres test database")

	t.Cleanup(func() {
		_, _ = conn.Exec(fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schema))
		conn.Close()
	})
	return &TestDatabase{DB: conn, Schema: schema}
}

// Snowflake builds a deterministic Discord-sized ID for tests
func Snowflake(n uint64) models.Snowflake {
	return models.Snowflake(1_100_000_000_000_000_000 + n)
}
