// Package dbtest opens migrated databases for tests: in-memory SQLite by
// default, Postgres for integration tests.
package dbtest

import (
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/thishamdi/digital-store-api/internal/db"
)

// New returns a fresh database per test. The pool is capped at one
// connection, so concurrent transactions run one after another. SQLite has
// no FOR UPDATE; tests that need real row locks use Postgres.
func New(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	gdb, err := gorm.Open(sqlite.Open(dsn), db.Config())
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.Migrate(gdb))

	t.Cleanup(func() { _ = sqlDB.Close() })
	return gdb
}

// PostgresDSNEnv names the DSN of a scratch Postgres database for
// integration tests.
const PostgresDSNEnv = "STORE_TEST_POSTGRES_DSN"

var tables = []string{"order_items", "orders", "product_variants", "products", "categories", "users"}

// Postgres connects to the database named by STORE_TEST_POSTGRES_DSN,
// migrates it and empties every table before and after the test. The test
// is skipped when the variable is unset.
func Postgres(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := os.Getenv(PostgresDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", PostgresDSNEnv)
	}

	gdb, err := db.Connect(dsn)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))

	truncate := func() error {
		return gdb.Exec("TRUNCATE " + strings.Join(tables, ", ")).Error
	}
	require.NoError(t, truncate())

	t.Cleanup(func() {
		_ = truncate()
		_ = db.Close(gdb)
	})
	return gdb
}
