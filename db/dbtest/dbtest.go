// Package dbtest provides helpers to run data-layer tests against a real
// Postgres instance. Tests are skipped when DATABASE_TEST_URL is not set.
package dbtest

import (
	"fmt"
	"net/http"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	migrate "github.com/rubenv/sql-migrate"

	authmigrations "github.com/nordbank/banking-platform-backend/db/migrations/auth-migrations"
	bankingmigrations "github.com/nordbank/banking-platform-backend/db/migrations/banking-migrations"
)

type migrationConfig struct {
	tableName string
	fs        http.FileSystem
}

var (
	bankingMigrationsConfig = migrationConfig{tableName: "banking_migrations", fs: http.FS(bankingmigrations.FS)}
	authMigrationsConfig    = migrationConfig{tableName: "auth_migrations", fs: http.FS(authmigrations.FS)}
)

// DB is an ephemeral test database living in its own schema.
type DB struct {
	DSN    string
	schema string
	conn   *sqlx.DB
}

func (db *DB) Open() *sqlx.DB {
	conn, err := sqlx.Open("postgres", db.DSN)
	if err != nil {
		panic(fmt.Errorf("opening test database: %w", err))
	}
	conn.MustExec(fmt.Sprintf("SET search_path TO %q", db.schema))
	return conn
}

func (db *DB) Close() {
	db.conn.MustExec(fmt.Sprintf("DROP SCHEMA IF EXISTS %q CASCADE", db.schema))
	_ = db.conn.Close()
}

// OpenWithoutMigrations creates a fresh schema for the test and returns the
// handle. The schema is dropped through t.Cleanup.
func OpenWithoutMigrations(t *testing.T) *DB {
	t.Helper()

	baseURL := os.Getenv("DATABASE_TEST_URL")
	if baseURL == "" {
		t.Skip("DATABASE_TEST_URL is not set, skipping database test")
	}

	schema := "test_" + uuid.NewString()[:8]
	conn, err := sqlx.Open("postgres", baseURL)
	if err != nil {
		t.Fatal(err)
	}
	conn.MustExec(fmt.Sprintf("CREATE SCHEMA %q", schema))

	db := &DB{
		DSN:    fmt.Sprintf("%s&search_path=%s", baseURL, schema),
		schema: schema,
		conn:   conn,
	}
	t.Cleanup(db.Close)

	return db
}

func openWithMigrations(t *testing.T, configs ...migrationConfig) *DB {
	t.Helper()
	db := OpenWithoutMigrations(t)

	conn := db.Open()
	defer conn.Close()

	for _, config := range configs {
		ms := migrate.MigrationSet{TableName: config.tableName}
		m := migrate.HttpFileSystemMigrationSource{FileSystem: config.fs}
		_, err := ms.ExecMax(conn.DB, "postgres", m, migrate.Up, 0)
		if err != nil {
			t.Fatal(err)
		}
	}

	return db
}

func Open(t *testing.T) *DB {
	return openWithMigrations(t, bankingMigrationsConfig, authMigrationsConfig)
}

func OpenWithBankingMigrationsOnly(t *testing.T) *DB {
	return openWithMigrations(t, bankingMigrationsConfig)
}

func OpenWithAuthMigrationsOnly(t *testing.T) *DB {
	return openWithMigrations(t, authMigrationsConfig)
}
