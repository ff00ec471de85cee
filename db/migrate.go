package db

import (
	"context"
	"embed"
	"fmt"
	"net/http"

	migrate "github.com/rubenv/sql-migrate"
)

type MigrationTableName string

const (
	BankingMigrationsTableName MigrationTableName = "banking_migrations"
	AuthMigrationsTableName    MigrationTableName = "auth_migrations"
)

func Migrate(dbURL string, dir migrate.MigrationDirection, count int, migrationFiles embed.FS, tableName MigrationTableName) (int, error) {
	dbConnectionPool, err := OpenDBConnectionPool(dbURL)
	if err != nil {
		return 0, fmt.Errorf("opening db connection pool: %w", err)
	}
	defer dbConnectionPool.Close()

	ms := migrate.MigrationSet{
		TableName: string(tableName),
	}

	m := migrate.HttpFileSystemMigrationSource{FileSystem: http.FS(migrationFiles)}
	ctx := context.Background()
	db, err := dbConnectionPool.SqlDB(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetching sql.DB: %w", err)
	}
	return ms.ExecMax(db, dbConnectionPool.DriverName(), m, dir, count)
}
