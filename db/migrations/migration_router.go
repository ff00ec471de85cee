package migrations

import (
	"net/http"

	authmigrations "github.com/nordbank/banking-platform-backend/db/migrations/auth-migrations"
	bankingmigrations "github.com/nordbank/banking-platform-backend/db/migrations/banking-migrations"
)

type MigrationRouter struct {
	TableName string
	FS        http.FileSystem
}

var (
	BankingMigrationRouter = MigrationRouter{TableName: "banking_migrations", FS: http.FS(bankingmigrations.FS)}
	AuthMigrationRouter    = MigrationRouter{TableName: "auth_migrations", FS: http.FS(authmigrations.FS)}
)
