package recorder

import "embed"

//go:embed migrations/*.sql
var migrationsFS embed.FS

func init() {
	MigrationsFS = migrationsFS
	MigrationsDir = "migrations"
}
