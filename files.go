package identity

import (
	"embed"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

// GetMigrationsFS returns the SQL migrations for the tables this package owns.
func GetMigrationsFS() embed.FS {
	return migrationsFS
}
