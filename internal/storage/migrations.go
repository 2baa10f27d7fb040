package storage

import "embed"

// migrationsFS holds the versioned schema migrations applied at Open.
//
//go:embed migrations/*.sql
var migrationsFS embed.FS
