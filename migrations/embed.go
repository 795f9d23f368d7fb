// Package migrations embeds SQL migrations for the Postgres snapshot backend.
package migrations

import "embed"

// FS holds the migration files applied by internal/migrate.
//
//go:embed *.sql
var FS embed.FS
