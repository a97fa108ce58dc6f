// Package db embeds the schema migrations applied by `inbox migrate`.
package db

import "embed"

// MigrationsFS holds migrations/*.sql; pass fs.Sub(MigrationsFS, "migrations") to RunMigrate.
//
//go:embed migrations/*.sql
var MigrationsFS embed.FS
