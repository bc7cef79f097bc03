// Package db embeds the hub schema migrations.
package db

import "embed"

// MigrationsFS contains the hub SQL migrations embedded at compile time.
//
//go:embed migrations/*.sql
var MigrationsFS embed.FS
