// Package db carries the SQL migrations compiled into the binary.
package db

import "embed"

// Migrations are applied to the local SQLite database.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// PostgresMigrations are applied to the shared watchlist database.
//
//go:embed postgres/*.sql
var PostgresMigrations embed.FS
