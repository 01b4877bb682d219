// Package migrations embeds the SQL schema for the publish history database.
package migrations

import "embed"

// FS holds the migration files at its root.
//
//go:embed *.sql
var FS embed.FS
