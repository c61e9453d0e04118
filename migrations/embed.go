// Package migrations holds the status history schema.
package migrations

import "embed"

// Files is passed to database.DB.Migrate.
//
//go:embed *.sql
var Files embed.FS
