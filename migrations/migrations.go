// Package migrations embeds the Postgres schema migrations applied by
// cmd/migrate.
package migrations

import "embed"

// FS holds the numbered up/down SQL files in golang-migrate naming.
//
//go:embed *.sql
var FS embed.FS
