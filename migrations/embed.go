// Package migrations embeds the SQL schema for every supported dialect.
package migrations

import "embed"

// Files holds postgres/*.sql and sqlite/*.sql, applied by golang-migrate through iofs.
//
//go:embed postgres/*.sql sqlite/*.sql
var Files embed.FS
