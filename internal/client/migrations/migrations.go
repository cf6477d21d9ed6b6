// Package migrations embeds the schema of the wopictl local database.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
