package db

import "embed"

// Migrations holds the goose SQL migrations so binaries can apply them without the source tree.
//
//go:embed migrations/*.sql
var Migrations embed.FS
