package migrations

import "embed"

// FS holds the goose SQL migrations for the run ledger.
//
//go:embed *.sql
var FS embed.FS
