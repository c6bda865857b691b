// Package migrations holds the schema of the order service.
package migrations

import "embed"

// FS contains the *.sql files of this directory.
//
//go:embed *.sql
var FS embed.FS
