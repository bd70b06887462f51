// Package migrations embeds the versioned SQL schema files.
package migrations

import "embed"

// Files holds NNNN_name.up.sql and NNNN_name.down.sql pairs in golang-migrate layout.
//
//go:embed *.sql
var Files embed.FS
