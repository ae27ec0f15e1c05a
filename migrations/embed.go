package migrations

import "embed"

// Files exposes the journal schema, one directory per backend.
//
//go:embed postgres/*.sql sqlite/*.sql
var Files embed.FS
