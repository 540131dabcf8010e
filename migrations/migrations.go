// Package migrations embeds the versioned schema and seed SQL so the
// migrate binary does not depend on the working directory.
package migrations

import "embed"

//go:embed *.sql seed/*.sql
var FS embed.FS
