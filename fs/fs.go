// Package appfs embeds the files shipped with the binaries: DB migrations & email templates.
package appfs

import "embed"

//go:embed migrations/*.sql all:assets
var FS embed.FS
