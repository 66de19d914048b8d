package webassets

import "embed"

// Files holds the dashboard page served at "/".
//
//go:embed *.html
var Files embed.FS
