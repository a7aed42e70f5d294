// Package assets embeds the default word lists so the server can start
// even when no word list files are configured.
package assets

import (
	"embed"
	"io/fs"
)

const (
	CommonFile = "common.txt"
	AllFile    = "all.txt"
)

//go:embed all.txt common.txt
var FS embed.FS

// Open opens one of the embedded word lists by name.
func Open(name string) (fs.File, error) {
	return FS.Open(name)
}
