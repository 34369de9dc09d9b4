// Package builtin embeds the YAML plugin files via go:embed.
package builtin

import "embed"

//go:embed *.yaml
var plugins embed.FS

// FS returns the embedded filesystem containing built-in plugins.
func FS() embed.FS {
	return plugins
}
