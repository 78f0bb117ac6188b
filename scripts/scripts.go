// Package scripts bundles the Risor scripts shipped with the arbor CLI.
package scripts

import "embed"

// FS holds every bundled script at its root, e.g. "outline.risor".
//
//go:embed *.risor
var FS embed.FS
