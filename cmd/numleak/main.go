// cmd/numleak/main.go
package main

import (
	cmd "github.com/mwiater/numleak/internal/commands"
)

// Build-time variables injected via -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// main starts the numleak CLI application by delegating to the
// cobra root command defined in the numleak package. It does not
// take any arguments and does not return a value.
func main() {
	cmd.SetVersionInfo(version, commit, date)
	cmd.Execute()
}
