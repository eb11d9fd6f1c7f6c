// Command bardctl is the administrative client for a running bardd
// daemon: quota management, usage inspection, and restage/reload
// control over the daemon's HTTP API.
package main

import (
	"fmt"
	"os"

	"github.com/dtn-bard/bard/cmd/bardctl/commands"
)

// Build-time variables injected via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.Version = version
	commands.Commit = commit
	commands.Date = date

	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
