// Command bardd is the Bundle Archival Restaging Daemon: it enforces
// per-endpoint storage quotas on in-flight DTN bundles and restages
// overflow to external storage.
package main

import (
	"fmt"
	"os"

	"github.com/dtn-bard/bard/cmd/bardd/commands"
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
