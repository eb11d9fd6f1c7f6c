package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dtn-bard/bard/cmd/bardctl/cmdutil"
	"github.com/dtn-bard/bard/internal/cli/timeutil"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Long: `Show the daemon's readiness, uptime, configured quota count, and
whether a rescan is in progress.

Examples:
  bardctl status
  bardctl status --server http://node7:8080`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	client := cmdutil.GetClient()
	health, err := client.Health()
	if err != nil {
		return fmt.Errorf("daemon unreachable: %w", err)
	}

	fmt.Println("BARD daemon: ready")
	if health.StartedAt != "" {
		fmt.Printf("  Started:    %s\n", timeutil.FormatTime(health.StartedAt))
	}
	if health.Uptime != "" {
		fmt.Printf("  Uptime:     %s\n", timeutil.FormatUptime(health.Uptime))
	}
	fmt.Printf("  Quotas:     %d\n", health.Quotas)
	if health.Rescanning {
		fmt.Println("  Rescan:     in progress")
	}
	return nil
}
