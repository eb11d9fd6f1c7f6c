// Package commands implements the CLI commands for the bardctl client.
package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/dtn-bard/bard/cmd/bardctl/cmdutil"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "bardctl",
	Short: "BARD Control - quota and restage management client",
	Long: `bardctl is the command-line client for managing a running BARD
daemon: per-endpoint storage quotas, usage inspection, restaging and
reloading of bundles, and external-storage rescans, all over the
daemon's REST API.

Use "bardctl [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cmdutil.Flags.ServerURL, _ = cmd.Flags().GetString("server")
		cmdutil.Flags.Output, _ = cmd.Flags().GetString("output")
		cmdutil.Flags.NoColor, _ = cmd.Flags().GetBool("no-color")
	},
}

// Execute adds all child commands to the root command. Called once by main.main.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command, for testing.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().String("server", "", "Daemon URL (default: $BARD_SERVER or http://localhost:8080)")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "Output format (table|json|yaml)")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(quotaCmd)
	rootCmd.AddCommand(usageCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(rescanCmd)
	rootCmd.AddCommand(forceRestageCmd)
	rootCmd.AddCommand(reloadCmd)
	rootCmd.AddCommand(reloadAllCmd)
	rootCmd.AddCommand(delRestagedCmd)
	rootCmd.AddCommand(delAllRestagedCmd)
	rootCmd.AddCommand(completionCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// PrintErr prints an error message to stderr.
func PrintErr(format string, args ...any) {
	rootCmd.PrintErrf(format+"\n", args...)
}

// Exit prints an error and exits with code 1.
func Exit(format string, args ...any) {
	PrintErr(format, args...)
	os.Exit(1)
}
