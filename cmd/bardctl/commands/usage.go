package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dtn-bard/bard/cmd/bardctl/cmdutil"
	"github.com/dtn-bard/bard/pkg/apiclient"
)

var usageExact bool

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show accounting for every known endpoint key",
	Long: `Show in-use accounting for every endpoint key the daemon has
ever seen, whether or not a quota is configured for it. Values use
K/M/G/T magnitudes unless --exact is given.

Examples:
  bardctl usage
  bardctl usage --exact
  bardctl usage -o json`,
	RunE: runUsage,
}

func init() {
	usageCmd.Flags().BoolVar(&usageExact, "exact", false, "Show exact values instead of K/M/G/T magnitudes")
}

// usageList renders usage records as a table.
type usageList []apiclient.DumpRecord

func (usageList) Headers() []string {
	return []string{"TYPE", "SCHEME", "NODE", "INT IN-USE", "INT BYTES", "EXT IN-USE", "EXT BYTES", "QUOTA"}
}

func (u usageList) Rows() [][]string {
	rows := make([][]string, 0, len(u))
	for _, r := range u {
		quota := "-"
		if r.HasQuota {
			quota = "yes"
		}
		rows = append(rows, []string{
			r.QuotaType,
			r.Scheme,
			r.Node,
			cmdutil.FormatMagnitude(r.InUseInternal.Bundles, usageExact),
			cmdutil.FormatMagnitude(r.InUseInternal.Bytes, usageExact),
			cmdutil.FormatMagnitude(r.InUseExternal.Bundles, usageExact),
			cmdutil.FormatMagnitude(r.InUseExternal.Bytes, usageExact),
			quota,
		})
	}
	return rows
}

func runUsage(cmd *cobra.Command, args []string) error {
	client := cmdutil.GetClient()
	records, err := client.Usage()
	if err != nil {
		return fmt.Errorf("failed to fetch usage: %w", err)
	}
	return cmdutil.PrintOutput(os.Stdout, usageList(records), len(records) == 0, "No usage records.")
}

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Full diagnostic dump including reservations",
	Long: `Show the full diagnostic state of every usage record, including
in-flight reservations that the usage command omits. Values are always
exact.

Examples:
  bardctl dump
  bardctl dump -o yaml`,
	RunE: runDump,
}

// dumpList renders the full diagnostic dump as a table.
type dumpList []apiclient.DumpRecord

func (dumpList) Headers() []string {
	return []string{"KEY", "INT IN-USE", "INT RESERVED", "EXT IN-USE", "EXT RESERVED", "LINK", "FLAGS"}
}

func (d dumpList) Rows() [][]string {
	rows := make([][]string, 0, len(d))
	for _, r := range d {
		var flags string
		if r.RefuseBundle {
			flags += "R"
		}
		if r.AutoReload {
			flags += "A"
		}
		if r.HasQuota {
			flags += "Q"
		}
		rows = append(rows, []string{
			r.Key,
			fmt.Sprintf("%d/%d", r.InUseInternal.Bundles, r.InUseInternal.Bytes),
			fmt.Sprintf("%d/%d", r.ReservedInternal.Bundles, r.ReservedInternal.Bytes),
			fmt.Sprintf("%d/%d", r.InUseExternal.Bundles, r.InUseExternal.Bytes),
			fmt.Sprintf("%d/%d", r.ReservedExternal.Bundles, r.ReservedExternal.Bytes),
			r.RestageLinkName,
			flags,
		})
	}
	return rows
}

func runDump(cmd *cobra.Command, args []string) error {
	client := cmdutil.GetClient()
	records, err := client.Dump()
	if err != nil {
		return fmt.Errorf("failed to fetch dump: %w", err)
	}
	return cmdutil.PrintOutput(os.Stdout, dumpList(records), len(records) == 0, "No usage records.")
}
