package commands

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dtn-bard/bard/cmd/bardctl/cmdutil"
	"github.com/dtn-bard/bard/internal/bytesize"
	"github.com/dtn-bard/bard/pkg/apiclient"
)

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Manage per-endpoint storage quotas",
	Long: `Manage per-endpoint storage quotas on the BARD daemon.

A quota is keyed by (type, scheme, node): type is SRC or DST, scheme is
ipn, imc, or dtn, and node is the numeric node/group number (ipn/imc)
or the DTN authority string.`,
}

func init() {
	quotaCmd.AddCommand(quotaAddCmd)
	quotaCmd.AddCommand(quotaDelCmd)
	quotaCmd.AddCommand(quotaUnlimitedCmd)
	quotaCmd.AddCommand(quotaListCmd)

	quotaListCmd.Flags().BoolVar(&quotaExact, "exact", false, "Show exact values instead of K/M/G/T magnitudes")
}

var quotaAddCmd = &cobra.Command{
	Use:   "add <type> <scheme> <node> <int-bundles> <int-bytes> [link auto-reload ext-bundles ext-bytes]",
	Short: "Create or update a quota",
	Long: `Create or update a quota record for one endpoint key.

With only the internal limits given, over-quota bundles are refused
outright. Supplying the four restage arguments (preferred link,
auto-reload flag, external limits) enables restaging to external
storage instead.

Numeric arguments accept B/K/M/G/T suffixes (1K = 1000).

Examples:
  # Refuse-over-quota: 10000 bundles or 1G bytes internally
  bardctl quota add DST ipn 5 10K 1G

  # Restage overflow to link "primary", auto-reload, 100K/10G external
  bardctl quota add DST ipn 5 10K 1G primary true 100K 10G`,
	Args: cobra.RangeArgs(5, 9),
	RunE: runQuotaAdd,
}

func runQuotaAdd(cmd *cobra.Command, args []string) error {
	if len(args) > 5 && len(args) != 9 {
		return fmt.Errorf("restage arguments must be given together: link auto-reload ext-bundles ext-bytes")
	}

	intBundles, err := parseCount(args[3])
	if err != nil {
		return fmt.Errorf("invalid internal bundle limit: %w", err)
	}
	intBytes, err := parseCount(args[4])
	if err != nil {
		return fmt.Errorf("invalid internal byte limit: %w", err)
	}

	req := apiclient.AddQuotaRequest{
		QuotaType:       args[0],
		Scheme:          args[1],
		Node:            args[2],
		InternalBundles: intBundles,
		InternalBytes:   intBytes,
		RefuseBundle:    true,
	}

	if len(args) == 9 {
		req.RefuseBundle = false
		req.RestageLinkName = args[5]
		autoReload, err := strconv.ParseBool(args[6])
		if err != nil {
			return fmt.Errorf("invalid auto-reload flag %q: %w", args[6], err)
		}
		req.AutoReload = autoReload
		if req.ExternalBundles, err = parseCount(args[7]); err != nil {
			return fmt.Errorf("invalid external bundle limit: %w", err)
		}
		if req.ExternalBytes, err = parseCount(args[8]); err != nil {
			return fmt.Errorf("invalid external byte limit: %w", err)
		}
	}

	client := cmdutil.GetClient()
	if err := client.AddQuota(req); err != nil {
		return fmt.Errorf("failed to add quota: %w", err)
	}

	printer, err := cmdutil.NewPrinter(os.Stdout)
	if err != nil {
		return err
	}
	printer.Success(fmt.Sprintf("Quota set for %s %s %s", args[0], args[1], args[2]))
	return nil
}

var quotaDelCmd = &cobra.Command{
	Use:   "del <type> <scheme> <node>",
	Short: "Clear a quota",
	Long: `Clear the quota fields for one endpoint key. The usage record
remains, so accounting for the key continues; only the limits go away.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := cmdutil.GetClient()
		if err := client.DelQuota(args[0], args[1], args[2]); err != nil {
			return fmt.Errorf("failed to delete quota: %w", err)
		}
		printer, err := cmdutil.NewPrinter(os.Stdout)
		if err != nil {
			return err
		}
		printer.Success(fmt.Sprintf("Quota cleared for %s %s %s", args[0], args[1], args[2]))
		return nil
	},
}

var quotaUnlimitedCmd = &cobra.Command{
	Use:   "unlimited <type> <scheme> <node>",
	Short: "Set a quota to unlimited",
	Long: `Set every limit for one endpoint key to zero (unlimited),
overriding any startup configuration for the key.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := cmdutil.GetClient()
		if err := client.UnlimitedQuota(args[0], args[1], args[2]); err != nil {
			return fmt.Errorf("failed to set unlimited quota: %w", err)
		}
		printer, err := cmdutil.NewPrinter(os.Stdout)
		if err != nil {
			return err
		}
		printer.Success(fmt.Sprintf("Quota set to unlimited for %s %s %s", args[0], args[1], args[2]))
		return nil
	},
}

var quotaExact bool

var quotaListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all configured quotas",
	Long: `List every configured quota. Limits are shown with K/M/G/T
magnitudes unless --exact is given.

Examples:
  bardctl quota list
  bardctl quota list --exact
  bardctl quota list -o json`,
	RunE: runQuotaList,
}

// quotaList is a list of quota records for table rendering. JSON and
// YAML output marshal the underlying records directly.
type quotaList []apiclient.DumpRecord

func (quotaList) Headers() []string {
	return []string{"TYPE", "SCHEME", "NODE", "INT BUNDLES", "INT BYTES", "EXT BUNDLES", "EXT BYTES", "POLICY", "LINK"}
}

func (q quotaList) Rows() [][]string {
	rows := make([][]string, 0, len(q))
	for _, r := range q {
		policy := "restage"
		if r.RefuseBundle {
			policy = "refuse"
		}
		if r.AutoReload {
			policy += "+autoreload"
		}
		rows = append(rows, []string{
			r.QuotaType,
			r.Scheme,
			r.Node,
			cmdutil.FormatQuotaLimit(r.InternalBundles, quotaExact),
			cmdutil.FormatQuotaLimit(r.InternalBytes, quotaExact),
			cmdutil.FormatQuotaLimit(r.ExternalBundles, quotaExact),
			cmdutil.FormatQuotaLimit(r.ExternalBytes, quotaExact),
			policy,
			r.RestageLinkName,
		})
	}
	return rows
}

func runQuotaList(cmd *cobra.Command, args []string) error {
	client := cmdutil.GetClient()
	records, err := client.Quotas()
	if err != nil {
		return fmt.Errorf("failed to list quotas: %w", err)
	}
	return cmdutil.PrintOutput(os.Stdout, quotaList(records), len(records) == 0, "No quotas configured.")
}

// parseCount parses a numeric command argument with the optional
// B/K/M/G/T suffix set the quota commands accept.
func parseCount(s string) (uint64, error) {
	n, err := bytesize.ParseByteSize(s)
	if err != nil {
		return 0, err
	}
	return n.Uint64(), nil
}
