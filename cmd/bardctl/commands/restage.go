package commands

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dtn-bard/bard/cmd/bardctl/cmdutil"
	"github.com/dtn-bard/bard/internal/cli/prompt"
	"github.com/dtn-bard/bard/pkg/apiclient"
	"github.com/dtn-bard/bard/pkg/bard"
)

var rescanCmd = &cobra.Command{
	Use:   "rescan",
	Short: "Rebuild external-storage accounting from disk",
	Long: `Pause every restage link, re-enumerate its storage root, and
rebuild external in-use accounting from what is actually on disk. Use
after files were added or removed behind the daemon's back. At most one
rescan runs at a time.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := cmdutil.GetClient()
		if err := client.Rescan(); err != nil {
			return fmt.Errorf("rescan failed: %w", err)
		}
		printer, err := cmdutil.NewPrinter(os.Stdout)
		if err != nil {
			return err
		}
		printer.Success("Rescan completed")
		return nil
	},
}

var forceRestageLink string

var forceRestageCmd = &cobra.Command{
	Use:   "force-restage <type> <scheme> <node>",
	Short: "Send a force-restage request for one key",
	Long: `Send a force-restage request for one endpoint key. The daemon
resolves the target link and has it confirm the key; it does not
sweep internal storage itself, so bundles move only when the host
bundle store enqueues them for restaging. The target link
defaults to the key's configured restage link.

Examples:
  bardctl force-restage DST ipn 5
  bardctl force-restage DST ipn 5 --link secondary`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := canonicalKeyFromArgs(args)
		if err != nil {
			return err
		}
		client := cmdutil.GetClient()
		if err := client.ForceRestage(key, forceRestageLink); err != nil {
			return fmt.Errorf("force-restage failed: %w", err)
		}
		printer, err := cmdutil.NewPrinter(os.Stdout)
		if err != nil {
			return err
		}
		printer.Success(fmt.Sprintf("Force-restage accepted for %s %s %s", args[0], args[1], args[2]))
		return nil
	},
}

var (
	reloadNewExpiration time.Duration
	reloadNewDest       string
)

var reloadCmd = &cobra.Command{
	Use:   "reload <type> <scheme> <node>",
	Short: "Reload restaged bundles for one key",
	Long: `Queue every restaged bundle for one endpoint key to be read back
into internal storage, subject to the key's internal quota.

Examples:
  bardctl reload DST ipn 5
  bardctl reload DST ipn 5 --new-expiration 24h
  bardctl reload DST ipn 5 --new-dest ipn:9.1`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := canonicalKeyFromArgs(args)
		if err != nil {
			return err
		}
		client := cmdutil.GetClient()
		opts := apiclient.ReloadOptions{
			NewExpirationSecs: uint64(reloadNewExpiration / time.Second),
			NewDestEID:        reloadNewDest,
		}
		if err := client.Reload(key, opts); err != nil {
			return fmt.Errorf("reload failed: %w", err)
		}
		printer, err := cmdutil.NewPrinter(os.Stdout)
		if err != nil {
			return err
		}
		printer.Success(fmt.Sprintf("Reload queued for %s %s %s", args[0], args[1], args[2]))
		return nil
	},
}

var reloadAllNewExpiration time.Duration

var reloadAllCmd = &cobra.Command{
	Use:   "reload-all",
	Short: "Reload restaged bundles across every link",
	Long: `Queue every restaged bundle on every link for reload, subject to
each key's internal quota.

Examples:
  bardctl reload-all
  bardctl reload-all --new-expiration 24h`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := cmdutil.GetClient()
		opts := apiclient.ReloadOptions{
			NewExpirationSecs: uint64(reloadAllNewExpiration / time.Second),
		}
		failures, err := client.ReloadAll(opts)
		if err != nil {
			return fmt.Errorf("reload-all failed: %w", err)
		}
		printer, err := cmdutil.NewPrinter(os.Stdout)
		if err != nil {
			return err
		}
		for _, f := range failures {
			printer.Warning(f)
		}
		printer.Success("Reload queued on every link")
		return nil
	},
}

var delRestagedYes bool

var delRestagedCmd = &cobra.Command{
	Use:   "del-restaged <type> <scheme> <node>",
	Short: "Delete restaged bundles for one key",
	Long: `Delete every restaged file for one endpoint key from its owning
link's external storage. The bundles are gone; they will not be
reloaded.

Examples:
  bardctl del-restaged DST ipn 5
  bardctl del-restaged DST ipn 5 --yes`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := canonicalKeyFromArgs(args)
		if err != nil {
			return err
		}
		confirmed, err := prompt.ConfirmWithForce(
			fmt.Sprintf("Delete all restaged bundles for %s %s %s?", args[0], args[1], args[2]),
			delRestagedYes)
		if err != nil {
			if errors.Is(err, prompt.ErrAborted) {
				return nil
			}
			return err
		}
		if !confirmed {
			return nil
		}
		client := cmdutil.GetClient()
		if err := client.DelRestagedBundles(key); err != nil {
			return fmt.Errorf("del-restaged failed: %w", err)
		}
		printer, err := cmdutil.NewPrinter(os.Stdout)
		if err != nil {
			return err
		}
		printer.Success(fmt.Sprintf("Restaged bundles deleted for %s %s %s", args[0], args[1], args[2]))
		return nil
	},
}

var delAllRestagedYes bool

var delAllRestagedCmd = &cobra.Command{
	Use:   "del-all-restaged",
	Short: "Delete restaged bundles across every link",
	Long: `Delete every restaged file on every link. This destroys all
externally stored bundles and cannot be undone; the command requires
typed confirmation unless --yes is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !delAllRestagedYes {
			confirmed, err := prompt.ConfirmDanger(
				"Delete ALL restaged bundles on every link", "delete-all")
			if err != nil {
				if errors.Is(err, prompt.ErrAborted) {
					return nil
				}
				return err
			}
			if !confirmed {
				return nil
			}
		}
		client := cmdutil.GetClient()
		failures, err := client.DelAllRestagedBundles()
		if err != nil {
			return fmt.Errorf("del-all-restaged failed: %w", err)
		}
		printer, err := cmdutil.NewPrinter(os.Stdout)
		if err != nil {
			return err
		}
		for _, f := range failures {
			printer.Warning(f)
		}
		printer.Success("Restaged bundles deleted on every link")
		return nil
	},
}

func init() {
	forceRestageCmd.Flags().StringVar(&forceRestageLink, "link", "", "Restage link to sweep to (default: the key's configured link)")

	reloadCmd.Flags().DurationVar(&reloadNewExpiration, "new-expiration", 0, "Extend each bundle's expiration to at least now+duration")
	reloadCmd.Flags().StringVar(&reloadNewDest, "new-dest", "", "Redirect each bundle to this destination EID (e.g. ipn:9.1)")

	reloadAllCmd.Flags().DurationVar(&reloadAllNewExpiration, "new-expiration", 0, "Extend each bundle's expiration to at least now+duration")

	delRestagedCmd.Flags().BoolVarP(&delRestagedYes, "yes", "y", false, "Skip confirmation prompt")
	delAllRestagedCmd.Flags().BoolVarP(&delAllRestagedYes, "yes", "y", false, "Skip confirmation prompt")
}

// canonicalKeyFromArgs validates the (type, scheme, node) argument
// triple client-side and builds the canonical key the API addresses
// restage operations by.
func canonicalKeyFromArgs(args []string) (string, error) {
	qt, err := bard.ParseQuotaType(args[0])
	if err != nil {
		return "", err
	}
	scheme, err := bard.ParseScheme(args[1])
	if err != nil {
		return "", err
	}
	return bard.CanonicalKey(qt, scheme, args[2]), nil
}
