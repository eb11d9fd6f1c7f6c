package commands

import (
	"fmt"

	"github.com/dtn-bard/bard/pkg/config"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample bardd configuration file with one restage
link and one quota record, enough to see bundles restage and reload
end to end.

Examples:
  bardd init
  bardd init --config /etc/bard/config.yaml
  bardd init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	var configPath string
	var err error

	if cfg := GetConfigFile(); cfg != "" {
		err = config.InitConfigToPath(cfg, initForce)
		configPath = cfg
	} else {
		configPath, err = config.InitConfig(initForce)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to set your restage links and quotas")
	fmt.Println("  2. Start the daemon with: bardd start --foreground")
	return nil
}
