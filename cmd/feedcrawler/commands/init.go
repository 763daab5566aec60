package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/opentender/feedcrawler/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a starter configuration file",
	Long: `Write a configuration file with the default settings.

By default the file is created at $XDG_CONFIG_HOME/feedcrawler/config.yaml.
Use --config to pick another path and --force to overwrite an existing file.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := ConfigFile()

	if !initForce {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	if err := config.SaveConfig(config.GetDefaultConfig(), path); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", path)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Set api.host and a position store (mongo.url or postgres.host)")
	fmt.Printf("  2. Start the crawler with: feedcrawler start --config %s\n", path)
	return nil
}
