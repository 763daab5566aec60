// Package commands implements the feedcrawler CLI.
package commands

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "feedcrawler",
	Short: "Resilient bidirectional changes-feed crawler",
	Long: `feedcrawler tails a paginated REST changes feed in two directions at once:
forward toward new changes and backward through history. Cursor positions are
persisted so a restarted process resumes where it left off, and an optional
distributed lock keeps at most one live crawler per process name.

The bundled binary logs every page it receives. To process pages, embed the
crawler as a library and supply your own data handler.

Use "feedcrawler [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/feedcrawler/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(initCmd)
}

// ConfigFile returns the --config value, or the default location.
func ConfigFile() string {
	if cfgFile != "" {
		return cfgFile
	}
	return DefaultConfigPath()
}

// DefaultConfigPath returns $XDG_CONFIG_HOME/feedcrawler/config.yaml,
// falling back to ~/.config.
func DefaultConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join("/etc", "feedcrawler", "config.yaml")
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "feedcrawler", "config.yaml")
}
