package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/joshuaramkissoon/clipcache/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a configuration file",
	Long: `Write a configuration file populated with defaults.

The file is written to the --config path, or to the default location at
$XDG_CONFIG_HOME/clipcache/config.yaml. Existing files are preserved
unless --force is given.

Examples:
  # Write the default config
  clipcached init

  # Overwrite an existing config
  clipcached init --force

  # Write to a custom location
  clipcached init --config /etc/clipcache/config.yaml`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := GetConfigFile()
	if path == "" {
		path = filepath.Join(config.DefaultConfigDir(), "config.yaml")
	}

	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("config file already exists: %s (use --force to overwrite)", path)
	}

	if err := config.Save(config.DefaultConfig(), path); err != nil {
		return err
	}

	fmt.Printf("Configuration written to %s\n", path)
	return nil
}
