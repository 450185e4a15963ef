package commands

import (
	"fmt"

	"github.com/marmos91/fsbridge/pkg/config"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample fsbridge configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/fsbridge/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  fsbridge init

  # Initialize with custom path
  fsbridge init --config /etc/fsbridge/config.yaml

  # Force overwrite existing config
  fsbridge init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	var configPath string
	var err error

	if configFile != "" {
		err = config.InitConfigToPath(configFile, initForce)
		configPath = configFile
	} else {
		configPath, err = config.InitConfig(initForce)
	}

	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Configuration file created at: %s\n", configPath)
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  1. Edit the configuration file to customize your setup")
	fmt.Fprintln(out, "  2. Start the bridge with: fsbridge start")
	fmt.Fprintf(out, "  3. Or specify custom config: fsbridge start --config %s\n", configPath)
	fmt.Fprintln(out, "\nSecurity note:")
	fmt.Fprintln(out, "  A random JWT secret has been generated for the HTTP adapter.")
	fmt.Fprintln(out, "  For production, override it with an environment variable:")
	fmt.Fprintln(out, "    export FSBRIDGE_ADAPTERS_HTTP_JWT_SECRET=$(openssl rand -hex 32)")

	return nil
}
