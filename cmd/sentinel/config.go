package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jamesainslie/sentinel/pkg/sentinel/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage sentinel configuration settings.

Configuration is loaded from $XDG_CONFIG_HOME/sentinel/config.yaml.
Environment variables override the file using the SENTINEL_ prefix:
  SENTINEL_SWEEP_INTERVAL_DAYS=7
  SENTINEL_CHECK_SIZE_FRACTION=0.05
  SENTINEL_LOGGING_LEVEL=debug`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the default configuration file",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the configuration and data paths",
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set one configuration value",
	Example: `  sentinel config set sweep_interval_days 7
  sentinel config set safety_margin 256MiB`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

func init() {
	configCmd.AddCommand(configShowCmd, configInitCmd, configPathCmd, configSetCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(*cobra.Command, []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}

func runConfigInit(*cobra.Command, []string) error {
	wrote, err := config.WriteDefault()
	if err != nil {
		return err
	}
	if !wrote {
		printInfo("Configuration file already exists: %s", config.ConfigPath())
		return nil
	}
	printInfo("Created %s", config.ConfigPath())
	return nil
}

func runConfigPath(*cobra.Command, []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	fmt.Printf("config:    %s\n", config.ConfigPath())
	fmt.Printf("state:     %s\n", cfg.StatePath())
	fmt.Printf("manifests: %s\n", cfg.ManifestDir())
	fmt.Printf("journal:   %s\n", cfg.JournalDir())
	return nil
}

func runConfigSet(_ *cobra.Command, args []string) error {
	if err := config.Set(args[0], args[1]); err != nil {
		return err
	}
	printInfo("%s = %s", args[0], args[1])
	return nil
}
