package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hemapex/hemapex/internal/config"
	"github.com/hemapex/hemapex/internal/home"
)

var (
	configForce   bool
	configDefault bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage hemapex configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	Long: `Write the default configuration to --config, or to config.yaml in the
hemapex home directory. An existing file is kept unless --force is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}
		path := pick(cfgFile, h.ConfigPath())
		exists := fileExistsAt(path)
		if cfgFile == "" {
			exists = h.ConfigExists()
		}
		if exists && !configForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show [key]",
	Short: "Show the effective configuration or a single key",
	Long: `Show the configuration after defaults, config file and HEMAPEX_*
environment variables are merged.

Examples:
  hemapex config show
  hemapex config show extraction.provider
  hemapex config show providers.groq.rate_limit
  hemapex config show --default run.sample_size`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if configDefault {
			if len(args) == 0 {
				return writeOutput(cmd.OutOrStdout(), config.DefaultEntries())
			}
			entry, err := config.RequireDefault(args[0])
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), entry)
		}
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		mgr, err := config.NewManager(cfgFile, h.Path())
		if err != nil {
			return err
		}
		if len(args) == 0 {
			return writeOutput(cmd.OutOrStdout(), mgr.Get())
		}
		value, err := mgr.Lookup(args[0])
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), map[string]any{args[0]: value})
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing file")
	configShowCmd.Flags().BoolVar(&configDefault, "default", false, "show built-in defaults with descriptions instead of the effective value")
	configCmd.AddCommand(configInitCmd, configShowCmd)
	rootCmd.AddCommand(configCmd)
}
