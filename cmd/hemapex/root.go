package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/hemapex/hemapex/version"
)

var (
	cfgFile      string
	homeDir      string
	envFile      string
	logLevel     string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "hemapex",
	Short: "Extract treatment timelines from clinical notes with LLMs",
	Long: `hemapex extracts structured oncology treatment lines from free-text
clinical notes using LLM APIs and compares them against a curated
reference dataset.

The workflow:
  - eligible: select patients whose notes postdate their reference records
  - extract:  extract treatment lines per patient (resumable)
  - relapse:  extract post-transplant relapse per patient (resumable)
  - compare:  measure agreement between extracted and reference records`,
	Version:       version.GitRelease,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.hemapex/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "hemapex home directory (default: ~/.hemapex)",
	)
	rootCmd.PersistentFlags().StringVar(
		&envFile, "env-file", "", "dotenv file with API keys (default: ./.env if present)",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "info", "log level: debug, info, warn or error",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if outputFormat != "yaml" && outputFormat != "json" {
			return fmt.Errorf("unknown output format %q", outputFormat)
		}
		return loadEnvFile()
	}

	rootCmd.AddCommand(versionCmd)
}

// loadEnvFile loads API keys from a dotenv file. A missing default file is
// not an error; a missing explicit one is.
func loadEnvFile() error {
	path := envFile
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if envFile == "" && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}
