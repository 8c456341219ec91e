package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"scribe-hq/hermes/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Load the configuration file, apply defaults and environment
overrides, and report whether the result is valid. The server is not
started.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
		if err != nil {
			return err
		}

		fmt.Printf("✓ Configuration valid\n")
		fmt.Printf("  listen address: %s\n", cfg.Server.ListenAddress)
		fmt.Printf("  provider:       %s (%s)\n", cfg.Provider.Name, cfg.Provider.BaseURL)
		fmt.Printf("  prompt store:   %s\n", cfg.Store.Path)
		if cfg.Usage.Enabled {
			fmt.Printf("  usage ledger:   %s (retention %dd)\n", cfg.Usage.Path, cfg.Usage.RetentionDays)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
