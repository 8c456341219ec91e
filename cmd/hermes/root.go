package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "hermes",
	Short: "Hermes - streaming relay for LLM chat completions",
	Long: `Hermes relays chat completions between a frontend and an
OpenAI-compatible upstream.

It re-encodes the upstream token stream into a single outbound byte
stream carrying the content, a usage accounting record, and an in-band
error escape, and expands encrypted prompt references server-side so
prompt templates never reach the client.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
}
