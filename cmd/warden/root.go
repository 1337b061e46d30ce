package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// cfgFile is the global configuration file path, empty for built-in
// defaults.
var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "warden",
	Short: "Warden - resource protection for document generation",
	Long: `Warden is the resource-protection daemon for a document-generation
service. It gates expensive generation actions behind a rolling-window
request limiter and a balance-based credit ledger, and protects generated
content at rest with envelope encryption.`,
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
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
}
