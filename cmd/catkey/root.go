// Package main provides the entry point for the catkey CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for catkey.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catkey",
		Short: "Resolve bestseller ISBNs to library catalog record keys",
		Long: `catkey fetches the configured bestseller lists, searches each ISBN in a
library catalog through a headless browser, and reports the catalog
record keys it finds. Found keys are exported as a text report, misses
as a CSV, and both can be emailed to the configured recipients.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
